// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/calebloveshockey/polls-capstone/middleware"
	"github.com/calebloveshockey/polls-capstone/models"
)

// ErrVoterNotFound is returned when no username claim carries the token
var ErrVoterNotFound = errors.New("voter not found")

const voterColumns = `
	u.voter_token, u.username, p.id, p.title, p.status, u.created_at,
	(SELECT COUNT(*) FROM ballot b WHERE b.poll_id = u.poll_id AND b.voter_token = u.voter_token),
	(SELECT COUNT(*) FROM poll_comment c WHERE c.poll_id = u.poll_id AND c.voter_token = u.voter_token)`

func scanVoter(row rowScanner) (models.AdminVoter, error) {
	var v models.AdminVoter
	err := row.Scan(
		&v.VoterToken, &v.Username, &v.PollID, &v.PollTitle, &v.PollStatus, &v.ClaimedAt,
		&v.BallotCount, &v.CommentCount,
	)
	return v, err
}

func loadVoter(q Querier, voterToken string) (models.AdminVoter, error) {
	v, err := scanVoter(q.QueryRow(`
		SELECT `+voterColumns+`
		FROM username_claim u
		JOIN poll p ON p.id = u.poll_id
		WHERE u.voter_token = $1
	`, voterToken))
	if errors.Is(err, sql.ErrNoRows) {
		return models.AdminVoter{}, ErrVoterNotFound
	}
	return v, err
}

// requireVoter resolves the {token} path value or writes the error response
func (h *AdminHandler) requireVoter(w http.ResponseWriter, r *http.Request) (models.AdminVoter, bool) {
	token := r.PathValue("token")
	if token == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "voter token is required")
		return models.AdminVoter{}, false
	}

	voter, err := loadVoter(h.db, token)
	if errors.Is(err, ErrVoterNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Voter not found")
		return models.AdminVoter{}, false
	}
	if err != nil {
		slog.Error("failed to query voter", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return models.AdminVoter{}, false
	}
	return voter, true
}

// ListVoters handles GET /admin/voters, newest claim first
func (h *AdminHandler) ListVoters(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	rows, err := h.db.Query(`
		SELECT ` + voterColumns + `
		FROM username_claim u
		JOIN poll p ON p.id = u.poll_id
		ORDER BY u.created_at DESC, u.username
	`)
	if err != nil {
		slog.Error("failed to query voters", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	voters := []models.AdminVoter{}
	for rows.Next() {
		v, err := scanVoter(rows)
		if err != nil {
			slog.Error("failed to scan voter", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		voters = append(voters, v)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to read voters", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.AdminVotersResponse{Voters: voters})
}

// GetVoter handles GET /admin/voters/{token}
// Returns the claim with the voter's ballot and every comment they wrote.
func (h *AdminHandler) GetVoter(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	voter, ok := h.requireVoter(w, r)
	if !ok {
		return
	}

	detail := models.AdminVoterDetail{AdminVoter: voter, Comments: []models.Comment{}}

	var method string
	if err := h.db.QueryRow("SELECT method FROM poll WHERE id = $1", voter.PollID).Scan(&method); err != nil {
		slog.Error("failed to query poll", "error", err, "poll_id", voter.PollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	ballot, err := loadBallot(h.db, voter.PollID, voter.VoterToken, method)
	switch {
	case err == nil:
		detail.Ballot = &ballot
	case !errors.Is(err, sql.ErrNoRows):
		slog.Error("failed to load ballot", "error", err, "poll_id", voter.PollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	rows, err := h.db.Query(`
		SELECT id, poll_id, parent_id, body, created_at
		FROM poll_comment
		WHERE poll_id = $1 AND voter_token = $2
		ORDER BY created_at, id
	`, voter.PollID, voter.VoterToken)
	if err != nil {
		slog.Error("failed to query comments", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	for rows.Next() {
		c := models.Comment{Username: voter.Username, Replies: []models.Comment{}}
		if err := rows.Scan(&c.ID, &c.PollID, &c.ParentID, &c.Body, &c.CreatedAt); err != nil {
			slog.Error("failed to scan comment", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		c.Age = humanize.Time(c.CreatedAt)
		detail.Comments = append(detail.Comments, c)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to read comments", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, detail)
}

// DeleteVoter handles DELETE /admin/voters/{token}
// The claim goes together with the voter's ballot and comments; replies to
// those comments are removed with them. Voters on closed polls stay, since
// their ballots back a sealed result.
func (h *AdminHandler) DeleteVoter(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	voter, ok := h.requireVoter(w, r)
	if !ok {
		return
	}

	if voter.PollStatus == models.StatusClosed {
		middleware.ErrorResponse(w, http.StatusConflict, "Cannot remove a voter from a closed poll")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	// The poll may have closed since the lookup
	var status string
	err = tx.QueryRow("SELECT status FROM poll WHERE id = $1", voter.PollID).Scan(&status)
	if err != nil {
		slog.Error("failed to query poll", "error", err, "poll_id", voter.PollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if status == models.StatusClosed {
		middleware.ErrorResponse(w, http.StatusConflict, "Cannot remove a voter from a closed poll")
		return
	}

	for _, stmt := range []string{
		"DELETE FROM poll_comment WHERE poll_id = $1 AND voter_token = $2",
		"DELETE FROM ballot WHERE poll_id = $1 AND voter_token = $2",
		"DELETE FROM username_claim WHERE poll_id = $1 AND voter_token = $2",
	} {
		if _, err := tx.Exec(stmt, voter.PollID, voter.VoterToken); err != nil {
			slog.Error("failed to delete voter", "error", err, "poll_id", voter.PollID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to remove voter")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit voter removal", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to remove voter")
		return
	}

	slog.Info("voter removed by site admin", "poll_id", voter.PollID, "username", voter.Username,
		"ballots", voter.BallotCount, "comments", voter.CommentCount)

	middleware.JSONResponse(w, http.StatusOK, map[string]string{
		"message": "Voter removed",
	})
}
