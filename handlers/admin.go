// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/calebloveshockey/polls-capstone/auth"
	"github.com/calebloveshockey/polls-capstone/cliparse"
	"github.com/calebloveshockey/polls-capstone/middleware"
	"github.com/calebloveshockey/polls-capstone/models"
)

// AdminHandler serves the site-wide admin panel
type AdminHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewAdminHandler(db *sql.DB, cfg cliparse.Config) *AdminHandler {
	return &AdminHandler{db: db, cfg: cfg}
}

func (h *AdminHandler) authorized(w http.ResponseWriter, r *http.Request) bool {
	err := auth.ValidateSiteAdminToken(r.Header.Get("X-Site-Admin-Token"), h.cfg.SiteAdminToken)
	switch {
	case errors.Is(err, auth.ErrSiteAdminDisabled):
		middleware.ErrorResponse(w, http.StatusForbidden, "Site admin is disabled")
		return false
	case err != nil:
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid site admin token")
		return false
	}
	return true
}

// GetSummary handles GET /admin/summary
func (h *AdminHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	var s models.AdminSummary
	err := h.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM poll),
			(SELECT COUNT(*) FROM poll WHERE status = $1),
			(SELECT COUNT(*) FROM username_claim),
			(SELECT COUNT(*) FROM ballot),
			(SELECT COUNT(*) FROM poll_comment)
	`, models.StatusOpen).Scan(&s.PollCount, &s.OpenPollCount, &s.VoterCount, &s.BallotCount, &s.CommentCount)
	if err != nil {
		slog.Error("failed to query admin summary", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, s)
}

// ListPolls handles GET /admin/polls, newest first
func (h *AdminHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	rows, err := h.db.Query(`
		SELECT ` + pollColumns + `,
			(SELECT COUNT(*) FROM ballot b WHERE b.poll_id = poll.id)
		FROM poll
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		slog.Error("failed to query polls", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	polls := []models.AdminPoll{}
	for rows.Next() {
		var p models.AdminPoll
		err := rows.Scan(
			&p.Poll.ID, &p.Poll.Title, &p.Poll.Description, &p.Poll.CreatorName,
			&p.Poll.Method, &p.Poll.Status, &p.Poll.ShareSlug, &p.Poll.ClosesAt,
			&p.Poll.ClosedAt, &p.Poll.FinalSnapshotID, &p.Poll.CreatedAt,
			&p.BallotCount,
		)
		if err != nil {
			slog.Error("failed to scan poll", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		polls = append(polls, p)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to read polls", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.AdminPollsResponse{Polls: polls})
}

// DeletePoll handles DELETE /admin/polls/{id}
// Options, claims, ballots, comments and snapshots go with it.
func (h *AdminHandler) DeletePoll(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	res, err := h.db.Exec("DELETE FROM poll WHERE id = $1", pollID)
	if err != nil {
		slog.Error("failed to delete poll", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete poll")
		return
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}

	slog.Info("poll deleted by site admin", "poll_id", pollID)

	middleware.JSONResponse(w, http.StatusOK, map[string]string{
		"message": "Poll deleted",
	})
}
