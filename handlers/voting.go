// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/calebloveshockey/polls-capstone/auth"
	"github.com/calebloveshockey/polls-capstone/cliparse"
	"github.com/calebloveshockey/polls-capstone/db"
	"github.com/calebloveshockey/polls-capstone/middleware"
	"github.com/calebloveshockey/polls-capstone/models"
)

type VotingHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewVotingHandler(db *sql.DB, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{db: db, cfg: cfg}
}

// acceptingVotes reports whether ballots and claims are allowed at now.
// An open poll past its closes_at stops accepting before the sweeper closes it.
func acceptingVotes(poll models.Poll, now time.Time) bool {
	if poll.Status != models.StatusOpen {
		return false
	}
	return poll.ClosesAt == nil || now.Before(*poll.ClosesAt)
}

// findPoll resolves the slug in the path and writes the error response on failure
func findPoll(w http.ResponseWriter, r *http.Request, q Querier) (models.Poll, bool) {
	shareSlug := r.PathValue("slug")
	if shareSlug == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "slug is required")
		return models.Poll{}, false
	}

	poll, err := loadPollBySlug(q, shareSlug)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return models.Poll{}, false
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return models.Poll{}, false
	}

	return poll, true
}

// voterExists checks that a voter token has claimed a username on the poll
func voterExists(q Querier, pollID, voterToken string) (bool, error) {
	var exists bool
	err := q.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM username_claim
			WHERE poll_id = $1 AND voter_token = $2
		)
	`, pollID, voterToken).Scan(&exists)
	return exists, err
}

// ClaimUsername handles POST /polls/{slug}/claim-username
func (h *VotingHandler) ClaimUsername(w http.ResponseWriter, r *http.Request) {
	var req models.ClaimUsernameRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "username is required")
		return
	}

	if n := utf8.RuneCountInString(req.Username); n < 2 || n > 50 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "username must be 2-50 characters")
		return
	}

	poll, ok := findPoll(w, r, h.db)
	if !ok {
		return
	}

	if !acceptingVotes(poll, time.Now()) {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open for voting")
		return
	}

	voterToken, err := auth.GenerateVoterToken()
	if err != nil {
		slog.Error("failed to generate voter token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to claim username")
		return
	}

	_, err = h.db.Exec(`
		INSERT INTO username_claim (poll_id, username, voter_token, created_at)
		VALUES ($1, $2, $3, $4)
	`, poll.ID, req.Username, voterToken, time.Now().UTC())

	if err != nil {
		if db.IsUniqueViolation(err) {
			middleware.ErrorResponse(w, http.StatusConflict, "Username already taken")
			return
		}
		slog.Error("failed to insert username claim", "error", err, "poll_id", poll.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to claim username")
		return
	}

	slog.Info("username claimed", "poll_id", poll.ID, "username", req.Username)

	middleware.JSONResponse(w, http.StatusCreated, models.ClaimUsernameResponse{
		VoterToken: voterToken,
	})
}

// ballotResponses validates a submission against the poll's method and
// returns the response rows to store, ordered by rank then option ID
func ballotResponses(method string, req models.SubmitBallotRequest, validOptions map[string]bool) ([]models.Response, error) {
	var responses []models.Response

	switch method {
	case models.MethodTraditional, models.MethodApproval:
		if len(req.Rankings) > 0 {
			return nil, fmt.Errorf("%s polls take choices, not rankings", method)
		}
		if len(req.Choices) == 0 {
			return nil, errors.New("choices cannot be empty")
		}
		if method == models.MethodTraditional && len(req.Choices) != 1 {
			return nil, errors.New("traditional polls take exactly one choice")
		}

		seen := make(map[string]bool, len(req.Choices))
		for _, optionID := range req.Choices {
			if !validOptions[optionID] {
				return nil, errors.New("invalid option_id: " + optionID)
			}
			if seen[optionID] {
				return nil, errors.New("duplicate choice: " + optionID)
			}
			seen[optionID] = true
			responses = append(responses, models.Response{OptionID: optionID})
		}

	case models.MethodRanked:
		if len(req.Choices) > 0 {
			return nil, errors.New("ranked polls take rankings, not choices")
		}
		if len(req.Rankings) == 0 {
			return nil, errors.New("rankings cannot be empty")
		}

		usedRanks := make(map[int]string, len(req.Rankings))
		for optionID, rank := range req.Rankings {
			if !validOptions[optionID] {
				return nil, errors.New("invalid option_id: " + optionID)
			}
			if rank < 1 {
				return nil, fmt.Errorf("rank for %s must be at least 1", optionID)
			}
			if other, dup := usedRanks[rank]; dup {
				a, b := other, optionID
				if b < a {
					a, b = b, a
				}
				return nil, fmt.Errorf("rank %d given to both %s and %s", rank, a, b)
			}
			usedRanks[rank] = optionID
			responses = append(responses, models.Response{OptionID: optionID, Rank: &rank})
		}

	default:
		return nil, fmt.Errorf("unsupported voting method %q", method)
	}

	sort.Slice(responses, func(i, j int) bool {
		a, b := responses[i], responses[j]
		if a.Rank != nil && b.Rank != nil && *a.Rank != *b.Rank {
			return *a.Rank < *b.Rank
		}
		return a.OptionID < b.OptionID
	})

	return responses, nil
}

// SubmitBallot handles POST /polls/{slug}/ballots
func (h *VotingHandler) SubmitBallot(w http.ResponseWriter, r *http.Request) {
	voterToken := r.Header.Get("X-Voter-Token")
	if voterToken == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-Voter-Token header required")
		return
	}

	var req models.SubmitBallotRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	poll, ok := findPoll(w, r, h.db)
	if !ok {
		return
	}

	if !acceptingVotes(poll, time.Now()) {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open for voting")
		return
	}

	exists, err := voterExists(h.db, poll.ID, voterToken)
	if err != nil {
		slog.Error("failed to verify voter token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !exists {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid voter token for this poll")
		return
	}

	options, err := loadPollOptions(h.db, poll.ID)
	if err != nil {
		slog.Error("failed to query options", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	validOptions := make(map[string]bool, len(options))
	for _, opt := range options {
		validOptions[opt.ID] = true
	}

	responses, err := ballotResponses(poll.Method, req, validOptions)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	// Get IP hash for tracking
	clientIP := middleware.GetClientIP(r)
	ipHash := auth.HashIP(clientIP, h.cfg.AdminKeySalt) // Reuse admin salt for IP hashing
	userAgent := r.UserAgent()
	now := time.Now().UTC()

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	var ballotID string
	err = tx.QueryRow(`
		SELECT id FROM ballot WHERE poll_id = $1 AND voter_token = $2
	`, poll.ID, voterToken).Scan(&ballotID)

	isUpdate := err == nil
	switch {
	case isUpdate:
		_, err = tx.Exec(`
			UPDATE ballot
			SET submitted_at = $1, ip_hash = $2, user_agent = $3
			WHERE id = $4
		`, now, ipHash, userAgent, ballotID)
		if err == nil {
			_, err = tx.Exec(`DELETE FROM response WHERE ballot_id = $1`, ballotID)
		}
		if err != nil {
			slog.Error("failed to update ballot", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update ballot")
			return
		}

	case errors.Is(err, sql.ErrNoRows):
		ballotID, err = auth.GenerateID()
		if err == nil {
			_, err = tx.Exec(`
				INSERT INTO ballot (id, poll_id, voter_token, submitted_at, ip_hash, user_agent)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, ballotID, poll.ID, voterToken, now, ipHash, userAgent)
		}
		if db.IsUniqueViolation(err) {
			middleware.ErrorResponse(w, http.StatusConflict, "Ballot was submitted concurrently, retry")
			return
		}
		if err != nil {
			slog.Error("failed to insert ballot", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit ballot")
			return
		}

	default:
		slog.Error("failed to query ballot", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	for _, resp := range responses {
		_, err = tx.Exec(`
			INSERT INTO response (ballot_id, option_id, ranking)
			VALUES ($1, $2, $3)
		`, ballotID, resp.OptionID, resp.Rank)

		if err != nil {
			slog.Error("failed to insert response", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save ballot")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit ballot")
		return
	}

	message := "Ballot submitted successfully"
	if isUpdate {
		message = "Ballot updated successfully"
	}

	slog.Info("ballot submitted", "poll_id", poll.ID, "ballot_id", ballotID, "is_update", isUpdate)

	middleware.JSONResponse(w, http.StatusCreated, models.SubmitBallotResponse{
		BallotID: ballotID,
		Message:  message,
	})
}

// GetMyBallot handles GET /polls/{slug}/my-ballot
func (h *VotingHandler) GetMyBallot(w http.ResponseWriter, r *http.Request) {
	voterToken := r.Header.Get("X-Voter-Token")
	if voterToken == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-Voter-Token header required")
		return
	}

	poll, ok := findPoll(w, r, h.db)
	if !ok {
		return
	}

	resp, err := loadBallot(h.db, poll.ID, voterToken, poll.Method)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "No ballot found for this voter")
		return
	}
	if err != nil {
		slog.Error("failed to load ballot", "error", err, "poll_id", poll.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

// loadBallot reads a voter's ballot back in the shape it was submitted.
// It returns sql.ErrNoRows when the voter has not voted.
func loadBallot(q Querier, pollID, voterToken, method string) (models.MyBallotResponse, error) {
	var b models.MyBallotResponse
	err := q.QueryRow(`
		SELECT id, submitted_at FROM ballot WHERE poll_id = $1 AND voter_token = $2
	`, pollID, voterToken).Scan(&b.BallotID, &b.SubmittedAt)
	if err != nil {
		return models.MyBallotResponse{}, err
	}

	rows, err := q.Query(`
		SELECT option_id, ranking FROM response WHERE ballot_id = $1 ORDER BY option_id
	`, b.BallotID)
	if err != nil {
		return models.MyBallotResponse{}, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var optionID string
		var ranking sql.NullInt64
		if err := rows.Scan(&optionID, &ranking); err != nil {
			return models.MyBallotResponse{}, fmt.Errorf("failed to scan response: %w", err)
		}
		if method == models.MethodRanked {
			if b.Rankings == nil {
				b.Rankings = make(map[string]int)
			}
			b.Rankings[optionID] = int(ranking.Int64)
		} else {
			b.Choices = append(b.Choices, optionID)
		}
	}
	return b, rows.Err()
}
