// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/calebloveshockey/polls-capstone/cliparse"
	"github.com/calebloveshockey/polls-capstone/middleware"
	"github.com/calebloveshockey/polls-capstone/models"
)

type ResultsHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewResultsHandler(db *sql.DB, cfg cliparse.Config) *ResultsHandler {
	return &ResultsHandler{db: db, cfg: cfg}
}

func countBallots(q Querier, pollID string) (int, error) {
	var count int
	err := q.QueryRow(`
		SELECT COUNT(*) FROM ballot WHERE poll_id = $1
	`, pollID).Scan(&count)
	return count, err
}

// loadSnapshot reads a stored result snapshot. Row columns take precedence
// over the matching payload fields.
func loadSnapshot(q Querier, snapshotID string) (models.ResultSnapshot, error) {
	var snapshot models.ResultSnapshot
	var payload string
	var id, pollID, method string
	err := q.QueryRow(`
		SELECT id, poll_id, method, payload
		FROM result_snapshot
		WHERE id = $1
	`, snapshotID).Scan(&id, &pollID, &method, &payload)
	if err != nil {
		return snapshot, err
	}

	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return snapshot, err
	}
	snapshot.ID = id
	snapshot.PollID = pollID
	snapshot.Method = method

	return snapshot, nil
}

// GetPoll handles GET /polls/{slug}
// Returns poll details and options, but NOT results (results are sealed until closed)
func (h *ResultsHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	poll, ok := findPoll(w, r, h.db)
	if !ok {
		return
	}

	options, err := loadPollOptions(h.db, poll.ID)
	if err != nil {
		slog.Error("failed to query options", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.PollWithOptions{
		Poll:    poll,
		Options: options,
	})
}

// GetResults handles GET /polls/{slug}/results
// Returns 403 until the poll is closed, then the final snapshot
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	poll, ok := findPoll(w, r, h.db)
	if !ok {
		return
	}

	// Results are sealed while poll is open
	if poll.Status != models.StatusClosed {
		middleware.ErrorResponse(w, http.StatusForbidden, "Results are hidden until poll is closed")
		return
	}

	if poll.FinalSnapshotID == nil {
		slog.Error("closed poll has no snapshot", "poll_id", poll.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Results not available")
		return
	}

	snapshot, err := loadSnapshot(h.db, *poll.FinalSnapshotID)
	if err != nil {
		slog.Error("failed to load snapshot", "error", err, "poll_id", poll.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to load results")
		return
	}

	ballotCount, err := countBallots(h.db, poll.ID)
	if err != nil {
		slog.Error("failed to count ballots for results", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ResultsResponse{
		Poll:        poll,
		Snapshot:    snapshot,
		BallotCount: ballotCount,
	})
}

// GetBallotCount handles GET /polls/{slug}/ballot-count
// Returns the number of ballots submitted (visible even while open)
func (h *ResultsHandler) GetBallotCount(w http.ResponseWriter, r *http.Request) {
	poll, ok := findPoll(w, r, h.db)
	if !ok {
		return
	}

	count, err := countBallots(h.db, poll.ID)
	if err != nil {
		slog.Error("failed to count ballots", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]int{
		"ballot_count": count,
	})
}

// GetPreview handles GET /polls/{slug}/preview
// Returns compact poll data for link previews
func (h *ResultsHandler) GetPreview(w http.ResponseWriter, r *http.Request) {
	poll, ok := findPoll(w, r, h.db)
	if !ok {
		return
	}

	var optionCount int
	err := h.db.QueryRow(`
		SELECT COUNT(*) FROM option WHERE poll_id = $1
	`, poll.ID).Scan(&optionCount)
	if err != nil {
		slog.Error("failed to count options", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	ballotCount, err := countBallots(h.db, poll.ID)
	if err != nil {
		slog.Error("failed to count ballots", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	preview := models.PollPreviewResponse{
		Title:       poll.Title,
		Status:      poll.Status,
		Method:      poll.Method,
		OptionCount: optionCount,
		BallotCount: ballotCount,
		ClosesAt:    poll.ClosesAt,
	}
	if poll.Status == models.StatusOpen && poll.ClosesAt != nil {
		preview.ClosesIn = humanize.Time(*poll.ClosesAt)
	}

	middleware.JSONResponse(w, http.StatusOK, preview)
}
