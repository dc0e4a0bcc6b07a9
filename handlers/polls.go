// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/calebloveshockey/polls-capstone/auth"
	"github.com/calebloveshockey/polls-capstone/cliparse"
	"github.com/calebloveshockey/polls-capstone/middleware"
	"github.com/calebloveshockey/polls-capstone/models"
)

type PollHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewPollHandler(db *sql.DB, cfg cliparse.Config) *PollHandler {
	return &PollHandler{db: db, cfg: cfg}
}

const pollColumns = `id, title, description, creator_name, method, status,
	share_slug, closes_at, closed_at, final_snapshot_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoll(row rowScanner) (models.Poll, error) {
	var poll models.Poll
	err := row.Scan(
		&poll.ID, &poll.Title, &poll.Description, &poll.CreatorName,
		&poll.Method, &poll.Status, &poll.ShareSlug, &poll.ClosesAt,
		&poll.ClosedAt, &poll.FinalSnapshotID, &poll.CreatedAt,
	)
	return poll, err
}

func loadPollByID(q Querier, pollID string) (models.Poll, error) {
	return scanPoll(q.QueryRow("SELECT "+pollColumns+" FROM poll WHERE id = $1", pollID))
}

func loadPollBySlug(q Querier, shareSlug string) (models.Poll, error) {
	return scanPoll(q.QueryRow("SELECT "+pollColumns+" FROM poll WHERE share_slug = $1", shareSlug))
}

func loadPollOptions(q Querier, pollID string) ([]models.Option, error) {
	rows, err := q.Query(`
		SELECT id, poll_id, label
		FROM option
		WHERE poll_id = $1
		ORDER BY id
	`, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	options := []models.Option{}
	for rows.Next() {
		var opt models.Option
		if err := rows.Scan(&opt.ID, &opt.PollID, &opt.Label); err != nil {
			return nil, err
		}
		options = append(options, opt)
	}

	return options, rows.Err()
}

// requireAdmin checks X-Admin-Key for the poll in the path and returns the poll ID
func (h *PollHandler) requireAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return "", false
	}

	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(pollID, adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return "", false
	}

	return pollID, true
}

// CreatePoll handles POST /polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.CreatorName = strings.TrimSpace(req.CreatorName)
	if req.Title == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.CreatorName == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "creator_name is required")
		return
	}

	if req.Method == "" {
		req.Method = models.MethodRanked
	}
	if !models.ValidMethod(req.Method) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "method must be traditional, approval, or ranked")
		return
	}

	now := time.Now().UTC()
	var closesAt *time.Time
	if req.ClosesAt != nil {
		if !req.ClosesAt.After(now) {
			middleware.ErrorResponse(w, http.StatusBadRequest, "closes_at must be in the future")
			return
		}
		t := req.ClosesAt.UTC()
		closesAt = &t
	}

	pollID, err := auth.GenerateID()
	if err != nil {
		slog.Error("failed to generate poll ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	adminKey := auth.GenerateAdminKey(pollID, h.cfg.AdminKeySalt)

	_, err = h.db.Exec(`
		INSERT INTO poll (id, title, description, creator_name, method, status, closes_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, pollID, req.Title, req.Description, req.CreatorName, req.Method, models.StatusDraft, closesAt, now)

	if err != nil {
		slog.Error("failed to insert poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	slog.Info("poll created", "poll_id", pollID, "method", req.Method, "creator", req.CreatorName)

	middleware.JSONResponse(w, http.StatusCreated, models.CreatePollResponse{
		PollID:   pollID,
		AdminKey: adminKey,
	})
}

// draftStatus looks up a poll's status and writes the error response if it is
// missing or no longer a draft
func (h *PollHandler) draftStatus(w http.ResponseWriter, pollID, action string) bool {
	var status string
	err := h.db.QueryRow("SELECT status FROM poll WHERE id = $1", pollID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return false
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return false
	}

	if status != models.StatusDraft {
		middleware.ErrorResponse(w, http.StatusConflict, "Cannot "+action+" non-draft poll")
		return false
	}
	return true
}

// AddOption handles POST /polls/{id}/options
func (h *PollHandler) AddOption(w http.ResponseWriter, r *http.Request) {
	pollID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	var req models.AddOptionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Label = strings.TrimSpace(req.Label)
	if req.Label == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "label is required")
		return
	}

	if !h.draftStatus(w, pollID, "add options to") {
		return
	}

	optionID, err := auth.GenerateID()
	if err != nil {
		slog.Error("failed to generate option ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create option")
		return
	}

	_, err = h.db.Exec(`
		INSERT INTO option (id, poll_id, label)
		VALUES ($1, $2, $3)
	`, optionID, pollID, req.Label)

	if err != nil {
		slog.Error("failed to insert option", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create option")
		return
	}

	slog.Info("option added", "poll_id", pollID, "option_id", optionID)

	middleware.JSONResponse(w, http.StatusCreated, models.AddOptionResponse{
		OptionID: optionID,
	})
}

// RemoveOption handles DELETE /polls/{id}/options/{option_id}
func (h *PollHandler) RemoveOption(w http.ResponseWriter, r *http.Request) {
	pollID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	optionID := r.PathValue("option_id")
	if optionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "option_id is required")
		return
	}

	if !h.draftStatus(w, pollID, "remove options from") {
		return
	}

	res, err := h.db.Exec(`
		DELETE FROM option WHERE id = $1 AND poll_id = $2
	`, optionID, pollID)
	if err != nil {
		slog.Error("failed to delete option", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to remove option")
		return
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Option not found")
		return
	}

	slog.Info("option removed", "poll_id", pollID, "option_id", optionID)

	middleware.JSONResponse(w, http.StatusOK, map[string]string{
		"message": "Option removed",
	})
}

// PublishPoll handles POST /polls/{id}/publish
func (h *PollHandler) PublishPoll(w http.ResponseWriter, r *http.Request) {
	pollID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	poll, err := loadPollByID(h.db, pollID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if poll.Status != models.StatusDraft {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not in draft status")
		return
	}

	if poll.ClosesAt != nil && !poll.ClosesAt.After(time.Now()) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Poll closing time has already passed")
		return
	}

	var optionCount int
	err = h.db.QueryRow("SELECT COUNT(*) FROM option WHERE poll_id = $1", pollID).Scan(&optionCount)
	if err != nil {
		slog.Error("failed to count options", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if optionCount < 2 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Poll must have at least 2 options")
		return
	}

	shareSlug := auth.GenerateShareSlug(pollID, h.cfg.PollSlugSalt)

	_, err = h.db.Exec(`
		UPDATE poll
		SET status = $1, share_slug = $2
		WHERE id = $3 AND status = $4
	`, models.StatusOpen, shareSlug, pollID, models.StatusDraft)

	if err != nil {
		slog.Error("failed to publish poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to publish poll")
		return
	}

	slog.Info("poll published", "poll_id", pollID, "share_slug", shareSlug)

	middleware.JSONResponse(w, http.StatusOK, models.PublishPollResponse{
		ShareSlug: shareSlug,
		ShareURL:  h.cfg.BaseURL + "/polls/" + shareSlug,
	})
}

// GetPollAdmin handles GET /polls/{id}/admin
// Returns poll details for admin access using poll ID and admin key
func (h *PollHandler) GetPollAdmin(w http.ResponseWriter, r *http.Request) {
	pollID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	poll, err := loadPollByID(h.db, pollID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
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

// ClosePoll handles POST /polls/{id}/close
func (h *PollHandler) ClosePoll(w http.ResponseWriter, r *http.Request) {
	pollID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	closedAt := time.Now().UTC()
	snapshot, err := closePoll(h.db, pollID, closedAt)
	switch {
	case errors.Is(err, ErrPollNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	case errors.Is(err, ErrPollNotOpen):
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open")
		return
	case err != nil:
		slog.Error("failed to close poll", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to close poll")
		return
	}

	slog.Info("poll closed", "poll_id", pollID, "snapshot_id", snapshot.ID, "voters", snapshot.Voters)

	middleware.JSONResponse(w, http.StatusOK, models.ClosePollResponse{
		ClosedAt: closedAt,
		Snapshot: snapshot,
	})
}
