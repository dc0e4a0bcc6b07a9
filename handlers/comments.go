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
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/calebloveshockey/polls-capstone/auth"
	"github.com/calebloveshockey/polls-capstone/cliparse"
	"github.com/calebloveshockey/polls-capstone/middleware"
	"github.com/calebloveshockey/polls-capstone/models"
)

const maxCommentLength = 10000

type CommentHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewCommentHandler(db *sql.DB, cfg cliparse.Config) *CommentHandler {
	return &CommentHandler{db: db, cfg: cfg}
}

// AddComment handles POST /polls/{slug}/comments
func (h *CommentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	voterToken := r.Header.Get("X-Voter-Token")
	if voterToken == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-Voter-Token header required")
		return
	}

	var req models.AddCommentRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "body is required")
		return
	}
	if utf8.RuneCountInString(req.Body) > maxCommentLength {
		middleware.ErrorResponse(w, http.StatusBadRequest, "body must be at most 10000 characters")
		return
	}

	poll, ok := findPoll(w, r, h.db)
	if !ok {
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

	if req.ParentID != nil {
		var parentPoll string
		err := h.db.QueryRow(`
			SELECT poll_id FROM poll_comment WHERE id = $1
		`, *req.ParentID).Scan(&parentPoll)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && parentPoll != poll.ID) {
			middleware.ErrorResponse(w, http.StatusBadRequest, "parent comment not found in this poll")
			return
		}
		if err != nil {
			slog.Error("failed to query parent comment", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
	}

	commentID, err := auth.GenerateID()
	if err != nil {
		slog.Error("failed to generate comment ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to add comment")
		return
	}

	_, err = h.db.Exec(`
		INSERT INTO poll_comment (id, poll_id, parent_id, voter_token, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, commentID, poll.ID, req.ParentID, voterToken, req.Body, time.Now().UTC())
	if err != nil {
		slog.Error("failed to insert comment", "error", err, "poll_id", poll.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to add comment")
		return
	}

	slog.Info("comment added", "poll_id", poll.ID, "comment_id", commentID, "is_reply", req.ParentID != nil)

	middleware.JSONResponse(w, http.StatusCreated, models.AddCommentResponse{
		CommentID: commentID,
	})
}

// ListComments handles GET /polls/{slug}/comments
func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	poll, ok := findPoll(w, r, h.db)
	if !ok {
		return
	}

	rows, err := h.db.Query(`
		SELECT c.id, c.poll_id, c.parent_id, u.username, c.body, c.created_at
		FROM poll_comment c
		JOIN username_claim u ON u.poll_id = c.poll_id AND u.voter_token = c.voter_token
		WHERE c.poll_id = $1
		ORDER BY c.created_at, c.id
	`, poll.ID)
	if err != nil {
		slog.Error("failed to query comments", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PollID, &c.ParentID, &c.Username, &c.Body, &c.CreatedAt); err != nil {
			slog.Error("failed to scan comment", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		c.Age = humanize.Time(c.CreatedAt)
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to read comments", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ListCommentsResponse{
		Comments: threadComments(comments),
		Count:    len(comments),
	})
}

// threadComments nests replies under their parents, keeping input order
// among siblings
func threadComments(flat []models.Comment) []models.Comment {
	children := make(map[string][]models.Comment)
	for _, c := range flat {
		parent := ""
		if c.ParentID != nil {
			parent = *c.ParentID
		}
		children[parent] = append(children[parent], c)
	}

	var build func(parent string) []models.Comment
	build = func(parent string) []models.Comment {
		nodes := make([]models.Comment, 0, len(children[parent]))
		for _, c := range children[parent] {
			c.Replies = build(c.ID)
			nodes = append(nodes, c)
		}
		return nodes
	}

	return build("")
}
