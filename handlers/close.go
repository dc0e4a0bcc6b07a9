// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/calebloveshockey/polls-capstone/auth"
	"github.com/calebloveshockey/polls-capstone/models"
)

var (
	ErrPollNotFound = errors.New("poll not found")
	ErrPollNotOpen  = errors.New("poll is not open")
)

// closePoll moves an open poll to closed and stores its final results in the
// same transaction
func closePoll(db *sql.DB, pollID string, now time.Time) (models.ResultSnapshot, error) {
	snapshotID, err := auth.GenerateID()
	if err != nil {
		return models.ResultSnapshot{}, err
	}

	tx, err := db.Begin()
	if err != nil {
		return models.ResultSnapshot{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var method string
	err = tx.QueryRow("SELECT method FROM poll WHERE id = $1", pollID).Scan(&method)
	if err == sql.ErrNoRows {
		return models.ResultSnapshot{}, ErrPollNotFound
	}
	if err != nil {
		return models.ResultSnapshot{}, fmt.Errorf("failed to query poll: %w", err)
	}

	// Guarded update so two concurrent closes cannot both succeed
	res, err := tx.Exec(`
		UPDATE poll
		SET status = $1, closed_at = $2, final_snapshot_id = $3
		WHERE id = $4 AND status = $5
	`, models.StatusClosed, now, snapshotID, pollID, models.StatusOpen)
	if err != nil {
		return models.ResultSnapshot{}, fmt.Errorf("failed to close poll: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.ResultSnapshot{}, fmt.Errorf("failed to close poll: %w", err)
	} else if n == 0 {
		return models.ResultSnapshot{}, ErrPollNotOpen
	}

	snapshot, err := ComputeResults(tx, pollID, method)
	if err != nil {
		return models.ResultSnapshot{}, err
	}
	snapshot.ID = snapshotID
	snapshot.ComputedAt = now

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return models.ResultSnapshot{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO result_snapshot (id, poll_id, method, computed_at, payload)
		VALUES ($1, $2, $3, $4, $5)
	`, snapshotID, pollID, method, now, string(payload))
	if err != nil {
		return models.ResultSnapshot{}, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.ResultSnapshot{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return snapshot, nil
}

// CloseExpiredPolls closes every open poll whose closes_at is at or before now
// and returns how many were closed. A poll that fails to tabulate stays open
// and its error is joined into the result; the remaining polls still close.
func CloseExpiredPolls(db *sql.DB, now time.Time) (int, error) {
	rows, err := db.Query(`
		SELECT id FROM poll
		WHERE status = $1 AND closes_at IS NOT NULL AND closes_at <= $2
		ORDER BY closes_at
	`, models.StatusOpen, now)
	if err != nil {
		return 0, fmt.Errorf("failed to query expired polls: %w", err)
	}

	var pollIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan poll id: %w", err)
		}
		pollIDs = append(pollIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to query expired polls: %w", err)
	}

	closed := 0
	var errs []error
	for _, id := range pollIDs {
		snapshot, err := closePoll(db, id, now)
		if errors.Is(err, ErrPollNotOpen) || errors.Is(err, ErrPollNotFound) {
			// Closed or deleted by someone else in the meantime
			continue
		}
		if err != nil {
			// One bad poll must not hold back the rest
			slog.Error("failed to close expired poll", "error", err, "poll_id", id)
			errs = append(errs, fmt.Errorf("failed to close poll %s: %w", id, err))
			continue
		}
		closed++
		slog.Info("expired poll closed", "poll_id", id, "snapshot_id", snapshot.ID)
	}

	return closed, errors.Join(errs...)
}

// RunCloseSweeper closes expired polls every interval until ctx is done
func RunCloseSweeper(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := CloseExpiredPolls(db, time.Now().UTC()); err != nil {
				slog.Error("close sweep failed", "error", err)
			}
		}
	}
}
