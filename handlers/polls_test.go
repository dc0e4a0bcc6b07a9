// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebloveshockey/polls-capstone/auth"
	"github.com/calebloveshockey/polls-capstone/models"
	"github.com/calebloveshockey/polls-capstone/testutil"
)

func adminHeader(key string) map[string]string {
	return map[string]string{"X-Admin-Key": key}
}

func pollPath(id string) map[string]string {
	return map[string]string{"id": id}
}

func TestCreatePoll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	h := NewPollHandler(db, cfg)

	future := time.Now().Add(2 * time.Hour)
	past := time.Now().Add(-time.Hour)

	t.Run("defaults to ranked draft", func(t *testing.T) {
		w := call(h.CreatePoll, "POST", "/polls", nil, nil, models.CreatePollRequest{
			Title:       "Team offsite",
			Description: "Where should we go?",
			CreatorName: "Alice",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var resp models.CreatePollResponse
		testutil.AssertJSON(t, w, &resp)
		require.NotEmpty(t, resp.PollID)
		assert.Equal(t, auth.GenerateAdminKey(resp.PollID, cfg.AdminKeySalt), resp.AdminKey)

		var status, method string
		require.NoError(t, db.QueryRow("SELECT status, method FROM poll WHERE id = $1", resp.PollID).Scan(&status, &method))
		assert.Equal(t, models.StatusDraft, status)
		assert.Equal(t, models.MethodRanked, method)
	})

	t.Run("approval with deadline", func(t *testing.T) {
		w := call(h.CreatePoll, "POST", "/polls", nil, nil, models.CreatePollRequest{
			Title:       "Lunch",
			CreatorName: "Bob",
			Method:      models.MethodApproval,
			ClosesAt:    &future,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var resp models.CreatePollResponse
		testutil.AssertJSON(t, w, &resp)

		var method string
		var closesAt sql.NullTime
		require.NoError(t, db.QueryRow("SELECT method, closes_at FROM poll WHERE id = $1", resp.PollID).Scan(&method, &closesAt))
		assert.Equal(t, models.MethodApproval, method)
		require.True(t, closesAt.Valid)
		assert.WithinDuration(t, future, closesAt.Time, time.Second)
	})

	rejected := map[string]interface{}{
		"missing title":        models.CreatePollRequest{CreatorName: "Alice"},
		"missing creator":      models.CreatePollRequest{Title: "T"},
		"unknown method":       models.CreatePollRequest{Title: "T", CreatorName: "Alice", Method: "borda"},
		"deadline in the past": models.CreatePollRequest{Title: "T", CreatorName: "Alice", ClosesAt: &past},
		"not an object":        "invalid json",
	}
	for name, body := range rejected {
		t.Run(name, func(t *testing.T) {
			w := call(h.CreatePoll, "POST", "/polls", nil, nil, body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestAddOption(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	h := NewPollHandler(db, cfg)

	pollID, adminKey, _ := testutil.CreateTestPoll(t, db, cfg, models.StatusDraft)
	openID, openKey, _ := testutil.CreateTestPoll(t, db, cfg, models.StatusOpen)

	t.Run("adds option", func(t *testing.T) {
		w := call(h.AddOption, "POST", "/polls/"+pollID+"/options", pollPath(pollID), adminHeader(adminKey),
			models.AddOptionRequest{Label: "  Pizza  "})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var resp models.AddOptionResponse
		testutil.AssertJSON(t, w, &resp)

		var label string
		require.NoError(t, db.QueryRow("SELECT label FROM option WHERE id = $1", resp.OptionID).Scan(&label))
		assert.Equal(t, "Pizza", label)
	})

	tests := []struct {
		name   string
		pollID string
		key    string
		label  string
		want   int
	}{
		{"blank label", pollID, adminKey, "   ", http.StatusBadRequest},
		{"wrong admin key", pollID, "invalid-key", "Sushi", http.StatusUnauthorized},
		{"missing admin key", pollID, "", "Sushi", http.StatusUnauthorized},
		{"unknown poll", "nonexistent", auth.GenerateAdminKey("nonexistent", cfg.AdminKeySalt), "Sushi", http.StatusNotFound},
		{"published poll", openID, openKey, "Too late", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(h.AddOption, "POST", "/polls/"+tt.pollID+"/options", pollPath(tt.pollID), adminHeader(tt.key),
				models.AddOptionRequest{Label: tt.label})
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestRemoveOption(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	h := NewPollHandler(db, cfg)

	pollID, adminKey, _ := testutil.CreateTestPoll(t, db, cfg, models.StatusDraft)
	optionA := testutil.AddTestOption(t, db, pollID, "Option A")
	testutil.AddTestOption(t, db, pollID, "Option B")

	otherPoll, otherKey, _ := testutil.CreateTestPoll(t, db, cfg, models.StatusOpen)
	otherOption := testutil.AddTestOption(t, db, otherPoll, "Locked")

	// Order matters: the first case deletes optionA.
	tests := []struct {
		name     string
		pollID   string
		key      string
		optionID string
		want     int
	}{
		{"removes draft option", pollID, adminKey, optionA, http.StatusOK},
		{"already removed", pollID, adminKey, optionA, http.StatusNotFound},
		{"option from another poll", pollID, adminKey, otherOption, http.StatusNotFound},
		{"published poll", otherPoll, otherKey, otherOption, http.StatusConflict},
		{"wrong admin key", pollID, "invalid-key", optionA, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(h.RemoveOption, "DELETE", "/polls/"+tt.pollID+"/options/"+tt.optionID,
				map[string]string{"id": tt.pollID, "option_id": tt.optionID}, adminHeader(tt.key), nil)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	var remaining int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM option WHERE poll_id = $1", pollID).Scan(&remaining))
	assert.Equal(t, 1, remaining)
}

func TestPublishPoll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	h := NewPollHandler(db, cfg)

	pollID, adminKey, _ := testutil.CreateTestPoll(t, db, cfg, models.StatusDraft)
	testutil.AddTestOption(t, db, pollID, "Option A")
	testutil.AddTestOption(t, db, pollID, "Option B")

	lonelyID, lonelyKey, _ := testutil.CreateTestPoll(t, db, cfg, models.StatusDraft)
	testutil.AddTestOption(t, db, lonelyID, "Only Option")

	publish := func(id, key string) int {
		return call(h.PublishPoll, "POST", "/polls/"+id+"/publish", pollPath(id), adminHeader(key), nil).Code
	}

	w := call(h.PublishPoll, "POST", "/polls/"+pollID+"/publish", pollPath(pollID), adminHeader(adminKey), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.PublishPollResponse
	testutil.AssertJSON(t, w, &resp)
	wantSlug := auth.GenerateShareSlug(pollID, cfg.PollSlugSalt)
	assert.Equal(t, wantSlug, resp.ShareSlug)
	assert.Equal(t, cfg.BaseURL+"/polls/"+wantSlug, resp.ShareURL)

	var status string
	var slug sql.NullString
	require.NoError(t, db.QueryRow("SELECT status, share_slug FROM poll WHERE id = $1", pollID).Scan(&status, &slug))
	assert.Equal(t, models.StatusOpen, status)
	assert.Equal(t, wantSlug, slug.String)

	assert.Equal(t, http.StatusConflict, publish(pollID, adminKey), "already published")
	assert.Equal(t, http.StatusUnauthorized, publish(pollID, "invalid-key"))
	assert.Equal(t, http.StatusNotFound, publish("nonexistent", auth.GenerateAdminKey("nonexistent", cfg.AdminKeySalt)))
	assert.Equal(t, http.StatusBadRequest, publish(lonelyID, lonelyKey), "fewer than two options")
}

func TestGetPollAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	h := NewPollHandler(db, cfg)

	pollID, adminKey, _ := testutil.CreateTestPoll(t, db, cfg, models.StatusDraft)
	testutil.AddTestOption(t, db, pollID, "Option A")
	testutil.AddTestOption(t, db, pollID, "Option B")

	w := call(h.GetPollAdmin, "GET", "/polls/"+pollID+"/admin", pollPath(pollID), adminHeader(adminKey), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.PollWithOptions
	testutil.AssertJSON(t, w, &resp)
	assert.Equal(t, pollID, resp.Poll.ID)
	assert.Equal(t, models.MethodRanked, resp.Poll.Method)
	assert.Len(t, resp.Options, 2)

	w = call(h.GetPollAdmin, "GET", "/polls/"+pollID+"/admin", pollPath(pollID), adminHeader("wrong"), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestClosePoll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	h := NewPollHandler(db, cfg)

	pollID, adminKey, _ := testutil.CreateTestPoll(t, db, cfg, models.StatusOpen)
	optionA := testutil.AddTestOption(t, db, pollID, "Option A")
	optionB := testutil.AddTestOption(t, db, pollID, "Option B")

	for i, order := range [][]string{
		{optionA, optionB},
		{optionA},
		{optionB, optionA},
	} {
		voter := testutil.CreateTestVoter(t, db, pollID, "voter"+string(rune('a'+i)))
		testutil.SubmitTestRanking(t, db, pollID, voter, order...)
	}

	closePoll := func(id, key string) *httptest.ResponseRecorder {
		return call(h.ClosePoll, "POST", "/polls/"+id+"/close", pollPath(id), adminHeader(key), nil)
	}

	w := closePoll(pollID, adminKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.ClosePollResponse
	testutil.AssertJSON(t, w, &resp)
	snap := resp.Snapshot
	assert.False(t, resp.ClosedAt.IsZero())
	require.NotEmpty(t, snap.ID)
	assert.Equal(t, 3, snap.Voters)
	assert.Equal(t, []string{optionA}, snap.WinnerIDs)
	assert.Equal(t, 1, snap.RoundsExecuted)
	require.Len(t, snap.Rankings, 2)
	assert.Equal(t, 66.7, snap.Rankings[0].Share)

	var status string
	var closedAt sql.NullTime
	var snapshotID sql.NullString
	require.NoError(t, db.QueryRow("SELECT status, closed_at, final_snapshot_id FROM poll WHERE id = $1", pollID).
		Scan(&status, &closedAt, &snapshotID))
	assert.Equal(t, models.StatusClosed, status)
	assert.True(t, closedAt.Valid)
	assert.Equal(t, snap.ID, snapshotID.String)

	stored, err := loadSnapshot(db, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.InputsHash, stored.InputsHash)

	assert.Equal(t, http.StatusConflict, closePoll(pollID, adminKey).Code, "already closed")
	assert.Equal(t, http.StatusUnauthorized, closePoll(pollID, "invalid-key").Code)
	assert.Equal(t, http.StatusNotFound, closePoll("nonexistent", auth.GenerateAdminKey("nonexistent", cfg.AdminKeySalt)).Code)
}

func TestCloseDraftPoll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	h := NewPollHandler(db, cfg)

	pollID, adminKey, _ := testutil.CreateTestPoll(t, db, cfg, models.StatusDraft)

	w := call(h.ClosePoll, "POST", "/polls/"+pollID+"/close", pollPath(pollID), adminHeader(adminKey), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	var status string
	require.NoError(t, db.QueryRow("SELECT status FROM poll WHERE id = $1", pollID).Scan(&status))
	assert.Equal(t, models.StatusDraft, status, "draft polls cannot be closed")
}
