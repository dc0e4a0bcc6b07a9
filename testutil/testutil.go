// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/calebloveshockey/polls-capstone/auth"
	"github.com/calebloveshockey/polls-capstone/cliparse"
	"github.com/calebloveshockey/polls-capstone/db"
	"github.com/calebloveshockey/polls-capstone/models"
)

// TestDBURL is an in-memory SQLite database; every SetupTestDB call gets its own
const TestDBURL = ":memory:"

// SiteAdminToken is the site admin token configured by GetTestConfig
const SiteAdminToken = "test-site-admin-token"

// SetupTestDB creates a fresh test database with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(db.TypeSQLite, TestDBURL)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := db.CreateSchema(conn); err != nil {
		conn.Close()
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:               3318,
		DatabaseURL:        TestDBURL,
		DatabaseType:       db.TypeSQLite,
		AdminKeySalt:       "test-admin-salt",
		PollSlugSalt:       "test-slug-salt",
		SiteAdminToken:     SiteAdminToken,
		BaseURL:            "http://polls.test",
		CloseSweepInterval: time.Minute,
	}
}

// CreateTestPoll creates a ranked poll in the database and returns its ID and admin key.
// status should be "draft", "open", or "closed"
func CreateTestPoll(t *testing.T, conn *sql.DB, cfg cliparse.Config, status string) (pollID, adminKey, shareSlug string) {
	t.Helper()
	return CreateTestPollWithMethod(t, conn, cfg, status, models.MethodRanked)
}

// CreateTestPollWithMethod is CreateTestPoll for a specific voting method
func CreateTestPollWithMethod(t *testing.T, conn *sql.DB, cfg cliparse.Config, status, method string) (pollID, adminKey, shareSlug string) {
	t.Helper()

	pollID, err := auth.GenerateID()
	if err != nil {
		t.Fatalf("Failed to generate poll ID: %v", err)
	}
	adminKey = auth.GenerateAdminKey(pollID, cfg.AdminKeySalt)

	var slug *string
	if status == models.StatusOpen || status == models.StatusClosed {
		s := auth.GenerateShareSlug(pollID, cfg.PollSlugSalt)
		slug = &s
		shareSlug = s
	}

	var closedAt *time.Time
	if status == models.StatusClosed {
		now := time.Now().UTC()
		closedAt = &now
	}

	_, err = conn.Exec(`
		INSERT INTO poll (id, title, description, creator_name, method, status, share_slug, closed_at, created_at)
		VALUES ($1, 'Test Poll', 'A test poll', 'TestUser', $2, $3, $4, $5, $6)
	`, pollID, method, status, slug, closedAt, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}

	return pollID, adminKey, shareSlug
}

// AddTestOption adds an option to a poll and returns the option ID
func AddTestOption(t *testing.T, conn *sql.DB, pollID, label string) string {
	t.Helper()

	optionID, _ := auth.GenerateID()
	_, err := conn.Exec(`
		INSERT INTO option (id, poll_id, label)
		VALUES ($1, $2, $3)
	`, optionID, pollID, label)
	if err != nil {
		t.Fatalf("Failed to create test option: %v", err)
	}

	return optionID
}

// CreateTestVoter claims a username for a poll and returns the voter token
func CreateTestVoter(t *testing.T, conn *sql.DB, pollID, username string) string {
	t.Helper()

	voterToken, _ := auth.GenerateVoterToken()
	_, err := conn.Exec(`
		INSERT INTO username_claim (poll_id, username, voter_token, created_at)
		VALUES ($1, $2, $3, $4)
	`, pollID, username, voterToken, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test voter: %v", err)
	}

	return voterToken
}

// SubmitTestBallot stores a traditional or approval ballot selecting choices
func SubmitTestBallot(t *testing.T, conn *sql.DB, pollID, voterToken string, choices ...string) string {
	t.Helper()

	ballotID := insertTestBallot(t, conn, pollID, voterToken)
	for _, optionID := range choices {
		_, err := conn.Exec(`
			INSERT INTO response (ballot_id, option_id)
			VALUES ($1, $2)
		`, ballotID, optionID)
		if err != nil {
			t.Fatalf("Failed to create test response: %v", err)
		}
	}

	return ballotID
}

// SubmitTestRanking stores a ranked ballot; order lists option IDs from most
// to least preferred
func SubmitTestRanking(t *testing.T, conn *sql.DB, pollID, voterToken string, order ...string) string {
	t.Helper()

	ballotID := insertTestBallot(t, conn, pollID, voterToken)
	for i, optionID := range order {
		_, err := conn.Exec(`
			INSERT INTO response (ballot_id, option_id, ranking)
			VALUES ($1, $2, $3)
		`, ballotID, optionID, i+1)
		if err != nil {
			t.Fatalf("Failed to create test ranking: %v", err)
		}
	}

	return ballotID
}

func insertTestBallot(t *testing.T, conn *sql.DB, pollID, voterToken string) string {
	t.Helper()

	ballotID, _ := auth.GenerateID()
	_, err := conn.Exec(`
		INSERT INTO ballot (id, poll_id, voter_token, submitted_at)
		VALUES ($1, $2, $3, $4)
	`, ballotID, pollID, voterToken, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test ballot: %v", err)
	}

	return ballotID
}

// AddTestComment posts a comment as voterToken; an empty parentID makes it top-level
func AddTestComment(t *testing.T, conn *sql.DB, pollID, voterToken, parentID, body string) string {
	t.Helper()

	var parent *string
	if parentID != "" {
		parent = &parentID
	}

	commentID, _ := auth.GenerateID()
	_, err := conn.Exec(`
		INSERT INTO poll_comment (id, poll_id, parent_id, voter_token, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, commentID, pollID, parent, voterToken, body, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test comment: %v", err)
	}

	return commentID
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
