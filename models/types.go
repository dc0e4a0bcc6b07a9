// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Poll status constants
const (
	StatusDraft  = "draft"
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Voting method constants
const (
	MethodTraditional = "traditional"
	MethodApproval    = "approval"
	MethodRanked      = "ranked"
)

// ValidMethod reports whether m is a supported voting method
func ValidMethod(m string) bool {
	switch m {
	case MethodTraditional, MethodApproval, MethodRanked:
		return true
	}
	return false
}

// Request types

type CreatePollRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CreatorName string     `json:"creator_name"`
	Method      string     `json:"method"`
	ClosesAt    *time.Time `json:"closes_at,omitempty"`
}

type AddOptionRequest struct {
	Label string `json:"label"`
}

type ClaimUsernameRequest struct {
	Username string `json:"username"`
}

// Choices is used by traditional (exactly one) and approval (one or more) polls.
// Rankings maps option_id -> rank (1 = most preferred) for ranked polls.
type SubmitBallotRequest struct {
	Choices  []string       `json:"choices,omitempty"`
	Rankings map[string]int `json:"rankings,omitempty"`
}

type AddCommentRequest struct {
	Body     string  `json:"body"`
	ParentID *string `json:"parent_id,omitempty"`
}

// Response types

type CreatePollResponse struct {
	PollID   string `json:"poll_id"`
	AdminKey string `json:"admin_key"`
}

type AddOptionResponse struct {
	OptionID string `json:"option_id"`
}

type PublishPollResponse struct {
	ShareSlug string `json:"share_slug"`
	ShareURL  string `json:"share_url"`
}

type ClaimUsernameResponse struct {
	VoterToken string `json:"voter_token"`
}

type SubmitBallotResponse struct {
	BallotID string `json:"ballot_id"`
	Message  string `json:"message"`
}

type MyBallotResponse struct {
	BallotID    string         `json:"ballot_id"`
	SubmittedAt time.Time      `json:"submitted_at"`
	Choices     []string       `json:"choices,omitempty"`
	Rankings    map[string]int `json:"rankings,omitempty"`
}

type ClosePollResponse struct {
	ClosedAt time.Time      `json:"closed_at"`
	Snapshot ResultSnapshot `json:"snapshot"`
}

type ResultsResponse struct {
	Poll        Poll           `json:"poll"`
	Snapshot    ResultSnapshot `json:"snapshot"`
	BallotCount int            `json:"ballot_count"`
}

type PollPreviewResponse struct {
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	Method      string     `json:"method"`
	OptionCount int        `json:"option_count"`
	BallotCount int        `json:"ballot_count"`
	ClosesAt    *time.Time `json:"closes_at,omitempty"`
	ClosesIn    string     `json:"closes_in,omitempty"` // e.g. "3 hours from now"
}

type AddCommentResponse struct {
	CommentID string `json:"comment_id"`
}

type ListCommentsResponse struct {
	Comments []Comment `json:"comments"`
	Count    int       `json:"count"` // including replies
}

// Domain types

type Poll struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	CreatorName     string     `json:"creator_name"`
	Method          string     `json:"method"`
	Status          string     `json:"status"`
	ShareSlug       *string    `json:"share_slug,omitempty"`
	ClosesAt        *time.Time `json:"closes_at,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	FinalSnapshotID *string    `json:"final_snapshot_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type Option struct {
	ID     string `json:"id"`
	PollID string `json:"poll_id"`
	Label  string `json:"label"`
}

type PollWithOptions struct {
	Poll    Poll     `json:"poll"`
	Options []Option `json:"options"`
}

type Ballot struct {
	ID          string    `json:"id"`
	PollID      string    `json:"poll_id"`
	VoterToken  string    `json:"-"` // Never expose in JSON
	SubmittedAt time.Time `json:"submitted_at"`
	IPHash      *string   `json:"-"` // Never expose in JSON
	UserAgent   *string   `json:"-"` // Never expose in JSON
}

// Response is one selected option on a ballot; Rank is set for ranked polls only
type Response struct {
	BallotID string `json:"ballot_id"`
	OptionID string `json:"option_id"`
	Rank     *int   `json:"rank,omitempty"`
}

type Comment struct {
	ID        string    `json:"id"`
	PollID    string    `json:"poll_id"`
	ParentID  *string   `json:"parent_id,omitempty"`
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	Age       string    `json:"age"` // e.g. "5 minutes ago"
	Replies   []Comment `json:"replies"`
}

// Result types

type OptionResult struct {
	OptionID        string  `json:"option_id"`
	Label           string  `json:"label"`
	Votes           int     `json:"votes"`
	Share           float64 `json:"share"` // percent, one decimal
	Eliminated      bool    `json:"eliminated,omitempty"`
	EliminatedRound int     `json:"eliminated_round,omitempty"`
	Rank            int     `json:"rank"` // 1-indexed ranking
}

type RunoffRound struct {
	Round      int            `json:"round"`
	LiveVoters int            `json:"live_voters"`
	Exhausted  int            `json:"exhausted"`
	Tallies    []OptionResult `json:"tallies"`
	Eliminated string         `json:"eliminated,omitempty"`
}

type ResultSnapshot struct {
	ID             string         `json:"id"`
	PollID         string         `json:"poll_id"`
	Method         string         `json:"method"`
	ComputedAt     time.Time      `json:"computed_at"`
	Rankings       []OptionResult `json:"rankings"`
	Rounds         []RunoffRound  `json:"rounds,omitempty"`
	RoundsExecuted int            `json:"rounds_executed,omitempty"`
	Voters         int            `json:"voters"`
	WinnerIDs      []string       `json:"winner_ids"`
	Conclusive     bool           `json:"conclusive"`
	InputsHash     string         `json:"inputs_hash"` // SHA-256 of all ballot IDs for verification
}

// Site admin types

type AdminSummary struct {
	PollCount     int `json:"poll_count"`
	OpenPollCount int `json:"open_poll_count"`
	VoterCount    int `json:"voter_count"`
	BallotCount   int `json:"ballot_count"`
	CommentCount  int `json:"comment_count"`
}

type AdminPoll struct {
	Poll        Poll `json:"poll"`
	BallotCount int  `json:"ballot_count"`
}

type AdminPollsResponse struct {
	Polls []AdminPoll `json:"polls"`
}

// AdminVoter is one username claim seen from the admin panel. The voter token
// identifies the voter across every admin voter endpoint.
type AdminVoter struct {
	VoterToken   string    `json:"voter_token"`
	Username     string    `json:"username"`
	PollID       string    `json:"poll_id"`
	PollTitle    string    `json:"poll_title"`
	PollStatus   string    `json:"poll_status"`
	ClaimedAt    time.Time `json:"claimed_at"`
	BallotCount  int       `json:"ballot_count"`
	CommentCount int       `json:"comment_count"`
}

type AdminVotersResponse struct {
	Voters []AdminVoter `json:"voters"`
}

type AdminVoterDetail struct {
	AdminVoter
	Ballot   *MyBallotResponse `json:"ballot,omitempty"`
	Comments []Comment         `json:"comments"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
