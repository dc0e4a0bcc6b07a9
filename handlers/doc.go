// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the polls API.

# Handler Types

Each handler is a struct with database and config dependencies:

  - PollHandler: Poll lifecycle (create, options, publish, close)
  - VotingHandler: Username claims and ballot submission
  - ResultsHandler: Poll info and results retrieval
  - CommentHandler: Threaded discussion on a poll
  - AdminHandler: Site-wide summary and moderation

Handlers are created via constructor functions that accept *sql.DB and Config:

	pollHandler := handlers.NewPollHandler(db, cfg)

# Poll Lifecycle

Polls progress through three states: draft → open → closed

	POST   /polls                         → CreatePoll (returns admin_key)
	POST   /polls/{id}/options            → AddOption (draft only)
	DELETE /polls/{id}/options/{option_id} → RemoveOption (draft only)
	POST   /polls/{id}/publish            → PublishPoll (generates share_slug)
	POST   /polls/{id}/close              → ClosePoll (tabulates and seals results)

Admin operations require the X-Admin-Key header. A poll created with
closes_at is also closed by RunCloseSweeper once the deadline passes.

# Voting Flow

Voters interact via the share slug:

	POST /polls/{slug}/claim-username → ClaimUsername (returns voter_token)
	POST /polls/{slug}/ballots        → SubmitBallot (create or update)
	GET  /polls/{slug}/my-ballot      → GetMyBallot

Voter operations require the X-Voter-Token header. The ballot shape follows
the poll method: one choice for traditional, one or more for approval and a
rankings map for ranked polls.

# Tabulation

Closing a poll runs ComputeResults inside the closing transaction and stores
the snapshot as JSON. Ranked polls go through tally.InstantRunoff; the others
through tally.Plurality and tally.Approval.

	snapshot, err := ComputeResults(tx, pollID, poll.Method)

Results stay sealed (403) until the poll is closed.

# Site Admin

AdminHandler requires X-Site-Admin-Token. Besides polls it lists every
username claim as a voter:

	GET    /admin/voters         → ListVoters
	GET    /admin/voters/{token} → GetVoter (ballot and comments)
	DELETE /admin/voters/{token} → DeleteVoter

Removing a voter drops their comments, ballot and claim in one transaction.
Voters on closed polls cannot be removed (409).
*/
package handlers
