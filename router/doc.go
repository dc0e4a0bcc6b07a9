// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the polls API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(db, cfg)

Every API route is wrapped in middleware.Instrument, so it is logged and
counted per route pattern.

# Endpoints

Health and metrics:

	GET /health
	GET /metrics - Prometheus exposition

Poll management (admin, requires X-Admin-Key):

	POST   /polls                          - Create poll
	GET    /polls/{id}/admin               - Get poll details
	POST   /polls/{id}/options             - Add option
	DELETE /polls/{id}/options/{option_id} - Remove option
	POST   /polls/{id}/publish             - Open for voting
	POST   /polls/{id}/close               - Seal results

Voting (public, uses share slug):

	POST /polls/{slug}/claim-username - Claim voter identity
	POST /polls/{slug}/ballots        - Submit/update ballot
	GET  /polls/{slug}/my-ballot      - Read back own ballot

Results (public):

	GET /polls/{slug}              - Poll info and options
	GET /polls/{slug}/results      - Final results (closed only)
	GET /polls/{slug}/ballot-count - Vote count
	GET /polls/{slug}/preview      - Compact preview data

Comments:

	POST /polls/{slug}/comments - Add comment or reply (requires X-Voter-Token)
	GET  /polls/{slug}/comments - Threaded comments

Site admin (requires X-Site-Admin-Token):

	GET    /admin/summary          - Counts across all polls
	GET    /admin/polls            - All polls, newest first
	DELETE /admin/polls/{id}       - Delete a poll and everything in it
	GET    /admin/voters           - All username claims with ballot and comment counts
	GET    /admin/voters/{token}   - One voter with their ballot and comments
	DELETE /admin/voters/{token}   - Remove a voter from an open poll
*/
package router
