// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/calebloveshockey/polls-capstone/cliparse"
	"github.com/calebloveshockey/polls-capstone/handlers"
	"github.com/calebloveshockey/polls-capstone/middleware"
)

func NewRouter(db *sql.DB, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	pollHandler := handlers.NewPollHandler(db, cfg)
	votingHandler := handlers.NewVotingHandler(db, cfg)
	resultsHandler := handlers.NewResultsHandler(db, cfg)
	commentHandler := handlers.NewCommentHandler(db, cfg)
	adminHandler := handlers.NewAdminHandler(db, cfg)

	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, middleware.Instrument(h))
	}

	// Health check and metrics
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Poll management (admin operations)
	handle("POST /polls", pollHandler.CreatePoll)
	handle("GET /polls/{id}/admin", pollHandler.GetPollAdmin)
	handle("POST /polls/{id}/options", pollHandler.AddOption)
	handle("DELETE /polls/{id}/options/{option_id}", pollHandler.RemoveOption)
	handle("POST /polls/{id}/publish", pollHandler.PublishPoll)
	handle("POST /polls/{id}/close", pollHandler.ClosePoll)

	// Voting operations (public)
	handle("POST /polls/{slug}/claim-username", votingHandler.ClaimUsername)
	handle("POST /polls/{slug}/ballots", votingHandler.SubmitBallot)
	handle("GET /polls/{slug}/my-ballot", votingHandler.GetMyBallot)

	// Results retrieval (public, with sealed results)
	handle("GET /polls/{slug}", resultsHandler.GetPoll)
	handle("GET /polls/{slug}/results", resultsHandler.GetResults)
	handle("GET /polls/{slug}/ballot-count", resultsHandler.GetBallotCount)
	handle("GET /polls/{slug}/preview", resultsHandler.GetPreview)

	// Discussion
	handle("POST /polls/{slug}/comments", commentHandler.AddComment)
	handle("GET /polls/{slug}/comments", commentHandler.ListComments)

	// Site admin
	handle("GET /admin/summary", adminHandler.GetSummary)
	handle("GET /admin/polls", adminHandler.ListPolls)
	handle("DELETE /admin/polls/{id}", adminHandler.DeletePoll)
	handle("GET /admin/voters", adminHandler.ListVoters)
	handle("GET /admin/voters/{token}", adminHandler.GetVoter)
	handle("DELETE /admin/voters/{token}", adminHandler.DeleteVoter)

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("polls API v1"))
	})

	return mux
}
