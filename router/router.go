// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/hack-o-matic/cliparse"
	"github.com/danielhkuo/hack-o-matic/db"
	"github.com/danielhkuo/hack-o-matic/handlers"
	"github.com/danielhkuo/hack-o-matic/middleware"
)

// Banner is the body of the health check.
const Banner = "OK"

func NewRouter(pool *db.SessionPool, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()
	prefix := cfg.Prefix

	// Initialize handlers
	indexHandler := handlers.NewIndexHandler(pool, cfg)
	teamHandler := handlers.NewTeamHandler(pool, cfg)
	votingHandler := handlers.NewVotingHandler(pool, cfg)
	phaseHandler := handlers.NewPhaseHandler(pool, cfg)

	// Health check, no database access
	mux.HandleFunc("GET "+prefix+"/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(Banner))
	})

	// State view
	mux.HandleFunc("GET "+prefix+"/{$}", middleware.WithLogging(indexHandler.GetIndex))
	if prefix != "" {
		mux.HandleFunc("GET "+prefix, middleware.WithLogging(indexHandler.GetIndex))
	}

	// Team management (registration phase)
	mux.HandleFunc("POST "+prefix+"/create-team", middleware.WithLogging(teamHandler.CreateTeam))
	mux.HandleFunc("POST "+prefix+"/join-team", middleware.WithLogging(teamHandler.JoinTeam))
	mux.HandleFunc("POST "+prefix+"/leave-team", middleware.WithLogging(teamHandler.LeaveTeam))
	mux.HandleFunc("POST "+prefix+"/delete-team", middleware.WithLogging(teamHandler.DeleteTeam))

	// Voting (evaluation phase)
	mux.HandleFunc("POST "+prefix+"/vote", middleware.WithLogging(votingHandler.SubmitVote))

	// Phase changes (admin)
	mux.HandleFunc("POST "+prefix+"/next", middleware.WithLogging(phaseHandler.Next))
	mux.HandleFunc("POST "+prefix+"/prev", middleware.WithLogging(phaseHandler.Prev))

	// Everything else
	mux.HandleFunc("/", middleware.WithLogging(func(w http.ResponseWriter, r *http.Request) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Not found, try "+prefix+"/")
	}))

	return mux
}
