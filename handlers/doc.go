// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Hack-o-matic API.

# Handler Types

Each handler is a struct with session pool and config dependencies:

  - IndexHandler: state view (phase, teams, ballot, results)
  - TeamHandler: create, join, leave and delete teams
  - VotingHandler: quadratic vote submission
  - PhaseHandler: advance and retreat the event phase

Handlers are created via constructor functions:

	teamHandler := handlers.NewTeamHandler(pool, cfg)

# Request Flow

Every request resolves its user from the X-Email header, decodes its body,
then runs exactly one unit of work:

	identify -> decode -> pool.Acquire -> Session.WithTransaction -> write outcome

The outcome status decides the transaction: below 400 commits, anything else
rolls back. Busy contention is retried inside WithTransaction and answers 503
once exhausted. Any other store error answers 500 and the session is
discarded.

# Phases

	registration -> presentation -> evaluation -> revelation -> celebration

Team changes are accepted during registration, votes during evaluation.
Results are shown to the administrator from revelation on, to everybody
during celebration.

# Forms

Bodies may be url-encoded forms instead of JSON. A successful form post
answers 303 See Other to the state view.
*/
package handlers
