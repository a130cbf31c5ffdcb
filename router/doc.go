// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Hack-o-matic API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(pool, cfg)

Every route lives under cfg.Prefix, e.g. /hack-o-matic. The prefix itself
serves the state view as well.

# Endpoints

Health (no database access):

	GET /health

State view:

	GET / - phase, teams, ballot during evaluation, results when visible

Teams (registration phase only):

	POST /create-team - {name, description}
	POST /join-team   - {team_id}
	POST /leave-team  - {team_id}
	POST /delete-team - {team_id}

Voting (evaluation phase only):

	POST /vote - {points: {team_id: points}}

Phase (administrator only):

	POST /next
	POST /prev

Bodies are JSON or url-encoded forms. Successful form posts redirect to the
state view with 303 See Other.

Unknown paths answer 404 with a JSON error.
*/
package router
