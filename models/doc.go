// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Outcome

Every unit of work returns an Outcome. Its Status is an HTTP status code and
decides durability:

	if outcome.Committable() { // Status < FailureThreshold (400)
		// commit
	}

Helpers: OK, Created, Redirect (303), Fail.

# Request Types

  - CreateTeamRequest: name, description
  - TeamActionRequest: team_id (join, leave, delete)
  - SubmitVoteRequest: points (team id -> integer, number or string)

# Response Types

  - CreateTeamResponse: team_id
  - MessageResponse: message
  - SubmitVoteResponse: message, coins_spent, coins_left
  - PhaseResponse: phase
  - IndexResponse: user, phase, teams, ballot, results
  - ErrorResponse: error, message

# Domain Types

  - User: email and admin flag, derived per request
  - Team: team with its members
  - TeamView, Ballot, BallotEntry, Results, TeamResult: state view
*/
package models
