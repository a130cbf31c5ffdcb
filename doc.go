// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Hack-o-matic API server.

Hack-o-matic runs a hackathon: participants form teams, present, and then
spend a budget of coins on a quadratic vote (n points cost n² coins). The
administrator moves the event through its phases and reveals the winners.

# Starting the Server

The server requires environment variables, a config file or CLI flags:

	DATABASE_URL=hackomatic.db ADMIN_EMAIL=admin@example.com go run .

Or with flags:

	go run . -c config.toml -l 127.0.0.1:5591 -d hackomatic.db

A .env file in the working directory is loaded first.

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite file or PostgreSQL URL (-t postgres)
  - ADMIN_EMAIL (-admin-email): the administrator

Optional settings:

  - LISTEN (-l): listen address (default: 127.0.0.1:5591)
  - URL_PREFIX (-prefix): serve below a path, e.g. /hack-o-matic
  - WORKERS (-w): database sessions (default: 4)
  - COINS_TO_SPEND (-coins): voting budget (default: 100)
  - MAX_TEAMS_PER_CREATOR (-max-teams): default 1
  - SELF_VOTE_POLICY (-self-vote-policy): zero or flip
  - LOG_FILE (-log-file): rotated log file

Identity comes from the X-Email header, set by an authenticating proxy.

# Architecture

  - handlers: HTTP request handlers (index, teams, voting, phase)
  - router: Route definitions using Go 1.22+ routing
  - middleware: request logging, JSON helpers
  - models: Request/response types and the unit of work outcome
  - auth: Identity from the request
  - db: Store, sessions, transaction runner, schema
  - phase: Event phase state machine
  - tally: Quadratic vote validation, anti-cheat and ranking
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
