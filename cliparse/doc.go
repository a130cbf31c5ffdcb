// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Sources

Later sources override earlier ones:

 1. defaults
 2. TOML config file (-c or CONFIG_FILE)
 3. environment variables
 4. CLI flags

# Config File

	[app]
	admin_email = "admin@example.com"
	email_suffix = "@example.com"
	max_teams_per_creator = 1
	coins_to_spend = 100
	self_vote_policy = "zero"

	[debug]
	unsafe_default_email = "dev@example.com"

	[server]
	listen = "127.0.0.1:5591"
	prefix = "/hack-o-matic"
	num_threads = 4

	[database]
	path = "hackomatic.db"

# CLI Flags and Environment Variables

	-l                     LISTEN                 listen address (default 127.0.0.1:5591)
	-prefix                URL_PREFIX             URL prefix (default none)
	-w                     WORKERS                database sessions (default 4)
	-log-file              LOG_FILE               rotated log file (default stdout)
	-d                     DATABASE_URL           database path or URL (required)
	-t                     DATABASE_TYPE          sqlite or postgres (default sqlite)
	-admin-email           ADMIN_EMAIL            administrator (required)
	-email-suffix          EMAIL_SUFFIX           suffix trimmed in listings
	-max-teams             MAX_TEAMS_PER_CREATOR  default 1
	-coins                 COINS_TO_SPEND         default 100
	-self-vote-policy      SELF_VOTE_POLICY       zero (default) or flip
	-unsafe-default-email  UNSAFE_DEFAULT_EMAIL   identity without X-Email

# Validation

ParseFlags returns an error if required values are missing or a value does
not parse.
*/
package cliparse
