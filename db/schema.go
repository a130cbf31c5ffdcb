// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"fmt"
	"strings"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(ctx context.Context, tx *Tx) error {
	for _, stmt := range splitStatements(tx.dialect.schema()) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// splitStatements cuts a schema into statements that are executed one by one.
// Statements must not contain semicolons inside literals or comments.
func splitStatements(schema string) []string {
	var stmts []string
	for _, part := range strings.Split(schema, ";") {
		if s := strings.TrimSpace(part); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

func (d Dialect) schema() string {
	if d == Postgres {
		return postgresSchema
	}
	return sqliteSchema
}

const sqliteSchema = `
-- Teams
CREATE TABLE IF NOT EXISTS teams (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    creator_email TEXT NOT NULL,
    description TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_teams_creator_email ON teams(creator_email);

-- Memberships: a person is in a given team at most once
CREATE TABLE IF NOT EXISTS team_memberships (
    id INTEGER PRIMARY KEY,
    team_id INTEGER NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
    member_email TEXT NOT NULL,
    UNIQUE (team_id, member_email)
);

CREATE INDEX IF NOT EXISTS idx_team_memberships_member ON team_memberships(member_email);

-- Votes: one per voter per team, otherwise the quadratic cost is sidestepped
CREATE TABLE IF NOT EXISTS votes (
    id INTEGER PRIMARY KEY,
    voter_email TEXT NOT NULL,
    team_id INTEGER NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
    points INTEGER NOT NULL,
    UNIQUE (voter_email, team_id)
);

CREATE INDEX IF NOT EXISTS idx_votes_team_id ON votes(team_id);

-- Voters who tried to award points to their own team
CREATE TABLE IF NOT EXISTS cheaters (
    email TEXT PRIMARY KEY
);

-- Current phase, single row
CREATE TABLE IF NOT EXISTS phase (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    name TEXT NOT NULL
);
`

const postgresSchema = `
-- Teams
CREATE TABLE IF NOT EXISTS teams (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    creator_email TEXT NOT NULL,
    description TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_teams_creator_email ON teams(creator_email);

-- Memberships: a person is in a given team at most once
CREATE TABLE IF NOT EXISTS team_memberships (
    id BIGSERIAL PRIMARY KEY,
    team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
    member_email TEXT NOT NULL,
    UNIQUE (team_id, member_email)
);

CREATE INDEX IF NOT EXISTS idx_team_memberships_member ON team_memberships(member_email);

-- Votes: one per voter per team, otherwise the quadratic cost is sidestepped
CREATE TABLE IF NOT EXISTS votes (
    id BIGSERIAL PRIMARY KEY,
    voter_email TEXT NOT NULL,
    team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
    points BIGINT NOT NULL,
    UNIQUE (voter_email, team_id)
);

CREATE INDEX IF NOT EXISTS idx_votes_team_id ON votes(team_id);

-- Voters who tried to award points to their own team
CREATE TABLE IF NOT EXISTS cheaters (
    email TEXT PRIMARY KEY
);

-- Current phase, single row
CREATE TABLE IF NOT EXISTS phase (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    name TEXT NOT NULL
);
`
