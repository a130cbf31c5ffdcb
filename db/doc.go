// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database access: schema, sessions and transactions.

# Store and Sessions

A Store wraps *sql.DB for SQLite (default) or PostgreSQL:

	store, err := db.Open(db.SQLite, "hackomatic.db", 4)

A Session pins one connection. OpenSession is serialized by a store-wide
mutex, configures the connection and creates the schema:

	sess, err := store.OpenSession(ctx)

SessionPool keeps a fixed number of sessions and replaces any session
released with a fatal error:

	sess, err := pool.Acquire(ctx)
	outcome, err := sess.WithTransaction(ctx, work)
	pool.Release(sess, err)

# Transactions

WithTransaction runs a unit of work in a write transaction:

  - outcome status < 400: commit
  - outcome status >= 400: roll back, outcome still returned
  - busy/locked store error: roll back and retry, at most MaxAttempts times,
    then a 503 outcome
  - canceled request context: rolled back and returned, the session is kept
  - any other store error: returned, the session must be discarded

On SQLite a busy COMMIT leaves the transaction open on the connection; the
runner rolls it back before the next attempt.

Classify tags errors as KindBusy, KindCanceled or KindOther. Tx accepts '?' placeholders on
both dialects.

# Tables

  - teams: name unique, store-assigned id
  - team_memberships: unique (team_id, member_email)
  - votes: unique (voter_email, team_id)
  - cheaters: voters flagged for self-voting
  - phase: single row with the current phase name

	teams 1──* team_memberships
	teams 1──* votes

Foreign keys use ON DELETE CASCADE.
*/
package db
