// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/hack-o-matic/models"
)

// MaxAttempts bounds how often a unit of work is started when the database
// stays busy.
const MaxAttempts = 6

// Runner holds the retry policy of WithTransaction.
type Runner struct {
	MaxAttempts int
}

var DefaultRunner = Runner{MaxAttempts: MaxAttempts}

// UnitOfWork is one request's worth of reads and writes.
type UnitOfWork func(ctx context.Context, tx *Tx) (models.Outcome, error)

// Unavailable is the outcome once the retry bound is exhausted.
func Unavailable() models.Outcome {
	return models.Fail(http.StatusServiceUnavailable,
		"The database is busy, wait a few seconds and try again.")
}

// decision is what the runner does after a failed attempt.
type decision int

const (
	retry decision = iota
	giveUp
	abort
)

// decide is the retry policy: busy retries until the bound, anything else
// aborts. A canceled context aborts too.
func (r Runner) decide(kind ErrorKind, attempt int) decision {
	if kind != KindBusy {
		return abort
	}
	if attempt+1 < r.MaxAttempts {
		return retry
	}
	return giveUp
}

// WithTransaction runs fn in a transaction, retrying from scratch while the
// database is busy.
//
// The transaction commits when the outcome is below models.FailureThreshold
// and rolls back otherwise; the outcome is returned in both cases. When ctx
// ends the error wraps ctx.Err() and the session can be reused. Any other
// non-busy store error is returned as is and the session must not be reused.
func (s *Session) WithTransaction(ctx context.Context, fn UnitOfWork) (models.Outcome, error) {
	return s.runner.run(ctx, s, fn)
}

func (r Runner) run(ctx context.Context, s *Session, fn UnitOfWork) (models.Outcome, error) {
	for attempt := 0; ; attempt++ {
		outcome, err := r.attempt(ctx, s, fn)
		if err == nil {
			return outcome, nil
		}
		// database/sql reports ErrTxDone once a canceled context has rolled
		// the transaction back.
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}

		kind := Classify(err)
		switch r.decide(kind, attempt) {
		case retry:
			slog.Warn("database is busy, retrying",
				"attempt", attempt+1,
				"max_attempts", r.MaxAttempts,
				"error", err,
			)
			continue
		case giveUp:
			slog.Warn("database is busy, giving up",
				"attempts", attempt+1,
				"error", err,
			)
			return Unavailable(), nil
		default:
			return models.Outcome{}, err
		}
	}
}

// attempt makes one try. Returned errors are store errors; the transaction is
// finished when attempt returns.
func (r Runner) attempt(ctx context.Context, s *Session, fn UnitOfWork) (models.Outcome, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return models.Outcome{}, err
	}

	outcome, err := fn(ctx, tx)
	if err != nil {
		if IsBusy(err) {
			if rbErr := tx.Rollback(); rbErr != nil {
				return models.Outcome{}, fmt.Errorf("failed to roll back after busy error: %w", rbErr)
			}
			return models.Outcome{}, err
		}
		// Best effort, the session is discarded anyway.
		_ = tx.Rollback()
		return models.Outcome{}, err
	}

	if outcome.Committable() {
		if err := tx.Commit(); err != nil {
			err = fmt.Errorf("failed to commit transaction: %w", err)
			if IsBusy(err) && s.dialect == SQLite {
				if rbErr := s.rollbackOpen(ctx); rbErr != nil {
					return models.Outcome{}, fmt.Errorf("failed to roll back after busy commit: %w", rbErr)
				}
			}
			return models.Outcome{}, err
		}
		return outcome, nil
	}

	if err := tx.Rollback(); err != nil {
		return models.Outcome{}, fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return outcome, nil
}

// rollbackOpen ends a transaction that SQLite still holds after a failed
// COMMIT. database/sql already considers that transaction done.
func (s *Session) rollbackOpen(ctx context.Context) error {
	_, err := s.conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
	return err
}
