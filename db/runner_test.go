// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"

	"github.com/danielhkuo/hack-o-matic/models"
)

func TestWithTransaction_CommitAndRollback(t *testing.T) {
	sess := openTestSession(t, openTestStore(t))
	ctx := context.Background()

	tests := []struct {
		name    string
		outcome models.Outcome
		commits bool
	}{
		{"ok commits", models.OK(nil), true},
		{"created commits", models.Created(nil), true},
		{"redirect commits", models.Redirect("/"), true},
		{"bad request rolls back", models.Fail(http.StatusBadRequest, "no"), false},
		{"conflict rolls back", models.Fail(http.StatusConflict, "no"), false},
		{"forbidden rolls back", models.Fail(http.StatusForbidden, "no"), false},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := countTeams(t, sess)

			got, err := sess.WithTransaction(ctx, func(ctx context.Context, tx *Tx) (models.Outcome, error) {
				if err := insertTeam(ctx, tx, fmt.Sprintf("Team %d", i)); err != nil {
					return models.Outcome{}, err
				}
				return tt.outcome, nil
			})
			if err != nil {
				t.Fatalf("WithTransaction failed: %v", err)
			}
			if got.Status != tt.outcome.Status {
				t.Errorf("Expected outcome %d, got %d", tt.outcome.Status, got.Status)
			}

			want := before
			if tt.commits {
				want++
			}
			if n := countTeams(t, sess); n != want {
				t.Errorf("Expected %d teams, got %d", want, n)
			}
		})
	}
}

func TestWithTransaction_StoreErrorRollsBack(t *testing.T) {
	store := openTestStore(t)
	sess := openTestSession(t, store)
	boom := errors.New("boom")

	calls := 0
	_, err := sess.WithTransaction(context.Background(), func(ctx context.Context, tx *Tx) (models.Outcome, error) {
		calls++
		if err := insertTeam(ctx, tx, "Alpha"); err != nil {
			return models.Outcome{}, err
		}
		return models.Outcome{}, boom
	})

	if !errors.Is(err, boom) {
		t.Errorf("Expected boom, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 attempt, got %d", calls)
	}
	if n := countTeams(t, openTestSession(t, store)); n != 0 {
		t.Errorf("Expected nothing committed, got %d teams", n)
	}
}

func TestWithTransaction_RetriesBusyErrors(t *testing.T) {
	sess := openTestSession(t, openTestStore(t))
	busy := fmt.Errorf("failed to insert vote: %w", &pq.Error{Code: "40001"})

	calls := 0
	got, err := sess.WithTransaction(context.Background(), func(ctx context.Context, tx *Tx) (models.Outcome, error) {
		calls++
		if err := insertTeam(ctx, tx, "Alpha"); err != nil {
			return models.Outcome{}, err
		}
		if calls < 3 {
			return models.Outcome{}, busy
		}
		return models.OK(nil), nil
	})

	if err != nil {
		t.Fatalf("WithTransaction failed: %v", err)
	}
	if got.Status != http.StatusOK || calls != 3 {
		t.Errorf("Expected success on attempt 3, got %d after %d attempts", got.Status, calls)
	}
	// Earlier attempts were rolled back, so the unique name did not collide
	if n := countTeams(t, sess); n != 1 {
		t.Errorf("Expected 1 team, got %d", n)
	}
}

func TestWithTransaction_GivesUpWhenBusy(t *testing.T) {
	sess := openTestSession(t, openTestStore(t))

	calls := 0
	got, err := sess.WithTransaction(context.Background(), func(ctx context.Context, tx *Tx) (models.Outcome, error) {
		calls++
		return models.Outcome{}, &pq.Error{Code: "40P01"}
	})

	if err != nil {
		t.Fatalf("Exhausted retries must not be a store error, got %v", err)
	}
	if got.Status != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", got.Status)
	}
	if calls != MaxAttempts {
		t.Errorf("Expected %d attempts, got %d", MaxAttempts, calls)
	}
}

// TestWithTransaction_WriterContention holds the write lock in one session
// while another one tries to start a transaction.
func TestWithTransaction_WriterContention(t *testing.T) {
	store := openTestStore(t)
	holder := openTestSession(t, store)
	waiter := openTestSession(t, store)
	ctx := context.Background()

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, err := holder.WithTransaction(ctx, func(ctx context.Context, tx *Tx) (models.Outcome, error) {
			if err := insertTeam(ctx, tx, "Alpha"); err != nil {
				close(locked)
				return models.Outcome{}, err
			}
			close(locked)
			<-release
			return models.OK(nil), nil
		})
		done <- err
	}()
	<-locked

	// The raw error is classified as busy
	if _, err := waiter.begin(ctx); !IsBusy(err) {
		t.Errorf("Expected a busy error while the lock is held, got %v", err)
	}

	calls := 0
	got, err := waiter.WithTransaction(ctx, func(ctx context.Context, tx *Tx) (models.Outcome, error) {
		calls++
		return models.OK(nil), nil
	})
	if err != nil {
		t.Fatalf("Expected busy outcome, got error %v", err)
	}
	if got.Status != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", got.Status)
	}
	if calls != 0 {
		t.Errorf("Unit of work must not run without the lock, ran %d times", calls)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Holder failed: %v", err)
	}

	// With the lock released the waiter gets through
	if n := countTeams(t, waiter); n != 1 {
		t.Errorf("Expected 1 team, got %d", n)
	}
}

func TestWithTransaction_CanceledContext(t *testing.T) {
	sess := openTestSession(t, openTestStore(t))

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := sess.WithTransaction(ctx, func(ctx context.Context, tx *Tx) (models.Outcome, error) {
		calls++
		if err := insertTeam(ctx, tx, "Alpha"); err != nil {
			return models.Outcome{}, err
		}
		cancel()
		return models.Outcome{}, insertTeam(ctx, tx, "Beta")
	})

	if !errors.Is(err, context.Canceled) || !IsCanceled(err) {
		t.Errorf("Expected a canceled error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 attempt, got %d", calls)
	}

	// Already canceled before the first attempt
	_, err = sess.WithTransaction(ctx, func(ctx context.Context, tx *Tx) (models.Outcome, error) {
		calls++
		return models.OK(nil), nil
	})
	if !IsCanceled(err) || calls != 1 {
		t.Errorf("Expected a canceled error without running, got %v after %d calls", err, calls)
	}

	// The session is still usable and nothing was committed
	if n := countTeams(t, sess); n != 0 {
		t.Errorf("Expected no teams, got %d", n)
	}
}

// TestRollbackOpen covers a COMMIT that failed while SQLite kept the
// transaction open on the connection.
func TestRollbackOpen(t *testing.T) {
	sess := openTestSession(t, openTestStore(t))
	ctx := context.Background()

	if _, err := sess.conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}
	if _, err := sess.conn.ExecContext(ctx, `
		INSERT INTO teams (name, creator_email, description, created_at)
		VALUES ('Alpha', 'alice@example.com', '', '2025-01-01T00:00:00Z')
	`); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}

	// A stale transaction makes the next BEGIN fail
	if tx, err := sess.begin(ctx); err == nil {
		tx.Rollback()
		t.Fatal("Expected BEGIN to fail inside an open transaction")
	}

	if err := sess.rollbackOpen(ctx); err != nil {
		t.Fatalf("rollbackOpen failed: %v", err)
	}
	if n := countTeams(t, sess); n != 0 {
		t.Errorf("Expected the open transaction to be rolled back, got %d teams", n)
	}
}

func TestDecide(t *testing.T) {
	r := Runner{MaxAttempts: 3}

	tests := []struct {
		kind    ErrorKind
		attempt int
		want    decision
	}{
		{KindBusy, 0, retry},
		{KindBusy, 1, retry},
		{KindBusy, 2, giveUp},
		{KindOther, 0, abort},
		{KindOther, 2, abort},
		{KindCanceled, 0, abort},
	}

	for _, tt := range tests {
		if got := r.decide(tt.kind, tt.attempt); got != tt.want {
			t.Errorf("decide(%v, %d) = %v, want %v", tt.kind, tt.attempt, got, tt.want)
		}
	}
}

func TestUnavailable(t *testing.T) {
	o := Unavailable()
	if o.Status != http.StatusServiceUnavailable || o.Committable() || o.Message == "" {
		t.Errorf("Unexpected outcome: %+v", o)
	}
}
