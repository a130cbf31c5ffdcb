// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/danielhkuo/hack-o-matic/models"
)

func TestSessionPool_Size(t *testing.T) {
	store := openTestStore(t)

	if size := NewSessionPool(store, 0).Size(); size != 1 {
		t.Errorf("Expected size clamped to 1, got %d", size)
	}
	if size := NewSessionPool(store, 3).Size(); size != 3 {
		t.Errorf("Expected size 3, got %d", size)
	}
}

func TestSessionPool_ReusesSessions(t *testing.T) {
	pool := NewSessionPool(openTestStore(t), 1)
	t.Cleanup(pool.Close)
	ctx := context.Background()

	first, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	pool.Release(first, nil)

	second, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer pool.Release(second, nil)

	if first != second {
		t.Error("Expected the released session to be handed out again")
	}
}

func TestSessionPool_ReopensAfterFatalError(t *testing.T) {
	pool := NewSessionPool(openTestStore(t), 1)
	t.Cleanup(pool.Close)
	ctx := context.Background()

	first, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	pool.Release(first, errors.New("boom"))

	second, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer pool.Release(second, nil)

	if first == second {
		t.Fatal("Expected a fresh session after a fatal error")
	}
	got, err := second.WithTransaction(ctx, func(ctx context.Context, tx *Tx) (models.Outcome, error) {
		return models.OK(nil), insertTeam(ctx, tx, "Alpha")
	})
	if err != nil || !got.Committable() {
		t.Errorf("Fresh session should work, got %+v, %v", got, err)
	}
}

func TestSessionPool_KeepsSessionAfterCancel(t *testing.T) {
	pool := NewSessionPool(openTestStore(t), 1)
	t.Cleanup(pool.Close)
	ctx := context.Background()

	first, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	pool.Release(first, fmt.Errorf("failed to begin transaction: %w", context.Canceled))

	second, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer pool.Release(second, nil)

	if first != second {
		t.Error("Expected the session to be kept after a canceled request")
	}
}

func TestSessionPool_AcquireHonorsContext(t *testing.T) {
	pool := NewSessionPool(openTestStore(t), 1)
	t.Cleanup(pool.Close)

	held, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer pool.Release(held, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := pool.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}
