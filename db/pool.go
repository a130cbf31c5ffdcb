// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"log/slog"
)

// SessionPool hands out a fixed number of sessions. Each slot opens its
// session lazily and reopens it after a fatal error.
type SessionPool struct {
	store *Store
	slots chan *Session
}

// NewSessionPool creates a pool with size slots. No connection is opened yet.
func NewSessionPool(store *Store, size int) *SessionPool {
	if size < 1 {
		size = 1
	}
	slots := make(chan *Session, size)
	for i := 0; i < size; i++ {
		// nil marks a slot without an open session
		slots <- nil
	}
	return &SessionPool{store: store, slots: slots}
}

// Size is the number of units of work that can run at once.
func (p *SessionPool) Size() int {
	return cap(p.slots)
}

// Acquire blocks until a slot is free and returns its session. On error the
// slot is already given back.
func (p *SessionPool) Acquire(ctx context.Context) (*Session, error) {
	var sess *Session
	select {
	case sess = <-p.slots:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if sess != nil {
		return sess, nil
	}

	sess, err := p.store.OpenSession(ctx)
	if err != nil {
		p.slots <- nil
		return nil, err
	}
	return sess, nil
}

// Release gives the session back. A fatal store error discards the session
// so its slot starts over with a fresh connection. A canceled request keeps
// it.
func (p *SessionPool) Release(sess *Session, fatal error) {
	if fatal != nil && !IsCanceled(fatal) {
		slog.Error("discarding database session", "error", fatal)
		if err := sess.Discard(); err != nil {
			slog.Error("failed to discard session", "error", err)
		}
		p.slots <- nil
		return
	}
	p.slots <- sess
}

// Close closes every open session. The pool must not be used afterwards.
func (p *SessionPool) Close() {
	for i := 0; i < cap(p.slots); i++ {
		if sess := <-p.slots; sess != nil {
			sess.Close()
		}
	}
}
