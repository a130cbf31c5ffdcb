// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"errors"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrorKind is the tag the transaction runner decides on.
type ErrorKind int

const (
	// KindNone means no error.
	KindNone ErrorKind = iota
	// KindBusy means another writer holds the lock. Always retryable.
	KindBusy
	// KindOther is any other store failure. The session must be discarded.
	KindOther
	// KindCanceled means the request context ended. The transaction is
	// rolled back and the session stays usable.
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBusy:
		return "busy"
	case KindCanceled:
		return "canceled"
	default:
		return "other"
	}
}

// PostgreSQL SQLSTATE codes treated as write contention.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// Classify tags a store error as busy, canceled or other.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		// Extended result codes keep the primary code in the low byte.
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return KindBusy
		}
		return KindOther
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return KindBusy
		}
		return KindOther
	}

	return KindOther
}

// IsCanceled reports whether err comes from an ended request context.
func IsCanceled(err error) bool {
	return Classify(err) == KindCanceled
}

// IsBusy reports whether err is write contention.
func IsBusy(err error) bool {
	return Classify(err) == KindBusy
}
