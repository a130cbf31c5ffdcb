// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/hack-o-matic/auth"
	"github.com/danielhkuo/hack-o-matic/cliparse"
	"github.com/danielhkuo/hack-o-matic/db"
	"github.com/danielhkuo/hack-o-matic/models"
	"github.com/danielhkuo/hack-o-matic/tally"
)

// AdminEmail is the administrator of GetTestConfig.
const AdminEmail = "admin@example.com"

// SetupTestStore opens a fresh SQLite database in a temporary directory.
// The store is closed when the test ends.
func SetupTestStore(t *testing.T) *db.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hackomatic.db")
	store, err := db.Open(db.SQLite, path, 8)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

// SetupTestPool opens a fresh store and a session pool on top of it.
func SetupTestPool(t *testing.T, size int) *db.SessionPool {
	t.Helper()

	store := SetupTestStore(t)
	pool := db.NewSessionPool(store, size)
	// Cleanups run last-in first-out: the pool closes before the store.
	t.Cleanup(pool.Close)

	return pool
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Listen:             "127.0.0.1:0",
		Workers:            2,
		DatabaseType:       db.SQLite,
		AdminEmail:         AdminEmail,
		EmailSuffix:        "@example.com",
		MaxTeamsPerCreator: 2,
		CoinsToSpend:       100,
		SelfVotePolicy:     tally.PolicyZero,
	}
}

// Exec runs fn in one committed transaction.
func Exec(t *testing.T, pool *db.SessionPool, fn func(ctx context.Context, tx *db.Tx) error) {
	t.Helper()

	ctx := context.Background()
	sess, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Failed to acquire session: %v", err)
	}

	_, err = sess.WithTransaction(ctx, func(ctx context.Context, tx *db.Tx) (models.Outcome, error) {
		return models.OK(nil), fn(ctx, tx)
	})
	pool.Release(sess, err)
	if err != nil {
		t.Fatalf("Test transaction failed: %v", err)
	}
}

// CreateTestTeam inserts a team with creator as its only member and returns
// its id.
func CreateTestTeam(t *testing.T, pool *db.SessionPool, name, creator string) int64 {
	t.Helper()

	var teamID int64
	Exec(t, pool, func(ctx context.Context, tx *db.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO teams (name, creator_email, description, created_at)
			VALUES (?, ?, ?, ?)
			RETURNING id
		`, name, creator, "A test team", time.Now().UTC().Format(time.RFC3339)).Scan(&teamID)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO team_memberships (team_id, member_email) VALUES (?, ?)
		`, teamID, creator)
		return err
	})

	return teamID
}

// AddTestMember adds email to a team.
func AddTestMember(t *testing.T, pool *db.SessionPool, teamID int64, email string) {
	t.Helper()

	Exec(t, pool, func(ctx context.Context, tx *db.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO team_memberships (team_id, member_email) VALUES (?, ?)
		`, teamID, email)
		return err
	})
}

// SetTestPhase stores the phase by its persisted name, e.g. "evaluation".
func SetTestPhase(t *testing.T, pool *db.SessionPool, name string) {
	t.Helper()

	Exec(t, pool, func(ctx context.Context, tx *db.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO phase (id, name) VALUES (1, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name
		`, name)
		return err
	})
}

// CountRows returns the number of rows in table matching where (may be "").
func CountRows(t *testing.T, pool *db.SessionPool, table, where string, args ...any) int {
	t.Helper()

	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}

	var count int
	Exec(t, pool, func(ctx context.Context, tx *db.Tx) error {
		return tx.QueryRowContext(ctx, query, args...).Scan(&count)
	})
	return count
}

// MakeRequest creates an HTTP test request. A non-empty email is sent as
// the identity header.
func MakeRequest(method, path string, body any, email string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	if email != "" {
		req.Header.Set(auth.EmailHeader, email)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
