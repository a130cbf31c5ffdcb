// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavor and driver of a Store.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// ParseDialect maps a database type name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql":
		return Postgres, nil
	}
	return SQLite, fmt.Errorf("unknown database type %q", name)
}

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

func (d Dialect) driverName() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Querier is the subset of *Tx that queries need.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the shared handle to the database. Sessions are opened one at a
// time: SQLite permits a single writer and opening a session writes the
// schema.
type Store struct {
	db      *sql.DB
	dialect Dialect
	openMu  sync.Mutex
}

// Open connects to the database. For SQLite, url is a file path.
func Open(dialect Dialect, url string, maxSessions int) (*Store, error) {
	dsn := url
	if dialect == SQLite {
		dsn = sqliteDSN(url)
	}

	conn, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxSessions > 0 {
		conn.SetMaxOpenConns(maxSessions)
		conn.SetMaxIdleConns(maxSessions)
	}

	return &Store{db: conn, dialect: dialect}, nil
}

// sqliteDSN makes every transaction take the write lock at BEGIN.
func sqliteDSN(path string) string {
	if strings.Contains(path, "_txlock=") {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&_txlock=immediate"
	}
	return path + "?_txlock=immediate"
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Session is one pinned connection. It must not be used concurrently.
type Session struct {
	conn    *sql.Conn
	dialect Dialect
	runner  Runner
}

// OpenSession pins a connection, configures it and ensures the schema exists.
func (s *Store) OpenSession(ctx context.Context) (*Session, error) {
	s.openMu.Lock()
	defer s.openMu.Unlock()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	if s.dialect == SQLite {
		// Readers and writers wait a little for each other; the transaction
		// runner retries on top of that.
		for _, pragma := range []string{
			"PRAGMA locking_mode = NORMAL",
			"PRAGMA busy_timeout = 30",
			"PRAGMA journal_mode = WAL",
			"PRAGMA foreign_keys = TRUE",
		} {
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to configure connection (%s): %w", pragma, err)
			}
		}
	}

	sess := &Session{conn: conn, dialect: s.dialect, runner: DefaultRunner}

	tx, err := sess.begin(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := CreateSchema(ctx, tx); err != nil {
		tx.Rollback()
		conn.Close()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to commit schema: %w", err)
	}

	return sess, nil
}

// Close returns the connection to the pool.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Discard closes the underlying connection instead of returning it to the
// pool. Used after an unexpected store error.
func (s *Session) Discard() error {
	// Raw reports ErrBadConn back to database/sql, which drops the connection.
	err := s.conn.Raw(func(any) error { return driver.ErrBadConn })
	s.conn.Close()
	if errors.Is(err, driver.ErrBadConn) {
		return nil
	}
	return err
}

func (s *Session) begin(ctx context.Context) (*Tx, error) {
	var opts *sql.TxOptions
	if s.dialect == Postgres {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	tx, err := s.conn.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{Tx: tx, dialect: s.dialect}, nil
}

// Tx is a transaction that accepts '?' placeholders on every dialect.
type Tx struct {
	*sql.Tx
	dialect Dialect
}

func (tx *Tx) Dialect() Dialect {
	return tx.dialect
}

func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return tx.Tx.ExecContext(ctx, Rebind(tx.dialect, query), args...)
}

func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return tx.Tx.QueryContext(ctx, Rebind(tx.dialect, query), args...)
}

func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return tx.Tx.QueryRowContext(ctx, Rebind(tx.dialect, query), args...)
}

// Rebind rewrites '?' placeholders to '$1', '$2', ... for PostgreSQL.
// Queries must not contain '?' inside string literals.
func Rebind(d Dialect, query string) string {
	if d != Postgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
