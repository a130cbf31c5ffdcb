// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package phase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/danielhkuo/hack-o-matic/db"
	"github.com/danielhkuo/hack-o-matic/models"
)

// ErrForbidden is returned when a non-admin tries to change the phase.
var ErrForbidden = errors.New("only the administrator can change the phase")

type Phase int

const (
	Registration Phase = iota
	Presentation
	Evaluation
	Revelation
	Celebration
)

var names = [...]string{
	Registration: "registration",
	Presentation: "presentation",
	Evaluation:   "evaluation",
	Revelation:   "revelation",
	Celebration:  "celebration",
}

func (p Phase) String() string {
	if p < Registration || p > Celebration {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return names[p]
}

// Parse returns the phase with the given persisted name.
func Parse(name string) (Phase, bool) {
	for p, n := range names {
		if n == name {
			return Phase(p), true
		}
	}
	return Registration, false
}

// Next is the following phase; Celebration stays Celebration.
func (p Phase) Next() Phase {
	if p >= Celebration {
		return Celebration
	}
	return p + 1
}

// Prev is the preceding phase; Registration stays Registration.
func (p Phase) Prev() Phase {
	if p <= Registration {
		return Registration
	}
	return p - 1
}

// CanSeeOutcome reports whether vote totals and rankings are visible.
//
// In the revelation phase only the admin sees the totals, so nobody can run
// ahead during the ceremony. Afterwards everybody can.
func CanSeeOutcome(p Phase, isAdmin bool) bool {
	switch p {
	case Revelation:
		return isAdmin
	case Celebration:
		return true
	default:
		return false
	}
}

// Load reads the current phase. A missing or unknown value is Registration.
func Load(ctx context.Context, q db.Querier) (Phase, error) {
	var name string
	err := q.QueryRowContext(ctx, `SELECT name FROM phase WHERE id = 1`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return Registration, nil
	}
	if err != nil {
		return Registration, fmt.Errorf("failed to load phase: %w", err)
	}

	p, _ := Parse(name)
	return p, nil
}

// Store persists p as the current phase.
func Store(ctx context.Context, q db.Querier, p Phase) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO phase (id, name) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name
	`, p.String())
	if err != nil {
		return fmt.Errorf("failed to store phase: %w", err)
	}
	return nil
}

// Advance moves one phase forward.
func Advance(ctx context.Context, q db.Querier, user models.User) (Phase, error) {
	return step(ctx, q, user, Phase.Next)
}

// Retreat moves one phase back.
func Retreat(ctx context.Context, q db.Querier, user models.User) (Phase, error) {
	return step(ctx, q, user, Phase.Prev)
}

func step(ctx context.Context, q db.Querier, user models.User, move func(Phase) Phase) (Phase, error) {
	if !user.IsAdmin {
		return Registration, ErrForbidden
	}

	current, err := Load(ctx, q)
	if err != nil {
		return current, err
	}

	next := move(current)
	if err := Store(ctx, q, next); err != nil {
		return current, err
	}
	return next, nil
}
