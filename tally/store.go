// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/danielhkuo/hack-o-matic/db"
)

// Receipt describes a stored submission.
type Receipt struct {
	// Stored holds the points as persisted, after anti-cheat.
	Stored     Submission
	CoinsSpent int64
	Flagged    bool
}

// Submit validates a submission and replaces all of the voter's votes with
// it. Nothing is written unless validation passes. Validation failures wrap
// ErrValidation; other errors come from the store.
func Submit(ctx context.Context, q db.Querier, voter string, sub Submission, budget int64, policy Policy) (Receipt, error) {
	if err := Validate(sub, budget, policy); err != nil {
		return Receipt{}, err
	}

	teamIDs, err := teamIDSet(ctx, q)
	if err != nil {
		return Receipt{}, err
	}
	for teamID := range sub {
		if !teamIDs[teamID] {
			return Receipt{}, fmt.Errorf("%w: %d", ErrUnknownTeam, teamID)
		}
	}

	memberOf, err := teamsOf(ctx, q, voter)
	if err != nil {
		return Receipt{}, err
	}

	stored, cheated := Neutralize(sub, memberOf, policy)
	if cheated {
		if err := FlagCheater(ctx, q, voter); err != nil {
			return Receipt{}, err
		}
		slog.Warn("self-vote neutralized", "voter", voter, "policy", policy.String())
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM votes WHERE voter_email = ?`, voter); err != nil {
		return Receipt{}, fmt.Errorf("failed to clear votes: %w", err)
	}

	// Deterministic insert order keeps row ids reproducible.
	ids := make([]int64, 0, len(stored))
	for teamID, p := range stored {
		if p != 0 {
			ids = append(ids, teamID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, teamID := range ids {
		_, err := q.ExecContext(ctx, `
			INSERT INTO votes (voter_email, team_id, points)
			VALUES (?, ?, ?)
		`, voter, teamID, stored[teamID])
		if err != nil {
			return Receipt{}, fmt.Errorf("failed to insert vote: %w", err)
		}
	}

	spent, err := Cost(stored)
	if err != nil {
		return Receipt{}, err
	}

	return Receipt{Stored: stored, CoinsSpent: spent, Flagged: cheated}, nil
}

// FlagCheater marks voter as a cheater. Flagging twice is a no-op.
func FlagCheater(ctx context.Context, q db.Querier, voter string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO cheaters (email) VALUES (?)
		ON CONFLICT (email) DO NOTHING
	`, voter)
	if err != nil {
		return fmt.Errorf("failed to flag cheater: %w", err)
	}
	return nil
}

// IsCheater reports whether voter was ever flagged.
func IsCheater(ctx context.Context, q db.Querier, voter string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM cheaters WHERE email = ?`, voter).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query cheaters: %w", err)
	}
	return count > 0, nil
}

// Cheaters lists flagged voters in alphabetical order.
func Cheaters(ctx context.Context, q db.Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT email FROM cheaters ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cheaters: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan cheater: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

// VotesBy returns the voter's stored points per team.
func VotesBy(ctx context.Context, q db.Querier, voter string) (Submission, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT team_id, points FROM votes WHERE voter_email = ?
	`, voter)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	votes := make(Submission)
	for rows.Next() {
		var teamID, points int64
		if err := rows.Scan(&teamID, &points); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes[teamID] = points
	}
	return votes, rows.Err()
}

// Totals sums the stored points of every team. Teams without votes have 0.
func Totals(ctx context.Context, q db.Querier) ([]TeamTotal, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT t.id, t.name, COALESCE(SUM(v.points), 0)
		FROM teams t
		LEFT JOIN votes v ON v.team_id = t.id
		GROUP BY t.id, t.name
		ORDER BY t.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	var totals []TeamTotal
	for rows.Next() {
		var t TeamTotal
		if err := rows.Scan(&t.TeamID, &t.Name, &t.Points); err != nil {
			return nil, fmt.Errorf("failed to scan total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// Rankings loads the totals and ranks them.
func Rankings(ctx context.Context, q db.Querier) ([]RankedTeam, error) {
	totals, err := Totals(ctx, q)
	if err != nil {
		return nil, err
	}
	return Rank(totals), nil
}

func teamIDSet(ctx context.Context, q db.Querier) (map[int64]bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM teams`)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func teamsOf(ctx context.Context, q db.Querier, email string) (map[int64]bool, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT team_id FROM team_memberships WHERE member_email = ?
	`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}
