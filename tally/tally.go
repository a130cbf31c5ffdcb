// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"sort"
	"strconv"
	"strings"
)

// ErrValidation is wrapped by every error caused by bad input.
var ErrValidation = errors.New("invalid vote")

var (
	ErrInvalidTeam    = fmt.Errorf("%w: invalid team id", ErrValidation)
	ErrInvalidPoints  = fmt.Errorf("%w: points must be integers", ErrValidation)
	ErrDuplicateTeam  = fmt.Errorf("%w: team given more than once", ErrValidation)
	ErrNegativePoints = fmt.Errorf("%w: points cannot be negative", ErrValidation)
	ErrCoinOverflow   = fmt.Errorf("%w: coin total overflows", ErrValidation)
	ErrOverBudget     = fmt.Errorf("%w: not enough coins", ErrValidation)
	ErrUnknownTeam    = fmt.Errorf("%w: unknown team", ErrValidation)
)

// Policy decides what happens to votes on the voter's own teams.
type Policy int

const (
	// PolicyZero rejects negative input and zeroes self-votes.
	PolicyZero Policy = iota
	// PolicyFlip accepts negative input and stores self-votes negated.
	PolicyFlip
)

func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(name) {
	case "", "zero":
		return PolicyZero, nil
	case "flip":
		return PolicyFlip, nil
	}
	return PolicyZero, fmt.Errorf("unknown self-vote policy %q (want zero or flip)", name)
}

func (p Policy) String() string {
	if p == PolicyFlip {
		return "flip"
	}
	return "zero"
}

// Submission maps team id to points.
type Submission map[int64]int64

// ParseSubmission converts raw team id and point strings. Keys that name
// the same team, such as "1" and "01", are rejected.
func ParseSubmission(raw map[string]string) (Submission, error) {
	sub := make(Submission, len(raw))
	for key, value := range raw {
		teamID, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil || teamID <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTeam, key)
		}
		points, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPoints, value)
		}
		if _, seen := sub[teamID]; seen {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateTeam, teamID)
		}
		sub[teamID] = points
	}
	return sub, nil
}

// Cost is the sum of squared points. Overflow of int64 is an error, never a
// wrapped value.
func Cost(sub Submission) (int64, error) {
	var total uint64
	for _, p := range sub {
		if p == math.MinInt64 {
			return 0, ErrCoinOverflow
		}
		abs := uint64(p)
		if p < 0 {
			abs = uint64(-p)
		}
		hi, sq := bits.Mul64(abs, abs)
		if hi != 0 {
			return 0, ErrCoinOverflow
		}
		var carry uint64
		total, carry = bits.Add64(total, sq, 0)
		if carry != 0 || total > math.MaxInt64 {
			return 0, ErrCoinOverflow
		}
	}
	return int64(total), nil
}

// Validate checks a submission against the budget before anything is stored.
func Validate(sub Submission, budget int64, policy Policy) error {
	if policy == PolicyZero {
		for teamID, p := range sub {
			if p < 0 {
				return fmt.Errorf("%w (team %d)", ErrNegativePoints, teamID)
			}
		}
	}

	cost, err := Cost(sub)
	if err != nil {
		return err
	}
	if cost > budget {
		return fmt.Errorf("%w: %d points cost %d coins, only %d available", ErrOverBudget, sum(sub), cost, budget)
	}
	return nil
}

func sum(sub Submission) int64 {
	var total int64
	for _, p := range sub {
		total += p
	}
	return total
}

// Neutralize removes votes on the voter's own teams. It reports whether any
// such vote was non-zero; the input is not modified.
func Neutralize(sub Submission, memberOf map[int64]bool, policy Policy) (Submission, bool) {
	out := make(Submission, len(sub))
	cheated := false
	for teamID, p := range sub {
		if memberOf[teamID] && p != 0 {
			cheated = true
			switch policy {
			case PolicyFlip:
				if p > 0 {
					p = -p
				}
			default:
				p = 0
			}
		}
		out[teamID] = p
	}
	return out, cheated
}

// MaxPoints is the most points one team can get: floor(sqrt(budget)).
func MaxPoints(budget int64) int64 {
	if budget <= 0 {
		return 0
	}
	// floor(sqrt(math.MaxInt64))
	const limit = 3037000499
	r := int64(math.Sqrt(float64(budget)))
	if r > limit {
		r = limit
	}
	// Correct float rounding at large budgets.
	for r*r > budget {
		r--
	}
	for r < limit && (r+1)*(r+1) <= budget {
		r++
	}
	return r
}

// TeamTotal is the sum of all stored points for one team.
type TeamTotal struct {
	TeamID int64
	Name   string
	Points int64
}

// RankedTeam is a TeamTotal with its dense 1-based rank.
type RankedTeam struct {
	TeamTotal
	Rank int
}

// Rank sorts by points descending, then team id ascending, and assigns dense
// ranks: equal points share a rank, the next distinct total gets rank+1.
func Rank(totals []TeamTotal) []RankedTeam {
	sorted := make([]TeamTotal, len(totals))
	copy(sorted, totals)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Points != sorted[j].Points {
			return sorted[i].Points > sorted[j].Points
		}
		return sorted[i].TeamID < sorted[j].TeamID
	})

	ranked := make([]RankedTeam, len(sorted))
	rank := 0
	for i, t := range sorted {
		if i == 0 || t.Points != sorted[i-1].Points {
			rank++
		}
		ranked[i] = RankedTeam{TeamTotal: t, Rank: rank}
	}
	return ranked
}

// RevealOrder returns the ranking in display order for the revelation
// ceremony: last place first. Ranks and points are unchanged.
func RevealOrder(ranked []RankedTeam) []RankedTeam {
	out := make([]RankedTeam, len(ranked))
	for i, t := range ranked {
		out[len(ranked)-1-i] = t
	}
	return out
}

// ShuffleKey is a stable pseudo-random key for (voter, team).
func ShuffleKey(email string, teamID int64) uint64 {
	h := sha256.New()
	h.Write([]byte(email))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(teamID, 10)))
	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}

// Shuffle orders team ids by ShuffleKey for the voter. Every voter sees a
// fixed order that differs from other voters'.
func Shuffle(email string, teamIDs []int64) []int64 {
	type keyed struct {
		id  int64
		key uint64
	}
	ks := make([]keyed, len(teamIDs))
	for i, id := range teamIDs {
		ks[i] = keyed{id: id, key: ShuffleKey(email, id)}
	}
	sort.Slice(ks, func(i, j int) bool {
		if ks[i].key != ks[j].key {
			return ks[i].key < ks[j].key
		}
		return ks[i].id < ks[j].id
	})

	out := make([]int64, len(ks))
	for i, k := range ks {
		out[i] = k.id
	}
	return out
}
