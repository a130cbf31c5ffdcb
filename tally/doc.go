// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tally implements quadratic voting.

A voter spends a budget of coins across teams; n points for one team cost n²
coins. A submission replaces every vote the voter stored before.

# Validation

	sub, err := tally.ParseSubmission(map[string]string{"1": "7", "2": "7"})
	err = tally.Validate(sub, 100, tally.PolicyZero) // 98 coins, accepted

Every rejection wraps ErrValidation. Keys naming the same team twice, such
as "1" and "01", are rejected with ErrDuplicateTeam. The cost is computed without wrapping
around, so huge point values are rejected instead of becoming cheap.

# Self-votes

Points on a team the voter belongs to are neutralized before they are
stored and the voter is flagged as a cheater:

  - PolicyZero: the points become 0, negative input is rejected
  - PolicyFlip: the points are stored negated

# Results

Rankings sorts teams by total points with dense ranks (1, 1, 2).
RevealOrder reverses them for the ceremony, last place first. Shuffle gives
every voter a stable ballot order of their own.
*/
package tally
