// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package phase implements the hackathon lifecycle: a linear sequence of
phases advanced and retreated one step at a time by the administrator.

# Phases

	registration -> presentation -> evaluation -> revelation -> celebration

Next on the last phase and Prev on the first one stay where they are.

# Storage

The current phase is a single row in the phase table, stored by name.
A missing row or an unknown name loads as Registration:

	p, err := phase.Load(ctx, tx)
	next, err := phase.Advance(ctx, tx, user) // ErrForbidden unless admin

# Results

CanSeeOutcome decides who sees totals: the administrator from revelation
on, everybody during celebration.
*/
package phase
