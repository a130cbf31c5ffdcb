// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/hack-o-matic/cliparse"
	"github.com/danielhkuo/hack-o-matic/db"
	"github.com/danielhkuo/hack-o-matic/models"
	"github.com/danielhkuo/hack-o-matic/phase"
	"github.com/danielhkuo/hack-o-matic/tally"
)

type VotingHandler struct {
	pool *db.SessionPool
	cfg  cliparse.Config
}

func NewVotingHandler(pool *db.SessionPool, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{pool: pool, cfg: cfg}
}

// SubmitVote handles POST /vote
func (h *VotingHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	user, ok := identify(w, r, h.cfg)
	if !ok {
		return
	}

	raw, err := decodeVote(w, r)
	if err != nil {
		writeOutcome(w, r, models.Fail(http.StatusBadRequest, "Invalid request body."))
		return
	}

	sub, err := tally.ParseSubmission(raw)
	if err != nil {
		writeOutcome(w, r, models.Fail(http.StatusBadRequest, voteErrorMessage(err)))
		return
	}

	execute(w, r, h.pool, h.cfg, func(ctx context.Context, tx *db.Tx) (models.Outcome, error) {
		p, err := phase.Load(ctx, tx)
		if err != nil {
			return models.Outcome{}, err
		}
		if p != phase.Evaluation {
			return models.Fail(http.StatusConflict, "Voting is only possible during evaluation."), nil
		}

		receipt, err := tally.Submit(ctx, tx, user.Email, sub, h.cfg.CoinsToSpend, h.cfg.SelfVotePolicy)
		if errors.Is(err, tally.ErrValidation) {
			return models.Fail(http.StatusBadRequest, voteErrorMessage(err)), nil
		}
		if err != nil {
			return models.Outcome{}, err
		}

		slog.Info("votes saved",
			"voter", user.Email,
			"teams", len(receipt.Stored),
			"coins_spent", receipt.CoinsSpent,
			"flagged", receipt.Flagged,
		)

		return models.OK(models.SubmitVoteResponse{
			Message:    "Votes saved.",
			CoinsSpent: receipt.CoinsSpent,
			CoinsLeft:  h.cfg.CoinsToSpend - receipt.CoinsSpent,
		}), nil
	})
}

func voteErrorMessage(err error) string {
	switch {
	case errors.Is(err, tally.ErrOverBudget), errors.Is(err, tally.ErrCoinOverflow):
		return "You spent more coins than you have."
	case errors.Is(err, tally.ErrNegativePoints):
		return "Points cannot be negative."
	case errors.Is(err, tally.ErrInvalidPoints):
		return "Points must be whole numbers."
	case errors.Is(err, tally.ErrInvalidTeam):
		return "Invalid team id."
	case errors.Is(err, tally.ErrDuplicateTeam):
		return "Each team can only be voted for once."
	case errors.Is(err, tally.ErrUnknownTeam):
		return "You voted for a team that does not exist."
	default:
		return "Invalid vote."
	}
}
