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
)

type PhaseHandler struct {
	pool *db.SessionPool
	cfg  cliparse.Config
}

func NewPhaseHandler(pool *db.SessionPool, cfg cliparse.Config) *PhaseHandler {
	return &PhaseHandler{pool: pool, cfg: cfg}
}

// Next handles POST /next
func (h *PhaseHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, phase.Advance)
}

// Prev handles POST /prev
func (h *PhaseHandler) Prev(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, phase.Retreat)
}

type phaseMove func(ctx context.Context, q db.Querier, user models.User) (phase.Phase, error)

func (h *PhaseHandler) move(w http.ResponseWriter, r *http.Request, move phaseMove) {
	user, ok := identify(w, r, h.cfg)
	if !ok {
		return
	}

	execute(w, r, h.pool, h.cfg, func(ctx context.Context, tx *db.Tx) (models.Outcome, error) {
		p, err := move(ctx, tx, user)
		if errors.Is(err, phase.ErrForbidden) {
			return models.Fail(http.StatusForbidden, "Only the administrator can change the phase."), nil
		}
		if err != nil {
			return models.Outcome{}, err
		}

		slog.Info("phase changed", "phase", p.String(), "admin", user.Email)

		return models.OK(models.PhaseResponse{Phase: p.String()}), nil
	})
}
