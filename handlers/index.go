// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/hack-o-matic/auth"
	"github.com/danielhkuo/hack-o-matic/cliparse"
	"github.com/danielhkuo/hack-o-matic/db"
	"github.com/danielhkuo/hack-o-matic/models"
	"github.com/danielhkuo/hack-o-matic/phase"
	"github.com/danielhkuo/hack-o-matic/tally"
)

type IndexHandler struct {
	pool *db.SessionPool
	cfg  cliparse.Config
	now  func() time.Time
}

func NewIndexHandler(pool *db.SessionPool, cfg cliparse.Config) *IndexHandler {
	return &IndexHandler{pool: pool, cfg: cfg, now: time.Now}
}

// GetIndex handles GET /
func (h *IndexHandler) GetIndex(w http.ResponseWriter, r *http.Request) {
	user, ok := identify(w, r, h.cfg)
	if !ok {
		return
	}

	execute(w, r, h.pool, h.cfg, func(ctx context.Context, tx *db.Tx) (models.Outcome, error) {
		p, err := phase.Load(ctx, tx)
		if err != nil {
			return models.Outcome{}, err
		}

		teams, err := loadTeams(ctx, tx)
		if err != nil {
			return models.Outcome{}, err
		}

		resp := models.IndexResponse{
			User:    auth.DisplayName(user.Email, h.cfg.EmailSuffix),
			IsAdmin: user.IsAdmin,
			Phase:   p.String(),
			Teams:   h.teamViews(teams, user),
		}

		if p == phase.Evaluation {
			if resp.Ballot, err = h.ballot(ctx, tx, teams, user); err != nil {
				return models.Outcome{}, err
			}
		}

		if phase.CanSeeOutcome(p, user.IsAdmin) {
			if resp.Results, err = h.results(ctx, tx, p, user); err != nil {
				return models.Outcome{}, err
			}
		}

		return models.OK(resp), nil
	})
}

func (h *IndexHandler) teamViews(teams []models.Team, user models.User) []models.TeamView {
	now := h.now()
	views := make([]models.TeamView, 0, len(teams))
	for _, t := range teams {
		members := make([]string, len(t.Members))
		for i, m := range t.Members {
			members[i] = auth.DisplayName(m, h.cfg.EmailSuffix)
		}
		views = append(views, models.TeamView{
			ID:          t.ID,
			Name:        t.Name,
			Creator:     auth.DisplayName(t.CreatorEmail, h.cfg.EmailSuffix),
			Description: t.Description,
			CreatedAt:   t.CreatedAt,
			CreatedAgo:  humanize.RelTime(t.CreatedAt, now, "ago", "from now"),
			Members:     members,
			IsMember:    contains(t.Members, user.Email),
		})
	}
	return views
}

// ballot lists every team in the voter's own order with their current points.
func (h *IndexHandler) ballot(ctx context.Context, tx *db.Tx, teams []models.Team, user models.User) (*models.Ballot, error) {
	votes, err := tally.VotesBy(ctx, tx, user.Email)
	if err != nil {
		return nil, err
	}
	spent, err := tally.Cost(votes)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]models.Team, len(teams))
	ids := make([]int64, 0, len(teams))
	for _, t := range teams {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	entries := make([]models.BallotEntry, 0, len(ids))
	for _, id := range tally.Shuffle(user.Email, ids) {
		t := byID[id]
		entries = append(entries, models.BallotEntry{
			TeamID:   id,
			Name:     t.Name,
			Points:   votes[id],
			IsMember: contains(t.Members, user.Email),
		})
	}

	return &models.Ballot{
		Coins:      h.cfg.CoinsToSpend,
		CoinsSpent: spent,
		MaxPoints:  tally.MaxPoints(h.cfg.CoinsToSpend),
		Entries:    entries,
	}, nil
}

func (h *IndexHandler) results(ctx context.Context, tx *db.Tx, p phase.Phase, user models.User) (*models.Results, error) {
	ranked, err := tally.Rankings(ctx, tx)
	if err != nil {
		return nil, err
	}
	// The ceremony reveals the last place first.
	if p == phase.Revelation {
		ranked = tally.RevealOrder(ranked)
	}

	res := &models.Results{Rankings: make([]models.TeamResult, 0, len(ranked))}
	for _, t := range ranked {
		res.Rankings = append(res.Rankings, models.TeamResult{
			Rank:   t.Rank,
			TeamID: t.TeamID,
			Name:   t.Name,
			Points: t.Points,
		})
	}

	if user.IsAdmin {
		if res.Cheaters, err = tally.Cheaters(ctx, tx); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// loadTeams returns all teams ordered by name, members in join order.
func loadTeams(ctx context.Context, tx *db.Tx) ([]models.Team, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, creator_email, description, created_at
		FROM teams
		ORDER BY lower(name), id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	var teams []models.Team
	index := make(map[int64]int)
	for rows.Next() {
		var t models.Team
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatorEmail, &t.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		// Unparsable timestamps show as the zero time.
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		index[t.ID] = len(teams)
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	mrows, err := tx.QueryContext(ctx, `
		SELECT team_id, member_email FROM team_memberships ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer mrows.Close()

	for mrows.Next() {
		var teamID int64
		var email string
		if err := mrows.Scan(&teamID, &email); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if i, ok := index[teamID]; ok {
			teams[i].Members = append(teams[i].Members, email)
		}
	}
	return teams, mrows.Err()
}
