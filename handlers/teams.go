// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/danielhkuo/hack-o-matic/cliparse"
	"github.com/danielhkuo/hack-o-matic/db"
	"github.com/danielhkuo/hack-o-matic/models"
	"github.com/danielhkuo/hack-o-matic/phase"
)

const (
	maxTeamNameBytes    = 65
	maxDescriptionBytes = 120

	// Allowed besides letters and digits.
	allowedPunctuation = " -_.,:;!?'&()+#@/"
)

type TeamHandler struct {
	pool *db.SessionPool
	cfg  cliparse.Config
}

func NewTeamHandler(pool *db.SessionPool, cfg cliparse.Config) *TeamHandler {
	return &TeamHandler{pool: pool, cfg: cfg}
}

// CreateTeam handles POST /create-team
func (h *TeamHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	user, ok := identify(w, r, h.cfg)
	if !ok {
		return
	}

	req, err := decodeCreateTeam(w, r)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid request body.")
		return
	}

	name := strings.TrimSpace(req.Name)
	description := strings.TrimSpace(req.Description)
	if msg := validateText("Team name", name, 1, maxTeamNameBytes); msg != "" {
		h.fail(w, r, http.StatusBadRequest, msg)
		return
	}
	if msg := validateText("Description", description, 0, maxDescriptionBytes); msg != "" {
		h.fail(w, r, http.StatusBadRequest, msg)
		return
	}

	execute(w, r, h.pool, h.cfg, func(ctx context.Context, tx *db.Tx) (models.Outcome, error) {
		if outcome, ok, err := requireRegistration(ctx, tx); err != nil || !ok {
			return outcome, err
		}

		var owned int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM teams WHERE creator_email = ?
		`, user.Email).Scan(&owned)
		if err != nil {
			return models.Outcome{}, fmt.Errorf("failed to count teams: %w", err)
		}
		if owned >= h.cfg.MaxTeamsPerCreator {
			return models.Fail(http.StatusConflict,
				fmt.Sprintf("You can create at most %d team(s).", h.cfg.MaxTeamsPerCreator)), nil
		}

		var taken int
		err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM teams WHERE name = ?`, name).Scan(&taken)
		if err != nil {
			return models.Outcome{}, fmt.Errorf("failed to check team name: %w", err)
		}
		if taken > 0 {
			return models.Fail(http.StatusConflict, "A team with that name already exists."), nil
		}

		var teamID int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO teams (name, creator_email, description, created_at)
			VALUES (?, ?, ?, ?)
			RETURNING id
		`, name, user.Email, description, time.Now().UTC().Format(time.RFC3339)).Scan(&teamID)
		if err != nil {
			return models.Outcome{}, fmt.Errorf("failed to insert team: %w", err)
		}

		if err := addMember(ctx, tx, teamID, user.Email); err != nil {
			return models.Outcome{}, err
		}

		slog.Info("team created", "team_id", teamID, "name", name, "creator", user.Email)

		return models.Created(models.CreateTeamResponse{TeamID: teamID}), nil
	})
}

// JoinTeam handles POST /join-team
func (h *TeamHandler) JoinTeam(w http.ResponseWriter, r *http.Request) {
	h.teamAction(w, r, func(ctx context.Context, tx *db.Tx, user models.User, teamID int64) (models.Outcome, error) {
		members, err := teamMembers(ctx, tx, teamID)
		if err != nil {
			return models.Outcome{}, err
		}
		if members == nil {
			return models.Fail(http.StatusConflict, "That team does not exist."), nil
		}
		if contains(members, user.Email) {
			return models.Fail(http.StatusConflict, "You are already a member of that team."), nil
		}

		if err := addMember(ctx, tx, teamID, user.Email); err != nil {
			return models.Outcome{}, err
		}

		slog.Info("team joined", "team_id", teamID, "member", user.Email)

		return models.OK(models.MessageResponse{Message: "Joined the team."}), nil
	})
}

// LeaveTeam handles POST /leave-team
func (h *TeamHandler) LeaveTeam(w http.ResponseWriter, r *http.Request) {
	h.teamAction(w, r, func(ctx context.Context, tx *db.Tx, user models.User, teamID int64) (models.Outcome, error) {
		members, err := teamMembers(ctx, tx, teamID)
		if err != nil {
			return models.Outcome{}, err
		}
		if !contains(members, user.Email) {
			return models.Fail(http.StatusConflict, "You are not a member of that team."), nil
		}
		if len(members) == 1 {
			return models.Fail(http.StatusConflict,
				"You are the last member of that team, delete it instead."), nil
		}

		_, err = tx.ExecContext(ctx, `
			DELETE FROM team_memberships WHERE team_id = ? AND member_email = ?
		`, teamID, user.Email)
		if err != nil {
			return models.Outcome{}, fmt.Errorf("failed to remove member: %w", err)
		}

		slog.Info("team left", "team_id", teamID, "member", user.Email)

		return models.OK(models.MessageResponse{Message: "Left the team."}), nil
	})
}

// DeleteTeam handles POST /delete-team
func (h *TeamHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	h.teamAction(w, r, func(ctx context.Context, tx *db.Tx, user models.User, teamID int64) (models.Outcome, error) {
		members, err := teamMembers(ctx, tx, teamID)
		if err != nil {
			return models.Outcome{}, err
		}
		if !contains(members, user.Email) {
			return models.Fail(http.StatusConflict, "You are not a member of that team."), nil
		}
		if len(members) > 1 {
			return models.Fail(http.StatusConflict,
				"Only a team without other members can be deleted."), nil
		}

		for _, stmt := range []string{
			`DELETE FROM team_memberships WHERE team_id = ?`,
			`DELETE FROM votes WHERE team_id = ?`,
			`DELETE FROM teams WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, teamID); err != nil {
				return models.Outcome{}, fmt.Errorf("failed to delete team: %w", err)
			}
		}

		slog.Info("team deleted", "team_id", teamID, "member", user.Email)

		return models.OK(models.MessageResponse{Message: "Deleted the team."}), nil
	})
}

type teamActionFunc func(ctx context.Context, tx *db.Tx, user models.User, teamID int64) (models.Outcome, error)

// teamAction decodes {team_id} and runs fn during registration.
func (h *TeamHandler) teamAction(w http.ResponseWriter, r *http.Request, fn teamActionFunc) {
	user, ok := identify(w, r, h.cfg)
	if !ok {
		return
	}

	req, err := decodeTeamAction(w, r)
	if err != nil || req.TeamID <= 0 {
		h.fail(w, r, http.StatusBadRequest, "team_id is required.")
		return
	}

	execute(w, r, h.pool, h.cfg, func(ctx context.Context, tx *db.Tx) (models.Outcome, error) {
		if outcome, ok, err := requireRegistration(ctx, tx); err != nil || !ok {
			return outcome, err
		}
		return fn(ctx, tx, user, req.TeamID)
	})
}

func (h *TeamHandler) fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeOutcome(w, r, models.Fail(status, msg))
}

// requireRegistration reports ok when teams may change. Otherwise the
// returned outcome is the conflict to answer with.
func requireRegistration(ctx context.Context, tx *db.Tx) (models.Outcome, bool, error) {
	p, err := phase.Load(ctx, tx)
	if err != nil {
		return models.Outcome{}, false, err
	}
	if p != phase.Registration {
		return models.Fail(http.StatusConflict,
			"Teams can only be changed during registration."), false, nil
	}
	return models.Outcome{}, true, nil
}

// teamMembers lists members in join order. A nil slice means the team does
// not exist; every existing team has at least one member.
func teamMembers(ctx context.Context, tx *db.Tx, teamID int64) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT member_email FROM team_memberships
		WHERE team_id = ?
		ORDER BY id
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, email)
	}
	return members, rows.Err()
}

func addMember(ctx context.Context, tx *db.Tx, teamID int64, email string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO team_memberships (team_id, member_email) VALUES (?, ?)
	`, teamID, email)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// validateText checks length in bytes and the character set. It returns a
// message for the user, or "" when text is fine.
func validateText(field, text string, minBytes, maxBytes int) string {
	if !utf8.ValidString(text) {
		return field + " is not valid UTF-8."
	}
	if len(text) < minBytes {
		return field + " is required."
	}
	if len(text) > maxBytes {
		return fmt.Sprintf("%s can be at most %d bytes.", field, maxBytes)
	}
	for _, c := range text {
		if unicode.IsLetter(c) || unicode.IsDigit(c) || strings.ContainsRune(allowedPunctuation, c) {
			continue
		}
		return fmt.Sprintf("%s contains a character that is not allowed: %q.", field, c)
	}
	return ""
}
