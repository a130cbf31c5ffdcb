// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielhkuo/hack-o-matic/auth"
	"github.com/danielhkuo/hack-o-matic/cliparse"
	"github.com/danielhkuo/hack-o-matic/db"
	"github.com/danielhkuo/hack-o-matic/middleware"
	"github.com/danielhkuo/hack-o-matic/models"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 64 << 10

var errBadBody = errors.New("invalid request body")

// identify resolves the user of the request or writes a 401.
func identify(w http.ResponseWriter, r *http.Request, cfg cliparse.Config) (models.User, bool) {
	id := auth.Identity{AdminEmail: cfg.AdminEmail, FallbackEmail: cfg.UnsafeDefaultEmail}
	user, err := id.UserFromRequest(r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Missing authentication header.")
		return models.User{}, false
	}
	return user, true
}

// execute runs fn as one unit of work on a pooled session and writes the
// outcome. The request body must be consumed before, fn may run more than
// once.
func execute(w http.ResponseWriter, r *http.Request, pool *db.SessionPool, cfg cliparse.Config, fn db.UnitOfWork) {
	ctx := r.Context()
	requestID := middleware.RequestID(ctx)

	// Form posts come from a browser: success sends it back to the index.
	if isForm(r) {
		inner := fn
		fn = func(ctx context.Context, tx *db.Tx) (models.Outcome, error) {
			outcome, err := inner(ctx, tx)
			if err == nil && outcome.Committable() {
				outcome = models.Redirect(cfg.Prefix + "/")
			}
			return outcome, err
		}
	}

	sess, err := pool.Acquire(ctx)
	if err != nil {
		if db.IsBusy(err) {
			writeOutcome(w, r, db.Unavailable())
			return
		}
		if db.IsCanceled(err) {
			canceled(w, requestID, err)
			return
		}
		slog.Error("failed to acquire database session", "error", err, "request_id", requestID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	outcome, err := sess.WithTransaction(ctx, fn)
	pool.Release(sess, err)
	if db.IsCanceled(err) {
		canceled(w, requestID, err)
		return
	}
	if err != nil {
		slog.Error("request failed", "error", err, "request_id", requestID, "path", r.URL.Path)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	writeOutcome(w, r, outcome)
}

// canceled answers a request whose client is most likely gone.
func canceled(w http.ResponseWriter, requestID string, err error) {
	slog.Warn("request canceled", "error", err, "request_id", requestID)
	middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Request canceled.")
}

func writeOutcome(w http.ResponseWriter, r *http.Request, outcome models.Outcome) {
	switch {
	case outcome.Location != "":
		http.Redirect(w, r, outcome.Location, outcome.Status)
	case !outcome.Committable():
		middleware.ErrorResponse(w, outcome.Status, outcome.Message)
	case outcome.Data != nil:
		middleware.JSONResponse(w, outcome.Status, outcome.Data)
	default:
		middleware.JSONResponse(w, outcome.Status, models.MessageResponse{Message: outcome.Message})
	}
}

func isForm(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/x-www-form-urlencoded"
}

// parseForm reads a url-encoded body.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

func parseJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := middleware.ParseJSONBody(r, v); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

func decodeCreateTeam(w http.ResponseWriter, r *http.Request) (models.CreateTeamRequest, error) {
	var req models.CreateTeamRequest
	if isForm(r) {
		if err := parseForm(w, r); err != nil {
			return req, err
		}
		req.Name = r.PostForm.Get("name")
		req.Description = r.PostForm.Get("description")
		return req, nil
	}
	err := parseJSON(w, r, &req)
	return req, err
}

func decodeTeamAction(w http.ResponseWriter, r *http.Request) (models.TeamActionRequest, error) {
	var req models.TeamActionRequest
	if isForm(r) {
		if err := parseForm(w, r); err != nil {
			return req, err
		}
		id, err := strconv.ParseInt(strings.TrimSpace(r.PostForm.Get("team_id")), 10, 64)
		if err != nil {
			return req, fmt.Errorf("%w: team_id", errBadBody)
		}
		req.TeamID = id
		return req, nil
	}
	err := parseJSON(w, r, &req)
	return req, err
}

// decodeVote returns the raw points per team id. In a form every field is
// "<team_id>=<points>".
func decodeVote(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	points := make(map[string]string)
	if isForm(r) {
		if err := parseForm(w, r); err != nil {
			return nil, err
		}
		for key, values := range r.PostForm {
			if len(values) != 1 {
				return nil, fmt.Errorf("%w: repeated field %q", errBadBody, key)
			}
			points[key] = values[0]
		}
		return points, nil
	}

	var req models.SubmitVoteRequest
	if err := parseJSON(w, r, &req); err != nil {
		return nil, err
	}
	for key, raw := range req.Points {
		value, err := rawPoints(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: points for team %s", errBadBody, key)
		}
		points[key] = value
	}
	return points, nil
}

// rawPoints accepts a JSON number or string and returns its text.
func rawPoints(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
