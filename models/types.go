package models

import (
	"encoding/json"
	"net/http"
	"time"
)

// FailureThreshold separates committed outcomes from rolled back ones.
// Success codes and redirects are below it.
const FailureThreshold = http.StatusBadRequest

// Outcome is the result of one unit of work. Its status decides whether the
// transaction commits.
type Outcome struct {
	Status   int
	Message  string
	Data     any
	Location string
}

// Committable reports whether the transaction that produced the outcome
// should commit.
func (o Outcome) Committable() bool {
	return o.Status < FailureThreshold
}

func OK(data any) Outcome {
	return Outcome{Status: http.StatusOK, Data: data}
}

func Created(data any) Outcome {
	return Outcome{Status: http.StatusCreated, Data: data}
}

func Redirect(location string) Outcome {
	return Outcome{Status: http.StatusSeeOther, Location: location}
}

func Fail(status int, message string) Outcome {
	return Outcome{Status: status, Message: message}
}

// User is the identity of a request. Not persisted.
type User struct {
	Email   string
	IsAdmin bool
}

// Request types

type CreateTeamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type TeamActionRequest struct {
	TeamID int64 `json:"team_id"`
}

// team_id -> points. Values may be JSON numbers or strings.
type SubmitVoteRequest struct {
	Points map[string]json.RawMessage `json:"points"`
}

// Response types

type CreateTeamResponse struct {
	TeamID int64 `json:"team_id"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type SubmitVoteResponse struct {
	Message    string `json:"message"`
	CoinsSpent int64  `json:"coins_spent"`
	CoinsLeft  int64  `json:"coins_left"`
}

type PhaseResponse struct {
	Phase string `json:"phase"`
}

// Domain types

type Team struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	CreatorEmail string    `json:"creator_email"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
	Members      []string  `json:"members"`
}

// State view types

type TeamView struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Creator     string    `json:"creator"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedAgo  string    `json:"created_ago"`
	Members     []string  `json:"members"`
	IsMember    bool      `json:"is_member"`
}

type BallotEntry struct {
	TeamID   int64  `json:"team_id"`
	Name     string `json:"name"`
	Points   int64  `json:"points"`
	IsMember bool   `json:"is_member"`
}

type Ballot struct {
	Coins      int64         `json:"coins"`
	CoinsSpent int64         `json:"coins_spent"`
	MaxPoints  int64         `json:"max_points"`
	Entries    []BallotEntry `json:"entries"`
}

type TeamResult struct {
	Rank   int    `json:"rank"`
	TeamID int64  `json:"team_id"`
	Name   string `json:"name"`
	Points int64  `json:"points"`
}

type Results struct {
	Rankings []TeamResult `json:"rankings"`
	Cheaters []string     `json:"cheaters,omitempty"`
}

type IndexResponse struct {
	User    string     `json:"user"`
	IsAdmin bool       `json:"is_admin"`
	Phase   string     `json:"phase"`
	Teams   []TeamView `json:"teams"`
	Ballot  *Ballot    `json:"ballot,omitempty"`
	Results *Results   `json:"results,omitempty"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
