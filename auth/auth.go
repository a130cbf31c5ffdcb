// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/danielhkuo/hack-o-matic/models"
)

// EmailHeader carries the identity set by the authenticating proxy.
const EmailHeader = "X-Email"

var ErrUnauthenticated = errors.New("missing authentication header")

// Identity resolves who is making a request.
type Identity struct {
	AdminEmail string
	// FallbackEmail is used when the header is missing. Development only.
	FallbackEmail string
}

// UserFromRequest reads the email header and derives the admin flag.
func (id Identity) UserFromRequest(r *http.Request) (models.User, error) {
	email := strings.TrimSpace(r.Header.Get(EmailHeader))
	if email == "" {
		email = id.FallbackEmail
	}
	if email == "" {
		return models.User{}, ErrUnauthenticated
	}
	return id.User(email), nil
}

// User builds the identity for email. Admin is an exact match.
func (id Identity) User(email string) models.User {
	return models.User{
		Email:   email,
		IsAdmin: id.AdminEmail != "" && email == id.AdminEmail,
	}
}

// DisplayName strips the organization suffix, e.g. "@example.com", for
// listings.
func DisplayName(email, suffix string) string {
	if suffix == "" {
		return email
	}
	return strings.TrimSuffix(email, suffix)
}
