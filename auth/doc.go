// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth resolves the identity of a request.

# Identity Header

The server runs behind an authenticating proxy (e.g. oauth2-proxy) that sets
the X-Email header:

	id := auth.Identity{AdminEmail: cfg.AdminEmail}
	user, err := id.UserFromRequest(r)

A missing header is ErrUnauthenticated, unless FallbackEmail is set. The
fallback exists for local development and must not be used in production.

# Administrator

The user is the administrator when the email matches AdminEmail exactly.
Only the administrator can change the phase and sees results during the
revelation.

# Display Names

DisplayName trims a configured suffix such as "@example.com" from emails in
team listings.
*/
package auth
