// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package httpapi

import (
	"net/http"
	"time"

	"github.com/authentic-auth/authentic/internal/auth"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "jwt-token"

// setSessionCookie stores the session token in an HttpOnly cookie.
func (a *api) setSessionCookie(w http.ResponseWriter, session auth.SessionToken) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Value,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(auth.SessionTokenExpiry / time.Second),
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearSessionCookie expires the session cookie.
func (a *api) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// sessionToken returns the session token sent by the client, or "".
func sessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
