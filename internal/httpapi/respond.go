// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/samber/oops"

	"github.com/authentic-auth/authentic/internal/auth"
	"github.com/authentic-auth/authentic/pkg/errutil"
)

// msgInvalidBody is returned for bodies that are not a single JSON object.
const msgInvalidBody = "Invalid request body"

// Envelope is the body of every API response.
type Envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	User    *auth.PrincipalView `json:"user,omitempty"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind auth.Kind) int {
	switch kind {
	case auth.KindValidation, auth.KindConflict, auth.KindInvalidOrExpired, auth.KindNotFound:
		return http.StatusBadRequest
	case auth.KindInvalidCredentials, auth.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondWithJSON writes v as the JSON response body with the given status.
func (a *api) respondWithJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.WarnContext(r.Context(), "write response failed", "error", err)
	}
}

// respondWithError writes the failure envelope for err. Server errors are
// logged with their code and context; clients only see "Server error".
func (a *api) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	kind := auth.KindOf(err)
	if kind == auth.KindServer {
		errutil.LogErrorContext(r.Context(), a.logger, "request failed", err)
	} else {
		a.logger.DebugContext(r.Context(), "request rejected", "kind", kind.String())
	}
	a.respondWithJSON(w, r, statusFor(kind), Envelope{
		Success: false,
		Message: auth.PublicMessage(err),
	})
}

// decodeBody reads a single JSON object from the request body into v.
// The body is limited to maxBodyBytes.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		reason := "malformed"
		if errors.As(err, &tooLarge) {
			reason = "too large"
		}
		return oops.Code(auth.CodeValidation).
			With("reason", reason).
			Public(msgInvalidBody).
			Errorf("decode request body: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return oops.Code(auth.CodeValidation).
			With("reason", "trailing data").
			Public(msgInvalidBody).
			Errorf("request body has trailing data")
	}
	return nil
}
