// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"

	"github.com/authentic-auth/authentic/internal/logging"
)

// RequestIDHeader carries the id assigned to each request.
const RequestIDHeader = "X-Request-Id"

type principalKey struct{}

// principalFrom returns the principal id placed in ctx by requireSession.
func principalFrom(ctx context.Context) (ulid.ULID, bool) {
	id, ok := ctx.Value(principalKey{}).(ulid.ULID)
	return id, ok
}

// requestIDMiddleware assigns every request a ULID, echoes it in the
// response headers and stores it in the request context for logging.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ulid.Make().String()
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// corsMiddleware grants credentialed access to a single origin and answers
// preflight requests.
func corsMiddleware(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Add("Vary", "Origin")
		if origin != "" && r.Header.Get("Origin") == origin {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverMiddleware recovers from any panics by logging the panic and
// returning a 500 response.
func recoverMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(r.Context(), "panic serving request",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()))
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				//nolint:errcheck // client may disconnect
				w.Write([]byte(`{"success":false,"message":"Server error"}` + "\n"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// observeMiddleware logs each routed request and reports it to the
// observer under the route name.
func (a *api) observeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unknown"
		if cur := mux.CurrentRoute(r); cur != nil && cur.GetName() != "" {
			route = cur.GetName()
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		if a.observer != nil {
			a.observer.ObserveRequest(route, rec.status, elapsed)
		}
		a.logger.InfoContext(r.Context(), "request handled",
			"route", route,
			"method", r.Method,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds())
	})
}

// requireSession rejects requests without a valid session cookie and
// stores the session's principal id in the request context.
func (a *api) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.svc.Authenticate(sessionToken(r))
		if err != nil {
			a.respondWithError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
