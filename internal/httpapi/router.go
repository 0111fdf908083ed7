// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

// Package httpapi exposes the credential lifecycle as an HTTP JSON API
// under /api/v1/auth.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/authentic-auth/authentic/internal/auth"
)

// Route layout.
const (
	APIPrefix = "/api/v1/auth"

	RouteSignup         = "/signup"
	RouteLogin          = "/login"
	RouteLogout         = "/logout"
	RouteVerifyEmail    = "/verify-email"
	RouteForgotPassword = "/forgot-password"
	RouteResetPassword  = "/reset-password/{token}"
	RouteCheckAuth      = "/check-auth"
)

// maxBodyBytes limits request bodies to 1 MiB.
const maxBodyBytes = 1 << 20

// AuthService is the credential lifecycle used by the handlers.
// *auth.Service satisfies it.
type AuthService interface {
	Signup(ctx context.Context, email, password, name string) (*auth.AuthResult, error)
	VerifyEmail(ctx context.Context, code string) (*auth.PrincipalView, error)
	Login(ctx context.Context, email, password string) (*auth.AuthResult, error)
	Logout(ctx context.Context) error
	ForgotPassword(ctx context.Context, email string) (bool, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
	CheckAuth(ctx context.Context, principalID ulid.ULID) (*auth.PrincipalView, error)
	Authenticate(token string) (ulid.ULID, error)
}

// RequestObserver records completed requests.
// *observability.Metrics satisfies it.
type RequestObserver interface {
	ObserveRequest(route string, status int, elapsed time.Duration)
}

// Options configures the API handler.
type Options struct {
	// AllowedOrigin is the single origin granted credentialed CORS access.
	AllowedOrigin string

	// SecureCookies sets the Secure attribute on the session cookie.
	SecureCookies bool

	// Observer receives per-route request metrics. Optional.
	Observer RequestObserver

	// Logger receives request and error logs. Defaults to slog.Default().
	Logger *slog.Logger
}

type api struct {
	svc      AuthService
	secure   bool
	observer RequestObserver
	logger   *slog.Logger
}

// NewHandler builds the API handler: the routed endpoints wrapped with
// request ids, panic recovery, CORS and OpenTelemetry instrumentation.
func NewHandler(svc AuthService, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &api{
		svc:      svc,
		secure:   opts.SecureCookies,
		observer: opts.Observer,
		logger:   logger,
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(a.handleNotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(a.handleMethodNotAllowed)
	router.Use(a.observeMiddleware)

	public := router.PathPrefix(APIPrefix).Subrouter()
	addRoute(public, http.MethodPost, RouteSignup, "signup", a.handleSignup)
	addRoute(public, http.MethodPost, RouteLogin, "login", a.handleLogin)
	addRoute(public, http.MethodPost, RouteLogout, "logout", a.handleLogout)
	addRoute(public, http.MethodPost, RouteVerifyEmail, "verify_email", a.handleVerifyEmail)
	addRoute(public, http.MethodPost, RouteForgotPassword, "forgot_password", a.handleForgotPassword)
	addRoute(public, http.MethodPost, RouteResetPassword, "reset_password", a.handleResetPassword)

	// Routes on the protected subrouter require a valid session cookie.
	protected := router.PathPrefix(APIPrefix).Subrouter()
	protected.Use(a.requireSession)
	addRoute(protected, http.MethodGet, RouteCheckAuth, "check_auth", a.handleCheckAuth)

	// Middleware outside the router also sees unmatched requests and
	// CORS preflights. The outermost runs first.
	var h http.Handler = router
	h = recoverMiddleware(logger, h)
	h = corsMiddleware(opts.AllowedOrigin, h)
	h = requestIDMiddleware(h)
	return otelhttp.NewHandler(h, "authentic.api")
}

// addRoute adds a named route to the provided router.
func addRoute(router *mux.Router, method, route, name string, handler http.HandlerFunc) {
	router.HandleFunc(route, handler).Methods(method).Name(name)
}
