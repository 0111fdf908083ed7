// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// TokenIssuer issues and validates session tokens.
type TokenIssuer interface {
	Issue(principalID ulid.ULID) (SessionToken, error)
	Validate(token string) (ulid.ULID, error)
}

// ServiceConfig holds the non-collaborator settings of a Service.
type ServiceConfig struct {
	// ResetURLBase is the client origin that reset links are built on,
	// producing <ResetURLBase>/reset-password/<token>.
	ResetURLBase string

	// Logger receives flow events. Defaults to a discarding logger.
	Logger *slog.Logger

	// Now is the clock used for expiries. Defaults to time.Now.
	Now func() time.Time
}

// AuthResult is returned by flows that establish a session.
type AuthResult struct {
	Principal *PrincipalView
	Session   SessionToken
}

// Service implements the credential lifecycle: signup, email verification,
// login, logout, password reset and session checks.
type Service struct {
	store    PrincipalStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	notifier Notifier
	resetURL *url.URL
	logger   *slog.Logger
	now      func() time.Time
}

// dummyPasswordHash is verified against when a login email is unknown so
// that both failure paths cost one bcrypt comparison.
//
//nolint:gosec // G101: syntactically valid bcrypt digest that matches no password, not a credential.
const dummyPasswordHash = "$2a$10$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// NewService creates a Service.
// Returns an error if any collaborator is nil or the reset URL base is invalid.
func NewService(store PrincipalStore, hasher PasswordHasher, tokens TokenIssuer, notifier Notifier, cfg ServiceConfig) (*Service, error) {
	if store == nil {
		return nil, oops.Errorf("principal store is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token issuer is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}

	base, err := url.Parse(cfg.ResetURLBase)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, oops.With("reset_url_base", cfg.ResetURLBase).Errorf("reset URL base must be an absolute URL")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		resetURL: base,
		logger:   logger,
		now:      now,
	}, nil
}

// Signup registers a new principal, issues a session immediately (before
// verification) and requests the verification email. A failed send is
// reported as a server error; the principal stays registered.
func (s *Service) Signup(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return nil, validationError(MsgAllFieldsRequired)
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	_, err := s.store.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, conflictError(email)
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "get principal by email").
			Wrap(err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		if KindOf(err) == KindValidation {
			return nil, err
		}
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	principal, err := s.createPrincipal(ctx, email, name, passwordHash)
	if err != nil {
		return nil, err
	}

	session, err := s.tokens.Issue(principal.ID)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "issue session").
			With("principal_id", principal.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "principal signed up", "principal_id", principal.ID.String())

	if err := s.notify(ctx, principal.Email, TemplateVerification, map[string]string{
		ParamCode: principal.Verification.Token,
	}); err != nil {
		return nil, err
	}

	return &AuthResult{Principal: principal.View(), Session: session}, nil
}

// verificationCodeAttempts bounds how often Signup draws a fresh code when the
// store reports that another pending principal holds the same one.
const verificationCodeAttempts = 3

// createPrincipal stores a new unverified principal, regenerating the
// verification code on collision.
func (s *Service) createPrincipal(ctx context.Context, email, name, passwordHash string) (*Principal, error) {
	var lastErr error
	for attempt := 1; attempt <= verificationCodeAttempts; attempt++ {
		now := s.now()
		verification, err := NewVerificationChallenge(now)
		if err != nil {
			return nil, oops.Code("AUTH_SIGNUP_FAILED").
				With("operation", "issue verification challenge").
				Wrap(err)
		}

		principal, err := NewPrincipal(email, name, passwordHash, verification, now)
		if err != nil {
			return nil, err
		}

		err = s.store.Create(ctx, principal)
		switch {
		case err == nil:
			return principal, nil
		case errors.Is(err, ErrDuplicateEmail):
			return nil, conflictError(email)
		case errors.Is(err, ErrDuplicateChallenge):
			s.logger.DebugContext(ctx, "verification code collision, regenerating", "attempt", attempt)
			lastErr = err
		default:
			return nil, oops.Code("AUTH_SIGNUP_FAILED").
				With("operation", "create principal").
				Wrap(err)
		}
	}
	return nil, oops.Code("AUTH_SIGNUP_FAILED").
		With("operation", "create principal").
		With("attempts", verificationCodeAttempts).
		Wrap(lastErr)
}

// VerifyEmail consumes a verification code. Unknown and expired codes are
// indistinguishable to the caller.
func (s *Service) VerifyEmail(ctx context.Context, code string) (*PrincipalView, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, validationError("Verification code is required")
	}

	principal, err := s.store.ConsumeVerification(ctx, code, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeInvalidOrExpired).
				Public(MsgVerifyInvalid).
				Errorf("invalid or expired verification code")
		}
		return nil, oops.Code("AUTH_VERIFY_FAILED").
			With("operation", "consume verification").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "email verified", "principal_id", principal.ID.String())

	if err := s.notify(ctx, principal.Email, TemplateWelcome, map[string]string{
		ParamName: principal.Name,
	}); err != nil {
		return nil, err
	}

	return principal.View(), nil
}

// Login authenticates by email and password. Unknown emails and wrong
// passwords yield the same error. Unverified principals may log in.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)

	var principal *Principal
	targetHash := dummyPasswordHash
	if email != "" {
		p, err := s.store.GetByEmail(ctx, email)
		switch {
		case err == nil:
			principal = p
			targetHash = p.PasswordHash
		case !errors.Is(err, ErrNotFound):
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get principal by email").
				Wrap(err)
		}
	}

	// Always verify so unknown emails cost the same as wrong passwords.
	valid := s.hasher.Verify(password, targetHash)
	if principal == nil || !valid {
		return nil, oops.Code(CodeInvalidCredentials).
			Public(MsgInvalidCredentials).
			Errorf("invalid email or password")
	}

	session, err := s.tokens.Issue(principal.ID)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue session").
			With("principal_id", principal.ID.String()).
			Wrap(err)
	}

	now := s.now()
	if err := s.store.RecordLogin(ctx, principal.ID, now); err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "record login").
			With("principal_id", principal.ID.String()).
			Wrap(err)
	}
	principal.LastLoginAt = &now
	principal.UpdatedAt = now

	s.logger.InfoContext(ctx, "principal logged in", "principal_id", principal.ID.String())

	return &AuthResult{Principal: principal.View(), Session: session}, nil
}

// Logout is stateless: sessions are self-contained tokens, so ending one
// is the transport's job of clearing the token carrier.
func (s *Service) Logout(ctx context.Context) error {
	s.logger.DebugContext(ctx, "logout requested")
	return nil
}

// ForgotPassword issues a reset challenge and emails the reset link.
// Returns false with no error when no principal has the email.
// A failed send is a server error; the persisted challenge is kept.
func (s *Service) ForgotPassword(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, nil
	}

	principal, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, oops.Code("AUTH_FORGOT_FAILED").
			With("operation", "get principal by email").
			Wrap(err)
	}

	now := s.now()
	reset, err := NewResetChallenge(now)
	if err != nil {
		return false, oops.Code("AUTH_FORGOT_FAILED").
			With("operation", "issue reset challenge").
			Wrap(err)
	}

	stored := Challenge{Token: HashResetToken(reset.Token), ExpiresAt: reset.ExpiresAt}
	if err := s.store.SetResetChallenge(ctx, principal.ID, stored, now); err != nil {
		return false, oops.Code("AUTH_FORGOT_FAILED").
			With("operation", "set reset challenge").
			With("principal_id", principal.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset requested", "principal_id", principal.ID.String())

	if err := s.notify(ctx, principal.Email, TemplateResetRequest, map[string]string{
		ParamResetURL: s.resetLink(reset.Token),
	}); err != nil {
		return false, err
	}
	return true, nil
}

// ResetPassword consumes a reset token and replaces the password in one
// store update, then requests the confirmation email.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return validationError("Password is required")
	}
	if token == "" {
		return resetInvalidError()
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		if KindOf(err) == KindValidation {
			return err
		}
		return oops.Code("AUTH_RESET_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	principal, err := s.store.ConsumeReset(ctx, HashResetToken(token), passwordHash, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return resetInvalidError()
		}
		return oops.Code("AUTH_RESET_FAILED").
			With("operation", "consume reset").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset", "principal_id", principal.ID.String())

	return s.notify(ctx, principal.Email, TemplateResetSuccess, nil)
}

// CheckAuth returns the principal identified by an already validated
// session.
func (s *Service) CheckAuth(ctx context.Context, principalID ulid.ULID) (*PrincipalView, error) {
	principal, err := s.store.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeNotFound).
				With("principal_id", principalID.String()).
				Public(MsgUserNotFound).
				Errorf("principal not found")
		}
		return nil, oops.Code("AUTH_CHECK_FAILED").
			With("operation", "get principal by id").
			With("principal_id", principalID.String()).
			Wrap(err)
	}
	return principal.View(), nil
}

// Authenticate validates a session token and returns its principal id.
func (s *Service) Authenticate(token string) (ulid.ULID, error) {
	return s.tokens.Validate(token) //nolint:wrapcheck // already AUTH_UNAUTHORIZED
}

// Ready reports whether the backing store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx) //nolint:wrapcheck // store errors carry their own codes
}

func (s *Service) notify(ctx context.Context, to string, kind TemplateKind, params map[string]string) error {
	err := s.notifier.Notify(ctx, Notification{To: to, Kind: kind, Params: params})
	if err != nil {
		return oops.Code("AUTH_NOTIFY_FAILED").
			With("template", string(kind)).
			Wrap(err)
	}
	return nil
}

func (s *Service) resetLink(token string) string {
	return s.resetURL.JoinPath("reset-password", token).String()
}

func conflictError(email string) error {
	return oops.Code(CodeConflict).
		With("email", email).
		Public(MsgUserExists).
		Errorf("principal already exists")
}

func resetInvalidError() error {
	return oops.Code(CodeInvalidOrExpired).
		Public(MsgResetInvalid).
		Errorf("invalid or expired reset token")
}
