// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

// Package postgres implements auth.PrincipalStore on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authentic-auth/authentic/internal/auth"
)

// poolIface is the subset of *pgxpool.Pool used by Store.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const principalColumns = `id, email, password_hash, name, is_verified, last_login_at,
		verification_token, verification_expires_at, reset_token_hash, reset_expires_at,
		created_at, updated_at`

// verificationTokenIndex is the unique index keeping pending verification
// codes distinct.
const verificationTokenIndex = "idx_principals_verification_token"

// Store implements auth.PrincipalStore using the principals table.
type Store struct {
	pool poolIface
}

// Compile-time interface check.
var _ auth.PrincipalStore = (*Store)(nil)

// NewStore creates a Store on pool. The schema must already be migrated.
func NewStore(pool poolIface) *Store {
	return &Store{pool: pool}
}

// Create inserts a principal.
func (s *Store) Create(ctx context.Context, p *auth.Principal) error {
	verToken, verExpires := challengeColumns(p.Verification)
	resetHash, resetExpires := challengeColumns(p.Reset)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO principals (
			id, email, password_hash, name, is_verified, last_login_at,
			verification_token, verification_expires_at, reset_token_hash, reset_expires_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		p.ID.String(),
		p.Email,
		p.PasswordHash,
		p.Name,
		p.Verified,
		p.LastLoginAt,
		verToken,
		verExpires,
		resetHash,
		resetExpires,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			if pgErr.ConstraintName == verificationTokenIndex {
				return oops.Code("PRINCIPAL_DUPLICATE_CHALLENGE").
					With("email", p.Email).
					Wrap(auth.ErrDuplicateChallenge)
			}
			return oops.Code("PRINCIPAL_DUPLICATE_EMAIL").
				With("email", p.Email).
				Wrap(auth.ErrDuplicateEmail)
		}
		return oops.Code("PRINCIPAL_CREATE_FAILED").
			With("operation", "insert principal").
			With("email", p.Email).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a principal by ID.
func (s *Store) GetByID(ctx context.Context, id ulid.ULID) (*auth.Principal, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+principalColumns+` FROM principals WHERE id = $1`, id.String())

	p, err := scanPrincipal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PRINCIPAL_GET_BY_ID_FAILED").
			With("operation", "get principal by id").
			With("id", id.String()).
			Wrap(err)
	}
	return p, nil
}

// GetByEmail retrieves a principal by exact email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*auth.Principal, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+principalColumns+` FROM principals WHERE email = $1`, email)

	p, err := scanPrincipal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PRINCIPAL_GET_BY_EMAIL_FAILED").
			With("operation", "get principal by email").
			With("email", email).
			Wrap(err)
	}
	return p, nil
}

// RecordLogin sets last_login_at.
func (s *Store) RecordLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE principals SET last_login_at = $2, updated_at = $2
		WHERE id = $1
	`, id.String(), at)
	if err != nil {
		return oops.Code("PRINCIPAL_RECORD_LOGIN_FAILED").
			With("operation", "record login").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PRINCIPAL_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// SetResetChallenge replaces the reset digest and expiry.
func (s *Store) SetResetChallenge(ctx context.Context, id ulid.ULID, reset auth.Challenge, at time.Time) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE principals SET reset_token_hash = $2, reset_expires_at = $3, updated_at = $4
		WHERE id = $1
	`, id.String(), reset.Token, reset.ExpiresAt, at)
	if err != nil {
		return oops.Code("PRINCIPAL_SET_RESET_FAILED").
			With("operation", "set reset challenge").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PRINCIPAL_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// ConsumeVerification verifies one principal holding code. The outer
// predicate repeats the match so a concurrent consumer that loses the row
// lock sees no row.
func (s *Store) ConsumeVerification(ctx context.Context, code string, now time.Time) (*auth.Principal, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE principals SET
			is_verified = TRUE,
			verification_token = NULL,
			verification_expires_at = NULL,
			updated_at = $2
		WHERE id = (
			SELECT id FROM principals
			WHERE verification_token = $1 AND verification_expires_at > $2
			LIMIT 1
		)
		AND verification_token = $1 AND verification_expires_at > $2
		RETURNING `+principalColumns, code, now)

	p, err := scanPrincipal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("VERIFICATION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("VERIFICATION_CONSUME_FAILED").
			With("operation", "consume verification").
			Wrap(err)
	}
	return p, nil
}

// ConsumeReset replaces the password of the principal holding tokenHash
// and clears its reset challenge.
func (s *Store) ConsumeReset(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*auth.Principal, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE principals SET
			password_hash = $2,
			reset_token_hash = NULL,
			reset_expires_at = NULL,
			updated_at = $3
		WHERE reset_token_hash = $1 AND reset_expires_at > $3
		RETURNING `+principalColumns, tokenHash, passwordHash, now)

	p, err := scanPrincipal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_CONSUME_FAILED").
			With("operation", "consume reset").
			Wrap(err)
	}
	return p, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return oops.Code("STORE_UNAVAILABLE").With("backend", "postgres").Wrap(err)
	}
	return nil
}

func challengeColumns(c *auth.Challenge) (*string, *time.Time) {
	if c == nil {
		return nil, nil
	}
	token, expires := c.Token, c.ExpiresAt
	return &token, &expires
}

func challengeFromColumns(token *string, expires *time.Time) *auth.Challenge {
	if token == nil || expires == nil {
		return nil
	}
	return &auth.Challenge{Token: *token, ExpiresAt: *expires}
}

// scanPrincipal scans principalColumns into a Principal.
// Callers are responsible for handling pgx.ErrNoRows and for setting the
// error code, so errors returned here carry context but no code.
func scanPrincipal(row pgx.Row) (*auth.Principal, error) {
	var (
		idStr        string
		p            auth.Principal
		verToken     *string
		verExpires   *time.Time
		resetHash    *string
		resetExpires *time.Time
	)

	err := row.Scan(
		&idStr,
		&p.Email,
		&p.PasswordHash,
		&p.Name,
		&p.Verified,
		&p.LastLoginAt,
		&verToken,
		&verExpires,
		&resetHash,
		&resetExpires,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.With("operation", "scan principal").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse principal id").
			With("id", idStr).
			Wrap(err)
	}
	p.ID = id
	p.Verification = challengeFromColumns(verToken, verExpires)
	p.Reset = challengeFromColumns(resetHash, resetExpires)
	return &p, nil
}
