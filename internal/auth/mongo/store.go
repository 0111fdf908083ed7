// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

// Package mongo implements auth.PrincipalStore on MongoDB.
//
// Principals live in one collection, one document each, with a unique
// index on email and unique partial indexes on the pending challenge
// tokens. Challenge consumption uses FindOneAndUpdate, which is
// atomic per document.
package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/authentic-auth/authentic/internal/auth"
)

// CollectionName is the collection holding principal documents.
const CollectionName = "users"

const (
	emailIndexName             = "email_unique"
	verificationTokenIndexName = "verification_token_unique"
	resetTokenIndexName        = "reset_token_unique"
)

// indexModels returns the indexes NewStore ensures. Challenge indexes only
// cover documents that hold the sub-document.
func indexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(emailIndexName),
		},
		{
			Keys: bson.D{{Key: "verification.token", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(verificationTokenIndexName).
				SetPartialFilterExpression(bson.D{{Key: "verification.token", Value: bson.D{{Key: "$exists", Value: true}}}}),
		},
		{
			Keys: bson.D{{Key: "reset.token", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(resetTokenIndexName).
				SetPartialFilterExpression(bson.D{{Key: "reset.token", Value: bson.D{{Key: "$exists", Value: true}}}}),
		},
	}
}

// isDuplicateOn reports whether err is a duplicate key error raised by the
// named index.
func isDuplicateOn(err error, index string) bool {
	return mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), "index: "+index+" ")
}

type challengeDoc struct {
	Token     string    `bson:"token"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

type principalDoc struct {
	ID           string        `bson:"_id"`
	Email        string        `bson:"email"`
	Password     string        `bson:"password"`
	Name         string        `bson:"name"`
	IsVerified   bool          `bson:"isVerified"`
	LastLogin    *time.Time    `bson:"lastLogin,omitempty"`
	Verification *challengeDoc `bson:"verification,omitempty"`
	Reset        *challengeDoc `bson:"reset,omitempty"`
	CreatedAt    time.Time     `bson:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt"`
}

// Store implements auth.PrincipalStore on a MongoDB collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Compile-time interface check.
var _ auth.PrincipalStore = (*Store)(nil)

// Connect opens a client to uri and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").With("backend", "mongo").Wrap(err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx) //nolint:errcheck // ping error takes precedence
		return nil, oops.Code("STORE_CONNECT_FAILED").With("backend", "mongo").With("operation", "ping").Wrap(err)
	}
	return client, nil
}

// NewStore creates a Store on database and ensures its indexes.
func NewStore(ctx context.Context, client *mongo.Client, database string) (*Store, error) {
	if client == nil {
		return nil, oops.Errorf("mongo client is required")
	}
	if database == "" {
		return nil, oops.Errorf("mongo database name is required")
	}

	coll := client.Database(database).Collection(CollectionName)
	if _, err := coll.Indexes().CreateMany(ctx, indexModels()); err != nil {
		return nil, oops.Code("STORE_INDEX_FAILED").
			With("collection", CollectionName).
			Wrap(err)
	}
	return &Store{client: client, coll: coll}, nil
}

// Create inserts a principal document.
func (s *Store) Create(ctx context.Context, p *auth.Principal) error {
	if _, err := s.coll.InsertOne(ctx, toDoc(p)); err != nil {
		if isDuplicateOn(err, verificationTokenIndexName) {
			return oops.Code("PRINCIPAL_DUPLICATE_CHALLENGE").With("email", p.Email).Wrap(auth.ErrDuplicateChallenge)
		}
		if mongo.IsDuplicateKeyError(err) {
			return oops.Code("PRINCIPAL_DUPLICATE_EMAIL").With("email", p.Email).Wrap(auth.ErrDuplicateEmail)
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
	p, err := s.findOne(ctx, bson.D{{Key: "_id", Value: id.String()}})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PRINCIPAL_GET_BY_ID_FAILED").With("id", id.String()).Wrap(err)
	}
	return p, nil
}

// GetByEmail retrieves a principal by exact email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*auth.Principal, error) {
	p, err := s.findOne(ctx, bson.D{{Key: "email", Value: email}})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PRINCIPAL_GET_BY_EMAIL_FAILED").With("email", email).Wrap(err)
	}
	return p, nil
}

// RecordLogin sets lastLogin.
func (s *Store) RecordLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	return s.updateByID(ctx, id, "PRINCIPAL_RECORD_LOGIN_FAILED", bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "lastLogin", Value: at},
			{Key: "updatedAt", Value: at},
		}},
	})
}

// SetResetChallenge replaces the reset sub-document.
func (s *Store) SetResetChallenge(ctx context.Context, id ulid.ULID, reset auth.Challenge, at time.Time) error {
	return s.updateByID(ctx, id, "PRINCIPAL_SET_RESET_FAILED", bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "reset", Value: challengeDoc{Token: reset.Token, ExpiresAt: reset.ExpiresAt}},
			{Key: "updatedAt", Value: at},
		}},
	})
}

// ConsumeVerification verifies the principal holding an unexpired code.
func (s *Store) ConsumeVerification(ctx context.Context, code string, now time.Time) (*auth.Principal, error) {
	filter := bson.D{
		{Key: "verification.token", Value: code},
		{Key: "verification.expiresAt", Value: bson.D{{Key: "$gt", Value: now}}},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "isVerified", Value: true},
			{Key: "updatedAt", Value: now},
		}},
		{Key: "$unset", Value: bson.D{{Key: "verification", Value: ""}}},
	}

	p, err := s.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, oops.Code("VERIFICATION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("VERIFICATION_CONSUME_FAILED").Wrap(err)
	}
	return p, nil
}

// ConsumeReset replaces the password of the principal holding an unexpired
// reset digest.
func (s *Store) ConsumeReset(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*auth.Principal, error) {
	filter := bson.D{
		{Key: "reset.token", Value: tokenHash},
		{Key: "reset.expiresAt", Value: bson.D{{Key: "$gt", Value: now}}},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "password", Value: passwordHash},
			{Key: "updatedAt", Value: now},
		}},
		{Key: "$unset", Value: bson.D{{Key: "reset", Value: ""}}},
	}

	p, err := s.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_CONSUME_FAILED").Wrap(err)
	}
	return p, nil
}

// Ping checks connectivity to the primary.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return oops.Code("STORE_UNAVAILABLE").With("backend", "mongo").Wrap(err)
	}
	return nil
}

func (s *Store) findOne(ctx context.Context, filter bson.D) (*auth.Principal, error) {
	var doc principalDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}
	return fromDoc(&doc)
}

func (s *Store) findOneAndUpdate(ctx context.Context, filter, update bson.D) (*auth.Principal, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc principalDoc
	if err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}
	return fromDoc(&doc)
}

func (s *Store) updateByID(ctx context.Context, id ulid.ULID, code string, update bson.D) error {
	result, err := s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id.String()}}, update)
	if err != nil {
		return oops.Code(code).With("id", id.String()).Wrap(err)
	}
	if result.MatchedCount == 0 {
		return oops.Code("PRINCIPAL_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

func toDoc(p *auth.Principal) *principalDoc {
	doc := &principalDoc{
		ID:         p.ID.String(),
		Email:      p.Email,
		Password:   p.PasswordHash,
		Name:       p.Name,
		IsVerified: p.Verified,
		LastLogin:  p.LastLoginAt,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	if p.Verification != nil {
		doc.Verification = &challengeDoc{Token: p.Verification.Token, ExpiresAt: p.Verification.ExpiresAt}
	}
	if p.Reset != nil {
		doc.Reset = &challengeDoc{Token: p.Reset.Token, ExpiresAt: p.Reset.ExpiresAt}
	}
	return doc
}

func fromDoc(doc *principalDoc) (*auth.Principal, error) {
	id, err := ulid.Parse(doc.ID)
	if err != nil {
		return nil, oops.With("operation", "parse principal id").With("id", doc.ID).Wrap(err)
	}
	p := &auth.Principal{
		ID:           id,
		Email:        doc.Email,
		PasswordHash: doc.Password,
		Name:         doc.Name,
		Verified:     doc.IsVerified,
		LastLoginAt:  doc.LastLogin,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
	if doc.Verification != nil {
		p.Verification = &auth.Challenge{Token: doc.Verification.Token, ExpiresAt: doc.Verification.ExpiresAt}
	}
	if doc.Reset != nil {
		p.Reset = &auth.Challenge{Token: doc.Reset.Token, ExpiresAt: doc.Reset.ExpiresAt}
	}
	return p, nil
}
