// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/authentic-auth/authentic/internal/auth"
	"github.com/authentic-auth/authentic/internal/auth/postgres"
)

var _ = Describe("Store", func() {
	var (
		ctx context.Context
		s   *postgres.Store
		now time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		s = postgres.NewStore(testPool)
		now = time.Now().UTC().Truncate(time.Microsecond)
		_, err := testPool.Exec(ctx, `DELETE FROM principals`)
		Expect(err).NotTo(HaveOccurred())
	})

	newPrincipal := func(email, code string) *auth.Principal {
		p, err := auth.NewPrincipal(email, "Ann", "$2a$10$hash",
			&auth.Challenge{Token: code, ExpiresAt: now.Add(24 * time.Hour)}, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Create(ctx, p)).To(Succeed())
		return p
	}

	It("round-trips a principal", func() {
		p := newPrincipal("a@x.com", "111111")

		got, err := s.GetByEmail(ctx, "a@x.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(p.ID))
		Expect(got.Verification).NotTo(BeNil())
		Expect(got.Verification.Token).To(Equal("111111"))
		Expect(got.Verified).To(BeFalse())
	})

	It("rejects a duplicate email", func() {
		newPrincipal("a@x.com", "111111")
		dup, err := auth.NewPrincipal("a@x.com", "Bob", "$2a$10$hash",
			&auth.Challenge{Token: "222222", ExpiresAt: now.Add(time.Hour)}, now)
		Expect(err).NotTo(HaveOccurred())

		err = s.Create(ctx, dup)
		Expect(err).To(MatchError(auth.ErrDuplicateEmail))
	})

	It("consumes a verification code once", func() {
		p := newPrincipal("a@x.com", "111111")

		got, err := s.ConsumeVerification(ctx, "111111", now)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(p.ID))
		Expect(got.Verified).To(BeTrue())

		_, err = s.ConsumeVerification(ctx, "111111", now)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("rejects a second pending principal with the same verification code", func() {
		newPrincipal("a@x.com", "111111")
		clash, err := auth.NewPrincipal("b@x.com", "Bob", "$2a$10$hash",
			&auth.Challenge{Token: "111111", ExpiresAt: now.Add(time.Hour)}, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Create(ctx, clash)).To(MatchError(auth.ErrDuplicateChallenge))

		other, err := auth.NewPrincipal("c@x.com", "Cat", "$2a$10$hash",
			&auth.Challenge{Token: "222222", ExpiresAt: now.Add(time.Hour)}, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Create(ctx, other)).To(Succeed())
	})

	It("stamps a reset challenge with the caller's time", func() {
		p := newPrincipal("a@x.com", "111111")
		at := now.Add(10 * time.Minute)
		Expect(s.SetResetChallenge(ctx, p.ID, auth.Challenge{Token: auth.HashResetToken("tok"), ExpiresAt: at.Add(time.Hour)}, at)).To(Succeed())

		got, err := s.GetByID(ctx, p.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.UpdatedAt).To(BeTemporally("~", at, time.Millisecond))
	})

	It("ignores expired verification codes", func() {
		newPrincipal("a@x.com", "111111")
		_, err := s.ConsumeVerification(ctx, "111111", now.Add(25*time.Hour))
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("lets exactly one concurrent reset win", func() {
		p := newPrincipal("a@x.com", "111111")
		digest := auth.HashResetToken("tok")
		Expect(s.SetResetChallenge(ctx, p.ID, auth.Challenge{Token: digest, ExpiresAt: now.Add(time.Hour)}, now)).To(Succeed())

		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				if _, err := s.ConsumeReset(ctx, digest, "$2a$10$new", now); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		Expect(wins.Load()).To(Equal(int32(1)))

		got, err := s.GetByID(ctx, p.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.PasswordHash).To(Equal("$2a$10$new"))
		Expect(got.Reset).To(BeNil())
	})

	It("records logins", func() {
		p := newPrincipal("a@x.com", "111111")
		Expect(s.RecordLogin(ctx, p.ID, now)).To(Succeed())

		got, err := s.GetByID(ctx, p.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.LastLoginAt).NotTo(BeNil())
		Expect(got.LastLoginAt.Equal(now)).To(BeTrue())
		Expect(s.Ping(ctx)).To(Succeed())
	})
})
