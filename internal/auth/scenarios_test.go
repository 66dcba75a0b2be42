// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/auth/authtest"
)

var _ = Describe("Player authentication lifecycle", func() {
	var (
		ctx  context.Context
		h    *authtest.Harness
		conn auth.Connection
	)

	BeforeEach(func() {
		ctx = context.Background()
		policy := auth.DefaultPolicy()
		policy.SessionDuration = time.Hour
		h = authtest.NewHarness(GinkgoT(), policy)
		conn = auth.Connection{ID: uuid.New(), DisplayName: "P1", Origin: "10.0.0.1"}
	})

	Describe("first join", func() {
		It("requires registration before login", func() {
			res, err := h.Service.Connect(ctx, conn)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Registered).To(BeFalse())

			_, err = h.Service.Login(ctx, conn, "x")
			authtest.AssertErrorCode(GinkgoT(), err, "AUTH_REGISTRATION_REQUIRED")
			Expect(h.Service.IsAuthenticated(conn.ID)).To(BeFalse())
		})
	})

	Describe("a registered player", func() {
		var token string

		BeforeEach(func() {
			var err error
			token, err = h.Service.Register(ctx, conn, "Abc12345!", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Service.IsAuthenticated(conn.ID)).To(BeTrue())
		})

		It("is restored on reconnect from the same origin", func() {
			h.Service.Disconnect(conn)
			Expect(h.Service.IsAuthenticated(conn.ID)).To(BeFalse())

			h.Clock.Advance(10 * time.Minute)
			res, err := h.Service.Connect(ctx, conn)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Restored).To(BeTrue())
			Expect(h.Service.IsAuthenticated(conn.ID)).To(BeTrue())
		})

		It("must log in again once the session expires", func() {
			h.Service.Disconnect(conn)
			h.Clock.Advance(2 * time.Hour)

			res, err := h.Service.Connect(ctx, conn)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Restored).To(BeFalse())
			Expect(res.Registered).To(BeTrue())
		})

		Context("changing the password", func() {
			It("rejects the same password", func() {
				err := h.Service.ChangePassword(ctx, conn, "Abc12345!", "Abc12345!")
				authtest.AssertErrorCode(GinkgoT(), err, "AUTH_SAME_PASSWORD")
			})

			It("invalidates every earlier session token", func() {
				Expect(h.Service.ChangePassword(ctx, conn, "Abc12345!", "Xyz98765#")).To(Succeed())

				ok, err := h.Store.IsValid(ctx, conn.ID, conn.Origin, token)
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeFalse())

				h.Service.Disconnect(conn)
				res, err := h.Service.Connect(ctx, conn)
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Restored).To(BeFalse())

				_, err = h.Service.Login(ctx, conn, "Abc12345!")
				authtest.AssertErrorCode(GinkgoT(), err, "AUTH_INVALID_CREDENTIALS")

				res2, err := h.Service.Login(ctx, conn, "Xyz98765#")
				Expect(err).NotTo(HaveOccurred())
				Expect(res2.SessionToken).NotTo(Equal(token))
			})
		})

		Context("guessing the password", func() {
			BeforeEach(func() {
				h.Service.Disconnect(conn)
			})

			It("counts down the remaining attempts to zero", func() {
				remaining := []int{}
				for range 3 {
					res, err := h.Service.Login(ctx, conn, "guess")
					Expect(err).To(HaveOccurred())
					Expect(auth.KindOf(err)).To(Equal(auth.KindAuth))
					remaining = append(remaining, res.RemainingAttempts)
				}
				Expect(remaining).To(Equal([]int{2, 1, 0}))

				failures, err := h.Credentials.GetFailedAttempts(ctx, conn.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(failures).To(Equal(3))
				Expect(h.Service.IsAuthenticated(conn.ID)).To(BeFalse())
			})

			It("records every attempt in the audit log", func() {
				for range 3 {
					_, _ = h.Service.Login(ctx, conn, "guess")
				}
				Expect(h.Audit.Actions()).To(Equal([]string{
					auth.ActionRegister,
					auth.ActionLoginFailed,
					auth.ActionLoginFailed,
					auth.ActionLoginFailed,
					auth.ActionLockout,
				}))
			})
		})
	})
})
