// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"time"

	"github.com/samber/oops"
)

// Policy holds the tunables the orchestrator enforces.
type Policy struct {
	RegistrationEnabled   bool
	MinPasswordLength     int
	MaxPasswordLength     int
	MaxLoginAttempts      int
	LockoutDuration       time.Duration
	CaptchaEnabled        bool
	CaptchaAfterAttempts  int
	SessionsEnabled       bool
	SessionDuration       time.Duration
	RequireSecurePassword bool
}

// DefaultPolicy returns the stock policy.
func DefaultPolicy() Policy {
	return Policy{
		RegistrationEnabled:   true,
		MinPasswordLength:     6,
		MaxPasswordLength:     32,
		MaxLoginAttempts:      3,
		LockoutDuration:       5 * time.Minute,
		CaptchaEnabled:        false,
		CaptchaAfterAttempts:  2,
		SessionsEnabled:       true,
		SessionDuration:       DefaultSessionDuration,
		RequireSecurePassword: true,
	}
}

// Validate checks the policy for internal consistency.
func (p Policy) Validate() error {
	if p.MinPasswordLength < 1 {
		return oops.Code("POLICY_INVALID").With("min_password_length", p.MinPasswordLength).
			Errorf("minimum password length must be at least 1")
	}
	if p.MaxPasswordLength < p.MinPasswordLength {
		return oops.Code("POLICY_INVALID").
			With("min_password_length", p.MinPasswordLength).
			With("max_password_length", p.MaxPasswordLength).
			Errorf("maximum password length must not be below the minimum")
	}
	if p.MaxLoginAttempts < 1 {
		return oops.Code("POLICY_INVALID").With("max_login_attempts", p.MaxLoginAttempts).
			Errorf("max login attempts must be at least 1")
	}
	if p.LockoutDuration < 0 {
		return oops.Code("POLICY_INVALID").Errorf("lockout duration cannot be negative")
	}
	if p.CaptchaEnabled && p.CaptchaAfterAttempts < 1 {
		return oops.Code("POLICY_INVALID").With("captcha_after_attempts", p.CaptchaAfterAttempts).
			Errorf("captcha threshold must be at least 1")
	}
	if p.SessionsEnabled && p.SessionDuration <= 0 {
		return oops.Code("POLICY_INVALID").Errorf("session duration must be positive when sessions are enabled")
	}
	return nil
}

// Lockout returns the lockout view of the policy.
func (p Policy) Lockout() LockoutPolicy {
	return LockoutPolicy{
		MaxAttempts:          p.MaxLoginAttempts,
		LockoutDuration:      p.LockoutDuration,
		CaptchaEnabled:       p.CaptchaEnabled,
		CaptchaAfterAttempts: p.CaptchaAfterAttempts,
	}
}

// checkNewPassword applies the registration rules to a candidate password.
// confirm is optional.
func (p Policy) checkNewPassword(password string, confirm *string) error {
	n := len([]rune(password))
	if n < p.MinPasswordLength {
		return policyError("AUTH_PASSWORD_TOO_SHORT").
			With("min", p.MinPasswordLength).
			Errorf("password must be at least %d characters", p.MinPasswordLength)
	}
	if n > p.MaxPasswordLength {
		return policyError("AUTH_PASSWORD_TOO_LONG").
			With("max", p.MaxPasswordLength).
			Errorf("password must be at most %d characters", p.MaxPasswordLength)
	}
	if confirm != nil && *confirm != password {
		return policyError("AUTH_PASSWORD_MISMATCH").Errorf("passwords do not match")
	}
	if p.RequireSecurePassword {
		if strength := ScoreStrength(password, p.MinPasswordLength); !strength.IsAcceptable() {
			return policyError("AUTH_WEAK_PASSWORD").
				With("strength", strength.String()).
				With("requirements", UnmetRequirements(password, p.MinPasswordLength)).
				Errorf("password is too weak")
		}
	}
	return nil
}
