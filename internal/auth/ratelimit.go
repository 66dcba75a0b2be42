// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"time"
)

// LockoutPolicy decides what a failed-attempt count means for the next login.
type LockoutPolicy struct {
	// MaxAttempts is the number of failures reported as "remaining" budget.
	MaxAttempts int
	// LockoutDuration is how long an identity stays locked once MaxAttempts is reached.
	// Zero disables enforced lockout; the counter is still exposed.
	LockoutDuration time.Duration
	// CaptchaEnabled turns on the challenge after CaptchaAfterAttempts failures.
	CaptchaEnabled       bool
	CaptchaAfterAttempts int
}

// RateLimitResult contains the result of a failure-count evaluation.
type RateLimitResult struct {
	// Remaining is MaxAttempts minus failures, never negative.
	Remaining int
	// RequiresCaptcha indicates the connection must solve a challenge before retrying.
	RequiresCaptcha bool
	// IsLockedOut indicates the identity is temporarily locked.
	IsLockedOut bool
	// LockoutRemaining is the time until the lockout expires.
	LockoutRemaining time.Duration
}

// Evaluate evaluates the state implied by failures and an existing lock at now.
func (p LockoutPolicy) Evaluate(failures int, lockedUntil *time.Time, now time.Time) RateLimitResult {
	result := RateLimitResult{Remaining: p.Remaining(failures)}

	// Check existing lockout first
	if IsLockedOut(lockedUntil, now) {
		result.IsLockedOut = true
		result.LockoutRemaining = lockedUntil.Sub(now)
		return result
	}

	if p.CaptchaEnabled && p.CaptchaAfterAttempts > 0 && failures >= p.CaptchaAfterAttempts {
		result.RequiresCaptcha = true
	}

	if p.LockoutDuration > 0 && p.MaxAttempts > 0 && failures >= p.MaxAttempts {
		result.IsLockedOut = true
		result.LockoutRemaining = p.LockoutDuration
	}

	return result
}

// Remaining returns the attempts left before MaxAttempts, clamped at zero.
func (p LockoutPolicy) Remaining(failures int) int {
	if remaining := p.MaxAttempts - failures; remaining > 0 {
		return remaining
	}
	return 0
}

// LockoutTime returns the lock timestamp for the given failure count.
// Returns nil when lockout is disabled or the threshold is not reached.
func (p LockoutPolicy) LockoutTime(failures int, now time.Time) *time.Time {
	if p.LockoutDuration <= 0 || p.MaxAttempts <= 0 || failures < p.MaxAttempts {
		return nil
	}
	until := now.Add(p.LockoutDuration)
	return &until
}

// IsLockedOut returns true if the lockout time is after now.
func IsLockedOut(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}
