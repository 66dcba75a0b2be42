// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"strings"
	"unicode"
)

// Strength is the closed, ordered password strength scale.
type Strength int

// Strength levels, weakest first.
const (
	VeryWeak Strength = iota
	Weak
	Medium
	Strong
	VeryStrong
)

// SpecialCharacters are the characters counted as "special" when scoring.
const SpecialCharacters = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

var weakSubstrings = []string{
	"password", "123456", "qwerty", "admin", "root", "user",
	"minecraft", "123123", "111111", "000000", "password123",
	"server", "game", "player",
}

var weakSequences = []string{"123", "abc", "qwe"}

func (s Strength) String() string {
	switch s {
	case VeryWeak:
		return "very_weak"
	case Weak:
		return "weak"
	case Medium:
		return "medium"
	case Strong:
		return "strong"
	case VeryStrong:
		return "very_strong"
	default:
		return "unknown"
	}
}

// IsAcceptable reports whether the strength meets the registration floor (Medium).
func (s Strength) IsAcceptable() bool {
	return s >= Medium
}

type passwordTraits struct {
	length    int
	lower     bool
	upper     bool
	digit     bool
	special   bool
	noPattern bool
}

func inspect(password string) passwordTraits {
	t := passwordTraits{length: len([]rune(password))}
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			t.lower = true
		case unicode.IsUpper(r):
			t.upper = true
		case unicode.IsDigit(r):
			t.digit = true
		case strings.ContainsRune(SpecialCharacters, r):
			t.special = true
		}
	}
	t.noPattern = !hasWeakPattern(password)
	return t
}

func hasWeakPattern(password string) bool {
	lower := strings.ToLower(password)
	for _, w := range weakSubstrings {
		if strings.Contains(lower, w) {
			return true
		}
	}
	for _, seq := range weakSequences {
		if strings.Contains(lower, seq) {
			return true
		}
	}
	return hasRepeatedRun(password, 3)
}

func hasRepeatedRun(s string, n int) bool {
	run := 0
	var prev rune
	for i, r := range []rune(s) {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
		prev = r
	}
	return false
}

// Score returns the additive strength score (0-7) before the length floor is applied.
func Score(password string) int {
	t := inspect(password)
	score := 0
	for _, ok := range []bool{t.length >= 8, t.length >= 12, t.lower, t.upper, t.digit, t.special, t.noPattern} {
		if ok {
			score++
		}
	}
	return score
}

// ScoreStrength rates a password. Passwords shorter than minLength are always VeryWeak.
func ScoreStrength(password string, minLength int) Strength {
	if len([]rune(password)) < minLength {
		return VeryWeak
	}
	switch score := Score(password); {
	case score >= 6:
		return VeryStrong
	case score >= 5:
		return Strong
	case score >= 3:
		return Medium
	case score >= 2:
		return Weak
	default:
		return VeryWeak
	}
}

// UnmetRequirements lists what a password lacks, in a fixed order.
// The result is empty when every criterion is satisfied.
func UnmetRequirements(password string, minLength int) []string {
	t := inspect(password)
	var unmet []string
	if t.length < minLength {
		unmet = append(unmet, "length")
	}
	if !t.lower {
		unmet = append(unmet, "lowercase")
	}
	if !t.upper {
		unmet = append(unmet, "uppercase")
	}
	if !t.digit {
		unmet = append(unmet, "digit")
	}
	if !t.special {
		unmet = append(unmet, "special")
	}
	if !t.noPattern {
		unmet = append(unmet, "no_common_patterns")
	}
	return unmet
}
