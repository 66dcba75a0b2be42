// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/holomush/gatekeeper/internal/auth"
)

func TestScoreStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     auth.Strength
	}{
		{"below minimum length", "Ab1!", auth.VeryWeak},
		{"lowercase only with pattern", "password", auth.Weak},
		{"lowercase only no pattern", "zxcvbn", auth.Weak},
		{"mixed case no digits", "zxcvbnMK", auth.Medium},
		{"sequence costs a point", "Abc12345!", auth.Strong},
		{"all classes no pattern", "Zx9!kLm2", auth.VeryStrong},
		{"long with every class", "Zx9!kLm2Tq7#", auth.VeryStrong},
		{"repeated run costs a point", "zzzXYW9!", auth.Strong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.ScoreStrength(tt.password, 6))
		})
	}
}

func TestScore(t *testing.T) {
	assert.Equal(t, 1, auth.Score(""))             // no weak pattern
	assert.Equal(t, 2, auth.Score("zxcvbn"))       // lower + no pattern
	assert.Equal(t, 5, auth.Score("Abc12345!"))    // len8, lower, upper, digit, special
	assert.Equal(t, 7, auth.Score("Zx9!kLm2Tq7#")) // every criterion
}

func TestScoreStrength_MonotonicUnderUppercase(t *testing.T) {
	passwords := []string{"zxcvbn", "zxcvbn9", "zx!cvbn9", "password", "mnbvcxzlkj", "a1b2c3d4e5f6"}
	for _, p := range passwords {
		before := auth.ScoreStrength(p, 6)
		after := auth.ScoreStrength(p+"Q", 6)
		assert.GreaterOrEqual(t, int(after), int(before), "adding an uppercase letter to %q lowered strength", p)
	}
}

func TestScoreStrength_WeakSubstringsCaseInsensitive(t *testing.T) {
	assert.Less(t, auth.Score("xQwErTy9!Z"), auth.Score("xQwZrTy9!Z"))
	assert.Less(t, auth.Score("Minecraft9!"), auth.Score("Minekraft9!"))
}

func TestStrength_IsAcceptable(t *testing.T) {
	assert.False(t, auth.VeryWeak.IsAcceptable())
	assert.False(t, auth.Weak.IsAcceptable())
	assert.True(t, auth.Medium.IsAcceptable())
	assert.True(t, auth.Strong.IsAcceptable())
	assert.True(t, auth.VeryStrong.IsAcceptable())
}

func TestStrength_String(t *testing.T) {
	assert.Equal(t, "very_weak", auth.VeryWeak.String())
	assert.Equal(t, "medium", auth.Medium.String())
	assert.Equal(t, "very_strong", auth.VeryStrong.String())
	assert.Equal(t, "unknown", auth.Strength(42).String())
}

func TestUnmetRequirements(t *testing.T) {
	assert.Empty(t, auth.UnmetRequirements("Zx9!kLm2", 6))
	assert.Equal(t, []string{"length", "uppercase", "digit", "special"}, auth.UnmetRequirements("zxc", 6))
	assert.Contains(t, auth.UnmetRequirements("Admin9!x", 6), "no_common_patterns")
}
