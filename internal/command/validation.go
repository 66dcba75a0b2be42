// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"
)

const (
	// MaxNameLength is the maximum length, in characters, for command and alias names.
	MaxNameLength = 20
)

// namePattern validates command/alias names: a letter (any script) followed by
// letters, digits, or _!?@#$%^+-. A lone "?" is allowed for help.
var namePattern = regexp.MustCompile(`^(\?|\p{L}[\p{L}\p{N}_!?@#$%^+\-]*)$`)

// ValidateCommandName validates a command name.
func ValidateCommandName(name string) error {
	return validateName(name, "command")
}

// ValidateAliasName validates an alias name.
func ValidateAliasName(name string) error {
	return validateName(name, "alias")
}

func validateName(name, kind string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return oops.Code(CodeInvalidName).
			With("kind", kind).
			Errorf("%s name cannot be empty", kind)
	}

	if n := utf8.RuneCountInString(trimmed); n > MaxNameLength {
		return oops.Code(CodeInvalidName).
			With("kind", kind).
			With("length", n).
			With("max", MaxNameLength).
			Errorf("%s name exceeds maximum length of %d", kind, MaxNameLength)
	}

	if !namePattern.MatchString(trimmed) {
		return oops.Code(CodeInvalidName).
			With("kind", kind).
			With("name", trimmed).
			Errorf("%s name must start with a letter and contain only letters, digits, or _!?@#$%%^+-", kind)
	}

	return nil
}
