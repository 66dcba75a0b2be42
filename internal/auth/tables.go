// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "github.com/samber/oops"

// Tables names the three persisted tables.
type Tables struct {
	Users    string
	Sessions string
	Logs     string
}

// TablesWithPrefix returns the table names with prefix prepended verbatim.
func TablesWithPrefix(prefix string) Tables {
	return Tables{
		Users:    prefix + "users",
		Sessions: prefix + "sessions",
		Logs:     prefix + "logs",
	}
}

// ValidateTablePrefix rejects prefixes that are not safe to splice into SQL.
func ValidateTablePrefix(prefix string) error {
	for _, r := range prefix {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return oops.Code("STORAGE_INVALID_PREFIX").
				With("table_prefix", prefix).
				Errorf("table prefix may only contain lowercase letters, digits and underscores")
		}
	}
	return nil
}
