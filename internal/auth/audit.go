// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Audit action tags.
const (
	ActionRegister             = "REGISTER"
	ActionLogin                = "LOGIN"
	ActionLoginFailed          = "LOGIN_FAILED"
	ActionLockout              = "LOCKOUT"
	ActionLogout               = "LOGOUT"
	ActionSessionRestore       = "SESSION_RESTORE"
	ActionChangePassword       = "CHANGE_PASSWORD"
	ActionChangePasswordFailed = "CHANGE_PASSWORD_FAILED"
)

// AuditEntry is one write-once record of an authentication event.
type AuditEntry struct {
	ID          ulid.ULID
	IdentityID  *uuid.UUID
	DisplayName string
	Action      string
	Origin      string
	Detail      string
	Timestamp   time.Time
}

// AuditRepository appends audit entries.
type AuditRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error
}

// AuditFilter selects which audit entries are written.
type AuditFilter struct {
	Enabled          bool
	LogLoginAttempts bool
	LogRegistrations bool
}

// DefaultAuditFilter records everything.
func DefaultAuditFilter() AuditFilter {
	return AuditFilter{Enabled: true, LogLoginAttempts: true, LogRegistrations: true}
}

// Allows reports whether an entry with action should be written.
func (f AuditFilter) Allows(action string) bool {
	if !f.Enabled {
		return false
	}
	switch action {
	case ActionLogin, ActionLoginFailed, ActionSessionRestore:
		return f.LogLoginAttempts
	case ActionRegister:
		return f.LogRegistrations
	default:
		return true
	}
}
