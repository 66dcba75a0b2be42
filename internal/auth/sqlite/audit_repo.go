// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
)

// AuditRepository implements auth.AuditRepository on SQLite.
type AuditRepository struct {
	db    *sqlx.DB
	table string
}

// NewAuditRepository creates a new AuditRepository over tables.Logs.
func NewAuditRepository(db *sqlx.DB, tables auth.Tables) *AuditRepository {
	return &AuditRepository{db: db, table: tables.Logs}
}

// Append writes one audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry *auth.AuditEntry) error {
	var identityID sql.NullString
	if entry.IdentityID != nil {
		identityID = sql.NullString{String: entry.IdentityID.String(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, identity_id, display_name, action, origin, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, r.table),
		entry.ID.String(),
		identityID,
		entry.DisplayName,
		entry.Action,
		entry.Origin,
		entry.Detail,
		toMillis(entry.Timestamp),
	)
	if err != nil {
		return oops.Code("AUDIT_INSERT_FAILED").
			With("operation", "insert audit entry").
			With("action", entry.Action).
			Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ auth.AuditRepository = (*AuditRepository)(nil)
