// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"fmt"

	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
)

// AuditRepository implements auth.AuditRepository using PostgreSQL.
type AuditRepository struct {
	pool  poolIface
	table string
}

// NewAuditRepository creates a new AuditRepository over tables.Logs.
func NewAuditRepository(pool poolIface, tables auth.Tables) *AuditRepository {
	return &AuditRepository{pool: pool, table: tables.Logs}
}

// Append writes one audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry *auth.AuditEntry) error {
	var identityID *string
	if entry.IdentityID != nil {
		s := entry.IdentityID.String()
		identityID = &s
	}

	_, err := r.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, identity_id, display_name, action, origin, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.table),
		entry.ID.String(),
		identityID,
		entry.DisplayName,
		entry.Action,
		entry.Origin,
		entry.Detail,
		entry.Timestamp,
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
