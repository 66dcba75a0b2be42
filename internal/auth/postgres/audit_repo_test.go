// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/auth"
)

func TestAuditRepository_Append(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	identityID := uuid.New()
	idStr := identityID.String()

	tests := []struct {
		name      string
		entry     *auth.AuditEntry
		setupMock func(mock pgxmock.PgxPoolIface, entry *auth.AuditEntry)
		errCode   string
	}{
		{
			name: "with identity",
			entry: &auth.AuditEntry{
				ID: ulid.Make(), IdentityID: &identityID, DisplayName: "P1",
				Action: auth.ActionLogin, Origin: "o", Timestamp: at,
			},
			setupMock: func(mock pgxmock.PgxPoolIface, entry *auth.AuditEntry) {
				mock.ExpectExec(`INSERT INTO logs`).
					WithArgs(entry.ID.String(), &idStr, "P1", auth.ActionLogin, "o", "", at).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "without identity",
			entry: &auth.AuditEntry{
				ID: ulid.Make(), Action: auth.ActionLoginFailed, Detail: "unknown", Timestamp: at,
			},
			setupMock: func(mock pgxmock.PgxPoolIface, entry *auth.AuditEntry) {
				mock.ExpectExec(`INSERT INTO logs`).
					WithArgs(entry.ID.String(), (*string)(nil), "", auth.ActionLoginFailed, "", "unknown", at).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name:  "database error",
			entry: &auth.AuditEntry{ID: ulid.Make(), Action: auth.ActionLogout, Timestamp: at},
			setupMock: func(mock pgxmock.PgxPoolIface, _ *auth.AuditEntry) {
				mock.ExpectExec(`INSERT INTO logs`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(errors.New("disk full"))
			},
			errCode: "AUDIT_INSERT_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setupMock(mock, tt.entry)

			err := NewAuditRepository(mock, auth.TablesWithPrefix("")).Append(context.Background(), tt.entry)
			if tt.errCode != "" {
				assertCode(t, err, tt.errCode)
				return
			}
			require.NoError(t, err)
		})
	}
}
