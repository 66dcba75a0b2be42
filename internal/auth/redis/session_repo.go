// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package redis keeps sessions in Redis so several servers can share them.
//
// Each session is a hash keyed by its token hash. Two sorted sets index it:
// one per identity scored by creation time, and one global set scored by expiry.
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
)

// DefaultRetention is how long a session key outlives its expiry before Redis evicts it.
const DefaultRetention = 24 * time.Hour

const (
	fieldID         = "id"
	fieldIdentityID = "identity_id"
	fieldOrigin     = "origin"
	fieldCreatedAt  = "created_at"
	fieldExpiresAt  = "expires_at"
	fieldActive     = "active"
)

// SessionRepository implements auth.SessionRepository on Redis.
type SessionRepository struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewSessionRepository creates a SessionRepository whose keys start with prefix.
func NewSessionRepository(client redis.UniversalClient, prefix string) *SessionRepository {
	return &SessionRepository{client: client, prefix: prefix, retention: DefaultRetention}
}

func (r *SessionRepository) sessionKey(tokenHash string) string {
	return r.prefix + "session:" + tokenHash
}

func (r *SessionRepository) identityKey(identityID uuid.UUID) string {
	return r.prefix + "sessions:identity:" + identityID.String()
}

func (r *SessionRepository) expiryKey() string {
	return r.prefix + "sessions:expiry"
}

// Create stores a session. A duplicate token hash returns auth.ErrAlreadyExists.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	key := r.sessionKey(session.TokenHash)

	claimed, err := r.client.HSetNX(ctx, key, fieldID, session.ID.String()).Result()
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").With("session_id", session.ID.String()).Wrap(err)
	}
	if !claimed {
		return oops.Code("SESSION_EXISTS").
			With("session_id", session.ID.String()).
			Wrap(auth.ErrAlreadyExists)
	}

	ttl := session.ExpiresAt.Sub(session.CreatedAt) + r.retention
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldIdentityID, session.IdentityID.String(),
			fieldOrigin, session.Origin,
			fieldCreatedAt, session.CreatedAt.UnixMilli(),
			fieldExpiresAt, session.ExpiresAt.UnixMilli(),
			fieldActive, boolField(session.Active),
		)
		pipe.Expire(ctx, key, ttl)
		pipe.ZAdd(ctx, r.identityKey(session.IdentityID), redis.Z{
			Score:  float64(session.CreatedAt.UnixMilli()),
			Member: session.TokenHash,
		})
		// The index must outlive its longest-lived session.
		pipe.ExpireNX(ctx, r.identityKey(session.IdentityID), ttl)
		pipe.ExpireGT(ctx, r.identityKey(session.IdentityID), ttl)
		pipe.ZAdd(ctx, r.expiryKey(), redis.Z{
			Score:  float64(session.ExpiresAt.UnixMilli()),
			Member: session.TokenHash,
		})
		return nil
	})
	if err != nil {
		_ = r.client.Del(ctx, key).Err() //nolint:errcheck // create error takes precedence
		return oops.Code("SESSION_CREATE_FAILED").With("session_id", session.ID.String()).Wrap(err)
	}
	return nil
}

// GetByTokenHash returns the session stored under tokenHash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	session, err := r.load(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, oops.Code("SESSION_NOT_FOUND").Wrap(err)
		}
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").Wrap(err)
	}
	return session, nil
}

// LatestActive returns the newest active, unexpired session for identityID at origin.
func (r *SessionRepository) LatestActive(ctx context.Context, identityID uuid.UUID, origin string, now time.Time) (*auth.Session, error) {
	hashes, err := r.client.ZRevRange(ctx, r.identityKey(identityID), 0, -1).Result()
	if err != nil {
		return nil, oops.Code("SESSION_LATEST_FAILED").With("identity_id", identityID.String()).Wrap(err)
	}
	for _, hash := range hashes {
		session, err := r.load(ctx, hash)
		if errors.Is(err, auth.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, oops.Code("SESSION_LATEST_FAILED").With("identity_id", identityID.String()).Wrap(err)
		}
		if session.ValidAt(origin, now) {
			return session, nil
		}
	}
	return nil, oops.Code("SESSION_NOT_FOUND").
		With("identity_id", identityID.String()).
		Wrap(auth.ErrNotFound)
}

// DeactivateAll marks every active session of identityID inactive and returns how many changed.
func (r *SessionRepository) DeactivateAll(ctx context.Context, identityID uuid.UUID) (int64, error) {
	hashes, err := r.client.ZRange(ctx, r.identityKey(identityID), 0, -1).Result()
	if err != nil {
		return 0, oops.Code("SESSION_DEACTIVATE_FAILED").With("identity_id", identityID.String()).Wrap(err)
	}
	var changed int64
	for _, hash := range hashes {
		n, err := deactivateScript.Run(ctx, r.client, []string{r.sessionKey(hash)}).Int64()
		if err != nil {
			return changed, oops.Code("SESSION_DEACTIVATE_FAILED").With("identity_id", identityID.String()).Wrap(err)
		}
		changed += n
	}
	return changed, nil
}

// deactivateScript flips active to 0 only when the session exists and is active.
var deactivateScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'active') == '1' then
  redis.call('HSET', KEYS[1], 'active', '0')
  return 1
end
return 0
`)

// DeleteExpired removes sessions whose expiry is at or before now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	hashes, err := r.client.ZRangeByScore(ctx, r.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").Wrap(err)
	}

	var deleted int64
	for _, hash := range hashes {
		key := r.sessionKey(hash)
		identity, err := r.client.HGet(ctx, key, fieldIdentityID).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return deleted, oops.Code("SESSION_DELETE_EXPIRED_FAILED").Wrap(err)
		}

		cmds, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, r.expiryKey(), hash)
			if identity != "" {
				pipe.ZRem(ctx, r.prefix+"sessions:identity:"+identity, hash)
			}
			return nil
		})
		if err != nil {
			return deleted, oops.Code("SESSION_DELETE_EXPIRED_FAILED").Wrap(err)
		}
		if del, ok := cmds[0].(*redis.IntCmd); ok {
			deleted += del.Val()
		}
	}
	return deleted, nil
}

// CountActive returns the number of active sessions that expire after now.
func (r *SessionRepository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	hashes, err := r.client.ZRangeByScore(ctx, r.expiryKey(), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(now.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return 0, oops.Code("SESSION_COUNT_FAILED").Wrap(err)
	}
	var count int64
	for _, hash := range hashes {
		active, err := r.client.HGet(ctx, r.sessionKey(hash), fieldActive).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return 0, oops.Code("SESSION_COUNT_FAILED").Wrap(err)
		}
		if active == "1" {
			count++
		}
	}
	return count, nil
}

func (r *SessionRepository) load(ctx context.Context, tokenHash string) (*auth.Session, error) {
	fields, err := r.client.HGetAll(ctx, r.sessionKey(tokenHash)).Result()
	if err != nil {
		return nil, err //nolint:wrapcheck // callers attach the operation code
	}
	if len(fields) == 0 || fields[fieldIdentityID] == "" {
		return nil, auth.ErrNotFound
	}
	return decodeSession(tokenHash, fields)
}

func decodeSession(tokenHash string, fields map[string]string) (*auth.Session, error) {
	id, err := ulid.Parse(fields[fieldID])
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").With("session_id", fields[fieldID]).Wrap(err)
	}
	identityID, err := uuid.Parse(fields[fieldIdentityID])
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_IDENTITY_ID").With("identity_id", fields[fieldIdentityID]).Wrap(err)
	}
	created, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, oops.Code("SESSION_SCAN_FAILED").With("field", fieldCreatedAt).Wrap(err)
	}
	expires, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, oops.Code("SESSION_SCAN_FAILED").With("field", fieldExpiresAt).Wrap(err)
	}
	return &auth.Session{
		ID:         id,
		IdentityID: identityID,
		Origin:     fields[fieldOrigin],
		TokenHash:  tokenHash,
		CreatedAt:  time.UnixMilli(created).UTC(),
		ExpiresAt:  time.UnixMilli(expires).UTC(),
		Active:     fields[fieldActive] == "1",
	}, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
