// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/logging"
)

// Connection identifies the player behind an event.
type Connection struct {
	ID          uuid.UUID
	DisplayName string
	Origin      string
}

// ConnectResult describes what happened when a player joined.
type ConnectResult struct {
	// Restored is true when a valid session authenticated the connection.
	Restored bool
	// Registered is true when an identity record exists.
	Registered bool
}

// LoginResult carries the outcome details of a login attempt.
// It is meaningful alongside a non-nil error: a failed password check
// still reports RemainingAttempts, and possibly Challenge or LockedUntil.
type LoginResult struct {
	SessionToken      string
	RemainingAttempts int
	Challenge         string
	LockedUntil       *time.Time
}

// Stats is the admin snapshot of the subsystem.
type Stats struct {
	Authenticated  int
	Registered     int64
	ActiveSessions int64
	IndexedTokens  int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock sets the time source used for session expiry and lockout.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// Service is the authentication orchestrator. It composes the credential
// store, session store, and tracker, enforcing policy before touching storage.
type Service struct {
	credentials *CredentialStore
	sessions    *SessionStore
	tracker     *Tracker
	policy      atomic.Pointer[Policy]
	logger      *slog.Logger
	clock       func() time.Time
}

// NewService creates a Service.
func NewService(credentials *CredentialStore, sessions *SessionStore, tracker *Tracker, policy Policy, opts ...Option) (*Service, error) {
	if credentials == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("credential store is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("session store is required")
	}
	if tracker == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("tracker is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		credentials: credentials,
		sessions:    sessions,
		tracker:     tracker,
		logger:      slog.Default(),
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("logger cannot be nil")
	}
	s.policy.Store(&policy)
	return s, nil
}

// Policy returns the policy currently in force.
func (s *Service) Policy() Policy {
	return *s.policy.Load()
}

// UpdatePolicy swaps the policy in force. In-flight operations finish under the old one.
func (s *Service) UpdatePolicy(policy Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	s.policy.Store(&policy)
	s.logger.Info("auth policy updated",
		"registration_enabled", policy.RegistrationEnabled,
		"sessions_enabled", policy.SessionsEnabled,
		"max_login_attempts", policy.MaxLoginAttempts)
	return nil
}

// Tracker returns the state tracker the service updates.
func (s *Service) Tracker() *Tracker {
	return s.tracker
}

// IsAuthenticated reports whether the connection may act.
func (s *Service) IsAuthenticated(id uuid.UUID) bool {
	return s.tracker.IsAuthenticated(id)
}

// Connect handles a player joining. With sessions enabled a valid session
// for the connection's origin authenticates it straight away.
func (s *Service) Connect(ctx context.Context, conn Connection) (ConnectResult, error) {
	policy := s.Policy()

	if policy.SessionsEnabled {
		restored, err := s.sessions.Restore(ctx, conn.ID, conn.Origin)
		if err != nil {
			logging.LogError(s.logger, "session restore failed", err)
			recordOperation("connect", ResultError)
			return ConnectResult{}, storageError("restore session").With("identity_id", conn.ID.String()).Wrap(err)
		}
		if restored {
			s.tracker.MarkAuthenticated(conn.ID)
			s.appendAudit(ctx, conn, ActionSessionRestore, "")
			recordOperation("connect", ResultSuccess)
			s.logger.Info("session restored", "identity_id", conn.ID.String(), "origin", conn.Origin)
			return ConnectResult{Restored: true, Registered: true}, nil
		}
	}

	registered, err := s.credentials.Exists(ctx, conn.ID)
	if err != nil {
		logging.LogError(s.logger, "identity lookup failed", err)
		recordOperation("connect", ResultError)
		return ConnectResult{}, storageError("lookup identity").With("identity_id", conn.ID.String()).Wrap(err)
	}
	recordOperation("connect", ResultSuccess)
	return ConnectResult{Registered: registered}, nil
}

// Login authenticates the connection with a password.
func (s *Service) Login(ctx context.Context, conn Connection, password string) (LoginResult, error) {
	policy := s.Policy()
	lockout := policy.Lockout()

	if s.tracker.IsAuthenticated(conn.ID) {
		recordOperation("login", ResultRejected)
		return LoginResult{}, policyError("AUTH_ALREADY_AUTHENTICATED").Errorf("already logged in")
	}
	if code, pending := s.tracker.Challenge(conn.ID); pending {
		recordOperation("login", ResultRejected)
		return LoginResult{Challenge: code}, policyError("AUTH_CAPTCHA_REQUIRED").Errorf("challenge must be solved first")
	}

	identity, err := s.credentials.Get(ctx, conn.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			recordOperation("login", ResultRejected)
			return LoginResult{}, authError("AUTH_REGISTRATION_REQUIRED").Errorf("registration required")
		}
		logging.LogError(s.logger, "identity lookup failed", err)
		recordOperation("login", ResultError)
		return LoginResult{}, storageError("lookup identity").With("identity_id", conn.ID.String()).Wrap(err)
	}

	now := s.clock()
	if policy.LockoutDuration > 0 && identity.IsLockedAt(now) {
		recordOperation("login", ResultRejected)
		return LoginResult{LockedUntil: identity.LockedUntil}, policyError("AUTH_ACCOUNT_LOCKED").
			With("locked_until", *identity.LockedUntil).
			Errorf("account is temporarily locked")
	}

	valid, err := s.credentials.Check(identity, password)
	if err != nil {
		logging.LogError(s.logger, "password verification failed", err)
		recordOperation("login", ResultError)
		return LoginResult{}, err
	}

	if !valid {
		return s.loginFailed(ctx, conn, lockout, now)
	}

	if err := s.credentials.RecordLogin(ctx, conn.ID, conn.Origin); err != nil {
		logging.LogError(s.logger, "record login failed", err)
		recordOperation("login", ResultError)
		return LoginResult{}, storageError("record login").With("identity_id", conn.ID.String()).Wrap(err)
	}

	if s.credentials.NeedsUpgrade(identity) {
		// Best effort; the old credential still verifies.
		if err := s.credentials.ChangePassword(ctx, conn.ID, password); err != nil {
			s.logger.Warn("credential upgrade failed", "identity_id", conn.ID.String(), "error", err)
		}
	}

	token, err := s.issueSession(ctx, conn, policy)
	if err != nil {
		recordOperation("login", ResultError)
		return LoginResult{}, err
	}

	s.tracker.MarkAuthenticated(conn.ID)
	s.appendAudit(ctx, conn, ActionLogin, "")
	recordOperation("login", ResultSuccess)
	s.logger.Info("login succeeded", "identity_id", conn.ID.String(), "origin", conn.Origin)

	return LoginResult{SessionToken: token, RemainingAttempts: policy.MaxLoginAttempts}, nil
}

func (s *Service) loginFailed(ctx context.Context, conn Connection, lockout LockoutPolicy, now time.Time) (LoginResult, error) {
	failures, err := s.credentials.IncrementFailedAttempts(ctx, conn.ID)
	if err != nil {
		logging.LogError(s.logger, "failed-attempt increment failed", err)
		recordOperation("login", ResultError)
		return LoginResult{}, storageError("increment failed attempts").With("identity_id", conn.ID.String()).Wrap(err)
	}

	result := LoginResult{RemainingAttempts: lockout.Remaining(failures)}
	s.appendAudit(ctx, conn, ActionLoginFailed, "")

	if until := lockout.LockoutTime(failures, now); until != nil {
		if err := s.credentials.Lock(ctx, conn.ID, until); err != nil {
			logging.LogError(s.logger, "lock failed", err)
			recordOperation("login", ResultError)
			return result, storageError("lock identity").With("identity_id", conn.ID.String()).Wrap(err)
		}
		result.LockedUntil = until
		s.appendAudit(ctx, conn, ActionLockout, until.UTC().Format(time.RFC3339))
		s.logger.Warn("identity locked", "identity_id", conn.ID.String(), "failures", failures, "locked_until", *until)
	}

	if eval := lockout.Evaluate(failures, nil, now); eval.RequiresCaptcha {
		code, err := GenerateChallengeCode()
		if err != nil {
			recordOperation("login", ResultError)
			return result, err
		}
		s.tracker.SetChallenge(conn.ID, code)
		result.Challenge = code
	}

	recordOperation("login", ResultFailed)
	s.logger.Info("login failed", "identity_id", conn.ID.String(), "failures", failures, "remaining", result.RemainingAttempts)

	return result, authError("AUTH_INVALID_CREDENTIALS").
		With("remaining_attempts", result.RemainingAttempts).
		Errorf("wrong password")
}

// Register creates the identity for the connection and authenticates it.
// confirm is optional. Returns the session token when sessions are enabled.
func (s *Service) Register(ctx context.Context, conn Connection, password string, confirm *string) (string, error) {
	policy := s.Policy()

	if s.tracker.IsAuthenticated(conn.ID) {
		recordOperation("register", ResultRejected)
		return "", policyError("AUTH_ALREADY_AUTHENTICATED").Errorf("already logged in")
	}
	if !policy.RegistrationEnabled {
		recordOperation("register", ResultRejected)
		return "", policyError("AUTH_REGISTRATION_DISABLED").Errorf("registration is disabled")
	}
	if err := ValidateDisplayName(conn.DisplayName); err != nil {
		recordOperation("register", ResultRejected)
		return "", policyError("AUTH_INVALID_DISPLAY_NAME").Wrap(err)
	}

	exists, err := s.credentials.Exists(ctx, conn.ID)
	if err != nil {
		logging.LogError(s.logger, "identity lookup failed", err)
		recordOperation("register", ResultError)
		return "", storageError("lookup identity").With("identity_id", conn.ID.String()).Wrap(err)
	}
	if exists {
		recordOperation("register", ResultRejected)
		return "", policyError("AUTH_ALREADY_REGISTERED").Errorf("already registered")
	}

	if err := policy.checkNewPassword(password, confirm); err != nil {
		recordOperation("register", ResultRejected)
		return "", err
	}

	created, err := s.credentials.Register(ctx, conn.ID, conn.DisplayName, conn.Origin, password)
	if err != nil {
		logging.LogError(s.logger, "registration write failed", err)
		recordOperation("register", ResultError)
		return "", storageError("register identity").With("identity_id", conn.ID.String()).Wrap(err)
	}
	if !created {
		recordOperation("register", ResultRejected)
		return "", policyError("AUTH_ALREADY_REGISTERED").Errorf("already registered")
	}

	token, err := s.issueSession(ctx, conn, policy)
	if err != nil {
		recordOperation("register", ResultError)
		return "", err
	}

	s.tracker.MarkAuthenticated(conn.ID)
	s.appendAudit(ctx, conn, ActionRegister, "")
	recordOperation("register", ResultSuccess)
	s.logger.Info("identity registered", "identity_id", conn.ID.String(), "display_name", conn.DisplayName)

	return token, nil
}

// ChangePassword replaces the credential of an authenticated connection and
// invalidates every session of the identity. The connection stays authenticated.
func (s *Service) ChangePassword(ctx context.Context, conn Connection, oldPassword, newPassword string) error {
	policy := s.Policy()

	if !s.tracker.IsAuthenticated(conn.ID) {
		recordOperation("change_password", ResultRejected)
		return policyError("AUTH_NOT_AUTHENTICATED").Errorf("not logged in")
	}

	valid, err := s.credentials.VerifyPassword(ctx, conn.ID, oldPassword)
	if err != nil {
		logging.LogError(s.logger, "password verification failed", err)
		recordOperation("change_password", ResultError)
		if KindOf(err) == KindCrypto {
			return err
		}
		return storageError("verify password").With("identity_id", conn.ID.String()).Wrap(err)
	}
	if !valid {
		s.appendAudit(ctx, conn, ActionChangePasswordFailed, "wrong old password")
		recordOperation("change_password", ResultRejected)
		return policyError("AUTH_WRONG_PASSWORD").Errorf("old password is incorrect")
	}

	if oldPassword == newPassword {
		recordOperation("change_password", ResultRejected)
		return policyError("AUTH_SAME_PASSWORD").Errorf("new password must differ from the old one")
	}
	if err := policy.checkNewPassword(newPassword, nil); err != nil {
		recordOperation("change_password", ResultRejected)
		return err
	}

	if err := s.credentials.ChangePassword(ctx, conn.ID, newPassword); err != nil {
		logging.LogError(s.logger, "password write failed", err)
		s.appendAudit(ctx, conn, ActionChangePasswordFailed, "storage failure")
		recordOperation("change_password", ResultError)
		if KindOf(err) == KindCrypto {
			return err
		}
		return storageError("update credential").With("identity_id", conn.ID.String()).Wrap(err)
	}

	if err := s.sessions.DeactivateAll(ctx, conn.ID); err != nil {
		logging.LogError(s.logger, "session invalidation failed", err)
		recordOperation("change_password", ResultError)
		return storageError("deactivate sessions").With("identity_id", conn.ID.String()).Wrap(err)
	}

	s.appendAudit(ctx, conn, ActionChangePassword, "")
	recordOperation("change_password", ResultSuccess)
	s.logger.Info("password changed", "identity_id", conn.ID.String())
	return nil
}

// Logout clears the authenticated flag and deactivates every session of the identity.
// The flag is cleared even if deactivation fails.
func (s *Service) Logout(ctx context.Context, conn Connection) error {
	if !s.tracker.IsAuthenticated(conn.ID) {
		recordOperation("logout", ResultRejected)
		return policyError("AUTH_NOT_AUTHENTICATED").Errorf("not logged in")
	}
	s.tracker.Clear(conn.ID)

	if err := s.sessions.DeactivateAll(ctx, conn.ID); err != nil {
		logging.LogError(s.logger, "session invalidation failed", err)
		recordOperation("logout", ResultError)
		return storageError("deactivate sessions").With("identity_id", conn.ID.String()).Wrap(err)
	}

	s.appendAudit(ctx, conn, ActionLogout, "")
	recordOperation("logout", ResultSuccess)
	return nil
}

// Disconnect drops transient state for the connection. Durable sessions are
// kept so a reconnect from the same origin can be restored.
func (s *Service) Disconnect(conn Connection) {
	s.tracker.Clear(conn.ID)
	recordOperation("disconnect", ResultSuccess)
}

// SolveChallenge clears a pending challenge when code matches, ignoring case.
func (s *Service) SolveChallenge(conn Connection, code string) error {
	expected, pending := s.tracker.Challenge(conn.ID)
	if !pending {
		return policyError("AUTH_NO_CHALLENGE").Errorf("no challenge pending")
	}
	if !strings.EqualFold(strings.TrimSpace(code), expected) {
		recordOperation("challenge", ResultFailed)
		return authError("AUTH_CHALLENGE_FAILED").Errorf("challenge code does not match")
	}
	s.tracker.ClearChallenge(conn.ID)
	recordOperation("challenge", ResultSuccess)
	return nil
}

// Stats returns the admin snapshot.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	registered, err := s.credentials.Count(ctx)
	if err != nil {
		return Stats{}, storageError("count identities").Wrap(err)
	}
	active, err := s.sessions.CountActive(ctx)
	if err != nil {
		return Stats{}, storageError("count sessions").Wrap(err)
	}
	return Stats{
		Authenticated:  s.tracker.Count(),
		Registered:     registered,
		ActiveSessions: active,
		IndexedTokens:  s.sessions.Indexed(),
	}, nil
}

// Cleanup sweeps expired sessions on demand.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.sessions.Sweep(ctx)
	if err != nil {
		logging.LogError(s.logger, "session sweep failed", err)
		return 0, storageError("sweep sessions").Wrap(err)
	}
	SessionsSwept.Add(float64(n))
	return n, nil
}

func (s *Service) issueSession(ctx context.Context, conn Connection, policy Policy) (string, error) {
	if !policy.SessionsEnabled {
		return "", nil
	}
	token, _, err := GenerateSessionToken()
	if err != nil {
		return "", err
	}
	expiresAt := s.clock().Add(policy.SessionDuration)
	if err := s.sessions.Issue(ctx, conn.ID, conn.Origin, token, expiresAt); err != nil {
		logging.LogError(s.logger, "session issue failed", err)
		return "", storageError("issue session").With("identity_id", conn.ID.String()).Wrap(err)
	}
	return token, nil
}

// appendAudit writes an audit entry. Failures are logged and counted but never
// fail the surrounding transition.
func (s *Service) appendAudit(ctx context.Context, conn Connection, action, detail string) {
	id := conn.ID
	entry := AuditEntry{
		IdentityID:  &id,
		DisplayName: conn.DisplayName,
		Action:      action,
		Origin:      conn.Origin,
		Detail:      detail,
	}
	if err := s.credentials.Append(ctx, entry); err != nil {
		AuditFailures.Inc()
		logging.LogError(s.logger, "audit append failed", err)
	}
}
