// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Hash algorithm names accepted by NewHasher.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmSHA256   = "sha256"
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher derives a stored credential from a password and a per-identity salt.
// Hash must be deterministic in (password, salt).
type PasswordHasher interface {
	// Hash derives the encoded credential.
	Hash(password, salt string) (string, error)

	// Verify checks a password against a stored credential.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on a malformed credential.
	Verify(password, salt, encoded string) (bool, error)

	// NeedsUpgrade reports whether the credential should be re-derived on next login.
	NeedsUpgrade(encoded string) bool
}

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// DefaultArgon2Params are the OWASP-recommended argon2id parameters.
var DefaultArgon2Params = Argon2Params{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	KeyLen:  32,
}

// Argon2idHasher implements PasswordHasher using argon2id.
// Credentials are encoded as $argon2id$v=19$m=65536,t=1,p=4$<key>; the salt is stored separately.
// Legacy SHA-256 credentials verify and report NeedsUpgrade.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates a hasher with DefaultArgon2Params.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{params: DefaultArgon2Params}
}

// NewArgon2idHasherWithParams creates a hasher with explicit cost parameters.
func NewArgon2idHasherWithParams(params Argon2Params) *Argon2idHasher {
	return &Argon2idHasher{params: params}
}

// NewHasher returns the hasher for a configured algorithm name.
func NewHasher(algorithm string) (PasswordHasher, error) {
	switch algorithm {
	case "", AlgorithmArgon2id:
		return NewArgon2idHasher(), nil
	case AlgorithmSHA256:
		return SHA256Hasher{}, nil
	default:
		return nil, oops.Code("AUTH_UNKNOWN_ALGORITHM").
			With("algorithm", algorithm).
			Errorf("unknown hash algorithm %q", algorithm)
	}
}

// HashPassword derives an argon2id credential with the default parameters.
func HashPassword(password, salt string) (string, error) {
	return NewArgon2idHasher().Hash(password, salt)
}

// Hash produces an argon2id credential of the password under salt.
func (h *Argon2idHasher) Hash(password, salt string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if salt == "" {
		return "", oops.Code("AUTH_EMPTY_SALT").Errorf("salt cannot be empty")
	}

	key := argon2.IDKey([]byte(password), []byte(salt), h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the credential.
func (h *Argon2idHasher) Verify(password, salt, encoded string) (bool, error) {
	if !strings.HasPrefix(encoded, "$") {
		return SHA256Hasher{}.Verify(password, salt, encoded)
	}

	parts := strings.Split(encoded, "$")
	if len(parts) != 5 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != AlgorithmArgon2id {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	// Validate threads fits in uint8 to prevent silent truncation
	if threads > 255 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d exceeds uint8 max", threads)
	}

	keyLen := len(expected)
	if keyLen <= 0 || keyLen > 1<<30 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", keyLen)
	}

	computed := argon2.IDKey([]byte(password), []byte(salt), time, memory, uint8(threads), uint32(keyLen))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// NeedsUpgrade returns true for legacy credentials and for argon2id
// credentials derived with different cost parameters.
func (h *Argon2idHasher) NeedsUpgrade(encoded string) bool {
	prefix := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$", argon2.Version, h.params.Memory, h.params.Time, h.params.Threads)
	return !strings.HasPrefix(encoded, prefix)
}

// SHA256Hasher produces the legacy credential format: base64(SHA-256(password + salt)).
// It exists so records created by older deployments keep verifying.
type SHA256Hasher struct{}

// Hash produces the legacy credential.
func (SHA256Hasher) Hash(password, salt string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	sum := sha256.Sum256([]byte(password + salt))
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

// Verify checks a password against a legacy credential.
func (h SHA256Hasher) Verify(password, salt, encoded string) (bool, error) {
	if _, err := base64.StdEncoding.DecodeString(encoded); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	computed, err := h.Hash(password, salt)
	if err != nil {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(encoded)) == 1, nil
}

// NeedsUpgrade is false: a deployment that selects sha256 keeps it.
func (SHA256Hasher) NeedsUpgrade(string) bool {
	return false
}
