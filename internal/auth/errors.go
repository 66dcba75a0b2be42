// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when a create collides with an existing record.
var ErrAlreadyExists = errors.New("already exists")

// Kind classifies orchestrator failures. It is carried as the oops domain.
type Kind string

// Error kinds.
const (
	// KindPolicy is a rejection before any storage write: weak password,
	// disabled feature, bad confirmation, wrong old password, duplicate registration.
	KindPolicy Kind = "policy"
	// KindAuth is a failed credential check or an unknown identity.
	KindAuth Kind = "auth"
	// KindStorage is a connection error, timeout, or constraint violation.
	KindStorage Kind = "storage"
	// KindCrypto means a hash or random primitive failed. Never retried.
	KindCrypto Kind = "crypto"
)

// KindOf returns the kind of an orchestrator error, or "" if err carries none.
func KindOf(err error) Kind {
	if oopsErr, ok := oops.AsOops(err); ok {
		return Kind(oopsErr.Domain())
	}
	return ""
}

func policyError(code string) oops.OopsErrorBuilder {
	return oops.In(string(KindPolicy)).Code(code)
}

func authError(code string) oops.OopsErrorBuilder {
	return oops.In(string(KindAuth)).Code(code)
}

func storageError(operation string) oops.OopsErrorBuilder {
	return oops.In(string(KindStorage)).Code("AUTH_STORAGE_FAILED").With("operation", operation)
}

func cryptoError(operation string) oops.OopsErrorBuilder {
	return oops.In(string(KindCrypto)).Code("AUTH_CRYPTO_FAILED").With("operation", operation)
}
