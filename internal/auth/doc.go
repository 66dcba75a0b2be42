// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth gates a connected player behind registration or login.
//
// # Components
//
//   - CredentialStore - identity records, salted hashes, failure counters, audit trail
//   - SessionStore - origin-pinned session tokens plus an in-memory index
//   - Tracker - which connected identities are authenticated right now
//   - Service - login, registration, password change, logout, disconnect
//
// Each component is constructed explicitly and injected into Service.
// Nothing in this package is a process-wide singleton.
//
// # Errors
//
// Every error returned by Service carries an oops code and a domain equal
// to one of the Kind constants. Use KindOf to branch on the category and
// the code to pick the user-facing message.
package auth
