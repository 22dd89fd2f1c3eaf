// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

// Package auth provides account registration, credential verification and
// server-side sessions for the storefront.
//
// # Domain Types
//
// Account values are created by an AccountRepository, which assigns the ID.
// Session values are created with NewSession, which validates the payload and
// expiry. Direct struct initialization bypasses validation and may create
// invalid state.
//
// # Services
//
// Service types coordinate domain operations:
//   - Registrar - hashes a password and inserts a new account
//   - Authenticator - verifies an email/password pair
//   - IdentityMapper - converts accounts to session payloads and back
//   - SessionManager - issues, resolves, revokes and purges sessions
//
// Services are created with New* constructors that validate dependencies.
//
// # Errors
//
// Operations return errors wrapping the sentinels declared in errors.go.
// Use errors.Is to classify them; never show their text to end users.
package auth
