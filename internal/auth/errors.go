// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Store failures.
var (
	// ErrMissingField is returned when an email or password is empty, either
	// by validation or by a not-null/check constraint in the store.
	ErrMissingField = errors.New("email or password cannot be empty")

	// ErrDuplicateEmail is returned when an account with the email already exists.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrStoreUnavailable covers every other persistence failure.
	ErrStoreUnavailable = errors.New("account store unavailable")
)

// Credential failures.
var (
	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrVerification is returned when the password could not be checked at all.
	ErrVerification = errors.New("credential verification failed")

	// ErrHashing is returned when the hashing primitive cannot complete.
	ErrHashing = errors.New("password hashing failed")

	// ErrPasswordTooLong is returned when a password exceeds the hasher's input limit.
	ErrPasswordTooLong = errors.New("password is too long")
)

// ErrStaleSession is returned when a session refers to an account that no longer exists.
var ErrStaleSession = errors.New("session account no longer exists")
