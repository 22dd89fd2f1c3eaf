// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Hash algorithm names accepted by NewPasswordHasher.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// DefaultBcryptCost is the bcrypt work factor used when none is configured.
const DefaultBcryptCost = 10

// MaxBcryptPasswordBytes is the longest password bcrypt accepts.
const MaxBcryptPasswordBytes = 72

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted one-way hash of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match and (false, nil) on mismatch or a malformed
	// hash. An error is returned only when the primitive itself fails.
	Verify(password, hash string) (bool, error)

	// NeedsUpgrade returns true if the hash was produced by a different
	// algorithm or work factor than the hasher currently uses.
	NeedsUpgrade(hash string) bool
}

// formatHasher is a PasswordHasher that can recognize its own hash format.
type formatHasher interface {
	PasswordHasher
	Owns(hash string) bool
}

func emptyPasswordError() error {
	return oops.Code("AUTH_EMPTY_PASSWORD").Wrap(ErrMissingField)
}

// BcryptHasher implements PasswordHasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher with the given work factor.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, oops.Code("AUTH_INVALID_COST").
			With("cost", cost).
			Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Hash produces a bcrypt hash of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", emptyPasswordError()
	}
	if len(password) > MaxBcryptPasswordBytes {
		return "", oops.Code("AUTH_PASSWORD_TOO_LONG").
			With("max_bytes", MaxBcryptPasswordBytes).
			Wrap(ErrPasswordTooLong)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", oops.Code("AUTH_PASSWORD_TOO_LONG").Wrap(ErrPasswordTooLong)
		}
		return "", oops.Code("AUTH_HASH_FAILED").
			With("algorithm", AlgorithmBcrypt).
			Wrap(errors.Join(ErrHashing, err))
	}
	return string(hash), nil
}

// Verify checks if the password matches the bcrypt hash.
// bcrypt compares digests in constant time. Passwords longer than
// MaxBcryptPasswordBytes never match.
func (h *BcryptHasher) Verify(password, hash string) (bool, error) {
	if !h.Owns(hash) {
		return false, nil
	}
	// Mismatch and every parse failure (short hash, bad cost, bad prefix)
	// are negative outcomes, not faults.
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	// bcrypt only reads the first 72 bytes, so longer input could match a
	// hash of its prefix. Hash never stores such a password.
	if len(password) > MaxBcryptPasswordBytes {
		return false, nil
	}
	return err == nil, nil
}

// NeedsUpgrade returns true if the hash is not bcrypt or uses another cost.
func (h *BcryptHasher) NeedsUpgrade(hash string) bool {
	if !h.Owns(hash) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != h.cost
}

// Owns reports whether hash looks like a bcrypt hash.
func (h *BcryptHasher) Owns(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", emptyPasswordError()
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").
			With("algorithm", AlgorithmArgon2id).
			Wrap(errors.Join(ErrHashing, err))
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// PHC string format: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// Verify checks if the password matches the argon2id hash.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	params, ok := parseArgon2id(encodedHash)
	if !ok {
		return false, nil
	}

	computed := argon2.IDKey([]byte(password), params.salt, params.time, params.memory, params.threads, uint32(len(params.key)))

	return subtle.ConstantTimeCompare(computed, params.key) == 1, nil
}

// NeedsUpgrade returns true if the hash is not argon2id.
func (h *Argon2idHasher) NeedsUpgrade(hash string) bool {
	return !h.Owns(hash)
}

// Owns reports whether hash is in argon2id PHC format.
func (h *Argon2idHasher) Owns(hash string) bool {
	return strings.HasPrefix(hash, "$argon2id$")
}

type argon2Params struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

// parseArgon2id decodes a PHC string. ok is false for any malformed input.
func parseArgon2id(encoded string) (argon2Params, bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return argon2Params{}, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argon2Params{}, false
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return argon2Params{}, false
	}
	// Reject values that would truncate or make IDKey panic.
	if threads == 0 || threads > 255 || time == 0 || memory == 0 {
		return argon2Params{}, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return argon2Params{}, false
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > 1<<10 {
		return argon2Params{}, false
	}

	return argon2Params{
		memory:  memory,
		time:    time,
		threads: uint8(threads),
		salt:    salt,
		key:     key,
	}, true
}

// MultiHasher hashes with a preferred algorithm and verifies any known format.
type MultiHasher struct {
	preferred formatHasher
	known     []formatHasher
}

// NewPasswordHasher creates a MultiHasher that hashes with algorithm and can
// verify both bcrypt and argon2id hashes.
func NewPasswordHasher(algorithm string, bcryptCost int) (*MultiHasher, error) {
	if bcryptCost == 0 {
		bcryptCost = DefaultBcryptCost
	}
	bh, err := NewBcryptHasher(bcryptCost)
	if err != nil {
		return nil, err
	}
	ah := NewArgon2idHasher()

	switch algorithm {
	case "", AlgorithmBcrypt:
		return &MultiHasher{preferred: bh, known: []formatHasher{bh, ah}}, nil
	case AlgorithmArgon2id:
		return &MultiHasher{preferred: ah, known: []formatHasher{ah, bh}}, nil
	default:
		return nil, oops.Code("AUTH_UNKNOWN_ALGORITHM").
			With("algorithm", algorithm).
			Errorf("unsupported hash algorithm %q", algorithm)
	}
}

// Hash produces a hash with the preferred algorithm.
func (m *MultiHasher) Hash(password string) (string, error) {
	return m.preferred.Hash(password) //nolint:wrapcheck // already coded by the concrete hasher
}

// Verify dispatches to the hasher owning the hash format.
// Unknown formats verify as false.
func (m *MultiHasher) Verify(password, hash string) (bool, error) {
	for _, h := range m.known {
		if h.Owns(hash) {
			return h.Verify(password, hash) //nolint:wrapcheck // already coded by the concrete hasher
		}
	}
	return false, nil
}

// NeedsUpgrade reports whether hash should be re-created with the preferred hasher.
func (m *MultiHasher) NeedsUpgrade(hash string) bool {
	return m.preferred.NeedsUpgrade(hash)
}

// Compile-time interface checks.
var (
	_ PasswordHasher = (*BcryptHasher)(nil)
	_ PasswordHasher = (*Argon2idHasher)(nil)
	_ PasswordHasher = (*MultiHasher)(nil)
)
