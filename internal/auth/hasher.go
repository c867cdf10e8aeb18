// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

// Package auth provides the credential store, password hashing, and the
// password blacklist for Crosstalk.
package auth

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// Hasher produces and verifies salted password digests.
type Hasher interface {
	// Hash returns the digest for the given salt and password.
	Hash(salt, password string) string

	// Verify reports whether digest matches Hash(salt, password).
	Verify(digest, salt, password string) bool
}

// SHA512Hasher implements Hasher as hex-encoded SHA-512 of salt followed by
// password. The algorithm is a compatibility contract with existing account
// records; do not change it without a migration for every stored hash.
type SHA512Hasher struct{}

// NewSHA512Hasher creates a SHA512Hasher.
func NewSHA512Hasher() SHA512Hasher {
	return SHA512Hasher{}
}

// Hash returns hex(sha512(salt + password)). Deterministic, no side effects.
func (SHA512Hasher) Hash(salt, password string) string {
	sum := sha512.Sum512([]byte(salt + password))
	return hex.EncodeToString(sum[:])
}

// Verify compares in constant time.
func (h SHA512Hasher) Verify(digest, salt, password string) bool {
	computed := h.Hash(salt, password)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
