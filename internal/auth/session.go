// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

package auth

import "github.com/oklog/ulid/v2"

// Session is the engine-owned authorization state attached to a connected
// actor. Invariant: AuthName is non-empty exactly when Authorized is true.
// Only this package mutates sessions; the surrounding host treats them as
// opaque.
type Session struct {
	// ID identifies the connection for log correlation. It is assigned at
	// connect time and never changes across login/logout.
	ID ulid.ULID

	Authorized bool
	AuthName   string
}

// NewSession creates an anonymous session with a fresh connection ID.
func NewSession() *Session {
	return &Session{ID: ulid.Make()}
}

// authorize moves the session to the authenticated state.
func (s *Session) authorize(username string) {
	s.Authorized = true
	s.AuthName = username
}

// clear returns the session to the anonymous state.
func (s *Session) clear() {
	s.Authorized = false
	s.AuthName = ""
}

// Actor is a session-bearing caller: a connected user on some protocol.
// Implementations are owned by the protocol adapters.
type Actor interface {
	// Name returns the actor's protocol-level name (nickname), used only
	// for logging. It is unrelated to the account name in Session.AuthName.
	Name() string

	// Session returns the actor's mutable session state.
	Session() *Session
}
