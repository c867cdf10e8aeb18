// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

package perm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosstalkbot/crosstalk/internal/auth"
	"github.com/crosstalkbot/crosstalk/internal/perm"
)

func newChecker(t *testing.T, superuser bool) (*perm.Store, *perm.Checker) {
	t.Helper()
	s := newPermStore(t)
	c, err := perm.NewChecker(s, superuser, nil)
	require.NoError(t, err)
	return s, c
}

// authorizedSession builds a session in the logged-in state the way the
// credential store would leave it.
func authorizedSession(t *testing.T, username string) *auth.Session {
	t.Helper()
	s := auth.NewSession()
	s.Authorized = true
	s.AuthName = username
	return s
}

func TestCheckerAnonymous(t *testing.T) {
	ctx := context.Background()
	unscoped := perm.UnscopedSource()
	_, c := newChecker(t, true)

	t.Run("nil caller falls back to the default group", func(t *testing.T) {
		ok, err := c.Check(ctx, "auth.register", nil, unscoped, "irc")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = c.Check(ctx, "admin.shutdown", nil, unscoped, "irc")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("an unauthorized session counts as anonymous", func(t *testing.T) {
		session := auth.NewSession()

		ok, err := c.Check(ctx, "auth.login", session, unscoped, "irc")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = c.Check(ctx, "admin.shutdown", session, unscoped, "irc")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCheckerAuthorized(t *testing.T) {
	ctx := context.Background()
	unscoped := perm.UnscopedSource()
	s, c := newChecker(t, true)

	created, err := s.CreateUser(ctx, "alice")
	require.NoError(t, err)
	require.True(t, created)
	added, err := s.AddUserPermission(ctx, "alice", "factoids.set", "", unscoped)
	require.NoError(t, err)
	require.True(t, added)

	t.Run("evaluates the session's account", func(t *testing.T) {
		session := authorizedSession(t, "alice")

		ok, err := c.Check(ctx, "factoids.set", session, unscoped, "irc")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = c.Check(ctx, "admin.shutdown", session, unscoped, "irc")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("permission and protocol are case-insensitive", func(t *testing.T) {
		session := authorizedSession(t, "alice")

		ok, err := c.Check(ctx, "Factoids.Set", session, unscoped, "IRC")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestCheckerSuperuser(t *testing.T) {
	ctx := context.Background()
	unscoped := perm.UnscopedSource()

	setup := func(t *testing.T, superuser bool) *perm.Checker {
		s, c := newChecker(t, superuser)
		created, err := s.CreateUser(ctx, "root")
		require.NoError(t, err)
		require.True(t, created)
		set, err := s.SetUserOption(ctx, "root", "superadmin", true)
		require.NoError(t, err)
		require.True(t, set)
		return c
	}

	t.Run("honors superadmin when enabled", func(t *testing.T) {
		c := setup(t, true)
		ok, err := c.Check(ctx, "absolutely.anything", authorizedSession(t, "root"), unscoped, "irc")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ignores superadmin when disabled", func(t *testing.T) {
		c := setup(t, false)
		ok, err := c.Check(ctx, "absolutely.anything", authorizedSession(t, "root"), unscoped, "irc")
		require.NoError(t, err)
		assert.False(t, ok)

		// Ordinary evaluation still applies.
		ok, err = c.Check(ctx, "auth.login", authorizedSession(t, "root"), unscoped, "irc")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestNewChecker(t *testing.T) {
	_, err := perm.NewChecker(nil, true, nil)
	assert.Error(t, err)
}
