// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

// White-box tests: category counting needs the internal alphabets.
package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countCategory reports how many characters of s belong to alphabet.
func countCategory(s, alphabet string) int {
	n := 0
	for _, r := range s {
		if strings.ContainsRune(alphabet, r) {
			n++
		}
	}
	return n
}

func TestGeneratePassword(t *testing.T) {
	t.Run("has exactly the requested length", func(t *testing.T) {
		p, err := GeneratePassword(32, 10, 11, 11)
		require.NoError(t, err)
		assert.Len(t, p, 32)
	})

	t.Run("meets every category minimum", func(t *testing.T) {
		for range 20 {
			p, err := GeneratePassword(32, 10, 11, 11)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, countCategory(p, passwordDigits), 10)
			assert.GreaterOrEqual(t, countCategory(p, passwordUppercase), 11)
			assert.GreaterOrEqual(t, countCategory(p, passwordLowercase), 11)
		}
	})

	t.Run("never contains ambiguous letters", func(t *testing.T) {
		for range 20 {
			p, err := GeneratePassword(64, 21, 22, 21)
			require.NoError(t, err)
			assert.NotContains(t, p, "o")
			assert.NotContains(t, p, "O")
		}
	})

	t.Run("draws only from the known alphabets", func(t *testing.T) {
		all := passwordDigits + passwordUppercase + passwordLowercase
		p, err := GeneratePassword(64, 21, 22, 21)
		require.NoError(t, err)
		for _, r := range p {
			assert.True(t, strings.ContainsRune(all, r), "unexpected character %q", r)
		}
	})

	t.Run("successive calls differ", func(t *testing.T) {
		p1, err := GeneratePassword(32, 10, 11, 11)
		require.NoError(t, err)
		p2, err := GeneratePassword(32, 10, 11, 11)
		require.NoError(t, err)
		assert.NotEqual(t, p1, p2)
	})

	t.Run("rejects minimums exceeding the length", func(t *testing.T) {
		_, err := GeneratePassword(10, 5, 5, 5)
		assert.Error(t, err)
	})

	t.Run("rejects non-positive length", func(t *testing.T) {
		_, err := GeneratePassword(0, 0, 0, 0)
		assert.Error(t, err)
	})

	t.Run("rejects negative minimums", func(t *testing.T) {
		_, err := GeneratePassword(10, -1, 0, 0)
		assert.Error(t, err)
	})
}

func TestGenerateSalt(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	assert.Len(t, salt, 64)
	assert.GreaterOrEqual(t, countCategory(salt, passwordDigits), 21)
	assert.GreaterOrEqual(t, countCategory(salt, passwordUppercase), 22)
	assert.GreaterOrEqual(t, countCategory(salt, passwordLowercase), 21)
}

func TestGenerateBootstrapPassword(t *testing.T) {
	p, err := GenerateBootstrapPassword()
	require.NoError(t, err)
	assert.Len(t, p, 32)
	assert.GreaterOrEqual(t, countCategory(p, passwordDigits), 10)
	assert.GreaterOrEqual(t, countCategory(p, passwordUppercase), 11)
	assert.GreaterOrEqual(t, countCategory(p, passwordLowercase), 11)
}

func TestSessionTransitions(t *testing.T) {
	t.Run("new sessions are anonymous with distinct IDs", func(t *testing.T) {
		s1 := NewSession()
		s2 := NewSession()
		assert.False(t, s1.Authorized)
		assert.Empty(t, s1.AuthName)
		assert.NotEqual(t, s1.ID, s2.ID)
	})

	t.Run("authorize and clear keep the ID stable", func(t *testing.T) {
		s := NewSession()
		id := s.ID

		s.authorize("alice")
		assert.True(t, s.Authorized)
		assert.Equal(t, "alice", s.AuthName)
		assert.Equal(t, id, s.ID)

		s.clear()
		assert.False(t, s.Authorized)
		assert.Empty(t, s.AuthName)
		assert.Equal(t, id, s.ID)
	})
}
