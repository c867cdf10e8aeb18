// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

package record_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosstalkbot/crosstalk/internal/record"
)

func TestMarshalUnmarshal(t *testing.T) {
	type profile struct {
		Group       string         `json:"group"`
		Permissions []string       `json:"permissions"`
		Options     map[string]any `json:"options"`
	}

	t.Run("struct round-trips through a record", func(t *testing.T) {
		in := profile{
			Group:       "default",
			Permissions: []string{"auth.login"},
			Options:     map[string]any{"superadmin": false},
		}

		rec, err := record.Marshal(in)
		require.NoError(t, err)
		assert.Equal(t, "default", rec["group"])

		var out profile
		require.NoError(t, record.Unmarshal(rec, &out))
		assert.Equal(t, in, out)
	})

	t.Run("marshal rejects unencodable values", func(t *testing.T) {
		_, err := record.Marshal(make(chan int))
		assert.Error(t, err)
	})
}

func TestStrings(t *testing.T) {
	t.Run("passes through a string slice", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b"}, record.Strings([]string{"a", "b"}))
	})

	t.Run("converts a decoded any slice", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b"}, record.Strings([]any{"a", "b"}))
	})

	t.Run("drops non-string elements", func(t *testing.T) {
		assert.Equal(t, []string{"a"}, record.Strings([]any{"a", 42}))
	})

	t.Run("unknown shapes yield nil", func(t *testing.T) {
		assert.Nil(t, record.Strings(nil))
		assert.Nil(t, record.Strings("not a slice"))
	})
}
