// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

// Package perm provides group-based permission storage with inheritance and
// the grant/deny/wildcard matching that decides authorization for every
// privileged command in Crosstalk.
package perm

import "strings"

// Source says where a command was issued from, for source-scoped
// permissions. A message aimed at the bot directly (a private message)
// carries no scope; a message in a channel is scoped to the channel name.
// The protocol adapter decides which once, at the call boundary.
type Source struct {
	name   string
	scoped bool
}

// UnscopedSource returns the Source for user-directed or absent origins.
func UnscopedSource() Source {
	return Source{}
}

// ScopedSource returns a Source scoped to the given channel or context
// name. The name is lower-cased; an empty name yields an unscoped Source.
func ScopedSource(name string) Source {
	if name == "" {
		return Source{}
	}
	return Source{name: strings.ToLower(name), scoped: true}
}

// Scoped returns the scope name and whether the source is scoped at all.
func (s Source) Scoped() (string, bool) {
	return s.name, s.scoped
}

// String implements fmt.Stringer for logging.
func (s Source) String() string {
	if !s.scoped {
		return "<unscoped>"
	}
	return s.name
}
