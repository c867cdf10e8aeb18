// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

package perm

import (
	"log/slog"
	"strings"

	"github.com/gobwas/glob"
)

// DenyPrefix marks a permission node as an explicit denial.
const DenyPrefix = "^"

// MatchOptions controls ComparePermissions.
type MatchOptions struct {
	// Wildcard enables glob matching of nodes against the target; when
	// false, nodes must equal the target exactly (case-insensitively).
	Wildcard bool

	// RespectDeny makes nodes prefixed with DenyPrefix veto the check.
	// When false, deny nodes are ignored entirely.
	RespectDeny bool
}

// DefaultMatchOptions enables wildcards and deny nodes.
func DefaultMatchOptions() MatchOptions {
	return MatchOptions{Wildcard: true, RespectDeny: true}
}

// ComparePermissions reports whether target is granted by the node set.
// Deny nodes are evaluated first: if any matches, the result is false no
// matter what grants exist or in what order the nodes appear. Only then are
// grant nodes tried; any match grants. No match at all denies.
//
// This is a pure string/set algorithm with no knowledge of users or groups.
// Globs are compiled without a separator, so `*` spans dots: "factoids.*"
// matches "factoids.get.foo".
func ComparePermissions(target string, nodes []string, opts MatchOptions) bool {
	target = strings.ToLower(target)

	var grant, deny []string
	for _, node := range nodes {
		if stripped, isDeny := strings.CutPrefix(node, DenyPrefix); isDeny {
			deny = append(deny, stripped)
		} else {
			grant = append(grant, node)
		}
	}

	if opts.RespectDeny {
		for _, node := range deny {
			if nodeMatches(target, node, opts.Wildcard) {
				return false
			}
		}
	}

	for _, node := range grant {
		if nodeMatches(target, node, opts.Wildcard) {
			return true
		}
	}
	return false
}

func nodeMatches(target, node string, wildcard bool) bool {
	node = strings.ToLower(node)
	if !wildcard {
		return target == node
	}

	g, err := glob.Compile(node)
	if err != nil {
		// A malformed node grants (or denies) nothing.
		slog.Debug("skipping malformed permission node", "node", node, "error", err)
		return false
	}
	return g.Match(target)
}
