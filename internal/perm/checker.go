// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

package perm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/samber/oops"

	"github.com/crosstalkbot/crosstalk/internal/auth"
	"github.com/crosstalkbot/crosstalk/internal/observability"
)

// Checker is the authorization facade protocol adapters and the command
// dispatcher call. It maps the caller's session state to the right
// evaluation path: authorized sessions are checked as their account,
// everyone else is checked against the default group.
type Checker struct {
	store     *Store
	superuser bool
	logger    *slog.Logger
}

// NewChecker creates a Checker over the permission store. superuser
// controls whether the superadmin option is honored during evaluation;
// operators can switch it off to make superadmins subject to ordinary
// permission rules.
func NewChecker(store *Store, superuser bool, logger *slog.Logger) (*Checker, error) {
	if store == nil {
		return nil, oops.Code("PERM_NIL_STORE").New("permission store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{store: store, superuser: superuser, logger: logger}, nil
}

// Check reports whether the caller holds the permission. A nil caller or an
// unauthorized session is evaluated against the default group; an
// authorized session is evaluated as its account, with group fallback and
// (when enabled) the superadmin bypass. The permission, protocol, and
// source are lower-cased before evaluation.
func (c *Checker) Check(ctx context.Context, permission string, caller *auth.Session, source Source, protocol string) (bool, error) {
	permission = strings.ToLower(permission)
	protocol = strings.ToLower(protocol)

	var (
		allowed bool
		err     error
	)
	if caller == nil || !caller.Authorized {
		allowed, err = c.store.GroupHasPermission(ctx, DefaultGroup, permission, protocol, source)
	} else {
		opts := DefaultEvalOptions()
		opts.CheckSuperadmin = c.superuser
		allowed, err = c.store.UserHasPermission(ctx, caller.AuthName, permission, protocol, source, opts)
	}
	if err != nil {
		return false, oops.Code("PERM_CHECK_FAILED").With("permission", permission).Wrap(err)
	}

	observability.RecordPermissionCheck(allowed)
	c.logger.Debug("permission check",
		"permission", permission,
		"caller", callerName(caller),
		"source", source.String(),
		"protocol", protocol,
		"allowed", allowed)
	return allowed, nil
}

func callerName(caller *auth.Session) string {
	if caller == nil || !caller.Authorized {
		return "<anonymous>"
	}
	return caller.AuthName
}
