// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

// Package command provides the command registry, parser, and dispatch system.
package command

import (
	"context"
	"io"

	"github.com/crosstalkbot/crosstalk/internal/auth"
	"github.com/crosstalkbot/crosstalk/internal/perm"
)

// Handler is the function signature for command handlers.
type Handler func(ctx context.Context, exec *Execution) error

// Entry represents a registered command in the registry.
type Entry struct {
	Name       string  // canonical name (e.g., "login")
	Handler    Handler // command implementation
	Permission string  // permission node required to run it, "" for none
	Help       string  // short description (one line)
	Usage      string  // usage pattern (e.g., "login <username> <password>")
	Source     string  // "core" or the name of the registering collaborator
}

// Execution provides context for one command invocation: who issued it,
// over which protocol, from which source, and where replies go.
type Execution struct {
	Actor    auth.Actor
	Protocol string
	Source   perm.Source
	Args     []string
	Output   io.Writer
	Services *Services
}

// Services provides access to core services for command handlers.
// Handlers MUST NOT store references to services beyond execution.
type Services struct {
	Credentials *auth.CredentialStore // nil when the auth subsystem is disabled
	Permissions *perm.Store           // nil when the permission subsystem is disabled
	Checker     *perm.Checker         // authorization facade, always set
}
