// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

package command

import (
	"github.com/samber/oops"
)

// Construction and dispatch wiring errors. These indicate programming
// mistakes, not user input problems.
var (
	ErrNilRegistry = oops.Errorf("registry must not be nil")
	ErrNilChecker  = oops.Errorf("permission checker must not be nil")
	ErrNilActor    = oops.Errorf("execution actor must not be nil")
	ErrNilServices = oops.Errorf("execution services must not be nil")
)

// Error codes for command dispatch failures.
const (
	CodeUnknownCommand   = "UNKNOWN_COMMAND"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeInvalidArgs      = "INVALID_ARGS"
	CodeAuthDisabled     = "AUTH_DISABLED"
	CodeEmptyInput       = "EMPTY_INPUT"
)

// ErrUnknownCommand creates an error for an unknown command.
func ErrUnknownCommand(cmd string) error {
	return oops.Code(CodeUnknownCommand).
		With("command", cmd).
		Errorf("unknown command: %s", cmd)
}

// ErrPermissionDenied creates an error for permission denial.
func ErrPermissionDenied(cmd, permission string) error {
	return oops.Code(CodePermissionDenied).
		With("command", cmd).
		With("permission", permission).
		Errorf("permission denied for command %s", cmd)
}

// ErrInvalidArgs creates an error for invalid arguments.
func ErrInvalidArgs(cmd, usage string) error {
	return oops.Code(CodeInvalidArgs).
		With("command", cmd).
		With("usage", usage).
		Errorf("invalid arguments")
}

// ErrAuthDisabled creates an error for account commands issued while the
// credential subsystem is switched off.
func ErrAuthDisabled(cmd string) error {
	return oops.Code(CodeAuthDisabled).
		With("command", cmd).
		Errorf("authentication is disabled")
}

// ErrEmptyInput creates an error for blank input lines.
func ErrEmptyInput() error {
	return oops.Code(CodeEmptyInput).Errorf("empty input")
}

// UserMessage extracts a user-facing message from a dispatch error.
func UserMessage(err error) string {
	if err == nil {
		return "Something went wrong. Try again."
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return "Something went wrong. Try again."
	}

	switch oopsErr.Code() {
	case CodeUnknownCommand:
		return "Unknown command. Try 'help'."
	case CodePermissionDenied:
		return "You don't have permission to do that."
	case CodeInvalidArgs:
		if usage, ok := oopsErr.Context()["usage"].(string); ok && usage != "" {
			return "Usage: " + usage
		}
		return "Invalid arguments."
	case CodeAuthDisabled:
		return "Authentication is disabled on this bot."
	case CodeEmptyInput:
		return ""
	default:
		return "Something went wrong. Try again."
	}
}
