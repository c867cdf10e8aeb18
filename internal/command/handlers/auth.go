// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

// Package handlers implements the core account commands.
package handlers

import (
	"context"

	"github.com/samber/oops"

	"github.com/crosstalkbot/crosstalk/internal/command"
	"github.com/crosstalkbot/crosstalk/internal/observability"
)

// LoginHandler authenticates the actor against a stored account.
func LoginHandler(ctx context.Context, exec *command.Execution) error {
	creds := exec.Services.Credentials
	if creds == nil {
		return command.ErrAuthDisabled("login")
	}
	if len(exec.Args) != 2 {
		return command.ErrInvalidArgs("login", "login <username> <password>")
	}
	username, password := exec.Args[0], exec.Args[1]

	session := exec.Actor.Session()
	if session.Authorized {
		writeOutput(ctx, exec, "login", "You are already logged in as "+session.AuthName+".")
		return nil
	}

	ok, err := creds.Login(ctx, exec.Actor, exec.Protocol, username, password)
	if err != nil {
		return oops.With("command", "login").Wrap(err)
	}
	observability.RecordLoginAttempt(ok)
	if !ok {
		writeOutput(ctx, exec, "login", "Invalid username or password.")
		return nil
	}

	writeOutput(ctx, exec, "login", "You are now logged in as "+session.AuthName+".")
	return nil
}

// LogoutHandler clears the actor's session.
func LogoutHandler(ctx context.Context, exec *command.Execution) error {
	creds := exec.Services.Credentials
	if creds == nil {
		return command.ErrAuthDisabled("logout")
	}

	if !creds.Logout(ctx, exec.Actor, exec.Protocol) {
		writeOutput(ctx, exec, "logout", "You are not logged in.")
		return nil
	}
	writeOutput(ctx, exec, "logout", "You have been logged out.")
	return nil
}

// RegisterHandler creates a new account. When invoked from a channel the
// password is visible to everyone there, so registration is refused and the
// attempted password is blacklisted for that username.
func RegisterHandler(ctx context.Context, exec *command.Execution) error {
	creds := exec.Services.Credentials
	if creds == nil {
		return command.ErrAuthDisabled("register")
	}
	if len(exec.Args) != 2 {
		return command.ErrInvalidArgs("register", "register <username> <password>")
	}
	username, password := exec.Args[0], exec.Args[1]

	if _, scoped := exec.Source.Scoped(); scoped {
		if bl := creds.Blacklist(); bl != nil {
			if _, err := bl.BlacklistPassword(ctx, password, username); err != nil {
				return oops.With("command", "register").Wrap(err)
			}
		}
		writeOutput(ctx, exec, "register",
			"You can't register in a channel! Everyone can see your password here. "+
				"That password has been disallowed for this username; register again "+
				"in a private message, with a different password.")
		return nil
	}

	exists, err := creds.UserExists(ctx, username)
	if err != nil {
		return oops.With("command", "register").Wrap(err)
	}
	if exists {
		writeOutput(ctx, exec, "register", "That username is already registered.")
		return nil
	}

	if bl := creds.Blacklist(); bl != nil {
		banned, err := bl.PasswordBlacklisted(ctx, password, username)
		if err != nil {
			return oops.With("command", "register").Wrap(err)
		}
		if banned {
			writeOutput(ctx, exec, "register", "That password is too common. Pick another one.")
			return nil
		}
	}

	created, err := creds.CreateUser(ctx, username, password)
	if err != nil {
		return oops.With("command", "register").Wrap(err)
	}
	if !created {
		writeOutput(ctx, exec, "register", "That username is already registered.")
		return nil
	}

	if perms := exec.Services.Permissions; perms != nil {
		if _, err := perms.CreateUser(ctx, username); err != nil {
			return oops.With("command", "register").Wrap(err)
		}
	}

	// Convenience: a freshly registered user is logged straight in.
	if _, err := creds.Login(ctx, exec.Actor, exec.Protocol, username, password); err != nil {
		return oops.With("command", "register").Wrap(err)
	}
	writeOutput(ctx, exec, "register", "Registered and logged in as "+username+".")
	return nil
}

// PasswdHandler rotates the logged-in account's password.
func PasswdHandler(ctx context.Context, exec *command.Execution) error {
	creds := exec.Services.Credentials
	if creds == nil {
		return command.ErrAuthDisabled("passwd")
	}
	if len(exec.Args) != 2 {
		return command.ErrInvalidArgs("passwd", "passwd <old password> <new password>")
	}
	old, newPassword := exec.Args[0], exec.Args[1]

	session := exec.Actor.Session()
	if !session.Authorized {
		writeOutput(ctx, exec, "passwd", "You must be logged in to change your password.")
		return nil
	}

	if bl := creds.Blacklist(); bl != nil {
		banned, err := bl.PasswordBlacklisted(ctx, newPassword, session.AuthName)
		if err != nil {
			return oops.With("command", "passwd").Wrap(err)
		}
		if banned {
			writeOutput(ctx, exec, "passwd", "That password is too common. Pick another one.")
			return nil
		}
	}

	changed, err := creds.ChangePassword(ctx, session.AuthName, old, newPassword)
	if err != nil {
		return oops.With("command", "passwd").Wrap(err)
	}
	if !changed {
		writeOutput(ctx, exec, "passwd", "Old password is incorrect.")
		return nil
	}
	writeOutput(ctx, exec, "passwd", "Password changed.")
	return nil
}
