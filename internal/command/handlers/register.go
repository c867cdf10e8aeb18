// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

package handlers

import (
	"github.com/crosstalkbot/crosstalk/internal/command"
)

// RegisterAll registers all core command handlers with the registry.
// Panics if any registration fails (indicates a programming error).
func RegisterAll(reg *command.Registry) {
	mustRegister := func(entry command.Entry) {
		if err := reg.Register(entry); err != nil {
			panic("failed to register core command " + entry.Name + ": " + err.Error())
		}
	}

	mustRegister(command.Entry{
		Name:       "login",
		Handler:    LoginHandler,
		Permission: "auth.login",
		Help:       "Log in to a registered account",
		Usage:      "login <username> <password>",
		Source:     "core",
	})

	mustRegister(command.Entry{
		Name:       "logout",
		Handler:    LogoutHandler,
		Permission: "auth.logout",
		Help:       "Log out of your account",
		Usage:      "logout",
		Source:     "core",
	})

	mustRegister(command.Entry{
		Name:       "register",
		Handler:    RegisterHandler,
		Permission: "auth.register",
		Help:       "Register a new account",
		Usage:      "register <username> <password>",
		Source:     "core",
	})

	mustRegister(command.Entry{
		Name:       "passwd",
		Handler:    PasswdHandler,
		Permission: "auth.passwd",
		Help:       "Change your account password",
		Usage:      "passwd <old password> <new password>",
		Source:     "core",
	})
}
