// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/crosstalkbot/crosstalk/internal/auth"
	"github.com/crosstalkbot/crosstalk/internal/command"
	"github.com/crosstalkbot/crosstalk/internal/perm"
)

// consoleProtocol is the protocol name the local console dispatches under.
const consoleProtocol = "console"

// consoleActor is the local operator at the terminal. Console input is
// user-directed, so its source is always unscoped.
type consoleActor struct {
	session *auth.Session
}

func (a *consoleActor) Name() string {
	return "console"
}

func (a *consoleActor) Session() *auth.Session {
	return a.session
}

// console reads command lines from input and dispatches them.
type console struct {
	input      io.Reader
	output     io.Writer
	dispatcher *command.Dispatcher
	services   *command.Services
	actor      *consoleActor
	logger     *slog.Logger
}

func newConsole(input io.Reader, output io.Writer, dispatcher *command.Dispatcher, services *command.Services, logger *slog.Logger) *console {
	return &console{
		input:      input,
		output:     output,
		dispatcher: dispatcher,
		services:   services,
		actor:      &consoleActor{session: auth.NewSession()},
		logger:     logger,
	}
}

// run starts the read loop in a goroutine and returns a channel closed when
// input is exhausted. Dispatch errors are reported to the console, never
// fatal to the host.
func (c *console) run(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)

		scanner := bufio.NewScanner(c.input)
		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}

			line := scanner.Text()
			exec := &command.Execution{
				Actor:    c.actor,
				Protocol: consoleProtocol,
				Source:   perm.UnscopedSource(),
				Output:   c.output,
				Services: c.services,
			}

			if err := c.dispatcher.Dispatch(ctx, line, exec); err != nil {
				if msg := command.UserMessage(err); msg != "" {
					fmt.Fprintln(c.output, msg)
				}
			}
		}
		if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			c.logger.Warn("console input error", "error", err)
		}
	}()

	return done
}
