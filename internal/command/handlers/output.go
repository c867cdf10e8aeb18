// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crosstalkbot/crosstalk/internal/command"
)

// writeOutput writes a reply to the command output and logs any errors.
// Output write failures don't fail the command; the protocol connection may
// simply have dropped.
func writeOutput(ctx context.Context, exec *command.Execution, cmd, msg string) {
	if n, err := fmt.Fprintln(exec.Output, msg); err != nil {
		slog.WarnContext(ctx, "failed to write command output",
			"command", cmd,
			"actor", exec.Actor.Name(),
			"bytes_written", n,
			"error", err,
		)
	}
}
