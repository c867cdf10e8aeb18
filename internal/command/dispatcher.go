// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

package command

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/crosstalkbot/crosstalk/internal/observability"
	"github.com/crosstalkbot/crosstalk/internal/perm"
)

var tracer = otel.Tracer("crosstalk/command")

// Dispatcher handles command parsing, permission checks, and execution.
type Dispatcher struct {
	registry *Registry
	checker  *perm.Checker
	metrics  *observability.Metrics // optional, can be nil
}

// DispatcherOption configures a Dispatcher during construction.
type DispatcherOption func(*Dispatcher)

// WithMetrics configures the dispatcher to record per-command counters.
func WithMetrics(m *observability.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// NewDispatcher creates a new command dispatcher with the given registry
// and permission checker. Returns an error if either is nil.
func NewDispatcher(registry *Registry, checker *perm.Checker, opts ...DispatcherOption) (*Dispatcher, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if checker == nil {
		return nil, ErrNilChecker
	}
	d := &Dispatcher{
		registry: registry,
		checker:  checker,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch parses and executes a command.
func (d *Dispatcher) Dispatch(ctx context.Context, input string, exec *Execution) (err error) {
	if exec.Actor == nil {
		return ErrNilActor
	}
	if exec.Services == nil {
		return ErrNilServices
	}

	parsed, err := Parse(input)
	if err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "command.execute",
		trace.WithAttributes(
			attribute.String("command.name", parsed.Name),
			attribute.String("actor.name", exec.Actor.Name()),
			attribute.String("protocol", exec.Protocol),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	defer func() {
		if d.metrics == nil {
			return
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		d.metrics.CommandsTotal.WithLabelValues(parsed.Name, status).Inc()
	}()

	entry, ok := d.registry.Get(parsed.Name)
	if !ok {
		err = ErrUnknownCommand(parsed.Name)
		return err
	}

	span.SetAttributes(attribute.String("command.source", entry.Source))

	if entry.Permission != "" {
		allowed, checkErr := d.checker.Check(ctx, entry.Permission, exec.Actor.Session(), exec.Source, exec.Protocol)
		if checkErr != nil {
			err = checkErr
			return err
		}
		if !allowed {
			err = ErrPermissionDenied(parsed.Name, entry.Permission)
			return err
		}
	}

	exec.Args = parsed.Args
	err = entry.Handler(ctx, exec)
	if err != nil {
		slog.WarnContext(ctx, "command execution failed",
			"command", parsed.Name,
			"actor", exec.Actor.Name(),
			"error", err,
		)
	}
	return err
}
