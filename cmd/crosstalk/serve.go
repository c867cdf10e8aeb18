// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crosstalkbot/crosstalk/internal/auth"
	"github.com/crosstalkbot/crosstalk/internal/command"
	"github.com/crosstalkbot/crosstalk/internal/command/handlers"
	"github.com/crosstalkbot/crosstalk/internal/config"
	"github.com/crosstalkbot/crosstalk/internal/logging"
	"github.com/crosstalkbot/crosstalk/internal/observability"
	"github.com/crosstalkbot/crosstalk/internal/perm"
	"github.com/crosstalkbot/crosstalk/internal/record"
)

// Bucket names in the shared records table.
const (
	bucketAccounts    = "accounts"
	bucketBlacklist   = "blacklist"
	bucketPermissions = "permissions"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bot host",
		Long: `Start the bot host: the credential and permission engine, the command
dispatcher, and a local console for issuing commands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, nil)
		},
	}

	cmd.Flags().Bool("use-auth", true, "enable the credential subsystem")
	cmd.Flags().Bool("use-permissions", true, "enable the permission subsystem")
	cmd.Flags().Bool("use-superuser", true, "honor the superadmin option in permission checks")
	cmd.Flags().String("database-url", "", "PostgreSQL connection string (empty = in-memory store)")
	cmd.Flags().String("log-format", "text", "log format (json or text)")
	cmd.Flags().String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")

	return cmd
}

// runServe starts the bot host with injectable dependencies.
// If deps is nil, default implementations are used.
func runServe(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.PoolOpener == nil {
		deps.PoolOpener = record.OpenPool
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, rc observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, rc)
		}
	}
	if deps.Input == nil {
		deps.Input = os.Stdin
	}
	if deps.Output == nil {
		deps.Output = os.Stdout
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("crosstalk", version, cfg.LogFormat)
	logger := slog.Default()

	logger.Info("starting bot host",
		"use_auth", cfg.UseAuth,
		"use_permissions", cfg.UsePermissions,
		"use_superuser", cfg.UseSuperuser,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stores, cleanup, err := openStores(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	services, checker, err := buildEngine(ctx, cfg, stores, logger)
	if err != nil {
		return err
	}

	registry := command.NewRegistry()
	handlers.RegisterAll(registry)

	// Start observability server if configured
	var obsServer ObservabilityServer
	var dispatcherOpts []command.DispatcherOption
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, func() bool { return true })
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		dispatcherOpts = append(dispatcherOpts, command.WithMetrics(obsServer.Metrics()))
	}

	dispatcher, err := command.NewDispatcher(registry, checker, dispatcherOpts...)
	if err != nil {
		return err
	}

	// Local console: the one protocol adapter that ships in-process.
	console := newConsole(deps.Input, deps.Output, dispatcher, services, logger)
	consoleDone := console.run(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Bot host started")
	logger.Info("bot host ready")

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-consoleDone:
		logger.Info("console closed, shutting down")
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	cancel()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// openStores opens the three record stores, backed by PostgreSQL when a
// database URL is configured and by process memory otherwise.
func openStores(ctx context.Context, cfg config.Config, deps *ServeDeps, logger *slog.Logger) (storeSet, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("no database configured; state will not survive a restart")
		return storeSet{
			accounts:    record.NewMemoryStore(),
			blacklist:   record.NewMemoryStore(),
			permissions: record.NewMemoryStore(),
		}, func() {}, nil
	}

	pool, err := deps.PoolOpener(ctx, cfg.DatabaseURL)
	if err != nil {
		return storeSet{}, nil, err
	}
	cleanup := pool.Close

	accounts, err := record.NewPostgresStore(pool, bucketAccounts)
	if err != nil {
		cleanup()
		return storeSet{}, nil, err
	}
	blacklist, err := record.NewPostgresStore(pool, bucketBlacklist)
	if err != nil {
		cleanup()
		return storeSet{}, nil, err
	}
	permissions, err := record.NewPostgresStore(pool, bucketPermissions)
	if err != nil {
		cleanup()
		return storeSet{}, nil, err
	}

	logger.Info("connected to database")
	return storeSet{accounts: accounts, blacklist: blacklist, permissions: permissions}, cleanup, nil
}

// buildEngine wires the credential and permission subsystems per the
// configuration. The permission store always exists so the checker can
// evaluate the default group; with use-permissions off it lives in memory
// and holds only the baseline grants.
func buildEngine(ctx context.Context, cfg config.Config, stores storeSet, logger *slog.Logger) (*command.Services, *perm.Checker, error) {
	permData := stores.permissions
	if !cfg.UsePermissions {
		permData = record.NewMemoryStore()
	}

	permissions, err := perm.NewStore(ctx, permData, logger)
	if err != nil {
		return nil, nil, err
	}

	checker, err := perm.NewChecker(permissions, cfg.UseSuperuser, logger)
	if err != nil {
		return nil, nil, err
	}

	services := &command.Services{Checker: checker}
	if cfg.UsePermissions {
		services.Permissions = permissions
	}

	if cfg.UseAuth {
		blacklist, err := auth.NewBlacklist(ctx, stores.blacklist, logger)
		if err != nil {
			return nil, nil, err
		}

		var registrar auth.PermissionRegistrar
		if cfg.UsePermissions {
			registrar = permissions
		}

		creds, err := auth.NewCredentialStore(ctx, stores.accounts, blacklist, registrar, auth.NewSHA512Hasher(), logger)
		if err != nil {
			return nil, nil, err
		}
		services.Credentials = creds
	}

	return services, checker, nil
}

// monitorServerErrors monitors a server's error channel and cancels the
// context on error so a failing server shuts the whole process down.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
