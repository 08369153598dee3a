// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/vigil/internal/auth"
	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/logging"
)

// configPath is set by the persistent --config flag.
var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vigil",
		Short: "Behavioral anti-cheat detection engine",
		Long: `Vigil scores per-player telemetry against per-channel limits and
escalates suspicious subjects from clean to warned, kicked and banned.

Running vigil without a subcommand starts the server.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logging.Init(logging.ConfigFromEnv())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path (default: CONFIG_PATH or config.yaml search)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newCheckConfigCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the detection server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		user string
		role string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a staff JWT signed with the configured secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return issueToken(cmd.OutOrStdout(), cfg.Auth, user, auth.Role(role))
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Staff username (required)")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleViewer), "Role: viewer, moderator or admin")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"configuration valid: %d channels, auth mode %s, api %s\n",
				len(cfg.Detection.Channels), cfg.Auth.Mode, cfg.API.Addr())
			return err
		},
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// issueToken writes a signed token for user to w.
func issueToken(w io.Writer, cfg auth.Config, user string, role auth.Role) error {
	if user == "" {
		return fmt.Errorf("user is required")
	}
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	if cfg.Mode != auth.ModeJWT {
		return fmt.Errorf("tokens require auth mode %q, got %q", auth.ModeJWT, cfg.Mode)
	}

	manager, err := auth.NewJWTManager(cfg)
	if err != nil {
		return fmt.Errorf("create JWT manager: %w", err)
	}
	token, err := manager.GenerateToken(user, role)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
