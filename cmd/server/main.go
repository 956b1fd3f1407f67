package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"venuebook/backend/internal/config"
	"venuebook/backend/internal/httpapi"
	"venuebook/backend/internal/observability"
	pgstore "venuebook/backend/internal/store/postgres"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:           "venuebook",
		Short:         "Venue pricing and booking backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.AddCommand(serve, newMigrateCmd(), newTokenCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required for migrate")
			}
			logger, err := observability.NewLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer syncLogger(logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			pg, err := pgstore.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pg.Close()

			if err := pg.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("schema applied")
			if seed {
				if err := pg.Seed(ctx); err != nil {
					return fmt.Errorf("seed: %w", err)
				}
				logger.Info("demo data seeded")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "load the demo catalog after migrating")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var subject, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if err := cfg.ValidateSecurityConfig(); err != nil {
				return fmt.Errorf("invalid security configuration: %w", err)
			}
			auth := httpapi.NewAuthManager(cfg.JWTSecret, cfg.AdminTokenTTL)
			token, expiresAt, err := auth.Issue(subject, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject, usually an operator email")
	cmd.Flags().StringVar(&role, "role", "admin", "role claim")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func syncLogger(logger *zap.Logger) {
	_ = logger.Sync()
}
