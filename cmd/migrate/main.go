package main

// Manage the database schema:
//   go run ./cmd/migrate up
//   go run ./cmd/migrate status
//   go run ./cmd/migrate create-admin --username admin --password ...

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"hojaruta-backend/internal/shared/config"
	"hojaruta-backend/internal/shared/storage/db"
	"hojaruta-backend/internal/usuarios"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply and inspect the hoja de ruta database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		schemaCmd("up", "Apply all pending migrations", db.RunMigrations),
		schemaCmd("down", "Roll back the most recent migration", db.RollbackMigration),
		schemaCmd("status", "Print the state of every migration", db.MigrationStatus),
		versionCmd(),
		createAdminCmd(),
	)
	return root
}

func schemaCmd(use, short string, run func(context.Context, *sql.DB) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, sqlDB *sql.DB) error {
				return run(ctx, sqlDB)
			})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, sqlDB *sql.DB) error {
				v, err := db.MigrationVersion(ctx, sqlDB)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			})
		},
	}
}

func createAdminCmd() *cobra.Command {
	var in usuarios.CreateInput
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a developer account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(in.Password) == "" {
				in.Password = os.Getenv("ADMIN_PASSWORD")
			}
			in.Rol = "desarrollador"
			return withDB(cmd.Context(), func(ctx context.Context, sqlDB *sql.DB) error {
				svc := usuarios.NewService(&usuarios.PGRepo{DB: sqlDB})
				u, err := svc.Create(ctx, in)
				if err != nil {
					return fmt.Errorf("create admin: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d)\n", u.Username, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "admin", "login name")
	cmd.Flags().StringVar(&in.Password, "password", "", "password (defaults to $ADMIN_PASSWORD)")
	cmd.Flags().StringVar(&in.NombreCompleto, "name", "Administrador", "full name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	return cmd
}

func withDB(ctx context.Context, fn func(context.Context, *sql.DB) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.Load()
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer sqlDB.Close()
	return fn(ctx, sqlDB)
}
