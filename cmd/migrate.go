package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xowlabs/expopulse/config"
	"github.com/xowlabs/expopulse/pkg/db"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	var migrationsDir string
	var dryRun bool
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}
			return runMigrate(cmd.Context(), cfg, migrationsDir, dryRun, wait)
		},
	}

	cmd.Flags().StringVar(&migrationsDir, "migrations", "migrations", "directory containing SQL migrations")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list pending migrations without applying them")
	cmd.Flags().DurationVar(&wait, "wait", 0, "wait up to this long for the database to accept connections")
	return cmd
}

func runMigrate(ctx context.Context, cfg *config.Config, migrationsDir string, dryRun bool, wait time.Duration) error {
	dbCfg := &db.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	}

	attempts := 1
	if wait > 0 {
		attempts = int(wait/time.Second) + 1
	}
	pool, err := db.ConnectWithRetry(ctx, dbCfg, attempts, time.Second)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if dryRun {
		pending, err := db.GetPendingMigrations(ctx, pool, migrationsDir)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("No pending migrations")
			return nil
		}
		for _, m := range pending {
			fmt.Printf("pending: %s\n", m.Version)
		}
		return nil
	}

	result, err := db.RunMigrations(ctx, pool, migrationsDir)
	if err != nil {
		return err
	}
	if len(result.Applied) == 0 {
		fmt.Println("Database is up to date")
		return nil
	}
	for _, version := range result.Applied {
		fmt.Printf("applied: %s\n", version)
	}
	return nil
}
