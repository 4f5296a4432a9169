package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xowlabs/expopulse/config"
	"github.com/xowlabs/expopulse/pkg/db"
	"github.com/xowlabs/expopulse/pkg/insights"
	"github.com/xowlabs/expopulse/pkg/recordings"
)

// NewInsightsCommand creates the insights command: print the dashboard
// aggregates without running the server.
func NewInsightsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Print the dashboard aggregates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}
			return runInsights(cmd.Context(), cfg, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of text")
	return cmd
}

func runInsights(ctx context.Context, cfg *config.Config, asJSON bool) error {
	logger := newLogger(cfg)

	pool, err := db.Connect(ctx, &db.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	repo := recordings.NewRepository(pool, logger)
	dash, err := insights.NewService(repo, logger).Dashboard(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(dash)
	}

	fmt.Printf("Recordings:       %d\n", dash.TotalRecordings)
	fmt.Printf("Visitors:         %d\n", dash.TotalVisitors)
	fmt.Printf("Recorded hours:   %.1f\n", dash.TotalDurationHours)
	if len(dash.TopTopics) > 0 {
		fmt.Println("Top topics:")
		for _, topic := range dash.TopTopics {
			fmt.Printf("  - %s\n", topic)
		}
	}
	if len(dash.TopQuestions) > 0 {
		fmt.Println("Top questions:")
		for _, q := range dash.TopQuestions {
			fmt.Printf("  - %s\n", q)
		}
	}
	return nil
}
