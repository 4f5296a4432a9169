package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/xowlabs/expopulse/config"
	"github.com/xowlabs/expopulse/pkg/analysis"
	"github.com/xowlabs/expopulse/pkg/db"
	"github.com/xowlabs/expopulse/pkg/diarize"
	"github.com/xowlabs/expopulse/pkg/llm"
	"github.com/xowlabs/expopulse/pkg/pipeline"
	"github.com/xowlabs/expopulse/pkg/queue"
	"github.com/xowlabs/expopulse/pkg/recordings"
)

// NewProcessCommand creates the process command: a one-shot pipeline run
// for a single recording, bypassing the queue.
func NewProcessCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "process <recording-id>",
		Short: "Run the processing pipeline for one recording",
		Long: `Run analysis, diarization, correlation, and badge assembly for a
single recording and wait for the result. Useful for debugging a
recording that failed, without going through the queue.

Examples:
  # Process a recording directly
  expopulse process 2f1b9c4e-8a07-4f7d-9a61-0c2d83f8a111`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}
			return runProcess(cmd.Context(), cfg, args[0])
		},
	}
}

func runProcess(ctx context.Context, cfg *config.Config, recordingID string) error {
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

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}

	provider := llm.NewOpenAIProvider(cfg.LLM)
	defer provider.Close()

	repo := recordings.NewRepository(pool, logger)
	leases := queue.NewLeaseManager(redisClient, cfg.Queue.LeaseTTL, logger)

	processor := pipeline.NewProcessor(pipeline.Config{
		Store:    repo,
		Leases:   pipeline.LeaserFromManager(leases),
		Analyzer: analysis.NewAnalyzer(provider, logger),
		Diarizer: diarize.NewDiarizer(provider, logger),
		Logger:   logger,
	})

	start := time.Now()
	if err := processor.Process(ctx, recordingID, string(queue.ReasonReprocess)); err != nil {
		return fmt.Errorf("processing recording %s: %w", recordingID, err)
	}

	rec, err := repo.Get(ctx, recordingID)
	if err != nil {
		return err
	}
	fmt.Printf("Recording %s processed in %s (status: %s)\n",
		recordingID, time.Since(start).Round(time.Millisecond), rec.Status)
	return nil
}
