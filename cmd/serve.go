// Package cmd provides the expopulse CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/xowlabs/expopulse/config"
	"github.com/xowlabs/expopulse/pkg/analysis"
	"github.com/xowlabs/expopulse/pkg/db"
	"github.com/xowlabs/expopulse/pkg/diarize"
	"github.com/xowlabs/expopulse/pkg/httpapi"
	"github.com/xowlabs/expopulse/pkg/insights"
	"github.com/xowlabs/expopulse/pkg/llm"
	"github.com/xowlabs/expopulse/pkg/logging"
	"github.com/xowlabs/expopulse/pkg/observability"
	"github.com/xowlabs/expopulse/pkg/pipeline"
	"github.com/xowlabs/expopulse/pkg/queue"
	"github.com/xowlabs/expopulse/pkg/recordings"
)

const staleRecoveryInterval = time.Minute

// NewServeCommand creates the serve command: the API server plus the
// worker pool in one process.
func NewServeCommand() *cobra.Command {
	var migrationsDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and processing workers",
		Long: `Run the expopulse service: the recording API, the dashboard
endpoints, and the worker pool that processes completed recordings.

The service connects to Postgres and Redis on startup, applies any
pending migrations, and serves until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, migrationsDir)
		},
	}

	cmd.Flags().StringVar(&migrationsDir, "migrations", "migrations", "directory containing SQL migrations")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, migrationsDir string) error {
	logger := newLogger(cfg)
	logger.Info("starting expopulse",
		logging.F("environment", cfg.Logging.Environment))

	pool, err := db.ConnectWithRetry(ctx, &db.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	}, 5, 2*time.Second)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if migrationsDir != "" {
		result, err := db.RunMigrations(ctx, pool, migrationsDir)
		if err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		if len(result.Applied) > 0 {
			logger.Info("migrations applied", logging.F("count", len(result.Applied)))
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}

	metrics := observability.DefaultPipelineMetrics()
	tracer := observability.NewTracer()

	if _, err := db.RegisterPoolStatsCollector(pool, nil); err != nil {
		logger.Warn("registering pool stats collector failed", logging.Err(err))
	}

	repo := recordings.NewRepository(pool, logger)
	provider := llm.NewOpenAIProvider(cfg.LLM).WithInstrumentation(tracer, metrics)
	defer provider.Close()

	q := queue.NewRedisQueue(redisClient, queue.Config{
		Name:              cfg.Queue.Name,
		VisibilityTimeout: cfg.Queue.VisibilityTimeout,
		MaxRetries:        cfg.Queue.MaxRetries,
	}, logger, metrics)
	defer q.Close()

	leases := queue.NewLeaseManager(redisClient, cfg.Queue.LeaseTTL, logger)

	processor := pipeline.NewProcessor(pipeline.Config{
		Store:    repo,
		Leases:   pipeline.LeaserFromManager(leases),
		Analyzer: analysis.NewAnalyzer(provider, logger),
		Diarizer: diarize.NewDiarizer(provider, logger),
		Metrics:  metrics,
		Tracer:   tracer,
		Logger:   logger,
	})

	handler := func(ctx context.Context, msg queue.Message) error {
		reason := ""
		if pm, ok := msg.(*queue.ProcessMessage); ok {
			reason = string(pm.Reason)
		}
		return processor.Process(ctx, msg.GetRecordingID(), reason)
	}

	workers := queue.NewPool(queue.WorkerConfig{
		Count:             cfg.Worker.Count,
		BatchSize:         1,
		VisibilityTimeout: cfg.Queue.VisibilityTimeout,
		PollInterval:      cfg.Worker.PollInterval,
		ShutdownTimeout:   cfg.Worker.ShutdownTimeout,
	}, q, handler, logger, metrics)
	workers.Start()

	// Return messages whose workers died mid-run back to the queue, and
	// keep the depth gauge current on the same cadence.
	recoveryDone := make(chan struct{})
	go func() {
		defer close(recoveryDone)
		ticker := time.NewTicker(staleRecoveryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := q.RecoverStaleMessages(); err != nil {
					logger.Warn("stale message recovery failed", logging.Err(err))
				}
				if depth, err := q.Depth(); err == nil {
					metrics.RecordQueueDepth(q.Name(), float64(depth))
				}
			}
		}
	}()

	insightsService := insights.NewService(repo, logger)
	recHandler := httpapi.NewRecordingHandler(repo, q, logger)
	dashHandler := httpapi.NewDashboardHandler(insightsService, repo, logger)
	healthHandler := httpapi.NewHealthHandler(map[string]httpapi.Pinger{
		"database": func(ctx context.Context) error {
			status := db.Check(ctx, pool)
			if status.Error != nil {
				return status.Error
			}
			if !status.SchemaReady {
				return fmt.Errorf("schema not migrated")
			}
			return nil
		},
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}, logger)

	server := httpapi.NewServer(httpapi.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, recHandler, dashHandler, healthHandler, logger)

	obsServer := observability.NewServer(cfg.Observability.MetricsAddr, logger)
	obsServer.Start()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Listen()
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown failed", logging.Err(err))
	}
	workers.Stop()
	<-recoveryDone
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("observability server shutdown failed", logging.Err(err))
	}

	logger.Info("shutdown complete")
	return nil
}

// newLogger builds the service logger from config.
func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(&logging.Config{
		Level:       logging.Level(cfg.Logging.Level),
		ServiceName: "expopulse",
		Environment: cfg.Logging.Environment,
		JSONFormat:  cfg.Logging.JSONFormat,
	})
}
