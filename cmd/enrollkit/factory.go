package main

import (
	"fmt"
	"log/slog"
	"os"

	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/enrollkit/enrollkit"
	"github.com/enrollkit/enrollkit/internal/config"
	"github.com/enrollkit/enrollkit/internal/logging"
	"github.com/enrollkit/enrollkit/internal/runtime"
	"github.com/enrollkit/enrollkit/pkg/adapters/openai"
	redisAdapter "github.com/enrollkit/enrollkit/pkg/adapters/redis"
	"github.com/enrollkit/enrollkit/pkg/observability"
	"github.com/enrollkit/enrollkit/pkg/queryguard"
	"github.com/enrollkit/enrollkit/pkg/security"
)

func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}
	return cfg, logging.New(level), nil
}

// buildEngine assembles the engine from configuration. The returned cleanup
// stops the engine's background watchers and closes the Redis client when
// one was opened.
func buildEngine(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*enrollkit.Engine, func(), error) {
	cleanup := func() {}

	opts := []enrollkit.Option{
		enrollkit.WithLogger(logger),
		enrollkit.WithSecurityConfig(security.Config{
			Budget: security.BudgetConfig{
				MaxInputTokens:    cfg.Security.MaxInputTokens,
				DailyCeiling:      cfg.Security.DailyCeiling,
				CostPerKiloTokens: cfg.Security.CostPerKiloTokens,
			},
			Truncation: security.TruncationConfig{MaxChars: cfg.Security.MaxChars},
			Blocklist:  security.BlocklistConfig{Path: cfg.Security.BlocklistPath, Watch: true},
		}),
		enrollkit.WithRuntimeOptions(
			runtime.WithMaxErrors(cfg.Workflow.MaxErrors),
			runtime.WithInterruptTTL(cfg.Workflow.InterruptTTL.Std()),
		),
	}

	if metrics != nil {
		opts = append(opts, enrollkit.WithLifecycleHooks(metrics.Hooks()))
	}

	if cfg.Redis.Addr != "" {
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cleanup = func() { client.Close() }

		store := redisAdapter.NewFromClient(client, redisAdapter.WithTTL(cfg.Redis.TTL.Std()))
		opts = append(opts,
			enrollkit.WithStore(store),
			enrollkit.WithLocker(redisAdapter.NewLocker(client, "enrollkit:")),
			enrollkit.WithLockTTL(cfg.Workflow.LockTTL.Std()),
		)
		logger.Info("using redis checkpoint store", "addr", cfg.Redis.Addr)
	} else {
		logger.Info("using in-memory checkpoint store")
	}

	if cfg.LLM.APIKey != "" {
		gen := openai.New(cfg.LLM.APIKey, cfg.LLM.Model, openai.WithBaseURL(cfg.LLM.BaseURL))
		translator := queryguard.NewTranslator(gen,
			queryguard.WithMaxRetries(cfg.Query.MaxRetries),
			queryguard.WithLogger(logger),
		)
		opts = append(opts, enrollkit.WithQueryAgent(queryguard.NewAgent(translator, nil)))
	}

	eng, err := enrollkit.New(opts...)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to build engine: %w", err)
	}

	closeBackend := cleanup
	cleanup = func() {
		eng.Close()
		closeBackend()
	}
	return eng, cleanup, nil
}

// mustEngine is the shorthand for commands that exit on setup errors.
func mustEngine(cmd *cobra.Command) (*enrollkit.Engine, func()) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	engine, cleanup, err := buildEngine(cfg, logger, nil)
	if err != nil {
		fmt.Printf("Error initializing engine: %v\n", err)
		os.Exit(1)
	}
	return engine, cleanup
}
