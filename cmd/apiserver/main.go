// apiserver runs the marketplace recommendation engine's HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/plantsaathi/market-intelligence/internal/application/market"
	"github.com/plantsaathi/market-intelligence/internal/config"
	"github.com/plantsaathi/market-intelligence/internal/domain/catalog"
	"github.com/plantsaathi/market-intelligence/internal/domain/regional"
	"github.com/plantsaathi/market-intelligence/internal/domain/rules"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/collaborators"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/database/postgres"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/database/redis"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/plantsaathi/market-intelligence/internal/interfaces/http"
	"github.com/plantsaathi/market-intelligence/internal/interfaces/http/handlers"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "apiserver",
		Short: "Marketplace recommendation engine API server",
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (env-only when empty)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector, err := prometheus.NewCollector(prometheus.CollectorConfig{
		Namespace:            "saathi",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return err
	}
	metrics := prometheus.NewAppMetrics(collector)

	cat, err := catalog.NewService(logger)
	if err != nil {
		return err
	}
	reg, err := regional.NewService(logger)
	if err != nil {
		return err
	}
	engine, err := rules.NewEngine(cat, logger)
	if err != nil {
		return err
	}

	var watcher *rules.Watcher
	if cfg.Rules.Path != "" {
		if cfg.Rules.Watch {
			watcher, err = rules.NewWatcher(engine, cfg.Rules.Path, logger)
			if err != nil {
				return err
			}
		} else {
			data, err := os.ReadFile(cfg.Rules.Path)
			if err != nil {
				return fmt.Errorf("failed to read rules file: %w", err)
			}
			if err := engine.LoadJSON(data); err != nil {
				return err
			}
		}
	}

	health := handlers.NewHealthHandler()

	var cache market.Cache
	if cfg.Cache.Backend == "redis" {
		client, err := redis.NewClient(cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		health.AddCheck("redis", client)

		cache, err = redis.NewAnalysisCache(client, cfg.Redis.KeyPrefix, cfg.Cache.TTL, logger)
		if err != nil {
			return err
		}
	} else {
		cache = market.NewContextCache(cfg.Cache.TTL, cfg.Cache.MaxEntries, logger, metrics)
	}

	var fields market.FieldStore
	if cfg.Database.Enabled {
		if err := postgres.Migrate(cfg.Database, logger); err != nil {
			return err
		}
		conn, err := postgres.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer conn.Close()
		health.AddCheck("postgres", conn)
		fields = postgres.NewFieldStore(conn, logger)
	} else {
		logger.Warn("database disabled, serving from in-memory field store")
		fields = collaborators.NewMemoryFieldStore(nil)
	}

	weather := collaborators.NewWeatherClient(cfg.Weather, logger, metrics)
	disease := collaborators.NewDiseaseClient(cfg.Disease, logger, metrics)

	svc := market.NewService(fields, weather, disease, cache, engine, reg, logger, metrics)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Market:         svc,
		Catalog:        cat,
		Regional:       reg,
		Engine:         engine,
		Logger:         logger,
		Metrics:        metrics,
		MetricsHandler: collector.Handler(),
		Health:         health,
		Mode:           cfg.Server.Mode,
	})
	server := httpserver.NewServer(cfg.Server, router, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	if watcher != nil {
		g.Go(func() error {
			err := watcher.Run(gctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	logger.Info("engine started", logging.Int("port", cfg.Server.Port))
	return g.Wait()
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}
