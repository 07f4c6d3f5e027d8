package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Clark-Hu/screen-catalog/db"
	"github.com/Clark-Hu/screen-catalog/internal/config"
	"github.com/Clark-Hu/screen-catalog/internal/events"
	httpserver "github.com/Clark-Hu/screen-catalog/internal/http"
	"github.com/Clark-Hu/screen-catalog/internal/logging"
	"github.com/Clark-Hu/screen-catalog/internal/metadata"
	"github.com/Clark-Hu/screen-catalog/internal/metrics"
	"github.com/Clark-Hu/screen-catalog/internal/repository"
	"github.com/Clark-Hu/screen-catalog/internal/score"
	"github.com/Clark-Hu/screen-catalog/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var skipMigrate bool

	root := &cobra.Command{
		Use:           "catalog-api",
		Short:         "Movie catalog API with rating and review aggregates",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), skipMigrate)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), skipMigrate)
		},
	}
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply pending migrations at startup")
	root.Flags().AddFlagSet(serveCmd.Flags())

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate(cmd.Context())
		},
	}

	root.AddCommand(serveCmd, migrateCmd)
	return root
}

func migrate(parent context.Context) error {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(parent, time.Minute)
	defer cancel()

	st, err := store.New(ctx, cfg.DBURL, store.Options{
		MaxConns:    2,
		ConnTimeout: time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer st.Close()

	applied, err := st.Migrate(ctx, db.Migrations())
	if err != nil {
		return err
	}
	logger.Info("migrations complete", zap.Int("applied", applied))
	return nil
}

func serve(ctx context.Context, skipMigrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("service", "catalog-api"))

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.New(dbCtx, cfg.DBURL, store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer st.Close()

	if !skipMigrate {
		if _, err := st.Migrate(dbCtx, db.Migrations()); err != nil {
			return err
		}
	}

	var notifier score.Notifier
	if cfg.NATSURL != "" {
		nc, err := events.Connect(events.Options{URL: cfg.NATSURL})
		if err != nil {
			return err
		}
		defer drainNATS(nc, logger)
		notifier = events.NewPublisher(nc, logger.With(zap.String("component", "events")))
		logger.Info("publishing score events", zap.String("nats_url", cfg.NATSURL))
	}

	metaClient, err := metadata.New(cfg.MetadataURL, cfg.MetadataAPIKey,
		time.Duration(cfg.MetadataTimeoutSecs)*time.Second, logger.With(zap.String("component", "metadata")))
	if err != nil {
		return fmt.Errorf("init metadata client: %w", err)
	}

	metrics.Register()

	repo := repository.New(st)
	maintainer := score.NewMaintainer(repo.Scores, score.Options{
		MaxAttempts:  cfg.ScoreMaxAttempts,
		RetryBackoff: retryBackoff(cfg.ScoreRetryBackoff),
		Notifier:     notifier,
		Logger:       logger.With(zap.String("component", "score")),
	})

	server := httpserver.New(cfg, httpserver.Deps{
		Store:    st,
		Repo:     repo,
		Scores:   maintainer,
		Metadata: metaClient,
		Logger:   logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		reportPoolStats(gctx, st, logger)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}

// retryBackoff converts SCORE_RETRY_BACKOFF into score.Options terms, where
// zero means "use the default" and a negative value means no wait.
func retryBackoff(configured time.Duration) time.Duration {
	if configured == 0 {
		return -1
	}
	return configured
}

// reportPoolStats logs connection pool usage once a minute until ctx ends.
func reportPoolStats(ctx context.Context, st *store.Store, logger *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stat := st.Stats()
			if stat == nil {
				continue
			}
			logger.Debug("db pool",
				zap.Int32("total", stat.TotalConns()),
				zap.Int32("idle", stat.IdleConns()),
				zap.Int32("acquired", stat.AcquiredConns()),
				zap.Int64("empty_acquires", stat.EmptyAcquireCount()))
		}
	}
}

func drainNATS(nc *nats.Conn, logger *zap.Logger) {
	if err := nc.Drain(); err != nil {
		logger.Warn("nats drain failed", zap.Error(err))
	}
}
