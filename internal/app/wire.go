package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/writeuptracker/internal/annotation"
	"github.com/hitoshi/writeuptracker/internal/config"
	"github.com/hitoshi/writeuptracker/internal/database"
	"github.com/hitoshi/writeuptracker/internal/feed"
	"github.com/hitoshi/writeuptracker/internal/ingest"
	"github.com/hitoshi/writeuptracker/internal/metrics"
	"github.com/hitoshi/writeuptracker/internal/repository"
	"github.com/hitoshi/writeuptracker/internal/security"
	"github.com/hitoshi/writeuptracker/internal/writeup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// components はサブコマンド間で共有する依存関係一式。
type components struct {
	db         *sql.DB
	store      *repository.PostgresStore
	registry   *prometheus.Registry
	collector  *metrics.Collector
	ingest     *ingest.Service
	query      *writeup.QueryService
	annotation *annotation.Service
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.OpenWithPool(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// newComponents はDB接続からリポジトリ・サービスまでをワイヤリングする。
func newComponents(db *sql.DB, cfg *config.Config, logger *slog.Logger) *components {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 2. リポジトリ
	store := repository.NewPostgresStore(db)

	// 3. セキュリティサービス
	ssrfGuard := security.NewSSRFGuard()

	// 4. フィードクライアント
	feedClient := feed.NewClient(feed.Options{
		URL:         cfg.FeedURL,
		Timeout:     cfg.FeedFetchTimeout,
		MaxBodySize: cfg.FeedMaxBodyBytes,
	}, ssrfGuard, collector, logger)

	// 5. ドメインサービス
	ingestService := ingest.NewService(
		store,
		ingest.NewValidator(logger),
		ingest.NewExecutor(logger),
		feedClient,
		collector,
		logger,
	)

	return &components{
		db:         db,
		store:      store,
		registry:   registry,
		collector:  collector,
		ingest:     ingestService,
		query:      writeup.NewQueryService(store.Repos()),
		annotation: annotation.NewService(store, logger),
	}
}
