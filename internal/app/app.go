package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/writeuptracker/internal/config"
	"github.com/hitoshi/writeuptracker/internal/database"
	"github.com/hitoshi/writeuptracker/internal/handler"
	"github.com/hitoshi/writeuptracker/internal/logger"
	"github.com/hitoshi/writeuptracker/internal/middleware"
	"github.com/hitoshi/writeuptracker/internal/model"
	"github.com/hitoshi/writeuptracker/internal/repository"
	"golang.org/x/time/rate"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数（と .env）を読み込み、LOG_LEVELを反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログレベルの反映（Validate済みのため失敗しない）
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger.SetLevel(level)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

// serve は設定を読み込んでAPIサーバーを起動する。
func serve(w io.Writer) error {
	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(CommandServe)),
		slog.String("port", cfg.Port),
		slog.String("base_url", cfg.BaseURL),
	)
	return runServe(cfg)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. 依存関係のワイヤリング
	c := newComponents(db, cfg, slog.Default())

	// 3. ルーターの構築
	// configのレート制限はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.APIRateLimit) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.APIRateLimit
	rateLimiterCfg.IngestRate = rate.Limit(float64(cfg.IngestRateLimit) / 60.0)
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		HealthChecker:     db,
		SessionFinder:     repository.NewPostgresSessionRepo(db),
		SessionCookieName: cfg.SessionCookieName,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure(),
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,

		QueryService:      c.query,
		AnnotationService: c.annotation,
		IngestService:     c.ingest,
		MaxUploadSize:     cfg.MaxUploadBytes,

		Users: repository.NewPostgresUserRepo(db),
	}
	if cfg.MetricsEnabled {
		deps.HTTPRecorder = c.collector
		deps.MetricsGatherer = c.registry
	}

	router := handler.NewRouter(deps)

	// 4. HTTPサーバーの起動
	// フィード同期とアップロードは時間がかかるため、WriteTimeoutはフィード取得より長くとる
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.FeedFetchTimeout + 60*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// upはすべての未適用マイグレーションを適用し、downはstepsバージョン分巻き戻す。
func runMigrate(cfg *config.Config, direction string, steps int) error {
	slog.Info("running database migrations",
		slog.String("direction", direction),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch direction {
	case "up":
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case "down":
		if err := database.RollbackMigrations(cfg.DatabaseURL, steps); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown migration direction: %q", direction)
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runIngest はwriteupを1回取り込んで終了する。
// fileが指定された場合はそのJSONファイルを、それ以外は外部フィードを取り込む。
func runIngest(ctx context.Context, cfg *config.Config, file string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var body []byte
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read ingest file: %w", err)
		}
		body = b
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	c := newComponents(db, cfg, slog.Default())

	var result *model.IngestResult
	if file != "" {
		result, err = c.ingest.ImportJSON(ctx, body)
	} else {
		result, err = c.ingest.SyncFeed(ctx)
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	slog.Info("ingest finished",
		slog.String("source", ingestSource(file)),
		slog.Int("received", result.Received),
		slog.Int("invalid", result.Invalid),
		slog.Int("skipped", result.Skipped),
		slog.Int("inserted", result.Count()),
	)
	return nil
}

func ingestSource(file string) string {
	if file != "" {
		return "file:" + file
	}
	return "feed"
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(url string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
