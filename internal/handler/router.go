package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/writeuptracker/internal/metrics"
	"github.com/hitoshi/writeuptracker/internal/middleware"
	"github.com/hitoshi/writeuptracker/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	SessionCookieName string
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// メトリクス（nilの場合は /metrics を公開しない）
	HTTPRecorder    middleware.HTTPRecorder
	MetricsGatherer prometheus.Gatherer

	// writeup
	QueryService      WriteupQueryServiceInterface
	AnnotationService AnnotationServiceInterface
	IngestService     IngestServiceInterface
	MaxUploadSize     int64

	// ユーザー
	Users UserDirectory
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS → Session → RateLimit(General) → CSRF
//
// /health、/metrics、CSRFトークン発行、ユーザー存在確認は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.HTTPRecorder))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "NOT_FOUND",
			Message:  "指定されたエンドポイントは存在しません。",
			Category: "validation",
			Action:   "URLを確認してください。",
		})
	})

	writeupHandler := NewWriteupHandler(deps.QueryService)
	annotationHandler := NewAnnotationHandler(deps.AnnotationService)
	ingestHandler := NewIngestHandler(deps.IngestService, deps.MaxUploadSize)
	userHandler := NewUserHandler(deps.Users)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))
	r.Get("/api/users/exists", userHandler.Exists)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, deps.SessionCookieName))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Route("/api/writeups", func(r chi.Router) {
			r.Get("/", writeupHandler.List)
			r.Delete("/", annotationHandler.DeleteAll)

			// 取り込みは専用レート制限を追加
			r.With(deps.RateLimiter.IngestMiddleware()).Post("/import", ingestHandler.Import)
			r.With(deps.RateLimiter.IngestMiddleware()).Post("/sync", ingestHandler.Sync)

			r.Get("/notes", writeupHandler.ListNotes)
			r.Get("/notes/export", writeupHandler.ExportNotes)

			r.Route("/{id}", func(r chi.Router) {
				r.Post("/read", annotationHandler.ToggleRead)
				r.Put("/note", annotationHandler.SetNote)
			})
		})

		r.Get("/api/authors", writeupHandler.ListLookups(model.LookupAuthor))
		r.Get("/api/programs", writeupHandler.ListLookups(model.LookupProgram))
		r.Get("/api/bugs", writeupHandler.ListLookups(model.LookupBug))

		r.Get("/api/me", userHandler.Me)
		r.Get("/api/me/stats", writeupHandler.Stats)
	})

	return r
}
