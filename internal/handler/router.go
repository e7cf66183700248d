package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Syuney-mls/life-log/internal/metrics"
	"github.com/Syuney-mls/life-log/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 監視
	HealthChecker  HealthChecker
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig
	UserService UserServiceInterface

	// ワークスペース
	Workspaces        WorkspaceProvider
	KeepAliveInterval time.Duration
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → CSRF → Session → RateLimit(General)
//
// /health、/metrics、カテゴリ一覧、認証ルートはセッション不要。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.Workspaces, deps.Metrics, deps.AuthConfig)
	entryHandler := NewEntryHandler(deps.Workspaces)
	reportHandler := NewReportHandler(deps.Workspaces)
	streamHandler := NewStreamHandler(deps.Workspaces, deps.KeepAliveInterval)
	userHandler := NewUserHandler(deps.UserService, deps.Workspaces, deps.AuthConfig)

	// --- 監視 ---
	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker))
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// --- 認証不要のルート ---
		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)
		r.Get("/api/categories", entryHandler.ListCategories)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/anonymous", authHandler.SignIn)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Session → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Route("/api/state", func(r chi.Router) {
				r.Get("/", entryHandler.GetState)
				r.Patch("/", entryHandler.UpdateState)
			})

			r.Route("/api/entries", func(r chi.Router) {
				r.Get("/", entryHandler.ListEntries)
				r.Post("/", entryHandler.SaveEntry)
				r.Delete("/{id}", entryHandler.DeleteEntry)
			})

			r.Get("/api/stream", streamHandler.Stream)

			r.Route("/api/report", func(r chi.Router) {
				// 生成要求は外部APIを呼ぶため専用のレート制限を追加
				r.With(deps.RateLimiter.ReportMiddleware()).Post("/", reportHandler.Generate)
				r.Get("/", reportHandler.Get)
				r.Delete("/", reportHandler.Dismiss)
				r.Get("/export", reportHandler.Export)
			})

			r.Delete("/api/me", userHandler.Withdraw)
		})
	})

	return r
}
