package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/postflow/internal/middleware"
)

// HealthChecker はヘルスチェックでDB疎通を確認するインターフェース。
// *sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.StatusRecorder

	// 公開エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// ドメインサービス
	ProjectService  ProjectServiceInterface
	ContentService  ContentServiceInterface
	ScheduleService ScheduleServiceInterface
	SettingsService SettingsServiceInterface
	ImportService   ImportServiceInterface
	UserService     UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → Metrics → CORS
//	  /api（認証必須）: Session → RateLimit(General) → CSRF
//	  自動予約・プレビュー・インポート: さらに RateLimit(AutoFill)
//
// /health、/metrics、/api/csrf-token は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	projectHandler := NewProjectHandler(deps.ProjectService)
	contentHandler := NewContentHandler(deps.ContentService)
	scheduleHandler := NewScheduleHandler(deps.ScheduleService)
	settingsHandler := NewSettingsHandler(deps.SettingsService)
	importHandler := NewImportHandler(deps.ImportService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		heavy := deps.RateLimiter.AutoFillMiddleware()

		r.Route("/api/projects", func(r chi.Router) {
			r.Get("/", projectHandler.List)
			r.Post("/", projectHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", projectHandler.Get)
				r.Patch("/", projectHandler.Update)
				r.Delete("/", projectHandler.Delete)

				r.Get("/contents", contentHandler.List)
				r.Post("/contents", contentHandler.Create)

				r.With(heavy).Post("/schedule/auto-fill", scheduleHandler.AutoFill)
				r.With(heavy).Get("/schedule/preview", scheduleHandler.Preview)
				r.With(heavy).Post("/import", importHandler.Import)
			})
		})

		r.Route("/api/contents/{id}", func(r chi.Router) {
			r.Get("/", contentHandler.Get)
			r.Delete("/", contentHandler.Delete)
			r.Put("/schedule", contentHandler.Schedule)
			r.Delete("/schedule", contentHandler.Unschedule)
		})

		r.Route("/api/settings", func(r chi.Router) {
			r.Get("/schedule", settingsHandler.GetSchedule)
			r.Put("/schedule", settingsHandler.PutSchedule)
		})

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.Me)
			r.Delete("/me", userHandler.Withdraw)
		})
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// checkerがnilの場合はプロセスの生存のみを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Warn("health check failed", slog.String("error", err.Error()))
				middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
