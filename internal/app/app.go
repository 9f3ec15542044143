package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/postflow/internal/config"
	"github.com/hitoshi/postflow/internal/content"
	"github.com/hitoshi/postflow/internal/database"
	"github.com/hitoshi/postflow/internal/handler"
	"github.com/hitoshi/postflow/internal/logger"
	"github.com/hitoshi/postflow/internal/metrics"
	"github.com/hitoshi/postflow/internal/middleware"
	"github.com/hitoshi/postflow/internal/project"
	"github.com/hitoshi/postflow/internal/repository"
	"github.com/hitoshi/postflow/internal/scheduling"
	"github.com/hitoshi/postflow/internal/security"
	"github.com/hitoshi/postflow/internal/source"
	"github.com/hitoshi/postflow/internal/user"
	"github.com/hitoshi/postflow/internal/worker/autofill"
	"github.com/hitoshi/postflow/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数のConfigを読み込み、ログレベルを反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetLevel(cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandAutoFill:
		return runAutoFillOnce(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// newRegistry はプロセス用のPrometheusレジストリを生成する。
// Goランタイムとプロセスのメトリクスも登録する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func schedulingConfig(cfg *config.Config) scheduling.Config {
	return scheduling.Config{
		LeadTime:       cfg.AutoFillLeadTime,
		Timeout:        cfg.AutoFillTimeout,
		ResumeFromLast: cfg.AutoFillResume,
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	projectRepo := repository.NewPostgresProjectRepo(db)
	contentRepo := repository.NewPostgresContentRepo(db)
	templateRepo := repository.NewPostgresScheduleTemplateRepo(db)

	// 3. セキュリティ・メトリクスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()
	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	// 4. ドメインサービスの初期化
	projectService := project.NewService(projectRepo, ssrfGuard)
	contentService := content.NewService(projectRepo, contentRepo, sanitizer)
	schedulingService := scheduling.NewService(
		templateRepo, projectRepo, contentRepo, collector, slog.Default(), schedulingConfig(cfg),
	)
	templateService := scheduling.NewTemplateService(templateRepo)
	importer := source.NewImporter(
		projectRepo, contentRepo, ssrfGuard, sanitizer, collector, slog.Default(),
		source.Config{
			Timeout:     cfg.ImportTimeout,
			MaxBodySize: cfg.ImportMaxSize,
			MaxEntries:  source.DefaultConfig().MaxEntries,
		},
	)
	userService := user.NewService(userRepo, sessionRepo)

	// 5. ルーターの構築（レート制限はreq/minからreq/secに変換される）
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteConfig(cfg.RateLimitGeneral, cfg.RateLimitAutoFill),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter:    rateLimiter,
		StatusRecorder: collector,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),

		ProjectService:  projectService,
		ContentService:  contentService,
		ScheduleService: handler.NewScheduleServiceAdapter(schedulingService),
		SettingsService: handler.NewSettingsServiceAdapter(templateService),
		ImportService:   handler.NewImportServiceAdapter(importer),
		UserService:     handler.NewUserServiceAdapter(userService),
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilSignal(server, "API server")
}

// serveUntilSignal はサーバーを起動し、SIGINTまたはSIGTERMでグレースフルシャットダウンする。
func serveUntilSignal(server *http.Server, name string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("%s listen error: %w", name, err)
	case <-stop:
	}
	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、自動予約スケジューラとセッションクリーンアップを起動する。
// /metrics はSERVER_PORTで公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. メトリクスとジョブの初期化
	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	scheduler := newAutoFillScheduler(cfg, db, collector)
	cleanupJob := cleanup.NewCleanupJob(repository.NewPostgresSessionRepo(db), collector, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker starting",
		slog.String("autofill_cron", cfg.AutoFillCron),
		slog.Int("max_concurrent", cfg.AutoFillMaxConcurrent),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go cleanupJob.Loop(ctx)

	// 自動予約スケジューラをメインgoroutineで実行（ブロッキング）
	if err := scheduler.Start(ctx, cfg.AutoFillCron); err != nil {
		return fmt.Errorf("auto-fill scheduler failed: %w", err)
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// newAutoFillScheduler は自動予約ワーカーを組み立てる。
func newAutoFillScheduler(cfg *config.Config, db *sql.DB, collector *metrics.Collector) *autofill.Scheduler {
	projectRepo := repository.NewPostgresProjectRepo(db)
	schedulingService := scheduling.NewService(
		repository.NewPostgresScheduleTemplateRepo(db),
		projectRepo,
		repository.NewPostgresContentRepo(db),
		collector,
		slog.Default(),
		schedulingConfig(cfg),
	)
	return autofill.NewScheduler(
		projectRepo, schedulingService, collector, slog.Default(), cfg.AutoFillMaxConcurrent,
	)
}

// runAutoFillOnce は自動予約を1サイクルだけ実行して終了する。
// cronを待たずに手動で予約を埋めたい場合に使う。
func runAutoFillOnce(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scheduler := newAutoFillScheduler(cfg, db, metrics.NewCollector(prometheus.NewRegistry()))
	if err := scheduler.RunOnce(ctx); err != nil {
		return fmt.Errorf("auto-fill cycle failed: %w", err)
	}
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	status, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if status.Dirty {
		return fmt.Errorf("migration version %d is dirty", status.Version)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(status.Version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
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
