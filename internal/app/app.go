// Package app はサブコマンドの解析と依存関係のワイヤリングを行う。
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

	"github.com/zebramusic/cloackroom-app-sub001/internal/account"
	"github.com/zebramusic/cloackroom-app-sub001/internal/auth"
	"github.com/zebramusic/cloackroom-app-sub001/internal/config"
	"github.com/zebramusic/cloackroom-app-sub001/internal/database"
	"github.com/zebramusic/cloackroom-app-sub001/internal/event"
	"github.com/zebramusic/cloackroom-app-sub001/internal/handler"
	"github.com/zebramusic/cloackroom-app-sub001/internal/handover"
	"github.com/zebramusic/cloackroom-app-sub001/internal/logger"
	"github.com/zebramusic/cloackroom-app-sub001/internal/metrics"
	"github.com/zebramusic/cloackroom-app-sub001/internal/middleware"
	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
	"github.com/zebramusic/cloackroom-app-sub001/internal/notify"
	"github.com/zebramusic/cloackroom-app-sub001/internal/repository"
	"github.com/zebramusic/cloackroom-app-sub001/internal/security"
	"github.com/zebramusic/cloackroom-app-sub001/internal/web"
	"github.com/zebramusic/cloackroom-app-sub001/internal/worker/cleanup"
)

// webhookTimeout は再設定通知の送信タイムアウト。
const webhookTimeout = 10 * time.Second

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envと環境変数から設定を読み込む
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでロガーを作り直す
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
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
		slog.Bool("in_memory", cfg.InMemory()),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCreateAdmin:
		return runCreateAdmin(cfg)
	default:
		return runServe(cfg)
	}
}

// stores はリポジトリ群と、PostgreSQL構成の場合はその接続を保持する。
type stores struct {
	repos *repository.Repositories
	db    *sql.DB
}

// openStores はDATABASE_URLに応じてPostgreSQLまたはインメモリのリポジトリを用意する。
func openStores(cfg *config.Config) (*stores, error) {
	if cfg.InMemory() {
		slog.Warn("DATABASE_URL is not set; using in-memory repositories (data is lost on restart)")
		return &stores{repos: repository.NewMemoryRepositories()}, nil
	}

	db, err := database.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	slog.Info("database connection established")
	return &stores{repos: repository.NewPostgresRepositories(db), db: db}, nil
}

func (s *stores) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// healthChecker はPostgreSQL構成では*sql.DB、インメモリ構成ではnilを返す。
func (s *stores) healthChecker() handler.HealthChecker {
	if s.db == nil {
		return nil
	}
	return s.db
}

// server はHTTPサーバーの構成要素をまとめる。
type server struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimiter
	cleanup     *cleanup.CleanupJob
}

// newPasswordHasher は設定のコストパラメータでHasherを生成する。
func newPasswordHasher(cfg *config.Config) *auth.Hasher {
	params := auth.DefaultParams()
	params.MemoryKB = cfg.Argon2MemoryKB
	params.Iterations = cfg.Argon2Iterations
	params.Parallelism = cfg.Argon2Parallelism
	return auth.NewHasher(params)
}

// newNotifier は再設定リンクの配送手段を選ぶ。
// RESET_WEBHOOK_URLがあればSSRF対策済みクライアントで送信し、なければログに記録する。
func newNotifier(cfg *config.Config) (auth.Notifier, error) {
	if cfg.ResetWebhookURL == "" {
		return notify.NewLogNotifier(slog.Default(), cfg.InMemory()), nil
	}

	guard := security.NewOutboundGuard()
	if err := guard.ValidateURL(cfg.ResetWebhookURL); err != nil {
		return nil, fmt.Errorf("invalid RESET_WEBHOOK_URL: %w", err)
	}
	return notify.NewWebhookNotifier(cfg.ResetWebhookURL, guard.NewClient(webhookTimeout)), nil
}

// buildServer はサービスとルーターを組み立てる。
func buildServer(cfg *config.Config, st *stores, reg *prometheus.Registry) (*server, error) {
	collector := metrics.NewCollector(reg)
	sanitizer := security.NewTextSanitizer()
	hasher := newPasswordHasher(cfg)

	notifier, err := newNotifier(cfg)
	if err != nil {
		return nil, err
	}

	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, err
	}

	// ドメインサービスの初期化
	authService := auth.NewService(auth.Deps{
		Repos:     st.repos,
		Hasher:    hasher,
		Notifier:  notifier,
		Sanitizer: sanitizer,
		Metrics:   collector,
	}, auth.ServiceConfig{
		SessionTTL:  cfg.SessionTTL,
		RememberTTL: cfg.SessionRememberTTL,
		ResetTTL:    cfg.PasswordResetTTL,
		BaseURL:     cfg.BaseURL,
	})
	eventService := event.NewService(st.repos.Events, sanitizer, nil)
	accountService := account.NewService(st.repos, hasher, sanitizer, nil)
	handoverService := handover.NewService(st.repos.Handovers, st.repos.Events, sanitizer, collector, nil)

	// レート制限（req/min -> req/sec はNewRateLimiterConfigが変換する）
	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth))

	router := handler.NewRouter(&handler.RouterDeps{
		Resolver:          authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rl,
		RoleGate:          middleware.DefaultRoleGateConfig(),
		Logger:            slog.Default(),
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		HealthChecker:     st.healthChecker(),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
		},

		EventService:    eventService,
		AccountService:  accountService,
		HandoverService: handoverService,

		Renderer: renderer,
	})

	return &server{
		handler:     router,
		rateLimiter: rl,
		cleanup:     cleanup.NewCleanupJob(st.repos.Sessions, st.repos.PasswordResets, slog.Default(), collector),
	}, nil
}

// newRegistry はプロセス・ランタイムのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はHTTPサーバーモードで起動する。
// インメモリ構成ではクリーンアップも同じプロセスで実行する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := buildServer(cfg, st, newRegistry())
	if err != nil {
		return err
	}
	defer srv.rateLimiter.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.InMemory() {
		go srv.cleanup.Start(ctx, cfg.CleanupInterval)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-listenErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down HTTP server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("HTTP server stopped gracefully")
	return nil
}

// runWorker はクリーンアップワーカーとして起動する。PostgreSQL構成でのみ意味を持つ。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.InMemory() {
		return errors.New("worker requires DATABASE_URL; in-memory mode runs cleanup inside serve")
	}

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	job := cleanup.NewCleanupJob(st.repos.Sessions, st.repos.PasswordResets, slog.Default(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting", slog.Duration("cleanup_interval", cfg.CleanupInterval))

	// メインgoroutineで実行（ブロッキング）
	job.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.InMemory() {
		return errors.New("migrate requires DATABASE_URL")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runCreateAdmin はADMIN_*環境変数から管理者を作成する。
func runCreateAdmin(cfg *config.Config) error {
	if cfg.InMemory() {
		return errors.New("create-admin requires DATABASE_URL")
	}

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	accounts := account.NewService(st.repos, newPasswordHasher(cfg), security.NewTextSanitizer(), nil)
	return createAdmin(context.Background(), accounts, cfg)
}

// AdminCreator はcreate-adminが必要とするアカウントサービスのインターフェース。
type AdminCreator interface {
	CreateAdmin(ctx context.Context, in account.AdminInput) (*model.Admin, error)
}

// createAdmin は管理者を作成する。同じメールアドレスの管理者が既にいる場合は何もしない。
func createAdmin(ctx context.Context, accounts AdminCreator, cfg *config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
	}

	admin, err := accounts.CreateAdmin(ctx, account.AdminInput{
		FullName: cfg.AdminName,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeDuplicateEmail {
			slog.Info("admin already exists; nothing to do")
			return nil
		}
		return fmt.Errorf("failed to create admin: %w", err)
	}

	slog.Info("admin created", slog.String("user_id", admin.ID))
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
