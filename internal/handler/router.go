package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/zebramusic/cloackroom-app-sub001/internal/metrics"
	"github.com/zebramusic/cloackroom-app-sub001/internal/middleware"
	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
	"github.com/zebramusic/cloackroom-app-sub001/internal/web"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Resolver          middleware.IdentityResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	RoleGate          middleware.RoleGateConfig
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	HealthChecker     HealthChecker

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメイン
	EventService    EventServiceInterface
	AccountService  AccountServiceInterface
	HandoverService HandoverServiceInterface

	// ページ
	Renderer *web.Renderer
	Now      func() time.Time
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Logging → Recovery → SecurityHeaders → Session → RoleGate
//
// RoleGateはルーティング前にパスを書き換えるため最上位のUseに置く。
// /api配下はさらにCORSとGeneralレート制限を通る。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}
	rl := deps.RateLimiter
	if rl == nil {
		rl = middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	}
	gate := deps.RoleGate
	if gate.Prefix == "" {
		gate = middleware.DefaultRoleGateConfig()
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger, mc))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewSessionMiddleware(deps.Resolver))
	r.Use(middleware.NewRoleGate(gate, mc))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	eventHandler := NewEventHandler(deps.EventService)
	accountHandler := NewAccountHandler(deps.AccountService)
	handoverHandler := NewHandoverHandler(deps.HandoverService)
	healthHandler := NewHealthHandler(deps.HealthChecker)
	pageHandler := NewPageHandler(PageDeps{
		Auth:      deps.AuthService,
		Events:    deps.EventService,
		Handovers: deps.HandoverService,
		Accounts:  deps.AccountService,
		Renderer:  deps.Renderer,
		Cookies:   deps.AuthConfig,
		Now:       deps.Now,
	})

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- JSON API ---
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(rl.GeneralMiddleware())

		r.Route("/auth", func(r chi.Router) {
			r.With(rl.AuthMiddleware()).Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
			r.With(rl.AuthMiddleware()).Post("/register", authHandler.Register)

			r.Route("/reset", func(r chi.Router) {
				r.Use(rl.AuthMiddleware())
				r.Post("/request", authHandler.RequestReset)
				r.Post("/confirm", authHandler.ConfirmReset)
				r.Post("/perform", authHandler.ConfirmReset)
			})
		})

		r.Route("/events", func(r chi.Router) {
			r.Use(middleware.RequireIdentity)
			r.Get("/", eventHandler.ListEvents)
			r.Get("/active", eventHandler.ListActiveEvents)
			r.Get("/{id}", eventHandler.GetEvent)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleAdmin))
				r.Post("/", eventHandler.CreateEvent)
				r.Patch("/{id}", eventHandler.UpdateEvent)
				r.Delete("/{id}", eventHandler.DeleteEvent)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleAdmin))

			r.Route("/staff", func(r chi.Router) {
				r.Get("/", accountHandler.ListStaff)
				r.Post("/", accountHandler.CreateStaff)
				r.Get("/{id}", accountHandler.GetStaff)
				r.Patch("/{id}", accountHandler.UpdateStaff)
				r.Delete("/{id}", accountHandler.DeleteStaff)
			})

			r.Route("/admins", func(r chi.Router) {
				r.Get("/", accountHandler.ListAdmins)
				r.Post("/", accountHandler.CreateAdmin)
				r.Get("/{id}", accountHandler.GetAdmin)
				r.Patch("/{id}", accountHandler.UpdateAdmin)
				r.Delete("/{id}", accountHandler.DeleteAdmin)
			})
		})

		r.Route("/handovers", func(r chi.Router) {
			r.Use(middleware.RequireIdentity)
			r.Get("/", handoverHandler.ListHandovers)
			r.Post("/", handoverHandler.CreateHandover)
			r.Get("/{id}", handoverHandler.GetHandover)
			r.Post("/{id}/print", handoverHandler.PrintHandover)
		})
	})

	// --- ブラウザ向けページ ---
	r.Route("/private", func(r chi.Router) {
		r.Use(rl.GeneralMiddleware())

		r.Get("/login", pageHandler.LoginPage)
		r.With(rl.AuthMiddleware()).Post("/login", pageHandler.Login)
		r.Get("/reset", pageHandler.ResetRequestPage)
		r.With(rl.AuthMiddleware()).Post("/reset", pageHandler.ResetRequest)
		r.Get("/reset/{token}", pageHandler.ResetConfirmPage)
		r.With(rl.AuthMiddleware()).Post("/reset/{token}", pageHandler.ResetConfirm)

		r.Get("/", pageHandler.Home)
		r.Get("/handover", pageHandler.CapturePage)
		r.Post("/handover", pageHandler.Capture)
		r.Get("/handovers", pageHandler.HandoversPage)
		r.Get("/handovers/{id}", pageHandler.HandoverPage)
		r.Post("/handovers/{id}/print", pageHandler.PrintHandover)
		r.Get("/admin", pageHandler.AdminPage)
		r.HandleFunc("/not-allowed", pageHandler.NotAllowed)
	})

	return r
}
