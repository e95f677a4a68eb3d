package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/brandhub/internal/metrics"
	"github.com/hitoshi/brandhub/internal/middleware"
	"github.com/hitoshi/brandhub/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	Gatherer          prometheus.Gatherer
	CORSAllowedOrigin string
	HSTS              bool
	SubscribeLimiter  *middleware.RateLimiter

	// 認証
	AuthService   AuthServiceInterface
	TokenVerifier middleware.TokenVerifier

	// 購読者・記事
	SubscriberService SubscriberServiceInterface
	PostService       PostServiceInterface

	// サイト設定・集計・稼働状態
	Site   repository.SiteRepository
	Health HealthChecker

	// 運用
	Backup   BackupRunner
	Importer FeedImporter
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//
// /api/admin/* と /api/auth/verify は管理者ミドルウェアでベアラートークンを検証する。
// POST /api/subscribe のみ送信元IPごとのレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	subHandler := NewSubscriberHandler(deps.SubscriberService)
	postHandler := NewPostHandler(deps.PostService)
	siteHandler := NewSiteHandler(deps.Site)
	adminHandler := NewAdminHandler(deps.Backup, deps.Importer)
	requireAdmin := middleware.NewAdminMiddleware(deps.TokenVerifier)

	// --- 運用 ---
	r.Get("/health", Health(deps.Health))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		// --- 認証不要のルート ---

		// 購読（登録のみレート制限）
		if deps.SubscribeLimiter != nil {
			r.With(deps.SubscribeLimiter.Middleware()).Post("/subscribe", subHandler.Subscribe)
		} else {
			r.Post("/subscribe", subHandler.Subscribe)
		}
		r.Post("/unsubscribe", subHandler.Unsubscribe)
		r.Post("/resubscribe", subHandler.Resubscribe)

		r.Route("/subscribers/{email}", func(r chi.Router) {
			r.Put("/preferences", subHandler.UpdatePreferences)
			r.Post("/tutorials", subHandler.CompleteTutorial)
			r.Post("/bookmarks", subHandler.ToggleBookmark)
		})

		// 記事（featuredは{id}より先に登録する）
		r.Route("/posts", func(r chi.Router) {
			r.Get("/", postHandler.ListPosts)
			r.Get("/featured", postHandler.ListFeatured)
			r.Get("/{id}", postHandler.GetPost)
		})

		r.Get("/settings", siteHandler.GetSettings)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.With(requireAdmin).Get("/verify", authHandler.Verify)
		})

		// --- 管理者ルート ---
		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin)

			r.Route("/subscribers", func(r chi.Router) {
				r.Get("/", subHandler.ListSubscribers)

				r.Route("/{email}", func(r chi.Router) {
					r.Get("/", subHandler.GetSubscriber)
					r.Patch("/", subHandler.UpdateSubscriber)
					r.Delete("/", subHandler.DeleteSubscriber)
				})
			})

			r.Route("/posts", func(r chi.Router) {
				r.Post("/", postHandler.CreatePost)

				r.Route("/{id}", func(r chi.Router) {
					r.Patch("/", postHandler.UpdatePost)
					r.Delete("/", postHandler.DeletePost)
				})
			})

			r.Get("/analytics", siteHandler.GetAnalytics)
			r.Put("/analytics", siteHandler.UpdateAnalytics)
			r.Put("/settings", siteHandler.UpdateSettings)

			r.Post("/backup", adminHandler.Backup)
			r.Post("/import", adminHandler.Import)
		})
	})

	return r
}
