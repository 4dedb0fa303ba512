package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/quill/internal/metrics"
	"github.com/hitoshi/quill/internal/middleware"
)

// RouterDeps はルーター構築に必要な依存をまとめる。
type RouterDeps struct {
	Logger            *slog.Logger
	Collector         metrics.MetricsCollector
	Gatherer          prometheus.Gatherer
	Resolver          middleware.UserResolver
	RateLimiter       *middleware.RateLimiter
	BlogService       BlogServiceInterface
	UserService       UserServiceInterface
	RegisterService   RegisterServiceInterface
	CORSAllowedOrigin string
	LegacyHeaderAuth  bool
}

// NewRouter はAPI全体のルーティングを構築する。
//
// ミドルウェアの適用順:
//  1. Recovery（panicを500に変換）
//  2. SecurityHeaders
//  3. CORS
//  4. Logging（ステータス・レイテンシのメトリクス記録を含む）
//
// 認証必須のルートにはAuth→RateLimit(General)を重ね、
// ブログ作成のみ追加でRateLimit(BlogCreate)を適用する。
func NewRouter(deps RouterDeps) http.Handler {
	blogHandler := NewBlogHandler(deps.BlogService)
	userHandler := NewUserHandler(deps.UserService)
	authHandler := NewAuthHandler(deps.RegisterService, deps.LegacyHeaderAuth)

	requireAuth := middleware.NewAuthMiddleware(deps.Resolver, deps.LegacyHeaderAuth)
	optionalAuth := middleware.NewOptionalAuthMiddleware(deps.Resolver, deps.LegacyHeaderAuth)

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))

	r.Get("/health", HealthCheck)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)

		// 認証不要の公開ルート
		r.Get("/blogs", blogHandler.ListBlogs)
		r.With(optionalAuth).Get("/blogs/{blogId}", blogHandler.GetBlog)
		r.Get("/user/{userId}", userHandler.GetUser)

		// 認証必須のルート
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/user/{userId}/blogs", blogHandler.ListUserBlogs)
			r.With(deps.RateLimiter.BlogCreateMiddleware()).Post("/blogs", blogHandler.CreateBlog)
			r.Put("/blogs/{blogId}", blogHandler.UpdateBlog)
			r.Delete("/blogs/{blogId}", blogHandler.DeleteBlog)
		})
	})

	return r
}
