package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/taskhub/internal/auth"
	"github.com/nao1215/taskhub/internal/storage"
	"github.com/nao1215/taskhub/internal/task"
	"github.com/nao1215/taskhub/pkg/metrics"
	"github.com/nao1215/taskhub/pkg/middleware"
	"github.com/nao1215/taskhub/pkg/ratelimit"
	"github.com/nao1215/taskhub/pkg/token"
)

// healthTimeout はヘルスチェックでストアの疎通確認を待つ時間。
const healthTimeout = 2 * time.Second

// Options はServerの依存関係。
type Options struct {
	// Store はプリンシパルとタスクのストア。必須。
	Store storage.Store
	// Tokens はトークンの発行と検証を行う。必須。
	Tokens *token.Service
	// Hasher はパスワードのハッシュ化を行う。必須。
	Hasher auth.Hasher
	// Limiter は認証エンドポイントのレート制限。nilの場合は制限しない。
	Limiter *ratelimit.Limiter
	// Metrics はPrometheusメトリクス。nilの場合は新しく生成する。
	Metrics *metrics.Metrics
	// Logger はロガー。nilの場合はslog.Default()を使う。
	Logger *slog.Logger
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
	// TrustedProxies はX-Forwarded-Forを信頼するプロキシ。空の場合は接続元アドレスをクライアントIPとする。
	TrustedProxies []string
}

// Server はtaskhubのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	store  storage.Store
	logger *slog.Logger

	metrics *metrics.Metrics
	limiter *ratelimit.Limiter

	auth    *auth.Handler
	gateway *auth.Gateway
	tasks   *task.Handler
}

// NewServer は新しいサーバーを生成し、ルーティングを設定する。
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	router := gin.New()
	// レート制限はClientIPをキーにするため、信頼しないプロキシのX-Forwarded-Forは使わない
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		logger.Error("信頼するプロキシの設定に失敗", slog.String("error", err.Error()))
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(m.Middleware())
	router.Use(middleware.CORS(opts.AllowedOrigins))

	authSvc := auth.NewService(opts.Store, opts.Hasher, opts.Tokens, logger)
	taskSvc := task.NewService(opts.Store, logger)

	s := &Server{
		router:  router,
		store:   opts.Store,
		logger:  logger,
		metrics: m,
		limiter: opts.Limiter,
		auth:    auth.NewHandler(authSvc, logger),
		gateway: auth.NewGateway(opts.Tokens, opts.Store, logger, auth.WithFailureHook(m.AuthFailure)),
		tasks:   task.NewHandler(taskSvc, logger),
	}
	s.setupRoutes()

	return s
}

// Handler はサーバーのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	requireAuth := auth.Middleware(s.gateway, s.logger)
	limit := ratelimit.Middleware(s.limiter, s.logger, s.metrics.RateLimited)

	// 認証エンドポイント（登録とログインはレート制限の対象）
	a := s.router.Group("/auth")
	{
		a.POST("/register", limit, s.auth.Register())
		a.POST("/login", limit, s.auth.Login())
		a.GET("/me", requireAuth, s.auth.Me())
	}

	// タスク（認証必須）
	tasks := s.router.Group("/tasks", requireAuth)
	{
		tasks.GET("", s.tasks.List())
		tasks.POST("", s.tasks.Create())
		tasks.GET("/:id", s.tasks.Get())
		tasks.PUT("/:id", s.tasks.Update())
		tasks.DELETE("/:id", s.tasks.Delete())
	}

	s.router.GET("/health", s.handleHealth())
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})
}

// handleHealth はストアへの疎通を含むヘルスチェックのハンドラを返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		if err := s.store.Ping(ctx); err != nil {
			s.logger.Error("ストアへの疎通確認に失敗", slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "taskhub"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "taskhub"})
	}
}
