// taskhubのエントリポイント。
// 設定を読み込み、ストアとレート制限を準備してHTTPサーバーを起動する。
// SIGINT/SIGTERMを受け取るとリクエストの処理完了を待ってから終了する。
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/nao1215/taskhub/internal/api"
	"github.com/nao1215/taskhub/internal/auth"
	"github.com/nao1215/taskhub/internal/config"
	"github.com/nao1215/taskhub/internal/storage"
	"github.com/nao1215/taskhub/pkg/logger"
	"github.com/nao1215/taskhub/pkg/metrics"
	"github.com/nao1215/taskhub/pkg/ratelimit"
	"github.com/nao1215/taskhub/pkg/token"
	"github.com/redis/go-redis/v9"
)

// rateLimitPrefix はレート制限のRedisキーの接頭辞。
const rateLimitPrefix = "taskhub:ratelimit"

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "設定の読み込みに失敗: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.App.LogLevel, cfg.App.LogFormat)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("設定が不正です", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.UsesDevSecret() {
		log.Warn("JWT_SECRETが未設定のため開発用の署名鍵を使用します")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	os.Exit(run(cfg, log))
}

// run はサーバーを起動し、終了シグナルを受け取るまで待つ。戻り値は終了コード。
func run(cfg *config.Config, log *slog.Logger) int {
	ctx := context.Background()

	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Error("ストアの初期化に失敗", slog.String("error", err.Error()))
		return 1
	}
	log.Info("ストアを開きました", slog.String("driver", cfg.DB.Driver))

	tokens, err := token.New(token.Config{Secret: cfg.JWTSecret(), TTL: cfg.JWT.TTL})
	if err != nil {
		_ = store.Close()
		log.Error("トークンサービスの初期化に失敗", slog.String("error", err.Error()))
		return 1
	}

	var (
		rdb     *redis.Client
		limiter *ratelimit.Limiter
	)
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		if err := rdb.Ping(ctx).Err(); err != nil {
			// 起動時にRedisへ到達できなくても、判定時に失敗した場合は制限せずに通す
			log.Warn("Redisへの疎通確認に失敗", slog.String("addr", cfg.Redis.Addr), slog.String("error", err.Error()))
		}
		limiter = ratelimit.New(rdb, rateLimitPrefix, cfg.RateLimit.AuthRate, cfg.RateLimit.AuthBurst)
	} else {
		log.Warn("REDIS_ADDRが未設定のため認証エンドポイントのレート制限を無効にします")
	}

	srv := api.NewServer(api.Options{
		Store:          store,
		Tokens:         tokens,
		Hasher:         auth.NewPasswordHasher(auth.DefaultCost),
		Limiter:        limiter,
		Metrics:        metrics.New(),
		Logger:         log,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	})

	httpServer := &http.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.App.HTTPAddr)
	if err != nil {
		closeAll(log, store, rdb)
		log.Error("リッスンに失敗", slog.String("addr", cfg.App.HTTPAddr), slog.String("error", err.Error()))
		return 1
	}

	go func() {
		log.Info("taskhubを起動します", slog.String("addr", ln.Addr().String()), slog.String("env", cfg.App.Env))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTPサーバーが異常終了", slog.String("error", err.Error()))
			closeAll(log, store, rdb)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, cfg.App.ShutdownTimeout, map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			log.Info("シャットダウンを開始します")
			err := httpServer.Shutdown(ctx)
			// 処理中のリクエストが終わってからストアを閉じる
			closeAll(log, store, rdb)
			return err
		},
	})

	code := <-wait
	log.Info("taskhubを終了しました", slog.Int("exit_code", code))
	return code
}

// closeAll はストアとRedisクライアントを閉じる。
func closeAll(log *slog.Logger, store storage.Store, rdb *redis.Client) {
	if err := store.Close(); err != nil {
		log.Error("ストアのクローズに失敗", slog.String("error", err.Error()))
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Error("Redisクライアントのクローズに失敗", slog.String("error", err.Error()))
		}
	}
}
