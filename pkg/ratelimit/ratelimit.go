// Package ratelimit はRedis上のトークンバケットによるレート制限を提供する。
//
// バケットの状態はRedisのハッシュに保存し、Luaスクリプトで原子的に更新するため、
// 複数のプロセスで同じ制限を共有できる。
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// tokenBucketLua は補充・消費・残量の保存を1回の呼び出しで行うスクリプト。
// 戻り値: {許可(1/0), 次のトークンまでの待ち時間(ms)}
const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
tokens = math.min(burst, tokens + (delta * rate) / 1000.0)

local allowed = 0
local wait_ms = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  wait_ms = math.ceil((1 - tokens) * 1000.0 / rate)
end

redis.call("HSET", key, "tokens", tostring(tokens), "ts", tostring(now))
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))

return {allowed, wait_ms}
`

// ErrInvalidResult はスクリプトの戻り値が想定外であることを表す。
var ErrInvalidResult = errors.New("レート制限スクリプトの戻り値が不正です")

// Decision はレート制限の判定結果。
type Decision struct {
	// Allowed はリクエストを許可するか。
	Allowed bool
	// RetryAfter は拒否した場合に次のトークンが補充されるまでの時間。
	RetryAfter time.Duration
}

// Limiter はRedisのトークンバケットによるレート制限。
type Limiter struct {
	rdb    redis.Scripter
	prefix string
	rate   float64
	burst  float64
	script *redis.Script
	now    func() time.Time
}

// Option はLimiterの生成オプション。
type Option func(*Limiter)

// WithClock は現在時刻を返す関数を設定する。テストで使用する。
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New は1秒あたりrate個、最大burst個のトークンを持つLimiterを生成する。
// rateまたはburstが0以下の場合は制限しない。
func New(rdb redis.Scripter, prefix string, rate, burst float64, opts ...Option) *Limiter {
	if prefix == "" {
		prefix = "taskhub:ratelimit"
	}
	l := &Limiter{
		rdb:    rdb,
		prefix: prefix,
		rate:   rate,
		burst:  burst,
		script: redis.NewScript(tokenBucketLua),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow はkeyのバケットからトークンを1つ消費できるかを判定する。待機はしない。
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	if l == nil || l.rate <= 0 || l.burst <= 0 {
		return Decision{Allowed: true}, nil
	}

	res, err := l.script.Run(ctx, l.rdb, []string{l.prefix + ":" + key}, l.rate, l.burst, l.now().UnixMilli()).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("レート制限スクリプトの実行に失敗: %w", err)
	}

	values, ok := res.([]any)
	if !ok || len(values) < 2 {
		return Decision{}, ErrInvalidResult
	}
	return Decision{
		Allowed:    toInt64(values[0]) == 1,
		RetryAfter: time.Duration(toInt64(values[1])) * time.Millisecond,
	}, nil
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}

// Middleware はクライアントIPごとにレート制限を行うGinミドルウェアを返す。
// 制限を超えた場合は429とRetry-Afterヘッダーを返す。
// Redisの障害時はリクエストを通し、警告を記録する。
// onReject が指定されている場合は拒否のたびにルートを渡して呼び出す。
func Middleware(l *Limiter, logger *slog.Logger, onReject func(route string)) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		d, err := l.Allow(c.Request.Context(), route+":"+c.ClientIP())
		if err != nil {
			logger.Warn("レート制限の判定に失敗したため許可します",
				slog.String("route", route),
				slog.String("error", err.Error()),
			)
			c.Next()
			return
		}
		if !d.Allowed {
			if onReject != nil {
				onReject(route)
			}
			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(max(secs, 1)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests, please try again later",
			})
			return
		}
		c.Next()
	}
}
