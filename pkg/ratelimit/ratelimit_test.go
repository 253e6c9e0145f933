package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newRedis はテスト用のminiredisに接続したクライアントを作成する。
func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// manualClock はテストから進められる時計。
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// TestLimiterAllow はトークンバケットの判定を検証する。
func TestLimiterAllow(t *testing.T) {
	t.Parallel()

	t.Run("バーストまで許可されその後拒否されること", func(t *testing.T) {
		t.Parallel()

		_, rdb := newRedis(t)
		clock := &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		l := New(rdb, "test", 1, 3, WithClock(clock.Now))

		for i := range 3 {
			d, err := l.Allow(context.Background(), "client")
			if err != nil {
				t.Fatalf("Allow()でエラーが発生: %v", err)
			}
			if !d.Allowed {
				t.Fatalf("%d回目が拒否された", i+1)
			}
		}

		d, err := l.Allow(context.Background(), "client")
		if err != nil {
			t.Fatalf("Allow()でエラーが発生: %v", err)
		}
		if d.Allowed {
			t.Error("バーストを超えたリクエストが許可された")
		}
		if d.RetryAfter != time.Second {
			t.Errorf("RetryAfter = %v, want %v", d.RetryAfter, time.Second)
		}
	})

	t.Run("時間経過でトークンが補充されること", func(t *testing.T) {
		t.Parallel()

		_, rdb := newRedis(t)
		clock := &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		l := New(rdb, "test", 2, 1, WithClock(clock.Now))

		if d, _ := l.Allow(context.Background(), "client"); !d.Allowed {
			t.Fatal("1回目が拒否された")
		}
		if d, _ := l.Allow(context.Background(), "client"); d.Allowed {
			t.Fatal("2回目が許可された")
		}

		clock.Advance(500 * time.Millisecond)
		if d, _ := l.Allow(context.Background(), "client"); !d.Allowed {
			t.Error("補充後のリクエストが拒否された")
		}
	})

	t.Run("キーごとに独立したバケットになること", func(t *testing.T) {
		t.Parallel()

		_, rdb := newRedis(t)
		clock := &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		l := New(rdb, "test", 1, 1, WithClock(clock.Now))

		if d, _ := l.Allow(context.Background(), "a"); !d.Allowed {
			t.Fatal("aの1回目が拒否された")
		}
		if d, _ := l.Allow(context.Background(), "b"); !d.Allowed {
			t.Error("bの1回目が拒否された")
		}
	})

	t.Run("rateが0の場合は制限しないこと", func(t *testing.T) {
		t.Parallel()

		l := New(nil, "test", 0, 0)
		for range 10 {
			if d, err := l.Allow(context.Background(), "client"); err != nil || !d.Allowed {
				t.Fatalf("Allow() = %+v, %v", d, err)
			}
		}
	})
}

// TestMiddleware はレート制限ミドルウェアを検証する。
func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("制限を超えると429とRetry-Afterが返ること", func(t *testing.T) {
		t.Parallel()

		_, rdb := newRedis(t)
		clock := &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		l := New(rdb, "test", 0.5, 1, WithClock(clock.Now))

		var rejected []string
		router := gin.New()
		router.POST("/auth/login", Middleware(l, nil, func(route string) {
			rejected = append(rejected, route)
		}), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w1 := httptest.NewRecorder()
		router.ServeHTTP(w1, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		if w1.Code != http.StatusOK {
			t.Fatalf("1回目のステータスコード = %d, want %d", w1.Code, http.StatusOK)
		}

		w2 := httptest.NewRecorder()
		router.ServeHTTP(w2, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		if w2.Code != http.StatusTooManyRequests {
			t.Fatalf("2回目のステータスコード = %d, want %d", w2.Code, http.StatusTooManyRequests)
		}
		if got := w2.Header().Get("Retry-After"); got != "2" {
			t.Errorf("Retry-After = %q, want %q", got, "2")
		}
		if len(rejected) != 1 || rejected[0] != "/auth/login" {
			t.Errorf("rejected = %v", rejected)
		}
	})

	t.Run("Redisに接続できない場合は許可されること", func(t *testing.T) {
		t.Parallel()

		mr, rdb := newRedis(t)
		mr.Close()
		l := New(rdb, "test", 1, 1)

		router := gin.New()
		router.POST("/auth/login", Middleware(l, nil, nil), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})
}
