package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestMiddleware はHTTPメトリクスの記録を検証する。
func TestMiddleware(t *testing.T) {
	t.Parallel()

	m := New()
	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/tasks/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, path := range []string{"/tasks/a", "/tasks/b", "/nowhere"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/tasks/:id", "200")); got != 2 {
		t.Errorf("ルートパターンのリクエスト数 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", unmatchedRoute, "404")); got != 1 {
		t.Errorf("未一致のリクエスト数 = %v, want 1", got)
	}
}

// TestCounters は認証失敗とレート制限の記録を検証する。
func TestCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.AuthFailure("invalid_token")
	m.AuthFailure("invalid_token")
	m.AuthFailure("no_token")
	m.RateLimited("/auth/login")

	if got := testutil.ToFloat64(m.authFailures.WithLabelValues("invalid_token")); got != 2 {
		t.Errorf("invalid_token = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.authFailures.WithLabelValues("no_token")); got != 1 {
		t.Errorf("no_token = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.rateLimited.WithLabelValues("/auth/login")); got != 1 {
		t.Errorf("rate_limited = %v, want 1", got)
	}
}

// TestHandler はメトリクスの公開を検証する。
func TestHandler(t *testing.T) {
	t.Parallel()

	m := New()
	m.AuthFailure("no_token")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("メトリクスの取得に失敗: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("レスポンスの読み込みに失敗: %v", err)
	}
	if !strings.Contains(string(body), `taskhub_auth_failures_total{reason="no_token"} 1`) {
		t.Errorf("認証失敗のメトリクスが含まれていない:\n%s", body)
	}
}
