package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// testRequest はテストサーバーが受け取ったリクエスト情報を保持する構造体。
type testRequest struct {
	// Method はHTTPメソッド。
	Method string
	// URI はクエリを含むリクエストURI。
	URI string
	// Body はリクエストボディ。
	Body []byte
	// Headers はリクエストヘッダー。
	Headers http.Header
}

// newStubServer は受け取ったリクエストを記録し、固定のレスポンスを返すサーバーを起動する。
func newStubServer(t *testing.T, status int, body string) (*httptest.Server, *testRequest) {
	t.Helper()

	received := &testRequest{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Method = r.Method
		received.URI = r.URL.RequestURI()
		received.Body, _ = io.ReadAll(r.Body)
		received.Headers = r.Header.Clone()

		w.Header().Set("Content-Type", "application/json")
		if status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "7")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts, received
}

// TestNew はクライアントの生成を検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("タイムアウトが30秒に設定されていること", func(t *testing.T) {
		t.Parallel()

		c := New("http://localhost:8080")
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want 30s", c.httpClient.Timeout)
		}
	})

	t.Run("WithTokenが元のクライアントを変更しないこと", func(t *testing.T) {
		t.Parallel()

		base := New("http://localhost:8080", WithHTTPClient(&http.Client{Timeout: time.Second}))
		authed := base.WithToken("tok")
		if base.token != "" || authed.token != "tok" {
			t.Errorf("token = %q, %q", base.token, authed.token)
		}
		if authed.httpClient.Timeout != time.Second {
			t.Errorf("Timeout = %v, want 1s", authed.httpClient.Timeout)
		}
	})
}

// TestCreateTask はリクエストの組み立てとレスポンスの解析を検証する。
func TestCreateTask(t *testing.T) {
	t.Parallel()

	ts, received := newStubServer(t, http.StatusCreated, `{
		"message": "Task created successfully",
		"task": {
			"id": "t1",
			"title": "Buy milk",
			"description": "2 liters",
			"status": "pending",
			"userId": "u1",
			"createdAt": "2026-01-02T03:04:05.123456789Z",
			"updatedAt": "2026-01-02T03:04:05.123456789Z"
		}
	}`)

	got, err := New(ts.URL).WithToken("tok").CreateTask(context.Background(), TaskInput{Title: "Buy milk", Description: "2 liters"})
	if err != nil {
		t.Fatalf("CreateTask()でエラーが発生: %v", err)
	}

	if received.Method != http.MethodPost || received.URI != "/tasks" {
		t.Errorf("リクエスト = %s %s", received.Method, received.URI)
	}
	if got := received.Headers.Get("Authorization"); got != "Bearer tok" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer tok")
	}
	if got := received.Headers.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	var sent map[string]any
	if err := json.Unmarshal(received.Body, &sent); err != nil {
		t.Fatalf("リクエストボディのパースに失敗: %v", err)
	}
	if _, ok := sent["status"]; ok {
		t.Errorf("空のstatusが送信された: %v", sent)
	}

	want := time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.UTC)
	if got.ID != "t1" || got.UserID != "u1" || !got.CreatedAt.Equal(want) {
		t.Errorf("CreateTask() = %+v", got)
	}
}

// TestListTasks はクエリパラメータの組み立てを検証する。
func TestListTasks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts ListOptions
		want string
	}{
		{"条件なし", ListOptions{}, "/tasks"},
		{"すべての条件", ListOptions{Search: "milk & eggs", Status: "done", Page: 2, Limit: 5}, "/tasks?limit=5&page=2&search=milk+%26+eggs&status=done"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts, received := newStubServer(t, http.StatusOK, `{"tasks":[],"pagination":{"currentPage":1}}`)
			list, err := New(ts.URL).ListTasks(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("ListTasks()でエラーが発生: %v", err)
			}
			if received.URI != tt.want {
				t.Errorf("URI = %q, want %q", received.URI, tt.want)
			}
			if list.Pagination.CurrentPage != 1 {
				t.Errorf("Pagination = %+v", list.Pagination)
			}
		})
	}
}

// TestAPIError はエラーレスポンスの変換を検証する。
func TestAPIError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		wantMsg   string
		wantRetry time.Duration
	}{
		{"JSONのエラー", http.StatusNotFound, `{"error":"Task not found"}`, "Task not found", 0},
		{"JSONでないエラー", http.StatusBadGateway, "upstream down", "upstream down", 0},
		{"レート制限", http.StatusTooManyRequests, `{"error":"Too many requests, please try again later"}`, "Too many requests, please try again later", 7 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts, _ := newStubServer(t, tt.status, tt.body)
			err := New(ts.URL).DeleteTask(context.Background(), "t1")

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Message != tt.wantMsg || apiErr.RetryAfter != tt.wantRetry {
				t.Errorf("APIError = %+v", apiErr)
			}
			if StatusCode(err) != tt.status {
				t.Errorf("StatusCode() = %d, want %d", StatusCode(err), tt.status)
			}
		})
	}

	t.Run("接続できない場合はAPIErrorではないこと", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()

		err := New(url).DeleteTask(context.Background(), "t1")
		if err == nil || StatusCode(err) != 0 {
			t.Errorf("err = %v", err)
		}
	})
}
