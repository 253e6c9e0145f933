package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// defaultTimeout はHTTPクライアントの既定のタイムアウト。
const defaultTimeout = 30 * time.Second

// Client はtaskhub APIのクライアント。
// 値はリクエスト間で共有でき、WithTokenはコピーを返す。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先のベースURL（例: "http://localhost:8080"）。
	baseURL string
	// token はAuthorizationヘッダーに付与するBearerトークン。
	token string
}

// Option はClientの生成オプション。
type Option func(*Client)

// WithHTTPClient は使用するHTTPクライアントを設定する。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New は新しいクライアントを生成する。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken はトークンを設定したクライアントのコピーを返す。
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// APIError はAPIが返したエラー。
type APIError struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Message はレスポンスのerrorフィールド。
	Message string
	// RetryAfter はRetry-Afterヘッダーの値。429の場合に設定される。
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("taskhub API エラー: status=%d, message=%s", e.StatusCode, e.Message)
}

// StatusCode はerrがAPIErrorの場合にそのステータスコードを返す。それ以外は0を返す。
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// User はプリンシパルの公開情報。
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session は登録・ログインの結果。
type Session struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

// Task はタスク。
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TaskInput はタスクの作成・更新の内容。Statusが空の場合はサーバーの既定に従う。
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
}

// ListOptions は一覧取得の条件。ゼロ値の項目は送信しない。
type ListOptions struct {
	Search string
	Status string
	Page   int
	Limit  int
}

// Pagination はページング情報。
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalTasks  int64 `json:"totalTasks"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// TaskList は一覧取得の結果。
type TaskList struct {
	Tasks      []Task     `json:"tasks"`
	Pagination Pagination `json:"pagination"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type taskEnvelope struct {
	Task Task `json:"task"`
}

// Register はプリンシパルを登録する。
func (c *Client) Register(ctx context.Context, email, password string) (Session, error) {
	var sess Session
	err := c.doJSON(ctx, http.MethodPost, "/auth/register", credentials{Email: email, Password: password}, &sess)
	return sess, err
}

// Login はログインしてトークンを取得する。
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var sess Session
	err := c.doJSON(ctx, http.MethodPost, "/auth/login", credentials{Email: email, Password: password}, &sess)
	return sess, err
}

// Me は認証済みプリンシパルの情報を取得する。
func (c *Client) Me(ctx context.Context) (User, error) {
	var res struct {
		User User `json:"user"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, &res)
	return res.User, err
}

// ListTasks はタスクの一覧を取得する。
func (c *Client) ListTasks(ctx context.Context, opts ListOptions) (TaskList, error) {
	q := url.Values{}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := "/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list TaskList
	err := c.doJSON(ctx, http.MethodGet, path, nil, &list)
	return list, err
}

// GetTask はタスクを取得する。
func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var res taskEnvelope
	err := c.doJSON(ctx, http.MethodGet, taskPath(id), nil, &res)
	return res.Task, err
}

// CreateTask はタスクを作成する。
func (c *Client) CreateTask(ctx context.Context, in TaskInput) (Task, error) {
	var res taskEnvelope
	err := c.doJSON(ctx, http.MethodPost, "/tasks", in, &res)
	return res.Task, err
}

// UpdateTask はタスクを更新する。
func (c *Client) UpdateTask(ctx context.Context, id string, in TaskInput) (Task, error) {
	var res taskEnvelope
	err := c.doJSON(ctx, http.MethodPut, taskPath(id), in, &res)
	return res.Task, err
}

// DeleteTask はタスクを削除する。
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

func taskPath(id string) string {
	return "/tasks/" + url.PathEscape(id)
}

// doJSON はJSON形式のHTTPリクエストを実行する共通処理。
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// decodeError はエラーレスポンスをAPIErrorに変換する。
func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = string(raw)
	}

	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}
	return apiErr
}
