package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/taskhub/internal/apperr"
	"github.com/nao1215/taskhub/internal/auth"
)

// ListResult は一覧取得の結果。
type ListResult struct {
	// Tasks は現在のページのタスク。
	Tasks []Task
	// Pagination はページング情報。
	Pagination Pagination
}

// Service は認証済みプリンシパルのタスク操作を担当する。
// 所有者IDは常にIdentityから取り、リクエストの値は使わない。
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// ServiceOption はServiceの生成オプション。
type ServiceOption func(*Service)

// WithClock は現在時刻を返す関数を設定する。テストで使用する。
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService は新しいタスクサービスを生成する。
func NewService(repo Repository, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List は条件に一致する自分のタスクを作成日時の降順で返す。
func (s *Service) List(ctx context.Context, id auth.Identity, params ListParams) (ListResult, error) {
	if id.IsZero() {
		return ListResult{}, apperr.Unauthorized("No token provided")
	}
	if params.Page < 1 {
		params.Page = DefaultPage
	}
	if params.Limit < 1 {
		params.Limit = DefaultLimit
	}
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}

	q := BuildQuery(id.ID(), params)
	page, err := s.repo.List(ctx, q.OwnerID, q.Predicate, q.Window)
	if err != nil {
		return ListResult{}, apperr.InternalError(fmt.Errorf("タスク一覧の取得に失敗: %w", err))
	}
	tasks := page.Tasks
	if tasks == nil {
		tasks = []Task{}
	}
	return ListResult{
		Tasks:      tasks,
		Pagination: NewPagination(params.Page, params.Limit, page.Total),
	}, nil
}

// Get は自分のタスクを1件返す。
func (s *Service) Get(ctx context.Context, id auth.Identity, taskID string) (Task, error) {
	if id.IsZero() {
		return Task{}, apperr.Unauthorized("No token provided")
	}
	taskID, err := parseID(taskID)
	if err != nil {
		return Task{}, err
	}

	t, err := s.repo.Get(ctx, id.ID(), taskID)
	if err != nil {
		return Task{}, s.repoError(err, "タスクの取得に失敗")
	}
	return t, nil
}

// Create は新しいタスクを作成する。状態を省略した場合はpendingになる。
func (s *Service) Create(ctx context.Context, id auth.Identity, in Input) (Task, error) {
	if id.IsZero() {
		return Task{}, apperr.Unauthorized("No token provided")
	}
	title, description, status, err := in.normalized()
	if err != nil {
		return Task{}, err
	}
	if status == "" {
		status = StatusPending
	}

	taskID, err := uuid.NewV7()
	if err != nil {
		return Task{}, apperr.InternalError(fmt.Errorf("IDの生成に失敗: %w", err))
	}
	now := s.now().UTC()
	t := Task{
		ID:          taskID.String(),
		Title:       title,
		Description: description,
		Status:      status,
		OwnerID:     id.ID(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return Task{}, apperr.InternalError(fmt.Errorf("タスクの保存に失敗: %w", err))
	}

	s.logger.Info("タスクを作成しました",
		slog.String("task_id", t.ID),
		slog.String("user_id", t.OwnerID),
	)
	return t, nil
}

// Update は自分のタスクのタイトル・説明・状態を更新する。
// 状態を省略した場合は現在の状態を維持する。
func (s *Service) Update(ctx context.Context, id auth.Identity, taskID string, in Input) (Task, error) {
	if id.IsZero() {
		return Task{}, apperr.Unauthorized("No token provided")
	}
	taskID, err := parseID(taskID)
	if err != nil {
		return Task{}, err
	}
	title, description, status, err := in.normalized()
	if err != nil {
		return Task{}, err
	}

	t, err := s.repo.Update(ctx, id.ID(), taskID, Changes{
		Title:       title,
		Description: description,
		Status:      status,
		UpdatedAt:   s.now().UTC(),
	})
	if err != nil {
		return Task{}, s.repoError(err, "タスクの更新に失敗")
	}

	s.logger.Info("タスクを更新しました",
		slog.String("task_id", t.ID),
		slog.String("user_id", t.OwnerID),
	)
	return t, nil
}

// Delete は自分のタスクを削除する。
func (s *Service) Delete(ctx context.Context, id auth.Identity, taskID string) error {
	if id.IsZero() {
		return apperr.Unauthorized("No token provided")
	}
	taskID, err := parseID(taskID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id.ID(), taskID); err != nil {
		return s.repoError(err, "タスクの削除に失敗")
	}

	s.logger.Info("タスクを削除しました",
		slog.String("task_id", taskID),
		slog.String("user_id", id.ID()),
	)
	return nil
}

// repoError はリポジトリのエラーを分類済みエラーに変換する。
func (s *Service) repoError(err error, action string) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFoundf("Task not found")
	}
	return apperr.InternalError(fmt.Errorf("%s: %w", action, err))
}
