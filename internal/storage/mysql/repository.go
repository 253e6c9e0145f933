package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/taskhub/internal/auth"
	"github.com/nao1215/taskhub/internal/task"
	"gorm.io/gorm"
)

// CreatePrincipal はプリンシパルを保存する。
func (s *Store) CreatePrincipal(ctx context.Context, p auth.Principal) error {
	m := fromPrincipal(p)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isDuplicate(err) {
			return auth.ErrEmailTaken
		}
		return fmt.Errorf("プリンシパルの挿入に失敗: %w", err)
	}
	return nil
}

// PrincipalByID はIDでプリンシパルを取得する。
func (s *Store) PrincipalByID(ctx context.Context, id string) (auth.Principal, error) {
	return s.principal(ctx, "id = ?", id)
}

// PrincipalByEmail は正規化済みメールアドレスでプリンシパルを取得する。
func (s *Store) PrincipalByEmail(ctx context.Context, email string) (auth.Principal, error) {
	return s.principal(ctx, "email = ?", email)
}

// principal は条件に一致するプリンシパルを1件取得する。
func (s *Store) principal(ctx context.Context, cond string, arg string) (auth.Principal, error) {
	var m userModel
	err := s.db.WithContext(ctx).Where(cond, arg).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return auth.Principal{}, auth.ErrPrincipalNotFound
	}
	if err != nil {
		return auth.Principal{}, fmt.Errorf("プリンシパルの取得に失敗: %w", err)
	}
	return m.principal(), nil
}

// scoped は所有者と述語で絞り込んだクエリを返す。
func (s *Store) scoped(ctx context.Context, ownerID string, pred task.Predicate) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&taskModel{}).Where("user_id = ?", ownerID)
	for _, c := range pred.Clauses() {
		switch c := c.(type) {
		case task.StatusIs:
			q = q.Where("status = ?", string(c.Status))
		case task.TextContains:
			pattern := c.LikePattern()
			q = q.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", pattern, pattern)
		}
	}
	return q
}

// List は条件に一致するタスクを作成日時の降順で返す。
func (s *Store) List(ctx context.Context, ownerID string, pred task.Predicate, window task.Window) (task.Page, error) {
	var total int64
	if err := s.scoped(ctx, ownerID, pred).Count(&total).Error; err != nil {
		return task.Page{}, fmt.Errorf("タスク件数の取得に失敗: %w", err)
	}

	q := s.scoped(ctx, ownerID, pred).Order("created_at DESC").Order("id DESC").Offset(max(window.Offset, 0))
	if window.Limit > 0 {
		q = q.Limit(window.Limit)
	}
	var rows []taskModel
	if err := q.Find(&rows).Error; err != nil {
		return task.Page{}, fmt.Errorf("タスク一覧の取得に失敗: %w", err)
	}

	tasks := make([]task.Task, 0, len(rows))
	for _, m := range rows {
		tasks = append(tasks, m.task())
	}
	return task.Page{Tasks: tasks, Total: total}, nil
}

// Get は所有者とIDに一致するタスクを返す。
func (s *Store) Get(ctx context.Context, ownerID, id string) (task.Task, error) {
	return s.get(s.db.WithContext(ctx), ownerID, id)
}

func (s *Store) get(db *gorm.DB, ownerID, id string) (task.Task, error) {
	var m taskModel
	err := db.Where("id = ? AND user_id = ?", id, ownerID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return task.Task{}, task.ErrNotFound
	}
	if err != nil {
		return task.Task{}, fmt.Errorf("タスクの取得に失敗: %w", err)
	}
	return m.task(), nil
}

// Create はタスクを保存する。
func (s *Store) Create(ctx context.Context, t task.Task) error {
	m := fromTask(t)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("タスクの挿入に失敗: %w", err)
	}
	return nil
}

// Update は所有者とIDに一致するタスクをトランザクション内で更新し、更新後の行を返す。
// updated_atは直前の値より必ず大きくなる。
func (s *Store) Update(ctx context.Context, ownerID, id string, ch task.Changes) (task.Task, error) {
	var updated task.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		values := map[string]any{
			"title":       ch.Title,
			"description": ch.Description,
			"updated_at":  gorm.Expr("GREATEST(?, updated_at + 1)", ch.UpdatedAt.UTC().UnixNano()),
		}
		if ch.Status != "" {
			values["status"] = string(ch.Status)
		}

		res := tx.Model(&taskModel{}).Where("id = ? AND user_id = ?", id, ownerID).Updates(values)
		if res.Error != nil {
			return fmt.Errorf("タスクの更新に失敗: %w", res.Error)
		}
		// updated_atは必ず変わるため、0件は不一致を意味する
		if res.RowsAffected == 0 {
			return task.ErrNotFound
		}

		t, err := s.get(tx, ownerID, id)
		if err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return task.Task{}, err
	}
	return updated, nil
}

// Delete は所有者とIDに一致するタスクを削除する。
func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).Delete(&taskModel{})
	if res.Error != nil {
		return fmt.Errorf("タスクの削除に失敗: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return task.ErrNotFound
	}
	return nil
}
