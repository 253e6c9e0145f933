package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/taskhub/internal/task"
)

// taskColumns はタスクの取得で使う列の並び。scanTaskと対応させること。
const taskColumns = "id, user_id, title, description, status, created_at, updated_at"

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask は1行をタスクに変換する。
func scanTask(row rowScanner) (task.Task, error) {
	var (
		t                    task.Task
		status               string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &status, &createdAt, &updatedAt); err != nil {
		return task.Task{}, err
	}
	t.Status = task.Status(status)
	t.CreatedAt = fromNanos(createdAt)
	t.UpdatedAt = fromNanos(updatedAt)
	return t, nil
}

// whereClause は所有者と述語からWHERE句と引数を組み立てる。
func whereClause(ownerID string, pred task.Predicate) (string, []any) {
	conds := []string{"user_id = ?"}
	args := []any{ownerID}
	for _, c := range pred.Clauses() {
		switch c := c.(type) {
		case task.StatusIs:
			conds = append(conds, "status = ?")
			args = append(args, string(c.Status))
		case task.TextContains:
			pattern := c.LikePattern()
			conds = append(conds, "("+foldFunc+"(title) LIKE ? ESCAPE '\\' OR "+foldFunc+"(description) LIKE ? ESCAPE '\\')")
			args = append(args, pattern, pattern)
		}
	}
	return strings.Join(conds, " AND "), args
}

// List は条件に一致するタスクを作成日時の降順で返す。
func (s *Store) List(ctx context.Context, ownerID string, pred task.Predicate, window task.Window) (task.Page, error) {
	where, args := whereClause(ownerID, pred)

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE "+where, args...).Scan(&total); err != nil {
		return task.Page{}, fmt.Errorf("タスク件数の取得に失敗: %w", err)
	}

	limit := window.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE "+where+
			" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, limit, max(window.Offset, 0))...,
	)
	if err != nil {
		return task.Page{}, fmt.Errorf("タスク一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]task.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return task.Page{}, fmt.Errorf("タスクの読み取りに失敗: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return task.Page{}, fmt.Errorf("タスク一覧の走査に失敗: %w", err)
	}
	return task.Page{Tasks: tasks, Total: total}, nil
}

// Get は所有者とIDに一致するタスクを返す。
func (s *Store) Get(ctx context.Context, ownerID, id string) (task.Task, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ? AND user_id = ?", id, ownerID)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, task.ErrNotFound
	}
	if err != nil {
		return task.Task{}, fmt.Errorf("タスクの取得に失敗: %w", err)
	}
	return t, nil
}

// Create はタスクを保存する。
func (s *Store) Create(ctx context.Context, t task.Task) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tasks ("+taskColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.OwnerID, t.Title, t.Description, string(t.Status),
		toNanos(t.CreatedAt), toNanos(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("タスクの挿入に失敗: %w", err)
	}
	return nil
}

// Update は所有者とIDに一致するタスクを1文で更新し、更新後の行を返す。
// updated_atは直前の値より必ず大きくなる。
func (s *Store) Update(ctx context.Context, ownerID, id string, ch task.Changes) (task.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE tasks SET
			title = ?,
			description = ?,
			status = CASE WHEN ? = '' THEN status ELSE ? END,
			updated_at = MAX(?, updated_at + 1)
		WHERE id = ? AND user_id = ?
		RETURNING `+taskColumns,
		ch.Title, ch.Description, string(ch.Status), string(ch.Status), toNanos(ch.UpdatedAt),
		id, ownerID,
	)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, task.ErrNotFound
	}
	if err != nil {
		return task.Task{}, fmt.Errorf("タスクの更新に失敗: %w", err)
	}
	return t, nil
}

// Delete は所有者とIDに一致するタスクを削除する。
func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ? AND user_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("タスクの削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return task.ErrNotFound
	}
	return nil
}
