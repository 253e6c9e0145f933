package task

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound は所有者とIDに一致するタスクが存在しないことを表す。
// 他の所有者のタスクである場合も同じエラーを返す。
var ErrNotFound = errors.New("タスクが見つかりません")

// Changes はタスク更新の内容。
type Changes struct {
	// Title は新しいタイトル。
	Title string
	// Description は新しい説明。
	Description string
	// Status は新しい状態。空の場合は現在の状態を維持する。
	Status Status
	// UpdatedAt は更新日時。ストアは直前の値より後の時刻を保証する。
	UpdatedAt time.Time
}

// Page は一覧取得の結果。
type Page struct {
	// Tasks は取得範囲内のタスク（作成日時の降順）。
	Tasks []Task
	// Total は取得範囲に関係なく条件に一致した総件数。
	Total int64
}

// Repository は所有者でスコープされたタスクの永続化を担当する。
// すべての操作は所有者IDで絞り込まれる。
type Repository interface {
	// List は条件に一致するタスクを作成日時の降順で返す。
	List(ctx context.Context, ownerID string, pred Predicate, window Window) (Page, error)
	// Get は所有者とIDに一致するタスクを返す。存在しない場合は ErrNotFound を返す。
	Get(ctx context.Context, ownerID, id string) (Task, error)
	// Create はタスクを保存する。
	Create(ctx context.Context, t Task) error
	// Update はIDと所有者が一致するタスクを1回の操作で更新し、更新後のタスクを返す。
	// 一致しない場合は ErrNotFound を返す。所有者は変更しない。
	Update(ctx context.Context, ownerID, id string, ch Changes) (Task, error)
	// Delete はIDと所有者が一致するタスクを1回の操作で削除する。
	// 一致しない場合は ErrNotFound を返す。
	Delete(ctx context.Context, ownerID, id string) error
}
