package mysql

import (
	"time"

	"github.com/nao1215/taskhub/internal/auth"
	"github.com/nao1215/taskhub/internal/task"
)

// userModel はusersテーブルの行。
type userModel struct {
	// ID はプリンシパルID。
	ID string `gorm:"type:char(36);primaryKey"`
	// Email は正規化済みのメールアドレス。
	Email string `gorm:"type:varchar(191);not null;uniqueIndex"`
	// PasswordHash はbcryptハッシュ。
	PasswordHash string `gorm:"type:varchar(255);not null"`
	// CreatedAt は登録日時（UNIXナノ秒）。
	CreatedAt int64 `gorm:"not null;autoCreateTime:false"`
}

// TableName はテーブル名を返す。
func (userModel) TableName() string {
	return "users"
}

// taskModel はtasksテーブルの行。
type taskModel struct {
	// ID はタスクID。
	ID string `gorm:"type:char(36);primaryKey;index:idx_tasks_user_created,priority:3,sort:desc"`
	// UserID は所有するプリンシパルのID。
	UserID string `gorm:"type:char(36);not null;index:idx_tasks_user_created,priority:1;index:idx_tasks_user_status,priority:1"`
	// Title はタイトル。
	Title string `gorm:"type:varchar(400);not null"`
	// Description は説明。
	Description string `gorm:"type:varchar(2000);not null"`
	// Status は状態（pending / done）。
	Status string `gorm:"type:varchar(16);not null;default:pending;index:idx_tasks_user_status,priority:2"`
	// CreatedAt は作成日時（UNIXナノ秒）。
	CreatedAt int64 `gorm:"not null;autoCreateTime:false;index:idx_tasks_user_created,priority:2,sort:desc"`
	// UpdatedAt は更新日時（UNIXナノ秒）。
	UpdatedAt int64 `gorm:"not null;autoUpdateTime:false"`
}

// TableName はテーブル名を返す。
func (taskModel) TableName() string {
	return "tasks"
}

func fromPrincipal(p auth.Principal) userModel {
	return userModel{
		ID:           p.ID,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		CreatedAt:    p.CreatedAt.UTC().UnixNano(),
	}
}

func (m userModel) principal() auth.Principal {
	return auth.Principal{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    time.Unix(0, m.CreatedAt).UTC(),
	}
}

func fromTask(t task.Task) taskModel {
	return taskModel{
		ID:          t.ID,
		UserID:      t.OwnerID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt.UTC().UnixNano(),
		UpdatedAt:   t.UpdatedAt.UTC().UnixNano(),
	}
}

func (m taskModel) task() task.Task {
	return task.Task{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Status:      task.Status(m.Status),
		OwnerID:     m.UserID,
		CreatedAt:   time.Unix(0, m.CreatedAt).UTC(),
		UpdatedAt:   time.Unix(0, m.UpdatedAt).UTC(),
	}
}
