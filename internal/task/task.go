package task

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/nao1215/taskhub/internal/apperr"
)

const (
	// MaxTitleLength はタイトルの最大文字数。
	MaxTitleLength = 100
	// MaxDescriptionLength は説明の最大文字数。
	MaxDescriptionLength = 500
)

// Status はタスクの状態を表す。
type Status string

const (
	// StatusPending は未完了のタスク。
	StatusPending Status = "pending"
	// StatusDone は完了したタスク。
	StatusDone Status = "done"
)

// Valid は既知の状態かどうかを返す。
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusDone
}

// Task は所有者に紐づくタスクを表す。
// 所有者は作成時に設定され、以後変更されない。
type Task struct {
	// ID はタスクの一意識別子（UUIDv7、作成順に並ぶ）。
	ID string
	// Title はタイトル（1〜100文字）。
	Title string
	// Description は説明（1〜500文字）。
	Description string
	// Status は状態。
	Status Status
	// OwnerID は所有するプリンシパルのID。
	OwnerID string
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は最終更新日時。
	UpdatedAt time.Time
}

// Input はタスク作成・更新リクエストの内容。
type Input struct {
	// Title はタイトル。前後の空白は取り除かれる。
	Title string
	// Description は説明。前後の空白は取り除かれる。
	Description string
	// Status は状態。空の場合、作成時はpending、更新時は現在の状態を維持する。
	Status string
}

// normalized は空白を除去し、検証済みの入力を返す。
// statusが空の場合は空のStatusを返す。
func (in Input) normalized() (title, description string, status Status, err error) {
	title = strings.TrimSpace(in.Title)
	description = strings.TrimSpace(in.Description)
	if title == "" || description == "" {
		return "", "", "", apperr.Invalid("Title and description are required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", "", "", apperr.Invalid("Title cannot be more than 100 characters")
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return "", "", "", apperr.Invalid("Description cannot be more than 500 characters")
	}
	if in.Status != "" {
		status = Status(in.Status)
		if !status.Valid() {
			return "", "", "", apperr.Invalid(`Status must be either "pending" or "done"`)
		}
	}
	return title, description, status, nil
}

// parseID はタスクIDの形式を検証し、正規化した文字列を返す。
func parseID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", apperr.Invalid("Invalid task ID")
	}
	return parsed.String(), nil
}
