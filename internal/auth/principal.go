package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrPrincipalNotFound はプリンシパルが存在しないことを表す。
	ErrPrincipalNotFound = errors.New("プリンシパルが見つかりません")
	// ErrEmailTaken はメールアドレスが既に登録されていることを表す。
	ErrEmailTaken = errors.New("メールアドレスは既に登録されています")
)

// Principal は登録済みのアカウント（タスクの所有者）を表す。
type Principal struct {
	// ID はプリンシパルの一意識別子。
	ID string
	// Email は正規化（前後の空白除去・小文字化）済みのメールアドレス。
	Email string
	// PasswordHash はソルト付きのパスワードハッシュ。Gatewayの外には出さない。
	PasswordHash string
	// CreatedAt は登録日時。
	CreatedAt time.Time
}

// CredentialStore はプリンシパルの永続化を担当する。
// メールアドレスの一意性はストア側で保証する。
type CredentialStore interface {
	// CreatePrincipal はプリンシパルを保存する。
	// メールアドレスが重複する場合は ErrEmailTaken を返す。
	CreatePrincipal(ctx context.Context, p Principal) error
	// PrincipalByID はIDでプリンシパルを取得する。存在しない場合は ErrPrincipalNotFound を返す。
	PrincipalByID(ctx context.Context, id string) (Principal, error)
	// PrincipalByEmail は正規化済みメールアドレスでプリンシパルを取得する。
	// 存在しない場合は ErrPrincipalNotFound を返す。
	PrincipalByEmail(ctx context.Context, email string) (Principal, error)
}

// NormalizeEmail はメールアドレスを比較用に正規化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Identity は認証済みのプリンシパルを表す。
// Gatewayだけが生成でき、パスワードハッシュは含まない。
type Identity struct {
	id    string
	email string
}

// ID はプリンシパルの識別子を返す。
func (i Identity) ID() string {
	return i.id
}

// Email はプリンシパルのメールアドレスを返す。
func (i Identity) Email() string {
	return i.email
}

// IsZero は認証を経ていない空のIdentityかどうかを返す。
func (i Identity) IsZero() bool {
	return i.id == ""
}
