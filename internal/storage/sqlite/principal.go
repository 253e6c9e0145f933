package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nao1215/taskhub/internal/auth"
)

// CreatePrincipal はプリンシパルを保存する。
// メールアドレスが重複する場合は auth.ErrEmailTaken を返す。
func (s *Store) CreatePrincipal(ctx context.Context, p auth.Principal) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		p.ID, p.Email, p.PasswordHash, toNanos(p.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.ErrEmailTaken
		}
		return fmt.Errorf("プリンシパルの挿入に失敗: %w", err)
	}
	return nil
}

// PrincipalByID はIDでプリンシパルを取得する。
func (s *Store) PrincipalByID(ctx context.Context, id string) (auth.Principal, error) {
	return s.principal(ctx, "SELECT id, email, password_hash, created_at FROM users WHERE id = ?", id)
}

// PrincipalByEmail は正規化済みメールアドレスでプリンシパルを取得する。
func (s *Store) PrincipalByEmail(ctx context.Context, email string) (auth.Principal, error) {
	return s.principal(ctx, "SELECT id, email, password_hash, created_at FROM users WHERE email = ?", email)
}

// principal は1件のプリンシパルを取得する。
func (s *Store) principal(ctx context.Context, query string, arg string) (auth.Principal, error) {
	var (
		p         auth.Principal
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.Email, &p.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Principal{}, auth.ErrPrincipalNotFound
	}
	if err != nil {
		return auth.Principal{}, fmt.Errorf("プリンシパルの取得に失敗: %w", err)
	}
	p.CreatedAt = fromNanos(createdAt)
	return p, nil
}
