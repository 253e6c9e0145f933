package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/taskhub/internal/apperr"
)

const (
	// minPasswordLength はパスワードの最小文字数。
	minPasswordLength = 6
	// maxPasswordBytes はbcryptが扱えるパスワードの最大バイト数。
	maxPasswordBytes = 72
)

// Hasher はパスワードのハッシュ化と照合の機能。
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// TokenIssuer はプリンシパルIDに対してトークンを発行する。
type TokenIssuer interface {
	Issue(principalID string) (string, error)
}

// Session は登録・ログインの結果。
type Session struct {
	// Token は発行されたBearerトークン。
	Token string
	// Identity はトークンが束縛するプリンシパル。
	Identity Identity
}

// Service はプリンシパルの登録とログインを担当する。
type Service struct {
	store  CredentialStore
	hasher Hasher
	tokens TokenIssuer
	logger *slog.Logger
}

// NewService は新しい認証サービスを生成する。
func NewService(store CredentialStore, hasher Hasher, tokens TokenIssuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}
}

// Register は新しいプリンシパルを登録し、トークンを発行する。
// メールアドレスは大文字小文字を区別せずに一意でなければならない。
func (s *Service) Register(ctx context.Context, email, password string) (Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, apperr.Invalid("Email and password are required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return Session{}, apperr.Invalid("Please provide a valid email")
	}
	if len([]rune(password)) < minPasswordLength {
		return Session{}, apperr.Invalid("Password must be at least 6 characters long")
	}
	if len(password) > maxPasswordBytes {
		return Session{}, apperr.Invalid("Password must be at most 72 bytes long")
	}

	_, err := s.store.PrincipalByEmail(ctx, email)
	if err == nil {
		return Session{}, apperr.Invalid("User already exists with this email")
	}
	if !errors.Is(err, ErrPrincipalNotFound) {
		return Session{}, apperr.InternalError(fmt.Errorf("プリンシパルの取得に失敗: %w", err))
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Session{}, apperr.InternalError(fmt.Errorf("パスワードのハッシュ化に失敗: %w", err))
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Session{}, apperr.InternalError(fmt.Errorf("IDの生成に失敗: %w", err))
	}
	p := Principal{
		ID:           id.String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreatePrincipal(ctx, p); err != nil {
		// 同時登録で一意制約に抵触した場合も既存として扱う
		if errors.Is(err, ErrEmailTaken) {
			return Session{}, apperr.Invalid("User already exists with this email")
		}
		return Session{}, apperr.InternalError(fmt.Errorf("プリンシパルの保存に失敗: %w", err))
	}

	sess, err := s.issue(p)
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("プリンシパルを登録しました", slog.String("user_id", p.ID))
	return sess, nil
}

// Login はメールアドレスとパスワードを照合し、トークンを発行する。
// 不一致とプリンシパル不在は区別しない。
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, apperr.Invalid("Email and password are required")
	}

	p, err := s.store.PrincipalByEmail(ctx, email)
	if errors.Is(err, ErrPrincipalNotFound) {
		return Session{}, apperr.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return Session{}, apperr.InternalError(fmt.Errorf("プリンシパルの取得に失敗: %w", err))
	}
	if !s.hasher.Verify(password, p.PasswordHash) {
		return Session{}, apperr.Unauthorized("Invalid credentials")
	}

	sess, err := s.issue(p)
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("ログインしました", slog.String("user_id", p.ID))
	return sess, nil
}

// issue はプリンシパルに対するトークンを発行する。
func (s *Service) issue(p Principal) (Session, error) {
	tok, err := s.tokens.Issue(p.ID)
	if err != nil {
		return Session{}, apperr.InternalError(fmt.Errorf("トークンの発行に失敗: %w", err))
	}
	return Session{
		Token:    tok,
		Identity: Identity{id: p.ID, email: p.Email},
	}, nil
}
