// Package token は署名付き・有効期限付きのBearerトークンを発行・検証する。
//
// トークンはHS256で署名したJWTで、プリンシパルIDと発行・失効時刻を含む。
// 永続化はせず、署名と有効期限だけで検証する（失効リストは持たない）。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTTL はトークンの既定の有効期間（7日）。
	DefaultTTL = 7 * 24 * time.Hour
	// DefaultIssuer はトークンの既定の発行者名。
	DefaultIssuer = "taskhub"
)

var (
	// ErrInvalidToken は不正・改ざん・期限切れのいずれかのトークンを表す。
	// 呼び出し元は原因を区別せずに拒否しなければならない。
	ErrInvalidToken = errors.New("invalid token")
	// ErrEmptySecret は署名鍵が設定されていないことを表す。
	ErrEmptySecret = errors.New("署名鍵が空です")
)

// Claims はトークンのクレーム（ペイロード）を表す。
type Claims struct {
	jwt.RegisteredClaims
	// UserID はトークンが束縛するプリンシパルの識別子。
	UserID string `json:"user_id"`
}

// Config はトークンサービスの設定。起動時に一度だけ読み込まれ、以後変更されない。
type Config struct {
	// Secret はHS256の署名鍵。
	Secret []byte
	// TTL は発行からの有効期間。ゼロの場合はDefaultTTLを使う。
	TTL time.Duration
	// Issuer は発行者名。空の場合はDefaultIssuerを使う。
	Issuer string
}

// Option はServiceの生成オプション。
type Option func(*Service)

// WithClock は現在時刻の取得関数を差し替える。テストで使用する。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service はトークンの発行と検証を行う。状態を持たず、並行に使用してよい。
type Service struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// New は新しいトークンサービスを生成する。
func New(cfg Config, opts ...Option) (*Service, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrEmptySecret
	}
	s := &Service{
		secret: append([]byte(nil), cfg.Secret...),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.issuer == "" {
		s.issuer = DefaultIssuer
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL はトークンの有効期間を返す。
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue はプリンシパルIDを埋め込んだトークンを発行する。
// 有効期限は現在時刻からTTL後。
func (s *Service) Issue(principalID string) (string, error) {
	if principalID == "" {
		return "", errors.New("プリンシパルIDが空です")
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
		UserID: principalID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、プリンシパルIDを返す。
// 失敗理由に関わらず ErrInvalidToken を包んだエラーを返す。
func (s *Service) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(_ *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.UserID == "" || claims.Subject != claims.UserID {
		return "", fmt.Errorf("%w: サブジェクトが不正です", ErrInvalidToken)
	}
	return claims.UserID, nil
}
