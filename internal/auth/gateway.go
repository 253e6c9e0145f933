package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/nao1215/taskhub/internal/apperr"
)

// bearerPrefix はAuthorizationヘッダーのBearerスキーム接頭辞。
const bearerPrefix = "Bearer "

// 認証失敗の理由。メトリクスとログのラベルに使用する。
const (
	ReasonNoToken      = "no_token"
	ReasonInvalidToken = "invalid_token"
	ReasonNoPrincipal  = "no_principal"
	ReasonStoreError   = "store_error"
)

// TokenVerifier はトークンを検証してプリンシパルIDを返す。
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// GatewayOption はGatewayの生成オプション。
type GatewayOption func(*Gateway)

// WithFailureHook は認証失敗時に理由を受け取る関数を設定する。
func WithFailureHook(hook func(reason string)) GatewayOption {
	return func(g *Gateway) {
		g.onFailure = hook
	}
}

// Gateway はリクエストのBearerトークンを検証し、プリンシパルを解決する。
// 状態を変更せず、リクエストをまたいだキャッシュも持たない。
type Gateway struct {
	tokens    TokenVerifier
	store     CredentialStore
	logger    *slog.Logger
	onFailure func(reason string)
}

// NewGateway は新しいGatewayを生成する。
func NewGateway(tokens TokenVerifier, store CredentialStore, logger *slog.Logger, opts ...GatewayOption) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		tokens: tokens,
		store:  store,
		logger: logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BearerToken はAuthorizationヘッダーの値からトークンを取り出す。
// "Bearer <token>" の形式に一致しない場合はfalseを返す。
func BearerToken(header string) (string, bool) {
	tok, found := strings.CutPrefix(header, bearerPrefix)
	if !found || tok == "" || strings.ContainsAny(tok, " \t\r\n") {
		return "", false
	}
	return tok, true
}

// Authenticate はAuthorizationヘッダーの値からIdentityを解決する。
// トークンの欠落・不正・期限切れ、プリンシパルの不在はUnauthenticated、
// ストアの想定外の失敗はInternalとして返す。
func (g *Gateway) Authenticate(ctx context.Context, authorization string) (Identity, error) {
	tok, ok := BearerToken(authorization)
	if !ok {
		g.fail(ReasonNoToken)
		return Identity{}, apperr.Unauthorized("No token provided")
	}

	principalID, err := g.tokens.Verify(tok)
	if err != nil {
		g.fail(ReasonInvalidToken)
		g.logger.Info("トークンの検証に失敗", slog.String("error", err.Error()))
		return Identity{}, apperr.Unauthorized("Invalid token")
	}

	p, err := g.store.PrincipalByID(ctx, principalID)
	if errors.Is(err, ErrPrincipalNotFound) {
		g.fail(ReasonNoPrincipal)
		return Identity{}, apperr.Unauthorized("User not found")
	}
	if err != nil {
		g.fail(ReasonStoreError)
		return Identity{}, apperr.InternalError(err)
	}

	return Identity{id: p.ID, email: p.Email}, nil
}

// fail は認証失敗をフックに通知する。
func (g *Gateway) fail(reason string) {
	if g.onFailure != nil {
		g.onFailure(reason)
	}
}
