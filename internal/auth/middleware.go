package auth

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/taskhub/internal/apperr"
)

// contextKeyIdentity はGinコンテキストにIdentityを格納するためのキー。
const contextKeyIdentity = "identity"

// Middleware はGatewayでリクエストを認証するGinミドルウェアを返す。
// 認証に成功した場合のみ、コンテキストにIdentityを設定して後続へ進む。
func Middleware(gw *Gateway, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := gw.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			apperr.Abort(c, logger, err)
			return
		}
		c.Set(contextKeyIdentity, id)
		c.Next()
	}
}

// IdentityFrom はGinコンテキストからIdentityを取得する。
// Middlewareが事前に適用されている必要がある。
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(contextKeyIdentity)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	if !ok || id.IsZero() {
		return Identity{}, false
	}
	return id, true
}
