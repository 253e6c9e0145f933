package apperr

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// Abort はエラーを分類に応じたHTTPレスポンスに変換し、後続の処理を中断する。
// Internalの場合は原因をログに出力し、呼び出し元には固定メッセージだけを返す。
func Abort(c *gin.Context, logger *slog.Logger, err error) {
	kind := KindOf(err)
	if kind == Internal && logger != nil {
		logger.Error("内部エラー",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(Status(kind), gin.H{"error": Message(err)})
}
