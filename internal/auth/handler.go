package auth

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/taskhub/internal/apperr"
)

// Handler は登録・ログインのHTTPハンドラ。
type Handler struct {
	// svc は認証サービス。
	svc *Service
	// logger はログ出力先。
	logger *slog.Logger
}

// NewHandler は新しい認証ハンドラを生成する。
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// credentialsRequest は登録・ログインリクエストのJSON構造。
type credentialsRequest struct {
	// Email はメールアドレス。
	Email string `json:"email"`
	// Password は平文のパスワード。
	Password string `json:"password"`
}

// userResponse はプリンシパルのJSONレスポンス構造。
type userResponse struct {
	// ID はプリンシパルの一意識別子。
	ID string `json:"id"`
	// Email はメールアドレス。
	Email string `json:"email"`
}

// sessionResponse は登録・ログイン成功時のJSONレスポンス構造。
type sessionResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    userResponse `json:"user"`
}

func toUserResponse(id Identity) userResponse {
	return userResponse{ID: id.ID(), Email: id.Email()}
}

// Register はプリンシパル登録を処理するハンドラを返す。
func (h *Handler) Register() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Abort(c, h.logger, apperr.Invalid("Invalid request body"))
			return
		}

		sess, err := h.svc.Register(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			apperr.Abort(c, h.logger, err)
			return
		}

		c.JSON(http.StatusCreated, sessionResponse{
			Message: "User created successfully",
			Token:   sess.Token,
			User:    toUserResponse(sess.Identity),
		})
	}
}

// Login はログインを処理するハンドラを返す。
func (h *Handler) Login() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Abort(c, h.logger, apperr.Invalid("Invalid request body"))
			return
		}

		sess, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			apperr.Abort(c, h.logger, err)
			return
		}

		c.JSON(http.StatusOK, sessionResponse{
			Message: "Login successful",
			Token:   sess.Token,
			User:    toUserResponse(sess.Identity),
		})
	}
}

// Me は認証済みプリンシパルの情報を返すハンドラを返す。
func (h *Handler) Me() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			apperr.Abort(c, h.logger, apperr.Unauthorized("No token provided"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": toUserResponse(id)})
	}
}
