package task

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/taskhub/internal/apperr"
	"github.com/nao1215/taskhub/internal/auth"
)

// Handler はタスクのHTTPハンドラ。auth.Middleware の後段に配置する。
type Handler struct {
	// svc はタスクサービス。
	svc *Service
	// logger はログ出力先。
	logger *slog.Logger
}

// NewHandler は新しいタスクハンドラを生成する。
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// taskRequest はタスク作成・更新リクエストのJSON構造。
type taskRequest struct {
	// Title はタイトル。
	Title string `json:"title"`
	// Description は説明。
	Description string `json:"description"`
	// Status は状態（pending / done）。
	Status string `json:"status"`
}

// taskResponse はタスクのJSONレスポンス構造。
type taskResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	UserID      string `json:"userId"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toTaskResponse(t Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		UserID:      t.OwnerID,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// identity はコンテキストから認証済みIdentityを取り出す。
// 取得できない場合はレスポンスを書き込みfalseを返す。
func (h *Handler) identity(c *gin.Context) (auth.Identity, bool) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		apperr.Abort(c, h.logger, apperr.Unauthorized("No token provided"))
		return auth.Identity{}, false
	}
	return id, true
}

// List はタスク一覧を返すハンドラを返す。
// クエリパラメータ: search, status(all|pending|done), page, limit
func (h *Handler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.identity(c)
		if !ok {
			return
		}

		params, err := ParseListParams(
			c.Query("search"),
			c.Query("status"),
			c.Query("page"),
			c.Query("limit"),
		)
		if err != nil {
			apperr.Abort(c, h.logger, err)
			return
		}

		res, err := h.svc.List(c.Request.Context(), id, params)
		if err != nil {
			apperr.Abort(c, h.logger, err)
			return
		}

		tasks := make([]taskResponse, 0, len(res.Tasks))
		for _, t := range res.Tasks {
			tasks = append(tasks, toTaskResponse(t))
		}
		c.JSON(http.StatusOK, gin.H{
			"tasks":      tasks,
			"pagination": res.Pagination,
		})
	}
}

// Get はタスクを1件返すハンドラを返す。
func (h *Handler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.identity(c)
		if !ok {
			return
		}

		t, err := h.svc.Get(c.Request.Context(), id, c.Param("id"))
		if err != nil {
			apperr.Abort(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"task": toTaskResponse(t)})
	}
}

// Create はタスクを作成するハンドラを返す。
func (h *Handler) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.identity(c)
		if !ok {
			return
		}

		var req taskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Abort(c, h.logger, apperr.Invalid("Invalid request body"))
			return
		}

		t, err := h.svc.Create(c.Request.Context(), id, Input(req))
		if err != nil {
			apperr.Abort(c, h.logger, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"message": "Task created successfully",
			"task":    toTaskResponse(t),
		})
	}
}

// Update はタスクを更新するハンドラを返す。
func (h *Handler) Update() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.identity(c)
		if !ok {
			return
		}

		var req taskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Abort(c, h.logger, apperr.Invalid("Invalid request body"))
			return
		}

		t, err := h.svc.Update(c.Request.Context(), id, c.Param("id"), Input(req))
		if err != nil {
			apperr.Abort(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Task updated successfully",
			"task":    toTaskResponse(t),
		})
	}
}

// Delete はタスクを削除するハンドラを返す。
func (h *Handler) Delete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.identity(c)
		if !ok {
			return
		}

		if err := h.svc.Delete(c.Request.Context(), id, c.Param("id")); err != nil {
			apperr.Abort(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
	}
}
