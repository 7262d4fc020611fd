package chat

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/voicelink/internal/model/chat"
	"github.com/zhouzirui/voicelink/pkg/utils"
)

// MessageLog 抽象消息日志的读取与清空。
type MessageLog interface {
	List(ctx context.Context) ([]chat.Message, error)
	Recent(ctx context.Context, limit int) ([]chat.Message, error)
	Clear(ctx context.Context) error
}

// Handler 消息日志的HTTP处理器
type Handler struct {
	messages MessageLog
}

// New 创建消息处理器
func New(messages MessageLog) *Handler {
	return &Handler{messages: messages}
}

// RegisterRoutes 注册消息相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/messages", h.handleListMessages)
	r.Delete("/messages", h.handleClearMessages)
}

// handleListMessages 返回消息日志，可用 limit 只取最近几条
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	var (
		messages []chat.Message
		err      error
	)

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil || limit <= 0 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		messages, err = h.messages.Recent(r.Context(), limit)
	} else {
		messages, err = h.messages.List(r.Context())
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if messages == nil {
		messages = []chat.Message{}
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

// handleClearMessages 清空消息日志
func (h *Handler) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	if err := h.messages.Clear(r.Context()); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
