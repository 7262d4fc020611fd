package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	sessionsvc "github.com/zhouzirui/voicelink/internal/service/session"
	"github.com/zhouzirui/voicelink/pkg/utils"
)

// Coordinator 抽象会话协调器，便于测试替换。
type Coordinator interface {
	Status() sessionsvc.Status
	Connect(ctx context.Context) error
	Disconnect() error
	Reconnect(ctx context.Context) error
	StartCapture(ctx context.Context) error
	StopCapture() error
	SubmitTranscript(ctx context.Context, transcript string) (sessionsvc.Dispatch, error)
}

// Handler 会话控制的HTTP处理器
type Handler struct {
	coordinator Coordinator
}

// New 创建会话处理器
func New(coordinator Coordinator) *Handler {
	return &Handler{coordinator: coordinator}
}

// RegisterRoutes 注册会话、采集与转写路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/session", func(sr chi.Router) {
		sr.Get("/", h.handleStatus)
		sr.Post("/connect", h.handleConnect)
		sr.Post("/disconnect", h.handleDisconnect)
		sr.Post("/reconnect", h.handleReconnect)
	})
	r.Post("/capture/start", h.handleStartCapture)
	r.Post("/capture/stop", h.handleStopCapture)
	r.Post("/transcripts", h.handleSubmitTranscript)
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.coordinator.Status())
}

// handleConnect 连接失败时仍返回最新状态，便于页面展示原因。
func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	if err := h.coordinator.Connect(r.Context()); err != nil {
		h.respondStatusError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.coordinator.Status())
}

func (h *Handler) handleDisconnect(w http.ResponseWriter, _ *http.Request) {
	if err := h.coordinator.Disconnect(); err != nil {
		h.respondStatusError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.coordinator.Status())
}

func (h *Handler) handleReconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.coordinator.Reconnect(r.Context()); err != nil {
		h.respondStatusError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, h.coordinator.Status())
}

func (h *Handler) handleStartCapture(w http.ResponseWriter, r *http.Request) {
	if err := h.coordinator.StartCapture(r.Context()); err != nil {
		h.respondStatusError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.coordinator.Status())
}

func (h *Handler) handleStopCapture(w http.ResponseWriter, _ *http.Request) {
	if err := h.coordinator.StopCapture(); err != nil {
		h.respondStatusError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.coordinator.Status())
}

// handleSubmitTranscript 供没有浏览器识别引擎的客户端直接提交最终转写。
func (h *Handler) handleSubmitTranscript(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	dispatch, err := h.coordinator.SubmitTranscript(r.Context(), payload.Text)
	if err != nil {
		h.respondStatusError(w, err)
		return
	}
	if dispatch.Status == sessionsvc.DispatchEmpty {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}
	utils.RespondJSON(w, http.StatusOK, dispatch)
}

func (h *Handler) respondStatusError(w http.ResponseWriter, err error) {
	utils.RespondJSON(w, statusFor(err), map[string]any{
		"error":  err.Error(),
		"status": h.coordinator.Status(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sessionsvc.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, sessionsvc.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, sessionsvc.ErrCaptureUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, sessionsvc.ErrClosed):
		return http.StatusGone
	default:
		return http.StatusBadGateway
	}
}
