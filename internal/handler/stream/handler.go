// Package stream 通过 Server-Sent Events 向页面推送会话提示。
package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/voicelink/internal/service/notice"
	"github.com/zhouzirui/voicelink/pkg/utils"
)

// Source 是提示的来源。
type Source interface {
	Recent() []notice.Notice
	Subscribe(buffer int) (<-chan notice.Notice, func())
}

// Handler manages notice streaming via Server-Sent Events
type Handler struct {
	source    Source
	heartbeat time.Duration
	logger    zerolog.Logger
}

// New creates a new stream handler
func New(source Source, heartbeat time.Duration, logger zerolog.Logger) *Handler {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &Handler{
		source:    source,
		heartbeat: heartbeat,
		logger:    logger.With().Str("component", "event-stream").Logger(),
	}
}

// RegisterRoutes 注册事件流路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/events", h.handleEvents)
	r.Get("/notices", h.handleRecent)
}

func (h *Handler) handleRecent(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.source.Recent())
}

// handleEvents 先补发最近的提示，再持续推送新提示直到客户端断开。
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// 先订阅再取历史，避免两者之间的提示丢失；重复的由 ID 去掉。
	notices, cancel := h.source.Subscribe(64)
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	seen := make(map[string]struct{})
	if r.URL.Query().Get("replay") != "false" {
		for _, n := range h.source.Recent() {
			seen[n.ID] = struct{}{}
			if err := utils.SendSSEEvent(w, flusher, n.ID, string(n.Kind), n); err != nil {
				return
			}
		}
	}
	if err := utils.SendSSEComment(w, flusher, "ready"); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	h.logger.Debug().Str("remote", r.RemoteAddr).Msg("event stream opened")
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug().Str("remote", r.RemoteAddr).Msg("event stream closed")
			return
		case n, ok := <-notices:
			if !ok {
				return
			}
			if _, dup := seen[n.ID]; dup {
				delete(seen, n.ID)
				continue
			}
			if err := utils.SendSSEEvent(w, flusher, n.ID, string(n.Kind), n); err != nil {
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}
