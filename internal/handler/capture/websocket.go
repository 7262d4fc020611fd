// Package capture 把浏览器页面的语音识别引擎通过 WebSocket 接入采集桥接。
package capture

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	capturesvc "github.com/zhouzirui/voicelink/internal/service/capture"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Bridge 是处理器依赖的桥接能力。
type Bridge interface {
	Attach(conn capturesvc.Conn) string
	Detach(id string)
	Deliver(msg capturesvc.Message)
}

// WebSocketHandler 浏览器识别引擎的WebSocket处理器
type WebSocketHandler struct {
	bridge   Bridge
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(bridge Bridge, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		bridge: bridge,
		logger: logger.With().Str("component", "capture-ws").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/capture/ws", h.handleWebSocket)
}

// handleWebSocket 绑定浏览器连接，读取识别事件并转交桥接。
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}

	id := h.bridge.Attach(conn)
	defer h.bridge.Detach(id)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.pingLoop(ctx, conn)

	h.logger.Info().Str("conn", id).Str("remote", r.RemoteAddr).Msg("recognizer page connected")

	for {
		var msg capturesvc.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Str("conn", id).Msg("read error")
			}
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if msg.Type == "" {
			h.logger.Debug().Str("conn", id).Msg("message without type ignored")
			continue
		}
		h.bridge.Deliver(msg)
	}
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
