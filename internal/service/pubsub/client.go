package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Options 描述 WebSocketClient 的连接参数。
type Options struct {
	// ClientURL 为预先签发的完整连接地址，设置后忽略 Endpoint / AccessKey。
	ClientURL string
	Endpoint  string
	AccessKey string
	Hub       string
	UserID    string
	Groups    []string
	TokenTTL  time.Duration

	AckTimeout       time.Duration
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	EventBuffer      int
	Logger           zerolog.Logger
}

func (o *Options) applyDefaults() {
	if o.AckTimeout <= 0 {
		o.AckTimeout = 10 * time.Second
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 15 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 256
	}
}

// WebSocketClient implements Client over gorilla/websocket.
// Events are delivered to listeners in order from a dedicated goroutine.
type WebSocketClient struct {
	opts   Options
	logger zerolog.Logger
	dialer *websocket.Dialer

	nextAck atomic.Uint64

	mu       sync.Mutex
	conn     *websocket.Conn
	started  bool
	stopping bool
	readDone chan struct{}
	cancel   context.CancelFunc
	joined   map[string]struct{}

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[uint64]chan error

	listenerMu sync.RWMutex
	listeners  []func(Event)

	emitMu     sync.Mutex
	events     chan Event
	emitClosed bool
}

// NewWebSocketClient creates a client. Nothing is dialed until Start.
func NewWebSocketClient(opts Options) *WebSocketClient {
	opts.applyDefaults()
	return &WebSocketClient{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "pubsub").Logger(),
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.HandshakeTimeout,
			Subprotocols:     []string{Subprotocol},
		},
		joined:  make(map[string]struct{}),
		pending: make(map[uint64]chan error),
	}
}

var _ Client = (*WebSocketClient)(nil)

// OnEvent 注册事件监听者。
func (c *WebSocketClient) OnEvent(fn func(Event)) {
	if fn == nil {
		return
	}
	c.listenerMu.Lock()
	c.listeners = append(c.listeners, fn)
	c.listenerMu.Unlock()
}

// Start 建立连接，已连接时直接返回。
func (c *WebSocketClient) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	target, err := c.accessURL()
	if err != nil {
		return err
	}

	conn, resp, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return classifyDialError(err, resp)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	events := make(chan Event, c.opts.EventBuffer)
	readDone := make(chan struct{})

	c.emitMu.Lock()
	c.events = events
	c.emitClosed = false
	c.emitMu.Unlock()

	c.mu.Lock()
	c.conn = conn
	c.started = true
	c.stopping = false
	c.readDone = readDone
	c.cancel = cancel
	rejoin := make([]string, 0, len(c.joined))
	for group := range c.joined {
		rejoin = append(rejoin, group)
	}
	c.mu.Unlock()

	go c.dispatchLoop(events)
	go c.readLoop(conn, readDone)
	go c.pingLoop(loopCtx, conn)

	c.logger.Info().Str("hub", c.opts.Hub).Msg("pubsub connection established")

	for _, group := range rejoin {
		if err := c.JoinGroup(ctx, group); err != nil {
			c.logger.Warn().Err(err).Str("group", group).Msg("rejoin group failed")
			c.emit(Event{Type: EventRejoinGroupFailed, Group: group, Err: err, Message: err.Error()})
		}
	}
	return nil
}

// Stop 关闭连接并等待读循环退出，之后会投递 stopped 事件。
func (c *WebSocketClient) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.stopping = true
	conn := c.conn
	done := c.readDone
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client stop"),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	_ = conn.Close()

	<-done
	return nil
}

// JoinGroup 加入分组并等待确认。
func (c *WebSocketClient) JoinGroup(ctx context.Context, group string) error {
	if err := c.request(ctx, outboundFrame{Type: "joinGroup", Group: group}); err != nil {
		return fmt.Errorf("join group %s: %w", group, err)
	}
	c.mu.Lock()
	c.joined[group] = struct{}{}
	c.mu.Unlock()
	return nil
}

// LeaveGroup 离开分组并等待确认。
func (c *WebSocketClient) LeaveGroup(ctx context.Context, group string) error {
	if err := c.request(ctx, outboundFrame{Type: "leaveGroup", Group: group}); err != nil {
		return fmt.Errorf("leave group %s: %w", group, err)
	}
	c.mu.Lock()
	delete(c.joined, group)
	c.mu.Unlock()
	return nil
}

// SendToGroup publishes data to group and waits for the ack.
func (c *WebSocketClient) SendToGroup(ctx context.Context, group string, data any, dataType DataType) error {
	payload, err := encodePayload(data, dataType)
	if err != nil {
		return err
	}
	frame := outboundFrame{Type: "sendToGroup", Group: group, DataType: dataType, Data: payload}
	if err := c.request(ctx, frame); err != nil {
		return fmt.Errorf("send to group %s: %w", group, err)
	}
	return nil
}

func (c *WebSocketClient) accessURL() (string, error) {
	if c.opts.ClientURL != "" {
		return c.opts.ClientURL, nil
	}
	return ClientAccessURL(TokenOptions{
		Endpoint:  c.opts.Endpoint,
		AccessKey: c.opts.AccessKey,
		Hub:       c.opts.Hub,
		UserID:    c.opts.UserID,
		Groups:    c.opts.Groups,
		TTL:       c.opts.TokenTTL,
	})
}

// request 发送带 ackId 的帧并阻塞到确认、超时或 ctx 取消。
func (c *WebSocketClient) request(ctx context.Context, frame outboundFrame) error {
	c.mu.Lock()
	conn := c.conn
	started := c.started
	c.mu.Unlock()
	if !started || conn == nil {
		return ErrNotStarted
	}

	ackID := c.nextAck.Add(1)
	frame.AckID = ackID
	ackCh := make(chan error, 1)

	c.pendingMu.Lock()
	c.pending[ackID] = ackCh
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, ackID)
		c.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.opts.AckTimeout))
	err := conn.WriteJSON(frame)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	timer := time.NewTimer(c.opts.AckTimeout)
	defer timer.Stop()

	select {
	case err := <-ackCh:
		return err
	case <-timer.C:
		return ErrAckTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *WebSocketClient) readLoop(conn *websocket.Conn, done chan struct{}) {
	var readErr error
	defer func() {
		c.mu.Lock()
		stopping := c.stopping
		c.started = false
		c.conn = nil
		if c.cancel != nil {
			c.cancel()
		}
		c.mu.Unlock()

		_ = conn.Close()
		c.failPending(ErrConnectionClosed)

		if !stopping {
			msg := "connection closed"
			if readErr != nil {
				msg = readErr.Error()
			}
			c.logger.Warn().Err(readErr).Msg("pubsub connection lost")
			c.emit(Event{Type: EventDisconnected, Message: msg, Err: readErr})
		}
		c.emit(Event{Type: EventStopped})
		c.closeEvents()
		close(done)
	}()

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if isUnexpectedClose(err) {
				readErr = err
			}
			return
		}
		c.handleFrame(frame)
	}
}

func (c *WebSocketClient) handleFrame(frame inboundFrame) {
	switch frame.Type {
	case "ack":
		c.resolveAck(frame)
	case "message":
		data, err := decodePayload(frame.Data, frame.DataType)
		if err != nil {
			c.logger.Warn().Err(err).Str("dataType", string(frame.DataType)).Msg("drop undecodable message")
			return
		}
		ev := Event{
			Type:       EventServerMessage,
			FromUserID: frame.FromUserID,
			DataType:   frame.DataType,
			Data:       data,
		}
		if frame.From == "group" {
			ev.Type = EventGroupMessage
			ev.Group = frame.Group
		}
		c.emit(ev)
	case "system":
		switch frame.Event {
		case "connected":
			c.emit(Event{Type: EventConnected, UserID: frame.UserID, ConnectionID: frame.ConnectionID})
		case "disconnected":
			// 服务端主动断开，随后读循环会收到关闭帧。
			c.logger.Warn().Str("reason", frame.Message).Msg("server requested disconnect")
		}
	default:
		c.logger.Debug().Str("type", frame.Type).Msg("ignore unknown frame")
	}
}

func (c *WebSocketClient) resolveAck(frame inboundFrame) {
	c.pendingMu.Lock()
	ch, ok := c.pending[frame.AckID]
	c.pendingMu.Unlock()
	if !ok {
		return
	}

	var err error
	if !frame.Success {
		ackErr := &AckError{Name: "Unknown"}
		if frame.Error != nil {
			ackErr.Name = frame.Error.Name
			ackErr.Message = frame.Error.Message
		}
		// 重复 ackId 说明此前已成功处理。
		if ackErr.Name != "Duplicate" {
			err = ackErr
		}
	}

	select {
	case ch <- err:
	default:
	}
}

func (c *WebSocketClient) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		select {
		case ch <- err:
		default:
		}
		delete(c.pending, id)
	}
}

func (c *WebSocketClient) emit(ev Event) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if c.emitClosed || c.events == nil {
		return
	}
	c.events <- ev
}

func (c *WebSocketClient) closeEvents() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if c.emitClosed || c.events == nil {
		return
	}
	c.emitClosed = true
	close(c.events)
}

func (c *WebSocketClient) dispatchLoop(events <-chan Event) {
	for ev := range events {
		c.listenerMu.RLock()
		listeners := make([]func(Event), len(c.listeners))
		copy(listeners, c.listeners)
		c.listenerMu.RUnlock()

		for _, fn := range listeners {
			c.safeCall(fn, ev)
		}
	}
}

func (c *WebSocketClient) safeCall(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Str("event", string(ev.Type)).Msg("pubsub listener panicked")
		}
	}()
	fn(ev)
}

// pingLoop 定期发送 ping 保持连接。
func (c *WebSocketClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.logger.Debug().Err(err).Msg("ping failed")
				}
				return
			}
		}
	}
}
