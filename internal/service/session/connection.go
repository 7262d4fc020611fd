package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhouzirui/voicelink/internal/metrics"
	"github.com/zhouzirui/voicelink/internal/service/notice"
	"github.com/zhouzirui/voicelink/internal/service/pubsub"
)

// Start 在挂载时调用：除非已连接、正在连接或处于错误状态，否则尝试一次连接。
// 不会自动重试。
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	switch c.state.conn {
	case StateConnected, StateConnecting, StateError:
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.Connect(ctx)
}

// Connect opens the connection and joins the configured groups. It is a no-op
// while connecting or connected. Auth and capacity failures switch to the
// simulated mode instead of returning an error.
func (c *Coordinator) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if current := c.state.conn; current == StateConnecting || current == StateConnected {
		c.mu.Unlock()
		c.logger.Debug().Str("state", string(current)).Msg("connect ignored")
		return nil
	}
	stopTimer(&c.state.reconnectTimer)
	now := c.clock.Now()

	if c.deps.NewClient == nil {
		c.state.mode = ModeMock
		c.state.setConnection(StateConnected, "", now)
		c.mu.Unlock()
		metrics.SetConnectionState(string(StateConnected))
		c.logger.Warn().Msg("no connection client configured, sends will be simulated locally")
		c.publishConnection(notice.LevelWarning, "No realtime connection configured, messages stay local")
		return nil
	}

	c.state.connGen++
	gen := c.state.connGen
	previous := c.state.client
	c.state.client = nil
	c.state.mode = ModeNetwork
	c.state.setConnection(StateConnecting, "", now)
	c.mu.Unlock()
	metrics.SetConnectionState(string(StateConnecting))
	c.logger.Info().Msg("connecting")

	// 意外断线后保留的旧客户端在新连接前释放。
	if previous != nil {
		_ = previous.Stop()
	}

	client, err := c.deps.NewClient()
	if err != nil {
		return c.failConnect(gen, nil, err)
	}
	client.OnEvent(func(ev pubsub.Event) {
		c.handleTransportEvent(gen, ev)
	})

	if err := client.Start(ctx); err != nil {
		return c.failConnect(gen, client, err)
	}

	c.mu.Lock()
	if c.state.closed || c.state.connGen != gen {
		c.mu.Unlock()
		_ = client.Stop()
		return nil
	}
	c.state.client = client
	if c.state.conn == StateError {
		// 启动期间连接已断开，保留错误状态等待手动重连。
		c.mu.Unlock()
		c.logger.Warn().Msg("connection dropped while starting")
		return fmt.Errorf("connection dropped while starting: %w", ErrNotConnected)
	}
	c.state.setConnection(StateConnected, "", c.clock.Now())
	c.mu.Unlock()
	metrics.SetConnectionState(string(StateConnected))

	c.joinGroups(ctx, client)
	c.logger.Info().Strs("groups", c.opts.Groups).Msg("connected")
	c.publishConnection(notice.LevelSuccess, "Connected")
	return nil
}

func (c *Coordinator) failConnect(gen uint64, client pubsub.Client, err error) error {
	degraded := pubsub.IsDegradable(err)

	c.mu.Lock()
	if c.state.connGen != gen || c.state.closed {
		c.mu.Unlock()
		return nil
	}
	// 失败客户端的后续事件一律视为过期。
	c.state.connGen++
	now := c.clock.Now()
	if degraded {
		c.state.mode = ModeSimulated
		c.state.setConnection(StateConnected, "", now)
	} else {
		c.state.setConnection(StateError, err.Error(), now)
	}
	c.mu.Unlock()

	if client != nil {
		_ = client.Stop()
	}

	if degraded {
		metrics.SetConnectionState(string(StateConnected))
		c.logger.Warn().Err(err).Msg("backend unavailable, entering simulated mode")
		c.publishConnection(notice.LevelWarning, "Realtime service unavailable, running in offline mode")
		return nil
	}

	metrics.SetConnectionState(string(StateError))
	c.logger.Error().Err(err).Msg("connect failed")
	c.publishConnection(notice.LevelError, "Connection failed")
	return fmt.Errorf("connect: %w", err)
}

// joinGroups 逐个加入分组，单个失败只记录不影响连接。
func (c *Coordinator) joinGroups(ctx context.Context, client pubsub.Client) {
	for _, group := range c.opts.Groups {
		if err := client.JoinGroup(ctx, group); err != nil {
			c.logger.Warn().Err(err).Str("group", group).Msg("join group failed")
			c.deps.Notices.Publish(notice.Notice{
				Kind:    notice.KindConnection,
				Level:   notice.LevelWarning,
				Message: fmt.Sprintf("Could not join group %s", group),
			})
			continue
		}
		c.logger.Debug().Str("group", group).Msg("joined group")
	}
}

// Disconnect 取消待执行的重连并释放客户端。
func (c *Coordinator) Disconnect() error {
	c.mu.Lock()
	if c.state.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	stopTimer(&c.state.reconnectTimer)
	c.state.reconnectSeq++
	c.state.connGen++
	client := c.state.client
	c.state.client = nil
	c.state.mode = c.defaultMode()
	c.state.setConnection(StateDisconnected, "", c.clock.Now())
	c.mu.Unlock()

	metrics.SetConnectionState(string(StateDisconnected))
	if client != nil {
		if err := client.Stop(); err != nil && !errors.Is(err, pubsub.ErrNotStarted) {
			c.logger.Warn().Err(err).Msg("stop client failed")
		}
	}
	c.logger.Info().Msg("disconnected")
	c.publishConnection(notice.LevelInfo, "Disconnected")
	return nil
}

// Reconnect 是显式的用户操作：先断开，再在 ReconnectDelay 后尝试一次连接。
func (c *Coordinator) Reconnect(ctx context.Context) error {
	if err := c.Disconnect(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.closed {
		return ErrClosed
	}
	c.state.reconnectSeq++
	seq := c.state.reconnectSeq
	c.state.reconnectTimer = c.clock.AfterFunc(c.opts.ReconnectDelay, func() {
		c.mu.Lock()
		if c.state.closed || c.state.reconnectSeq != seq {
			c.mu.Unlock()
			return
		}
		c.state.reconnectTimer = nil
		c.mu.Unlock()

		if err := c.Connect(c.ctx); err != nil {
			c.logger.Warn().Err(err).Msg("reconnect failed")
		}
	})
	c.logger.Info().Dur("delay", c.opts.ReconnectDelay).Msg("reconnect scheduled")
	return nil
}

// handleTransportEvent 处理连接客户端事件，来自旧客户端的事件被忽略。
func (c *Coordinator) handleTransportEvent(gen uint64, ev pubsub.Event) {
	switch ev.Type {
	case pubsub.EventGroupMessage, pubsub.EventServerMessage:
		if !c.isCurrent(gen) {
			return
		}
		if _, err := c.HandleInbound(c.ctx, ev.Data); err != nil {
			c.logger.Warn().Err(err).Msg("handle inbound failed")
		}
		return
	case pubsub.EventRejoinGroupFailed:
		c.logger.Warn().Err(ev.Err).Str("group", ev.Group).Msg("rejoin group failed")
		c.deps.Notices.Publish(notice.Notice{
			Kind:    notice.KindConnection,
			Level:   notice.LevelWarning,
			Message: fmt.Sprintf("Could not rejoin group %s", ev.Group),
		})
		return
	}

	c.mu.Lock()
	if c.state.closed || c.state.connGen != gen {
		c.mu.Unlock()
		return
	}
	now := c.clock.Now()

	switch ev.Type {
	case pubsub.EventConnected:
		c.state.setConnection(StateConnected, "", now)
		c.mu.Unlock()
		metrics.SetConnectionState(string(StateConnected))
		c.logger.Info().Str("connection_id", ev.ConnectionID).Str("user_id", ev.UserID).Msg("transport connected")

	case pubsub.EventDisconnected:
		c.state.setConnection(StateError, ReasonManualReconnect, now)
		c.mu.Unlock()
		metrics.SetConnectionState(string(StateError))
		c.logger.Warn().Str("message", ev.Message).Msg("transport disconnected, waiting for manual reconnect")
		c.publishConnection(notice.LevelError, "Connection lost, reconnect to continue")

	case pubsub.EventStopped:
		c.state.client = nil
		if c.state.conn != StateError {
			c.state.setConnection(StateDisconnected, "", now)
		}
		c.mu.Unlock()
		c.logger.Info().Msg("transport stopped, client released")

	default:
		c.mu.Unlock()
		c.logger.Debug().Str("type", string(ev.Type)).Msg("ignore transport event")
	}
}

func (c *Coordinator) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.state.closed && c.state.connGen == gen
}

func (c *Coordinator) publishConnection(level notice.Level, message string) {
	c.deps.Notices.Publish(notice.Notice{
		Kind:    notice.KindConnection,
		Level:   level,
		Message: message,
		Data:    c.Status(),
	})
}
