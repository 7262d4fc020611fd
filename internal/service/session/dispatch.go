package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zhouzirui/voicelink/internal/metrics"
	"github.com/zhouzirui/voicelink/internal/model/chat"
	"github.com/zhouzirui/voicelink/internal/service/notice"
	"github.com/zhouzirui/voicelink/internal/service/pubsub"
)

// DispatchStatus 是一次转写提交的结果。
type DispatchStatus string

const (
	DispatchSent      DispatchStatus = "sent"
	DispatchSimulated DispatchStatus = "simulated"
	DispatchDuplicate DispatchStatus = "duplicate"
	DispatchEmpty     DispatchStatus = "empty"
)

// Dispatch 描述转写的处理结果。
type Dispatch struct {
	Status DispatchStatus `json:"status"`
	Text   string         `json:"text,omitempty"`
	Mode   Mode           `json:"mode,omitempty"`
}

// SubmitTranscript deduplicates a final transcript, logs it and sends it to
// the shared group. Failed sends are reported, never retried.
func (c *Coordinator) SubmitTranscript(ctx context.Context, transcript string) (Dispatch, error) {
	text := strings.TrimSpace(transcript)
	if text == "" {
		metrics.TranscriptsDispatched.WithLabelValues("empty").Inc()
		return Dispatch{Status: DispatchEmpty}, nil
	}

	now := c.clock.Now()
	c.mu.Lock()
	if c.state.closed {
		c.mu.Unlock()
		return Dispatch{}, ErrClosed
	}
	if c.state.lastDispatched.matches(text, now, c.opts.DedupWindow) {
		c.mu.Unlock()
		metrics.TranscriptsDispatched.WithLabelValues("duplicate").Inc()
		c.logger.Debug().Str("text", text).Msg("duplicate transcript ignored")
		return Dispatch{Status: DispatchDuplicate, Text: text}, nil
	}
	c.state.lastDispatched = marker{text: text, at: now}
	// 服务端可能在确认之前就把消息回传给发送方，回声标记须在发送前就位。
	pending := marker{text: text, at: now}
	previousEcho := c.state.echo
	c.state.echo = pending
	c.mu.Unlock()

	c.appendMessage(ctx, chat.Message{Text: text, Sender: chat.SenderUser, Timestamp: now})

	mode, err := c.send(ctx, text)
	if err != nil {
		c.mu.Lock()
		if c.state.echo == pending {
			c.state.echo = previousEcho
		}
		c.mu.Unlock()

		metrics.TranscriptsDispatched.WithLabelValues("failed").Inc()
		c.logger.Error().Err(err).Msg("send transcript failed")
		c.deps.Notices.Publish(notice.Notice{
			Kind:    notice.KindSend,
			Level:   notice.LevelError,
			Message: sendFailureMessage(err),
		})
		return Dispatch{}, err
	}

	sentAt := c.clock.Now()
	c.appendMessage(ctx, chat.Message{Text: text, Sender: chat.SenderUser, Timestamp: sentAt, IsAudio: true})

	c.mu.Lock()
	c.state.echo = marker{text: text, at: sentAt}
	c.mu.Unlock()

	metrics.TranscriptsDispatched.WithLabelValues("sent").Inc()
	status := DispatchSent
	if mode != ModeNetwork {
		status = DispatchSimulated
	}
	return Dispatch{Status: status, Text: text, Mode: mode}, nil
}

func sendFailureMessage(err error) string {
	if errors.Is(err, ErrNotConnected) {
		return "Not connected. Reconnect and try again."
	}
	return "Failed to send message"
}

// send 按当前模式发送：模拟与未配置客户端时只记录日志。
func (c *Coordinator) send(ctx context.Context, text string) (Mode, error) {
	now := c.clock.Now()
	c.mu.Lock()
	mode := c.state.mode
	client := c.state.client
	permitted := c.state.canSend(now, c.opts.ConnectionGrace)
	simulated := c.state.conn == StateConnected && mode != ModeNetwork
	c.mu.Unlock()

	if mode == ModeMock || simulated {
		metrics.Sends.WithLabelValues(string(mode), "ok").Inc()
		c.logger.Info().Str("mode", string(mode)).Str("group", c.opts.SendGroup).Str("text", text).Msg("simulated send")
		return mode, nil
	}
	if !permitted || client == nil {
		metrics.Sends.WithLabelValues(string(ModeNetwork), "not-connected").Inc()
		return mode, ErrNotConnected
	}

	prefs := c.loadPreferences(ctx)
	envelope := chat.Envelope{
		Type:     chat.EnvelopeTranscript,
		Text:     text,
		Metadata: prefs.Metadata(),
		SentAt:   now,
	}
	if err := client.SendToGroup(ctx, c.opts.SendGroup, envelope, pubsub.DataTypeJSON); err != nil {
		metrics.Sends.WithLabelValues(string(ModeNetwork), "error").Inc()
		return mode, fmt.Errorf("send to group %s: %w", c.opts.SendGroup, err)
	}
	c.mu.Lock()
	if c.state.client == client {
		c.state.markConnected(c.clock.Now())
	}
	c.mu.Unlock()

	metrics.Sends.WithLabelValues(string(ModeNetwork), "ok").Inc()
	return ModeNetwork, nil
}

// HandleInbound 处理入站分组消息。自身回声被丢弃并返回 false。
func (c *Coordinator) HandleInbound(ctx context.Context, payload any) (bool, error) {
	text := strings.TrimSpace(decodeInbound(payload))
	if text == "" {
		metrics.InboundMessages.WithLabelValues("empty").Inc()
		return false, nil
	}

	now := c.clock.Now()
	c.mu.Lock()
	if c.state.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	echo := c.state.echo.matches(text, now, c.opts.EchoWindow)
	c.mu.Unlock()
	if echo {
		metrics.InboundMessages.WithLabelValues("echo").Inc()
		c.logger.Debug().Str("text", text).Msg("self echo suppressed")
		return false, nil
	}

	metrics.InboundMessages.WithLabelValues("accepted").Inc()
	c.appendMessage(ctx, chat.Message{Text: text, Sender: chat.SenderAssistant, Timestamp: now})

	prefs := c.loadPreferences(ctx)
	if prefs.ShouldSpeak() {
		c.enqueueSpeech(speakJob{text: text, voice: prefs.Voice})
	}
	return true, nil
}

// decodeInbound 从入站负载中提取正文：字符串先尝试按 JSON 信封解析，
// 结构化负载取 data / text 字段，都没有时退回字符串表示。
func decodeInbound(payload any) string {
	switch v := payload.(type) {
	case nil:
		return ""
	case string:
		return decodeString(v)
	case []byte:
		return decodeString(string(v))
	case json.RawMessage:
		return decodeString(string(v))
	case chat.Envelope:
		return v.Content()
	case *chat.Envelope:
		if v == nil {
			return ""
		}
		return v.Content()
	case map[string]any:
		if text, ok := extractContent(v); ok {
			return text
		}
		return render(v)
	default:
		return render(v)
	}
}

func decodeString(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return raw
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return raw
	}
	if text, ok := extractContent(obj); ok {
		return text
	}
	return raw
}

func extractContent(obj map[string]any) (string, bool) {
	for _, key := range []string{"data", "text"} {
		value, ok := obj[key]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v, true
			}
		case map[string]any:
			if text, ok := extractContent(v); ok {
				return text, true
			}
		default:
			return render(v), true
		}
	}
	return "", false
}

func render(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
