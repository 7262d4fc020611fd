// Package assistant 提供一个可选的大模型参与方：加入共享分组，
// 按发送方的偏好元数据回答 transcript 消息。
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/voicelink/internal/metrics"
	"github.com/zhouzirui/voicelink/internal/model/chat"
	"github.com/zhouzirui/voicelink/internal/model/persona"
	"github.com/zhouzirui/voicelink/internal/service/pubsub"
)

// Request 是一次回复生成的输入。
type Request struct {
	Persona  persona.Persona
	Metadata *chat.Metadata
	History  []chat.Message
	Query    string
}

// Replier 根据请求生成回复文本。
type Replier interface {
	Reply(ctx context.Context, req Request) (string, error)
}

// Options 是应答方的配置。
type Options struct {
	Client   pubsub.Client
	Replier  Replier
	Personas persona.Store
	Group    string
	UserID   string
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// Responder answers transcript envelopes in the group with reply envelopes.
type Responder struct {
	client   pubsub.Client
	replier  Replier
	personas persona.Store
	group    string
	userID   string
	timeout  time.Duration
	logger   zerolog.Logger

	jobs   chan chat.Envelope
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	history []chat.Message
}

// NewResponder 创建应答方。
func NewResponder(opts Options) *Responder {
	if opts.Group == "" {
		opts.Group = "voice-chat"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Responder{
		client:   opts.Client,
		replier:  opts.Replier,
		personas: opts.Personas,
		group:    opts.Group,
		userID:   opts.UserID,
		timeout:  opts.Timeout,
		logger:   opts.Logger.With().Str("component", "assistant").Logger(),
		jobs:     make(chan chat.Envelope, 16),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start 连接并加入分组。
func (r *Responder) Start(ctx context.Context) error {
	r.client.OnEvent(r.handleEvent)
	if err := r.client.Start(ctx); err != nil {
		return fmt.Errorf("start assistant client: %w", err)
	}
	if err := r.client.JoinGroup(ctx, r.group); err != nil {
		_ = r.client.Stop()
		return fmt.Errorf("join group %s: %w", r.group, err)
	}

	r.wg.Add(1)
	go r.loop()
	r.logger.Info().Str("group", r.group).Msg("assistant joined group")
	return nil
}

// Stop 断开连接并等待进行中的回复结束。
func (r *Responder) Stop() error {
	r.cancel()
	r.wg.Wait()
	return r.client.Stop()
}

func (r *Responder) handleEvent(ev pubsub.Event) {
	if ev.Type != pubsub.EventGroupMessage || ev.Group != r.group {
		return
	}
	if r.userID != "" && ev.FromUserID == r.userID {
		return
	}

	envelope, ok := decodeEnvelope(ev.Data)
	if !ok || envelope.Type != chat.EnvelopeTranscript || strings.TrimSpace(envelope.Content()) == "" {
		return
	}

	select {
	case r.jobs <- envelope:
	case <-r.ctx.Done():
	default:
		metrics.AssistantReplies.WithLabelValues("dropped").Inc()
		r.logger.Warn().Msg("assistant busy, dropping transcript")
	}
}

func (r *Responder) loop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case envelope := <-r.jobs:
			if err := r.respond(envelope); err != nil {
				metrics.AssistantReplies.WithLabelValues("failed").Inc()
				r.logger.Error().Err(err).Msg("assistant reply failed")
			}
		}
	}
}

func (r *Responder) respond(envelope chat.Envelope) error {
	query := strings.TrimSpace(envelope.Content())

	personality := persona.DefaultID
	if envelope.Metadata != nil && envelope.Metadata.Personality != "" {
		personality = envelope.Metadata.Personality
	}
	p, _ := persona.Resolve(r.personas, personality)

	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	reply, err := r.replier.Reply(ctx, Request{
		Persona:  p,
		Metadata: envelope.Metadata,
		History:  r.snapshot(),
		Query:    query,
	})
	if err != nil {
		return err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		metrics.AssistantReplies.WithLabelValues("empty").Inc()
		return nil
	}

	out := chat.Envelope{Type: chat.EnvelopeReply, Text: reply, SentAt: time.Now().UTC()}
	if err := r.client.SendToGroup(ctx, r.group, out, pubsub.DataTypeJSON); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}

	r.remember(
		chat.Message{Text: query, Sender: chat.SenderUser},
		chat.Message{Text: reply, Sender: chat.SenderAssistant},
	)
	metrics.AssistantReplies.WithLabelValues("sent").Inc()
	r.logger.Info().Str("persona", p.ID).Int("length", len(reply)).Msg("assistant replied")
	return nil
}

func (r *Responder) snapshot() []chat.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.Message(nil), r.history...)
}

func (r *Responder) remember(messages ...chat.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, messages...)
	if len(r.history) > historyLimit {
		r.history = append([]chat.Message(nil), r.history[len(r.history)-historyLimit:]...)
	}
}

// decodeEnvelope 将 json 或 text 负载还原为信封。
func decodeEnvelope(data any) (chat.Envelope, bool) {
	var raw []byte
	switch v := data.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case json.RawMessage:
		raw = v
	case chat.Envelope:
		return v, true
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return chat.Envelope{}, false
		}
		raw = b
	}

	var envelope chat.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return chat.Envelope{}, false
	}
	return envelope, true
}
