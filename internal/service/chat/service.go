package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/voicelink/internal/model/chat"
	"github.com/zhouzirui/voicelink/internal/store"
)

// StorageKey 是消息日志的固定持久化键。
const StorageKey = "chat-messages"

var (
	ErrEmptyText     = errors.New("message text is required")
	ErrInvalidSender = errors.New("invalid message sender")
)

// Service encapsulates the append-only, time ordered message log.
type Service struct {
	kv  store.KV
	now func() time.Time

	mu       sync.RWMutex
	loaded   bool
	messages []chat.Message
}

// NewService builds the message log on top of kv. History is loaded lazily on first access.
func NewService(kv store.KV) *Service {
	return &Service{kv: kv, now: time.Now}
}

// Append stores a message, filling in a missing ID and timestamp.
func (s *Service) Append(ctx context.Context, message chat.Message) (chat.Message, error) {
	if strings.TrimSpace(message.Text) == "" {
		return chat.Message{}, ErrEmptyText
	}
	if message.Sender != chat.SenderUser && message.Sender != chat.SenderAssistant {
		return chat.Message{}, fmt.Errorf("%w: %q", ErrInvalidSender, message.Sender)
	}

	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return chat.Message{}, err
	}

	next := append(append([]chat.Message(nil), s.messages...), message)
	if err := store.SetJSON(ctx, s.kv, StorageKey, next); err != nil {
		return chat.Message{}, fmt.Errorf("persist message log: %w", err)
	}
	s.messages = next
	return message, nil
}

// List returns a copy of the log.
func (s *Service) List(ctx context.Context) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	copied := make([]chat.Message, len(s.messages))
	copy(copied, s.messages)
	return copied, nil
}

// Clear removes every message.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("clear message log: %w", err)
	}
	s.messages = nil
	s.loaded = true
	return nil
}

// Recent 返回最近 limit 条消息。
func (s *Service) Recent(ctx context.Context, limit int) ([]chat.Message, error) {
	messages, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

func (s *Service) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	var stored []chat.Message
	if _, err := store.GetJSON(ctx, s.kv, StorageKey, &stored); err != nil {
		return fmt.Errorf("load message log: %w", err)
	}
	s.messages = stored
	s.loaded = true
	return nil
}
