package chat_test

import (
	"context"
	"errors"
	"testing"

	chatmodel "github.com/zhouzirui/voicelink/internal/model/chat"
	chat "github.com/zhouzirui/voicelink/internal/service/chat"
	"github.com/zhouzirui/voicelink/internal/store"
)

func TestServiceAppendAssignsIDAndTimestamp(t *testing.T) {
	svc := chat.NewService(store.NewMemory())
	ctx := context.Background()

	msg, err := svc.Append(ctx, chatmodel.Message{Text: "hello", Sender: chatmodel.SenderUser})
	if err != nil {
		t.Fatalf("Append err: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("expected generated message id")
	}
	if msg.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}
}

func TestServiceListPreservesOrder(t *testing.T) {
	svc := chat.NewService(store.NewMemory())
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		if _, err := svc.Append(ctx, chatmodel.Message{Text: text, Sender: chatmodel.SenderUser}); err != nil {
			t.Fatalf("Append(%s) err: %v", text, err)
		}
	}

	messages, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List err: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[0].Text != "one" || messages[2].Text != "three" {
		t.Fatalf("unexpected order: %+v", messages)
	}
}

func TestServiceClearEmptiesLog(t *testing.T) {
	svc := chat.NewService(store.NewMemory())
	ctx := context.Background()

	if _, err := svc.Append(ctx, chatmodel.Message{Text: "hello", Sender: chatmodel.SenderAssistant}); err != nil {
		t.Fatalf("Append err: %v", err)
	}
	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("Clear err: %v", err)
	}

	messages, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List err: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected empty log after clear, got %d", len(messages))
	}
}

func TestServiceReloadsFromStore(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	first := chat.NewService(kv)
	if _, err := first.Append(ctx, chatmodel.Message{Text: "persisted", Sender: chatmodel.SenderUser, IsAudio: true}); err != nil {
		t.Fatalf("Append err: %v", err)
	}

	second := chat.NewService(kv)
	messages, err := second.List(ctx)
	if err != nil {
		t.Fatalf("List err: %v", err)
	}
	if len(messages) != 1 || messages[0].Text != "persisted" || !messages[0].IsAudio {
		t.Fatalf("unexpected reloaded messages: %+v", messages)
	}
}

func TestServiceRejectsInvalidMessages(t *testing.T) {
	svc := chat.NewService(store.NewMemory())
	ctx := context.Background()

	if _, err := svc.Append(ctx, chatmodel.Message{Text: "   ", Sender: chatmodel.SenderUser}); !errors.Is(err, chat.ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if _, err := svc.Append(ctx, chatmodel.Message{Text: "hi", Sender: "robot"}); !errors.Is(err, chat.ErrInvalidSender) {
		t.Fatalf("expected ErrInvalidSender, got %v", err)
	}
}

func TestServiceRecent(t *testing.T) {
	svc := chat.NewService(store.NewMemory())
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		if _, err := svc.Append(ctx, chatmodel.Message{Text: text, Sender: chatmodel.SenderUser}); err != nil {
			t.Fatalf("Append err: %v", err)
		}
	}

	recent, err := svc.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent err: %v", err)
	}
	if len(recent) != 2 || recent[0].Text != "b" {
		t.Fatalf("unexpected recent messages: %+v", recent)
	}
}
