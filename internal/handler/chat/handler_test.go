package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/voicelink/internal/model/chat"
	chatservice "github.com/zhouzirui/voicelink/internal/service/chat"
	"github.com/zhouzirui/voicelink/internal/store"
)

func setupRouter(t *testing.T) (*chi.Mux, *chatservice.Service) {
	t.Helper()
	chatSvc := chatservice.NewService(store.NewMemory())
	handler := New(chatSvc)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc
}

func seed(t *testing.T, svc *chatservice.Service, texts ...string) {
	t.Helper()
	for _, text := range texts {
		if _, err := svc.Append(context.Background(), chat.Message{Text: text, Sender: chat.SenderUser}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
}

func TestListMessages(t *testing.T) {
	r, svc := setupRouter(t)
	seed(t, svc, "one", "two", "three")

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/messages", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var messages []chat.Message
	if err := json.Unmarshal(resp.Body.Bytes(), &messages); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(messages) != 3 || messages[0].Text != "one" {
		t.Fatalf("unexpected messages: %+v", messages)
	}
}

func TestListMessagesWithLimit(t *testing.T) {
	r, svc := setupRouter(t)
	seed(t, svc, "one", "two", "three")

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/messages?limit=2", nil))

	var messages []chat.Message
	if err := json.Unmarshal(resp.Body.Bytes(), &messages); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(messages) != 2 || messages[0].Text != "two" {
		t.Fatalf("unexpected messages: %+v", messages)
	}
}

func TestListMessagesInvalidLimit(t *testing.T) {
	r, _ := setupRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/messages?limit=zero", nil))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestClearMessages(t *testing.T) {
	r, svc := setupRouter(t)
	seed(t, svc, "one")

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/messages", nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/messages", nil))
	if resp.Body.String() != "[]\n" {
		t.Fatalf("expected empty log, got %q", resp.Body.String())
	}
}
