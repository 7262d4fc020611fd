package pubsub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serverFrame struct {
	Type     string          `json:"type"`
	Group    string          `json:"group"`
	AckID    uint64          `json:"ackId"`
	DataType string          `json:"dataType"`
	Data     json.RawMessage `json:"data"`
}

// fakeService 模拟 Web PubSub 服务端：确认所有请求，并把分组消息回显给发送方。
func fakeService(t *testing.T, onConn func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{Subprotocols: []string{Subprotocol}}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteJSON(map[string]any{"type": "system", "event": "connected", "userId": "u1", "connectionId": "c1"})
		if onConn != nil {
			onConn(conn)
			return
		}

		for {
			var frame serverFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Group == "forbidden" {
				_ = conn.WriteJSON(map[string]any{
					"type": "ack", "ackId": frame.AckID, "success": false,
					"error": map[string]string{"name": "Forbidden", "message": "no permission"},
				})
				continue
			}
			_ = conn.WriteJSON(map[string]any{"type": "ack", "ackId": frame.AckID, "success": true})
			if frame.Type == "sendToGroup" {
				_ = conn.WriteJSON(map[string]any{
					"type": "message", "from": "group", "group": frame.Group,
					"fromUserId": "u1", "dataType": frame.DataType, "data": frame.Data,
				})
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newRecorder() *eventRecorder {
	return &eventRecorder{ch: make(chan Event, 32)}
}

func (r *eventRecorder) record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.ch <- ev
}

func (r *eventRecorder) waitFor(t *testing.T, typ EventType) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
			return Event{}
		}
	}
}

func (r *eventRecorder) seen(typ EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Type == typ {
			return true
		}
	}
	return false
}

func TestClientJoinSendAndReceive(t *testing.T) {
	srv := fakeService(t, nil)
	defer srv.Close()

	client := NewWebSocketClient(Options{ClientURL: wsURL(srv), Logger: zerolog.Nop(), AckTimeout: time.Second})
	rec := newRecorder()
	client.OnEvent(rec.record)

	ctx := context.Background()
	require.NoError(t, client.Start(ctx))
	connected := rec.waitFor(t, EventConnected)
	assert.Equal(t, "c1", connected.ConnectionID)

	require.NoError(t, client.JoinGroup(ctx, "voice-chat"))
	require.NoError(t, client.SendToGroup(ctx, "voice-chat", map[string]any{"text": "hello"}, DataTypeJSON))

	msg := rec.waitFor(t, EventGroupMessage)
	assert.Equal(t, "voice-chat", msg.Group)
	assert.Equal(t, DataTypeJSON, msg.DataType)
	assert.Equal(t, map[string]any{"text": "hello"}, msg.Data)

	require.NoError(t, client.SendToGroup(ctx, "voice-chat", "plain words", DataTypeText))
	msg = rec.waitFor(t, EventGroupMessage)
	assert.Equal(t, "plain words", msg.Data)

	require.NoError(t, client.Stop())
	rec.waitFor(t, EventStopped)
	assert.False(t, rec.seen(EventDisconnected), "a requested stop must not report a disconnect")
}

func TestClientFansEventsToEveryListener(t *testing.T) {
	srv := fakeService(t, nil)
	defer srv.Close()

	client := NewWebSocketClient(Options{ClientURL: wsURL(srv), Logger: zerolog.Nop(), AckTimeout: time.Second})
	first, second := newRecorder(), newRecorder()
	client.OnEvent(first.record)
	client.OnEvent(func(Event) { panic("listener failure") })
	client.OnEvent(second.record)

	ctx := context.Background()
	require.NoError(t, client.Start(ctx))
	first.waitFor(t, EventConnected)
	second.waitFor(t, EventConnected)

	require.NoError(t, client.SendToGroup(ctx, "voice-chat", "ping", DataTypeText))
	assert.Equal(t, "ping", first.waitFor(t, EventGroupMessage).Data)
	assert.Equal(t, "ping", second.waitFor(t, EventGroupMessage).Data)

	require.NoError(t, client.Stop())
	second.waitFor(t, EventStopped)
}

func TestClientAckFailure(t *testing.T) {
	srv := fakeService(t, nil)
	defer srv.Close()

	client := NewWebSocketClient(Options{ClientURL: wsURL(srv), Logger: zerolog.Nop(), AckTimeout: time.Second})
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop()

	err := client.SendToGroup(context.Background(), "forbidden", "x", DataTypeText)
	require.Error(t, err)
	var ackErr *AckError
	require.ErrorAs(t, err, &ackErr)
	assert.Equal(t, "Forbidden", ackErr.Name)
}

func TestClientReportsUnexpectedDisconnect(t *testing.T) {
	srv := fakeService(t, func(conn *websocket.Conn) {
		// 连接建立后立即断开。
		time.Sleep(50 * time.Millisecond)
	})
	defer srv.Close()

	client := NewWebSocketClient(Options{ClientURL: wsURL(srv), Logger: zerolog.Nop()})
	rec := newRecorder()
	client.OnEvent(rec.record)

	require.NoError(t, client.Start(context.Background()))
	rec.waitFor(t, EventDisconnected)
	rec.waitFor(t, EventStopped)

	err := client.SendToGroup(context.Background(), "voice-chat", "late", DataTypeText)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestClientRequestBeforeStart(t *testing.T) {
	client := NewWebSocketClient(Options{ClientURL: "ws://127.0.0.1:1", Logger: zerolog.Nop()})
	assert.ErrorIs(t, client.JoinGroup(context.Background(), "g"), ErrNotStarted)
	assert.NoError(t, client.Stop())
}

func TestClientClassifiesHandshakeRejection(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusUnauthorized, "", ErrUnauthorized},
		{http.StatusForbidden, "", ErrUnauthorized},
		{http.StatusTooManyRequests, "", ErrCapacityExceeded},
		{http.StatusBadRequest, "Connection quota exceeded", ErrCapacityExceeded},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))

		client := NewWebSocketClient(Options{ClientURL: wsURL(srv), Logger: zerolog.Nop()})
		err := client.Start(context.Background())
		srv.Close()

		require.Error(t, err, "status %d", tc.status)
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
		assert.True(t, IsDegradable(err))
	}
}

func TestClientDialFailureIsNotDegradable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewWebSocketClient(Options{ClientURL: wsURL(srv), Logger: zerolog.Nop()})
	err := client.Start(context.Background())
	require.Error(t, err)
	assert.False(t, IsDegradable(err))
}
