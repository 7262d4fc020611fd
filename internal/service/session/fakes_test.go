package session

import (
	"context"
	"sync"
	"time"

	"github.com/zhouzirui/voicelink/internal/model/preferences"
	"github.com/zhouzirui/voicelink/internal/service/capture"
	"github.com/zhouzirui/voicelink/internal/service/pubsub"
	"github.com/zhouzirui/voicelink/internal/service/speech"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	fn    func()
	done  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance 推进时间并在调用方协程中执行到期的回调。
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.done && !t.at.After(c.now) {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.done
	t.done = true
	return active
}

type sentMessage struct {
	group    string
	data     any
	dataType pubsub.DataType
}

type fakeClient struct {
	mu       sync.Mutex
	startErr error
	joinErr  map[string]error
	sendErr  error
	gate     chan struct{}
	starts   int
	stops    int
	joined   []string
	sent     []sentMessage
	listener func(pubsub.Event)

	// afterStart 在 Start 发出 connected 之后执行；onSend 在发送成功后执行。
	afterStart func(*fakeClient)
	onSend     func(*fakeClient, any)
}

func (f *fakeClient) Start(ctx context.Context) error {
	f.mu.Lock()
	f.starts++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	err := f.startErr
	after := f.afterStart
	f.mu.Unlock()
	if err == nil {
		f.emit(pubsub.Event{Type: pubsub.EventConnected, ConnectionID: "conn-1", UserID: "voice-user"})
		if after != nil {
			after(f)
		}
	}
	return err
}

func (f *fakeClient) Stop() error {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	f.emit(pubsub.Event{Type: pubsub.EventStopped})
	return nil
}

func (f *fakeClient) JoinGroup(_ context.Context, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.joinErr[group]; err != nil {
		return err
	}
	f.joined = append(f.joined, group)
	return nil
}

func (f *fakeClient) LeaveGroup(context.Context, string) error { return nil }

func (f *fakeClient) SendToGroup(_ context.Context, group string, data any, dataType pubsub.DataType) error {
	f.mu.Lock()
	if f.sendErr != nil {
		err := f.sendErr
		f.mu.Unlock()
		return err
	}
	f.sent = append(f.sent, sentMessage{group: group, data: data, dataType: dataType})
	hook := f.onSend
	f.mu.Unlock()

	if hook != nil {
		hook(f, data)
	}
	return nil
}

func (f *fakeClient) OnEvent(fn func(pubsub.Event)) {
	f.mu.Lock()
	f.listener = fn
	f.mu.Unlock()
}

func (f *fakeClient) emit(ev pubsub.Event) {
	f.mu.Lock()
	fn := f.listener
	f.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (f *fakeClient) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeTransport 记录每次连接尝试创建的客户端。
type fakeTransport struct {
	mu      sync.Mutex
	clients []*fakeClient
	prepare func(*fakeClient)
}

func (t *fakeTransport) factory() ClientFactory {
	return func() (pubsub.Client, error) {
		client := &fakeClient{}
		t.mu.Lock()
		if t.prepare != nil {
			t.prepare(client)
		}
		t.clients = append(t.clients, client)
		t.mu.Unlock()
		return client, nil
	}
}

func (t *fakeTransport) attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}

func (t *fakeTransport) client(i int) *fakeClient {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clients[i]
}

type fakeRecognizer struct {
	mu       sync.Mutex
	starts   int
	aborts   int
	startErr error
	listener func(capture.Event)
}

func (r *fakeRecognizer) Start(context.Context, capture.Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	return r.startErr
}

func (r *fakeRecognizer) Stop() error { return nil }

func (r *fakeRecognizer) Abort() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aborts++
	return nil
}

func (r *fakeRecognizer) OnEvent(fn func(capture.Event)) {
	r.mu.Lock()
	r.listener = fn
	r.mu.Unlock()
}

func (r *fakeRecognizer) emit(ev capture.Event) {
	r.mu.Lock()
	fn := r.listener
	r.mu.Unlock()
	fn(ev)
}

func (r *fakeRecognizer) startCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

type fakeProbe struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (p *fakeProbe) Probe(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

type spokenText struct {
	text  string
	voice string
}

type fakeSpeaker struct {
	mu     sync.Mutex
	spoken []spokenText
}

func (s *fakeSpeaker) SpeakStyled(_ context.Context, text, voice string) (speech.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, spokenText{text: text, voice: voice})
	return speech.Result{Path: speech.PathLocal}, nil
}

func (s *fakeSpeaker) calls() []spokenText {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]spokenText(nil), s.spoken...)
}

type fakePreferences struct {
	prefs preferences.Preferences
}

func (p fakePreferences) Load(context.Context) (preferences.Preferences, error) {
	return p.prefs, nil
}
