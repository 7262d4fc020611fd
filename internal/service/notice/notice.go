// Package notice 向订阅者广播短暂的用户提示（错误、状态变化、实时字幕）。
package notice

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level 是提示的严重程度。
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Kind 区分提示来源。
type Kind string

const (
	KindConnection Kind = "connection"
	KindCapture    Kind = "capture"
	KindCaption    Kind = "caption"
	KindMessage    Kind = "message"
	KindSpeech     Kind = "speech"
	KindSend       Kind = "send"
)

// Notice 是一条提示。
type Notice struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Level     Level     `json:"level"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Publisher 是产生提示的一方所需的最小接口。
type Publisher interface {
	Publish(n Notice)
}

// Broadcaster fans notices out to subscribers and keeps a bounded history.
// 慢订阅者的缓冲满时丢弃新提示，不阻塞发布方。
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[int]chan Notice
	nextID  int
	history []Notice
	limit   int
	now     func() time.Time
}

// NewBroadcaster 创建广播器，history 为保留的最近提示条数。
func NewBroadcaster(history int) *Broadcaster {
	if history <= 0 {
		history = 50
	}
	return &Broadcaster{
		subs:  make(map[int]chan Notice),
		limit: history,
		now:   time.Now,
	}
}

// Publish 发送提示，缺省字段会被补全。
func (b *Broadcaster) Publish(n Notice) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Level == "" {
		n.Level = LevelInfo
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = b.now()
	}

	b.mu.Lock()
	b.history = append(b.history, n)
	if len(b.history) > b.limit {
		b.history = b.history[len(b.history)-b.limit:]
	}
	// 非阻塞发送，持锁期间取消函数不会关闭通道。
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
		}
	}
	b.mu.Unlock()
}

// Subscribe 注册订阅者，返回只读通道与取消函数。
func (b *Broadcaster) Subscribe(buffer int) (<-chan Notice, func()) {
	if buffer <= 0 {
		buffer = 32
	}
	ch := make(chan Notice, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Recent 返回最近的提示，按时间先后排列。
func (b *Broadcaster) Recent() []Notice {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Notice, len(b.history))
	copy(out, b.history)
	return out
}

// Subscribers 返回当前订阅者数量。
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Discard 是丢弃所有提示的 Publisher。
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Notice) {}
