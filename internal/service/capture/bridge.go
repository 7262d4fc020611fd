package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Conn 是桥接所需的最小连接能力，*websocket.Conn 满足该接口。
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Command 是下发给浏览器页面的指令。
type Command struct {
	Type    string   `json:"type"`
	ID      string   `json:"id,omitempty"`
	Options *Options `json:"options,omitempty"`
}

// Message 是浏览器页面上报的识别事件或探测结果。
type Message struct {
	Type    string    `json:"type"`
	ID      string    `json:"id,omitempty"`
	Results []Segment `json:"results,omitempty"`
	Error   string    `json:"error,omitempty"`
	Message string    `json:"message,omitempty"`
	Granted bool      `json:"granted,omitempty"`
}

// Bridge exposes the browser's Web Speech engine as a Recognizer and MicrophoneProbe.
// 同一时刻只保留一个浏览器连接，新连接会替换旧连接。
type Bridge struct {
	logger       zerolog.Logger
	probeTimeout time.Duration

	mu       sync.Mutex
	conn     Conn
	connID   string
	active   bool
	listener func(Event)
	probes   map[string]chan Message

	writeMu sync.Mutex
}

// NewBridge 创建桥接。
func NewBridge(logger zerolog.Logger, probeTimeout time.Duration) *Bridge {
	if probeTimeout <= 0 {
		probeTimeout = 10 * time.Second
	}
	return &Bridge{
		logger:       logger.With().Str("component", "capture-bridge").Logger(),
		probeTimeout: probeTimeout,
		probes:       make(map[string]chan Message),
	}
}

var (
	_ Recognizer      = (*Bridge)(nil)
	_ MicrophoneProbe = (*Bridge)(nil)
)

// Attach 绑定浏览器连接并返回连接 ID，旧连接会被关闭。
func (b *Bridge) Attach(conn Conn) string {
	id := uuid.NewString()

	b.mu.Lock()
	old := b.conn
	wasActive := b.active
	b.conn = conn
	b.connID = id
	b.active = false
	b.mu.Unlock()

	if old != nil {
		_ = old.Close()
		if wasActive {
			b.emit(Event{Type: EventEnd})
		}
	}
	b.logger.Info().Str("conn", id).Msg("capture bridge attached")
	return id
}

// Detach 解除绑定；仅当 id 仍是当前连接时生效。
// 识别进行中断开会补发 network 错误与 end 事件。
func (b *Bridge) Detach(id string) {
	b.mu.Lock()
	if b.connID != id {
		b.mu.Unlock()
		return
	}
	wasActive := b.active
	b.conn = nil
	b.connID = ""
	b.active = false
	probes := b.probes
	b.probes = make(map[string]chan Message)
	b.mu.Unlock()

	for _, ch := range probes {
		select {
		case ch <- Message{Type: "probe", Error: "detached"}:
		default:
		}
	}

	if wasActive {
		b.emit(Event{Type: EventError, Code: ErrorNetwork, Message: "capture bridge disconnected"})
		b.emit(Event{Type: EventEnd})
	}
	b.logger.Info().Str("conn", id).Msg("capture bridge detached")
}

// Attached 表示当前是否有浏览器连接。
func (b *Bridge) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Deliver 处理浏览器上报的消息。
func (b *Bridge) Deliver(msg Message) {
	switch EventType(msg.Type) {
	case EventStart:
		b.setActive(true)
		b.emit(Event{Type: EventStart})
	case EventResult:
		b.emit(Event{Type: EventResult, Results: msg.Results})
	case EventError:
		b.emit(Event{Type: EventError, Code: ErrorCode(msg.Error), Message: msg.Message})
	case EventEnd:
		b.setActive(false)
		b.emit(Event{Type: EventEnd})
	case "probe":
		b.mu.Lock()
		ch, ok := b.probes[msg.ID]
		b.mu.Unlock()
		if ok {
			select {
			case ch <- msg:
			default:
			}
		}
	default:
		b.logger.Debug().Str("type", msg.Type).Msg("ignore unknown bridge message")
	}
}

// OnEvent 设置唯一的事件监听者。
func (b *Bridge) OnEvent(fn func(Event)) {
	b.mu.Lock()
	b.listener = fn
	b.mu.Unlock()
}

// Start 通知浏览器开始识别。
func (b *Bridge) Start(_ context.Context, opts Options) error {
	return b.send(Command{Type: "start", Options: &opts})
}

// Stop 通知浏览器优雅停止识别，浏览器随后上报 end。
func (b *Bridge) Stop() error {
	return b.send(Command{Type: "stop"})
}

// Abort 立即终止识别。
func (b *Bridge) Abort() error {
	return b.send(Command{Type: "abort"})
}

// Probe 请求浏览器申请并立即释放麦克风。
func (b *Bridge) Probe(ctx context.Context) error {
	id := uuid.NewString()
	ch := make(chan Message, 1)

	b.mu.Lock()
	b.probes[id] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.probes, id)
		b.mu.Unlock()
	}()

	if err := b.send(Command{Type: "probe", ID: id}); err != nil {
		return err
	}

	timer := time.NewTimer(b.probeTimeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		return probeError(reply)
	case <-timer.C:
		return ErrProbeTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func probeError(reply Message) error {
	if reply.Granted {
		return nil
	}
	switch reply.Error {
	case "detached":
		return ErrBridgeDetached
	case "NotFoundError", "OverconstrainedError":
		return fmt.Errorf("%w: %s", ErrNoMicrophone, reply.Message)
	default:
		return fmt.Errorf("%w: %s %s", ErrPermissionDenied, reply.Error, reply.Message)
	}
}

func (b *Bridge) send(cmd Command) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return ErrBridgeDetached
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("send %s command: %w", cmd.Type, err)
	}
	return nil
}

func (b *Bridge) setActive(active bool) {
	b.mu.Lock()
	b.active = active
	b.mu.Unlock()
}

func (b *Bridge) emit(ev Event) {
	b.mu.Lock()
	fn := b.listener
	b.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}
