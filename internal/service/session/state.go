package session

import (
	"time"

	"github.com/zhouzirui/voicelink/internal/service/pubsub"
)

// ConnectionState 是协调器观察到的连接状态。
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"
)

// CaptureState 是语音采集状态。
type CaptureState string

const (
	CaptureIdle         CaptureState = "idle"
	CaptureInitializing CaptureState = "initializing"
	CaptureListening    CaptureState = "listening"
	CaptureStopping     CaptureState = "stopping"
)

// Mode 描述发送走的通道。
type Mode string

const (
	// ModeNetwork 通过真实连接发送。
	ModeNetwork Mode = "network"
	// ModeSimulated 是鉴权或容量失败后的降级模式，发送只记录日志。
	ModeSimulated Mode = "simulated"
	// ModeMock 表示没有配置连接客户端。
	ModeMock Mode = "mock"
)

// ReasonManualReconnect 是意外断线后的错误原因。
const ReasonManualReconnect = "manual reconnection required"

// Status is a point-in-time snapshot of the coordinator.
type Status struct {
	Connection      ConnectionState `json:"connection"`
	Reason          string          `json:"reason,omitempty"`
	Mode            Mode            `json:"mode"`
	Simulated       bool            `json:"simulated"`
	Capture         CaptureState    `json:"capture"`
	LastUpdate      time.Time       `json:"lastUpdate"`
	Groups          []string        `json:"groups"`
	LastTranscript  string          `json:"lastTranscript,omitempty"`
	ReconnectQueued bool            `json:"reconnectQueued"`
}

// marker 记录一段文本及其时间。
type marker struct {
	text string
	at   time.Time
}

func (m marker) matches(text string, now time.Time, window time.Duration) bool {
	return m.text != "" && m.text == text && now.Sub(m.at) < window
}

// sessionState 是协调器全部可变状态，只在持有 Coordinator.mu 时访问。
type sessionState struct {
	closed bool

	conn       ConnectionState
	connReason string
	mode       Mode
	client     pubsub.Client // 仅在 ModeNetwork 下非空
	connGen    uint64
	lastUpdate time.Time

	// lastKnown 是连接状态的旁路记录，用来容忍事件到达顺序的偏差。
	lastKnown struct {
		connected bool
		at        time.Time
	}

	reconnectTimer Timer
	reconnectSeq   uint64

	capture       CaptureState
	wantListening bool
	tearingDown   bool
	captureGen    uint64
	restartTimer  Timer

	// engineRunning 表示已启动的引擎尚未上报 end；
	// owedEnds 是被中止的引擎还会迟到的 end 数量。
	engineRunning bool
	owedEnds      int

	lastDispatched marker
	echo           marker
}

// setConnection 更新主状态。旁路记录只在确认连接或主动断开时刷新，
// 传输层异常断开不会立即清除它。
func (s *sessionState) setConnection(state ConnectionState, reason string, now time.Time) {
	s.conn = state
	s.connReason = reason
	s.lastUpdate = now
	switch state {
	case StateConnected:
		s.markConnected(now)
	case StateDisconnected:
		s.lastKnown.connected = false
		s.lastKnown.at = now
	}
}

func (s *sessionState) markConnected(now time.Time) {
	s.lastKnown.connected = true
	s.lastKnown.at = now
}

// canSend 判断此刻是否允许发送：主状态已连接，或旁路记录在宽限期内为已连接。
func (s *sessionState) canSend(now time.Time, grace time.Duration) bool {
	if s.conn == StateConnected {
		return true
	}
	return s.lastKnown.connected && now.Sub(s.lastKnown.at) < grace
}

func stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// retireEngine 在中止引擎时调用，记下它迟到的 end 需要被吞掉。
func (s *sessionState) retireEngine() {
	if s.engineRunning {
		s.engineRunning = false
		s.owedEnds++
	}
}
