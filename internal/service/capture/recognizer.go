// Package capture defines the speech recognizer contract and a browser bridge implementing it.
package capture

import (
	"context"
	"errors"
)

var (
	// ErrBridgeDetached 表示当前没有浏览器端连接，识别不可用。
	ErrBridgeDetached = errors.New("capture: no recognition bridge attached")
	// ErrPermissionDenied 表示麦克风权限被拒绝。
	ErrPermissionDenied = errors.New("capture: microphone permission denied")
	// ErrNoMicrophone 表示找不到可用的录音设备。
	ErrNoMicrophone = errors.New("capture: no microphone available")
	// ErrProbeTimeout 表示权限探测在超时内没有返回。
	ErrProbeTimeout = errors.New("capture: microphone probe timed out")
)

// EventType 是识别引擎事件。
type EventType string

const (
	EventStart  EventType = "start"
	EventResult EventType = "result"
	EventError  EventType = "error"
	EventEnd    EventType = "end"
)

// ErrorCode 是识别引擎上报的错误码。
type ErrorCode string

const (
	ErrorNoSpeech             ErrorCode = "no-speech"
	ErrorNetwork              ErrorCode = "network"
	ErrorNotAllowed           ErrorCode = "not-allowed"
	ErrorServiceNotAllowed    ErrorCode = "service-not-allowed"
	ErrorLanguageNotSupported ErrorCode = "language-not-supported"
	ErrorAudioCapture         ErrorCode = "audio-capture"
	ErrorAborted              ErrorCode = "aborted"
)

// Fatal 表示该错误会终止本次识别，需要用户手动重试。
func (c ErrorCode) Fatal() bool {
	switch c {
	case ErrorNotAllowed, ErrorServiceNotAllowed, ErrorLanguageNotSupported, ErrorAudioCapture:
		return true
	}
	return false
}

// Segment 是一次识别结果中的一段。
type Segment struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	IsFinal    bool    `json:"isFinal"`
}

// Event 是识别引擎投递的事件。
type Event struct {
	Type    EventType
	Results []Segment
	Code    ErrorCode
	Message string
}

// Options 是启动识别时的参数。
type Options struct {
	Continuous     bool   `json:"continuous"`
	InterimResults bool   `json:"interimResults"`
	Language       string `json:"lang"`
}

// Recognizer is a speech recognition engine. After Start, events arrive
// asynchronously on the callback registered with OnEvent.
type Recognizer interface {
	Start(ctx context.Context, opts Options) error
	Stop() error
	Abort() error
	OnEvent(fn func(Event))
}

// MicrophoneProbe 申请一次麦克风权限并立即释放，用于启动识别前的确定性检查。
type MicrophoneProbe interface {
	Probe(ctx context.Context) error
}
