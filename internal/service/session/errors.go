package session

import "errors"

var (
	// ErrNotConnected 表示既未连接也不在宽限期内，本次发送没有尝试。
	ErrNotConnected = errors.New("session: not connected")
	// ErrPermissionDenied 表示麦克风权限被拒绝，需要用户授权后手动重试。
	ErrPermissionDenied = errors.New("session: microphone permission denied")
	// ErrCaptureUnavailable 表示没有可用的识别引擎。
	ErrCaptureUnavailable = errors.New("session: speech capture unavailable")
	// ErrClosed 表示协调器已关闭。
	ErrClosed = errors.New("session: coordinator closed")
)
