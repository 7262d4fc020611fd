package pubsub

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

var (
	// ErrUnauthorized 表示服务端拒绝了访问令牌。
	ErrUnauthorized = errors.New("pubsub: unauthorized")
	// ErrCapacityExceeded 表示服务端连接数或消息配额耗尽。
	ErrCapacityExceeded = errors.New("pubsub: capacity exceeded")
	// ErrNotStarted 表示客户端尚未连接。
	ErrNotStarted = errors.New("pubsub: client not started")
	// ErrAckTimeout 表示在超时时间内未收到服务端确认。
	ErrAckTimeout = errors.New("pubsub: ack timeout")
	// ErrConnectionClosed 表示等待确认期间连接已关闭。
	ErrConnectionClosed = errors.New("pubsub: connection closed")
)

// AckError 是服务端返回的失败确认。
type AckError struct {
	Name    string
	Message string
}

func (e *AckError) Error() string {
	return fmt.Sprintf("pubsub ack error %s: %s", e.Name, e.Message)
}

// IsDegradable 判断初次连接失败是否应进入模拟连接的降级模式。
func IsDegradable(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrCapacityExceeded)
}

// classifyDialError 将握手失败映射为哨兵错误。
func classifyDialError(err error, resp *http.Response) error {
	if resp == nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	var body string
	if resp.Body != nil {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		body = strings.ToLower(string(raw))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: handshake status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: handshake status %d", ErrCapacityExceeded, resp.StatusCode)
	case strings.Contains(body, "quota") || strings.Contains(body, "exceeded") || strings.Contains(body, "limit"):
		return fmt.Errorf("%w: %s", ErrCapacityExceeded, strings.TrimSpace(body))
	}

	return fmt.Errorf("websocket dial failed with status %d: %w", resp.StatusCode, err)
}

// isUnexpectedClose 判断读循环错误是否需要上报为断线。
func isUnexpectedClose(err error) bool {
	if err == nil {
		return false
	}
	return !websocket.IsCloseError(err, websocket.CloseNormalClosure)
}
