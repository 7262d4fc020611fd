package speech

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingCredentials 表示云端合成缺少密钥或区域。
	ErrMissingCredentials = errors.New("speech: missing credentials")
	// ErrSynthesisUnavailable 表示云端与本地合成均不可用。
	ErrSynthesisUnavailable = errors.New("speech: synthesis unavailable")
	// ErrNoLocalVoice 表示本地引擎没有可用的英语音色。
	ErrNoLocalVoice = errors.New("speech: no local voice available")
	// ErrNoLocalEngine 表示系统中找不到本地合成命令。
	ErrNoLocalEngine = errors.New("speech: no local engine found")
	// ErrNoPlayer 表示系统中找不到音频播放命令。
	ErrNoPlayer = errors.New("speech: no audio player found")
)

// APIError 是云端合成接口返回的非 2xx 响应。
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("speech api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("speech api: %d %s", e.StatusCode, e.Body)
}

// IsRetryableError 判断云端合成错误是否值得重试。
func IsRetryableError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
}
