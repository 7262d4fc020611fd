package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// AzureConfig 是云端神经网络合成的连接参数。
type AzureConfig struct {
	Key          string
	Region       string
	Endpoint     string
	OutputFormat string
	Timeout      time.Duration
	MaxRetries   int
	HTTPClient   *http.Client
	Logger       zerolog.Logger
}

// AzureSynthesizer turns SSML into audio through the Azure Speech REST API.
type AzureSynthesizer struct {
	endpoint     string
	key          string
	outputFormat string
	maxRetries   int
	client       *http.Client
	logger       zerolog.Logger
}

var _ CloudSynthesizer = (*AzureSynthesizer)(nil)

// NewAzureSynthesizer 校验凭据并创建合成器。
func NewAzureSynthesizer(cfg AzureConfig) (*AzureSynthesizer, error) {
	endpoint, key, err := resolveCredentials(cfg)
	if err != nil {
		return nil, err
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	format := cfg.OutputFormat
	if format == "" {
		format = "audio-24khz-48kbitrate-mono-mp3"
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 2
	}

	return &AzureSynthesizer{
		endpoint:     endpoint,
		key:          key,
		outputFormat: format,
		maxRetries:   retries,
		client:       client,
		logger:       cfg.Logger.With().Str("component", "azure-tts").Logger(),
	}, nil
}

// OutputFormat 返回请求的音频格式。
func (a *AzureSynthesizer) OutputFormat() string {
	return a.outputFormat
}

// Synthesize 提交 SSML 并返回音频字节，对限流与 5xx 做有限重试。
func (a *AzureSynthesizer) Synthesize(ctx context.Context, ssml string) ([]byte, error) {
	var lastErr error

	for i := 0; i < a.maxRetries; i++ {
		audio, err := a.synthesizeOnce(ctx, ssml)
		if err == nil {
			return audio, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsRetryableError(err) {
			return nil, err
		}

		retryDelay := time.Duration(i+1) * 500 * time.Millisecond
		a.logger.Warn().Err(err).Dur("retry_in", retryDelay).Msg("synthesis failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	return nil, fmt.Errorf("synthesis failed after %d attempts: %w", a.maxRetries, lastErr)
}

func (a *AzureSynthesizer) synthesizeOnce(ctx context.Context, ssml string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewBufferString(ssml))
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", a.outputFormat)
	req.Header.Set("User-Agent", "voicelink")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesis audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesis returned empty audio")
	}
	return audio, nil
}
