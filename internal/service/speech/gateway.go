package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/voicelink/internal/analysis/style"
	"github.com/zhouzirui/voicelink/internal/metrics"
)

// CloudSynthesizer 把 SSML 文档合成为音频。
type CloudSynthesizer interface {
	Synthesize(ctx context.Context, ssml string) ([]byte, error)
}

// Path 标识一次朗读实际走的合成路径。
type Path string

const (
	PathCloud       Path = "cloud"
	PathCloudStyled Path = "cloud-styled"
	PathLocal       Path = "local"
	PathNone        Path = "none"
)

// Config 是网关的朗读参数。
type Config struct {
	Voice        string
	Language     string
	Style        string
	StyleDegree  float64
	OutputFormat string
	Rate         float64
	Pitch        float64
	Volume       float64
}

// Result 描述一次朗读的结果。
type Result struct {
	Path       Path             `json:"path"`
	Voice      string           `json:"voice,omitempty"`
	Duration   time.Duration    `json:"duration"`
	Decisions  []style.Decision `json:"decisions,omitempty"`
	CloudError string           `json:"cloudError,omitempty"`
}

// Gateway speaks text with cloud neural synthesis and falls back to the local engine.
type Gateway struct {
	cfg    Config
	cloud  CloudSynthesizer
	player AudioPlayer
	local  LocalSynthesizer
	logger zerolog.Logger
}

// NewGateway creates a gateway. A nil cloud or player leaves only the local path.
func NewGateway(cfg Config, cloud CloudSynthesizer, player AudioPlayer, local LocalSynthesizer, logger zerolog.Logger) *Gateway {
	if cfg.Voice == "" {
		cfg.Voice = "en-US-JennyNeural"
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.Style == "" {
		cfg.Style = string(style.Friendly)
	}
	if cfg.StyleDegree <= 0 {
		cfg.StyleDegree = style.DefaultDegree
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	return &Gateway{
		cfg:    cfg,
		cloud:  cloud,
		player: player,
		local:  local,
		logger: logger.With().Str("component", "speech-gateway").Logger(),
	}
}

// CloudEnabled 表示是否配置了云端合成与播放器。
func (g *Gateway) CloudEnabled() bool {
	return g.cloud != nil && g.player != nil
}

// LocalEnabled 表示是否有本地合成引擎。
func (g *Gateway) LocalEnabled() bool {
	return g.local != nil
}

// DefaultVoice 返回未指定音色时使用的云端音色。
func (g *Gateway) DefaultVoice() string {
	return g.cfg.Voice
}

// Speak reads text with a single style. An empty voice selects the default.
func (g *Gateway) Speak(ctx context.Context, text, voice string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Path: PathNone}, nil
	}
	voice = g.voiceOrDefault(voice)

	var cloudErr error
	if g.CloudEnabled() {
		ssml := BuildSSML(voice, g.cfg.Language, []Segment{{
			Text:   text,
			Style:  g.cfg.Style,
			Degree: g.cfg.StyleDegree,
		}}, SupportsStyles(voice))

		cloudErr = g.synthesizeAndPlay(ctx, ssml)
		if cloudErr == nil {
			metrics.Synthesis.WithLabelValues(string(PathCloud), "ok").Inc()
			return Result{Path: PathCloud, Voice: voice, Duration: EstimateDuration(text, g.cfg.Rate)}, nil
		}
		metrics.Synthesis.WithLabelValues(string(PathCloud), "error").Inc()
		if ctx.Err() != nil {
			return Result{Path: PathNone}, ctx.Err()
		}
		g.logger.Warn().Err(cloudErr).Msg("cloud synthesis failed, falling back to local voice")
	} else {
		g.logger.Debug().Msg("cloud synthesis not configured, using local voice")
	}

	res, err := g.speakLocal(ctx, text, voice)
	if cloudErr != nil {
		res.CloudError = cloudErr.Error()
	}
	return res, err
}

// SpeakStyled classifies each sentence and synthesizes them in one request,
// falling back to Speak on failure.
func (g *Gateway) SpeakStyled(ctx context.Context, text, voice string) (Result, error) {
	decisions := style.Segment(text)
	if len(decisions) == 0 {
		return Result{Path: PathNone}, nil
	}
	voice = g.voiceOrDefault(voice)

	if !g.CloudEnabled() {
		res, err := g.Speak(ctx, text, voice)
		res.Decisions = decisions
		return res, err
	}

	ssml := BuildSSML(voice, g.cfg.Language, SegmentsFrom(decisions), SupportsStyles(voice))

	if err := g.synthesizeAndPlay(ctx, ssml); err != nil {
		metrics.Synthesis.WithLabelValues(string(PathCloudStyled), "error").Inc()
		if ctx.Err() != nil {
			return Result{Path: PathNone}, ctx.Err()
		}
		g.logger.Warn().Err(err).Int("sentences", len(decisions)).Msg("styled synthesis failed, retrying with single style")
		res, err := g.Speak(ctx, text, voice)
		res.Decisions = decisions
		return res, err
	}

	metrics.Synthesis.WithLabelValues(string(PathCloudStyled), "ok").Inc()
	return Result{
		Path:      PathCloudStyled,
		Voice:     voice,
		Duration:  EstimateDuration(text, g.cfg.Rate),
		Decisions: decisions,
	}, nil
}

func (g *Gateway) synthesizeAndPlay(ctx context.Context, ssml string) error {
	audio, err := g.cloud.Synthesize(ctx, ssml)
	if err != nil {
		return err
	}
	if err := g.player.Play(ctx, audio, g.cfg.OutputFormat); err != nil {
		return fmt.Errorf("play synthesized audio: %w", err)
	}
	return nil
}

func (g *Gateway) speakLocal(ctx context.Context, text, preferred string) (Result, error) {
	if g.local == nil {
		g.logger.Error().Msg("no local synthesizer available, skipping playback")
		return Result{Path: PathNone}, ErrSynthesisUnavailable
	}

	voices, err := g.local.Voices(ctx)
	if err != nil {
		g.logger.Warn().Err(err).Msg("list local voices failed")
	}
	voice, ok := ResolveLocalVoice(voices, preferred)
	if !ok {
		g.logger.Error().Str("preferred", preferred).Int("voices", len(voices)).Msg("no English local voice, skipping playback")
		metrics.Synthesis.WithLabelValues(string(PathLocal), "no-voice").Inc()
		return Result{Path: PathNone}, ErrNoLocalVoice
	}

	err = g.local.Speak(ctx, Utterance{
		Text:   text,
		Voice:  voice,
		Rate:   g.cfg.Rate,
		Pitch:  g.cfg.Pitch,
		Volume: g.cfg.Volume,
	})
	if err != nil {
		metrics.Synthesis.WithLabelValues(string(PathLocal), "error").Inc()
		return Result{Path: PathNone}, fmt.Errorf("%w: %v", ErrSynthesisUnavailable, err)
	}

	metrics.Synthesis.WithLabelValues(string(PathLocal), "ok").Inc()
	g.logger.Debug().Str("voice", voice.Name).Msg("spoke with local voice")
	return Result{Path: PathLocal, Voice: voice.Name, Duration: EstimateDuration(text, g.cfg.Rate)}, nil
}

func (g *Gateway) voiceOrDefault(voice string) string {
	if voice = strings.TrimSpace(voice); voice != "" {
		return voice
	}
	return g.cfg.Voice
}

// IsSkipped 表示错误只是跳过了播放而非调用失败。
func IsSkipped(err error) bool {
	return errors.Is(err, ErrNoLocalVoice)
}
