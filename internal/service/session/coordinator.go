// Package session implements the voice session coordinator. It owns one
// connection and one recognizer, relays deduplicated transcripts to the shared
// group and speaks inbound messages that are not echoes of our own.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/voicelink/internal/model/chat"
	"github.com/zhouzirui/voicelink/internal/model/preferences"
	"github.com/zhouzirui/voicelink/internal/service/capture"
	"github.com/zhouzirui/voicelink/internal/service/notice"
	"github.com/zhouzirui/voicelink/internal/service/pubsub"
	"github.com/zhouzirui/voicelink/internal/service/speech"
)

// ClientFactory 为每次连接尝试创建新的连接客户端。
type ClientFactory func() (pubsub.Client, error)

// Speaker 朗读入站消息。
type Speaker interface {
	SpeakStyled(ctx context.Context, text, voice string) (speech.Result, error)
}

// MessageLog 是消息日志的写入端。
type MessageLog interface {
	Append(ctx context.Context, msg chat.Message) (chat.Message, error)
}

// PreferenceSource 提供当前偏好。
type PreferenceSource interface {
	Load(ctx context.Context) (preferences.Preferences, error)
}

// Options 是协调器的时间窗口与分组配置。
type Options struct {
	Groups          []string
	SendGroup       string
	DedupWindow     time.Duration
	EchoWindow      time.Duration
	ConnectionGrace time.Duration
	RestartDelay    time.Duration
	ReconnectDelay  time.Duration
	CaptureLanguage string
	QueueSize       int
}

func (o Options) withDefaults() Options {
	if len(o.Groups) == 0 {
		o.Groups = []string{"voice-chat"}
	}
	if o.SendGroup == "" {
		o.SendGroup = o.Groups[0]
	}
	if o.DedupWindow <= 0 {
		o.DedupWindow = 2 * time.Second
	}
	if o.EchoWindow <= 0 {
		o.EchoWindow = 10 * time.Second
	}
	if o.ConnectionGrace <= 0 {
		o.ConnectionGrace = 5 * time.Second
	}
	if o.RestartDelay <= 0 {
		o.RestartDelay = 300 * time.Millisecond
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = time.Second
	}
	if o.CaptureLanguage == "" {
		o.CaptureLanguage = "en-US"
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 32
	}
	return o
}

// Deps 是协调器的协作方。NewClient 为 nil 时所有发送仅在本地模拟。
type Deps struct {
	NewClient   ClientFactory
	Recognizer  capture.Recognizer
	Probe       capture.MicrophoneProbe
	Speaker     Speaker
	Messages    MessageLog
	Preferences PreferenceSource
	Notices     notice.Publisher
	Logger      zerolog.Logger
	Clock       Clock
}

type speakJob struct {
	text  string
	voice string
}

// Coordinator is the session core. All mutable state lives in state and is
// guarded by mu; no network, capture or synthesis call happens under the lock.
type Coordinator struct {
	opts   Options
	deps   Deps
	logger zerolog.Logger
	clock  Clock

	mu    sync.Mutex
	state sessionState

	ctx         context.Context
	cancel      context.CancelFunc
	transcripts chan string
	speech      chan speakJob
	wg          sync.WaitGroup
}

// New creates a coordinator and starts its transcript and speech workers.
func New(opts Options, deps Deps) *Coordinator {
	opts = opts.withDefaults()
	if deps.Clock == nil {
		deps.Clock = realClock{}
	}
	if deps.Notices == nil {
		deps.Notices = notice.Discard
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		opts:        opts,
		deps:        deps,
		logger:      deps.Logger.With().Str("component", "session").Logger(),
		clock:       deps.Clock,
		ctx:         ctx,
		cancel:      cancel,
		transcripts: make(chan string, opts.QueueSize),
		speech:      make(chan speakJob, opts.QueueSize),
	}
	c.state.conn = StateDisconnected
	c.state.mode = c.defaultMode()
	c.state.capture = CaptureIdle

	if deps.Recognizer != nil {
		deps.Recognizer.OnEvent(c.handleCaptureEvent)
	}

	c.wg.Add(2)
	go c.transcriptLoop()
	go c.speechLoop()
	return c
}

// Status 返回当前状态快照。
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	groups := make([]string, len(c.opts.Groups))
	copy(groups, c.opts.Groups)
	return Status{
		Connection:      c.state.conn,
		Reason:          c.state.connReason,
		Mode:            c.state.mode,
		Simulated:       c.state.mode != ModeNetwork && c.state.conn == StateConnected,
		Capture:         c.state.capture,
		LastUpdate:      c.state.lastUpdate,
		Groups:          groups,
		LastTranscript:  c.state.lastDispatched.text,
		ReconnectQueued: c.state.reconnectTimer != nil,
	}
}

// Close tears down the connection and recognizer and stops the workers.
// It is safe to call more than once.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.state.closed {
		c.mu.Unlock()
		return nil
	}
	c.state.closed = true
	c.state.wantListening = false
	c.state.tearingDown = true
	c.state.connGen++
	c.state.captureGen++
	c.state.retireEngine()
	stopTimer(&c.state.reconnectTimer)
	stopTimer(&c.state.restartTimer)
	client := c.state.client
	c.state.client = nil
	capturing := c.state.capture != CaptureIdle
	c.state.capture = CaptureIdle
	c.state.setConnection(StateDisconnected, "", c.clock.Now())
	c.mu.Unlock()

	if capturing && c.deps.Recognizer != nil {
		if err := c.deps.Recognizer.Abort(); err != nil {
			c.logger.Debug().Err(err).Msg("abort recognizer on close")
		}
	}
	if client != nil {
		if err := client.Stop(); err != nil {
			c.logger.Debug().Err(err).Msg("stop client on close")
		}
	}

	c.cancel()
	c.wg.Wait()
	c.logger.Info().Msg("session closed")
	return nil
}

// defaultMode 是未连接时的发送模式：未配置客户端时始终为 mock。
func (c *Coordinator) defaultMode() Mode {
	if c.deps.NewClient == nil {
		return ModeMock
	}
	return ModeNetwork
}

func (c *Coordinator) transcriptLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case text := <-c.transcripts:
			if _, err := c.SubmitTranscript(c.ctx, text); err != nil {
				c.logger.Warn().Err(err).Msg("dispatch transcript failed")
			}
		}
	}
}

func (c *Coordinator) speechLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case job := <-c.speech:
			c.speak(job)
		}
	}
}

func (c *Coordinator) speak(job speakJob) {
	if c.deps.Speaker == nil {
		return
	}
	res, err := c.deps.Speaker.SpeakStyled(c.ctx, job.text, job.voice)
	if err != nil {
		if speech.IsSkipped(err) {
			c.logger.Error().Err(err).Msg("playback skipped")
			return
		}
		c.logger.Error().Err(err).Msg("speech synthesis failed")
		c.deps.Notices.Publish(notice.Notice{
			Kind:    notice.KindSpeech,
			Level:   notice.LevelWarning,
			Message: "Could not play the response aloud",
		})
		return
	}
	c.logger.Debug().
		Str("path", string(res.Path)).
		Str("voice", res.Voice).
		Dur("estimated", res.Duration).
		Msg("response spoken")
}

func (c *Coordinator) enqueueSpeech(job speakJob) {
	select {
	case c.speech <- job:
	case <-c.ctx.Done():
	default:
		c.logger.Warn().Msg("speech queue full, dropping response playback")
	}
}

func (c *Coordinator) enqueueTranscript(text string) {
	select {
	case c.transcripts <- text:
	case <-c.ctx.Done():
	default:
		c.logger.Warn().Msg("transcript queue full, dropping final result")
	}
}

func (c *Coordinator) loadPreferences(ctx context.Context) preferences.Preferences {
	if c.deps.Preferences == nil {
		return preferences.Defaults()
	}
	prefs, err := c.deps.Preferences.Load(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("load preferences failed, using defaults")
		return preferences.Defaults()
	}
	return prefs
}

func (c *Coordinator) appendMessage(ctx context.Context, msg chat.Message) {
	if c.deps.Messages == nil {
		return
	}
	stored, err := c.deps.Messages.Append(ctx, msg)
	if err != nil {
		c.logger.Error().Err(err).Str("sender", string(msg.Sender)).Msg("append message failed")
		return
	}
	c.deps.Notices.Publish(notice.Notice{Kind: notice.KindMessage, Message: stored.Text, Data: stored})
}
