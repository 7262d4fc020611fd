package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zhouzirui/voicelink/internal/metrics"
	"github.com/zhouzirui/voicelink/internal/service/capture"
	"github.com/zhouzirui/voicelink/internal/service/notice"
)

// StartCapture 先探测麦克风权限，再启动识别引擎。
// 正在初始化或监听时调用不会创建第二个引擎，直接返回 nil。
func (c *Coordinator) StartCapture(ctx context.Context) error {
	c.mu.Lock()
	if c.state.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.deps.Recognizer == nil {
		c.mu.Unlock()
		return ErrCaptureUnavailable
	}
	if current := c.state.capture; current == CaptureInitializing || current == CaptureListening {
		c.mu.Unlock()
		c.logger.Debug().Str("capture", string(current)).Msg("start capture ignored")
		return nil
	}
	stopTimer(&c.state.restartTimer)
	c.state.capture = CaptureInitializing
	c.state.wantListening = true
	c.state.tearingDown = false
	c.state.captureGen++
	gen := c.state.captureGen
	c.mu.Unlock()

	if c.deps.Probe != nil {
		if err := c.deps.Probe.Probe(ctx); err != nil {
			return c.failCapture(gen, probeError(err))
		}
	}

	c.mu.Lock()
	if c.state.closed || c.state.captureGen != gen {
		// 探测期间已被停止。
		c.mu.Unlock()
		return nil
	}
	c.state.engineRunning = true
	c.mu.Unlock()

	if err := c.deps.Recognizer.Start(ctx, c.captureOptions()); err != nil {
		return c.failCapture(gen, fmt.Errorf("start recognizer: %w", err))
	}

	c.logger.Info().Msg("capture starting")
	c.deps.Notices.Publish(notice.Notice{Kind: notice.KindCapture, Message: "Starting microphone"})
	return nil
}

func probeError(err error) error {
	switch {
	case errors.Is(err, capture.ErrPermissionDenied):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case errors.Is(err, capture.ErrBridgeDetached):
		return fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	default:
		return fmt.Errorf("microphone check: %w", err)
	}
}

func (c *Coordinator) failCapture(gen uint64, err error) error {
	c.mu.Lock()
	if c.state.captureGen == gen {
		c.state.capture = CaptureIdle
		c.state.wantListening = false
		c.state.engineRunning = false
	}
	c.mu.Unlock()

	c.logger.Warn().Err(err).Msg("capture failed to start")
	c.deps.Notices.Publish(notice.Notice{
		Kind:    notice.KindCapture,
		Level:   notice.LevelError,
		Message: captureFailureMessage(err),
	})
	return err
}

func captureFailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Microphone access denied. Allow microphone access and try again."
	case errors.Is(err, capture.ErrNoMicrophone):
		return "No microphone found"
	case errors.Is(err, ErrCaptureUnavailable):
		return "Speech recognition is not available. Open the voice page in a supported browser."
	default:
		return "Could not start speech recognition"
	}
}

// StopCapture 立即终止识别并阻止待执行的自动重启。
func (c *Coordinator) StopCapture() error {
	c.mu.Lock()
	if c.state.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state.capture == CaptureIdle && !c.state.wantListening {
		c.mu.Unlock()
		return nil
	}
	c.state.wantListening = false
	c.state.tearingDown = true
	c.state.capture = CaptureStopping
	c.state.captureGen++
	c.state.retireEngine()
	stopTimer(&c.state.restartTimer)
	c.mu.Unlock()

	var err error
	if c.deps.Recognizer != nil {
		err = c.deps.Recognizer.Abort()
		if errors.Is(err, capture.ErrBridgeDetached) {
			err = nil
		}
	}

	c.mu.Lock()
	if !c.state.wantListening {
		c.state.capture = CaptureIdle
		c.state.tearingDown = false
	}
	c.mu.Unlock()

	c.logger.Info().Msg("capture stopped")
	c.deps.Notices.Publish(notice.Notice{Kind: notice.KindCapture, Message: "Microphone off"})
	if err != nil {
		return fmt.Errorf("stop recognizer: %w", err)
	}
	return nil
}

func (c *Coordinator) captureOptions() capture.Options {
	return capture.Options{
		Continuous:     true,
		InterimResults: true,
		Language:       c.opts.CaptureLanguage,
	}
}

// handleCaptureEvent 处理识别引擎事件。
func (c *Coordinator) handleCaptureEvent(ev capture.Event) {
	switch ev.Type {
	case capture.EventStart:
		c.mu.Lock()
		active := c.state.wantListening && !c.state.closed
		if active {
			c.state.capture = CaptureListening
		}
		c.mu.Unlock()
		if active {
			c.deps.Notices.Publish(notice.Notice{Kind: notice.KindCapture, Level: notice.LevelSuccess, Message: "Listening"})
		}

	case capture.EventResult:
		c.handleResults(ev.Results)

	case capture.EventError:
		c.handleCaptureError(ev)

	case capture.EventEnd:
		c.handleCaptureEnd()
	}
}

func (c *Coordinator) handleResults(results []capture.Segment) {
	for _, seg := range results {
		text := strings.TrimSpace(seg.Transcript)
		if text == "" {
			continue
		}
		if !seg.IsFinal {
			c.deps.Notices.Publish(notice.Notice{
				Kind:    notice.KindCaption,
				Message: text,
				Data:    seg,
			})
			continue
		}
		c.logger.Debug().Str("text", text).Float64("confidence", seg.Confidence).Msg("final transcript")
		c.enqueueTranscript(text)
	}
}

func (c *Coordinator) handleCaptureError(ev capture.Event) {
	switch {
	case ev.Code == capture.ErrorNoSpeech:
		c.deps.Notices.Publish(notice.Notice{
			Kind:    notice.KindCapture,
			Message: "No speech detected, try speaking again",
		})
		return
	case ev.Code == capture.ErrorAborted:
		c.logger.Debug().Msg("recognition aborted")
		return
	case ev.Code.Fatal():
		c.mu.Lock()
		c.state.wantListening = false
		c.state.capture = CaptureIdle
		c.state.captureGen++
		c.state.retireEngine()
		stopTimer(&c.state.restartTimer)
		c.mu.Unlock()

		c.logger.Error().Str("code", string(ev.Code)).Str("message", ev.Message).Msg("capture stopped by fatal error")
		c.deps.Notices.Publish(notice.Notice{
			Kind:    notice.KindCapture,
			Level:   notice.LevelError,
			Message: fatalCaptureMessage(ev.Code),
		})
		return
	default:
		c.logger.Warn().Str("code", string(ev.Code)).Str("message", ev.Message).Msg("capture error")
		c.deps.Notices.Publish(notice.Notice{
			Kind:    notice.KindCapture,
			Level:   notice.LevelWarning,
			Message: fmt.Sprintf("Speech recognition error: %s", ev.Code),
		})
	}
}

func fatalCaptureMessage(code capture.ErrorCode) string {
	switch code {
	case capture.ErrorNotAllowed, capture.ErrorServiceNotAllowed:
		return "Microphone access denied. Allow microphone access and try again."
	case capture.ErrorLanguageNotSupported:
		return "The selected recognition language is not supported"
	case capture.ErrorAudioCapture:
		return "No microphone found"
	default:
		return "Speech recognition stopped"
	}
}

// handleCaptureEnd 在引擎意外结束且仍需监听时，延迟 RestartDelay 后重启。
// 已中止引擎迟到的 end 不会影响当前会话。
func (c *Coordinator) handleCaptureEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.owedEnds > 0 {
		c.state.owedEnds--
		if !c.state.wantListening {
			c.state.capture = CaptureIdle
		}
		c.logger.Debug().Msg("stale recognition end ignored")
		return
	}
	c.state.engineRunning = false

	if !c.state.wantListening || c.state.tearingDown || c.state.closed {
		c.state.capture = CaptureIdle
		return
	}

	gen := c.state.captureGen
	stopTimer(&c.state.restartTimer)
	c.state.restartTimer = c.clock.AfterFunc(c.opts.RestartDelay, func() {
		c.restartCapture(gen)
	})
}

func (c *Coordinator) restartCapture(gen uint64) {
	c.mu.Lock()
	if c.state.closed || !c.state.wantListening || c.state.tearingDown || c.state.captureGen != gen {
		c.mu.Unlock()
		return
	}
	c.state.restartTimer = nil
	c.state.engineRunning = true
	c.mu.Unlock()

	metrics.CaptureRestarts.Inc()
	if err := c.deps.Recognizer.Start(c.ctx, c.captureOptions()); err != nil {
		c.mu.Lock()
		if c.state.captureGen == gen {
			c.state.capture = CaptureIdle
			c.state.wantListening = false
			c.state.engineRunning = false
		}
		c.mu.Unlock()
		c.logger.Warn().Err(err).Msg("restart recognizer failed")
		c.deps.Notices.Publish(notice.Notice{
			Kind:    notice.KindCapture,
			Level:   notice.LevelWarning,
			Message: "Speech recognition stopped, start it again to continue",
		})
		return
	}
	c.logger.Debug().Msg("capture restarted")
}
