package speech

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// LocalVoice 是系统合成引擎提供的音色。
type LocalVoice struct {
	Name   string `json:"name"`
	Lang   string `json:"lang"`
	Gender Gender `json:"gender,omitempty"`
}

// Utterance 是一次本地合成请求。
type Utterance struct {
	Text   string
	Voice  LocalVoice
	Rate   float64
	Pitch  float64
	Volume float64
}

// LocalSynthesizer 是设备自带的合成引擎。
type LocalSynthesizer interface {
	Voices(ctx context.Context) ([]LocalVoice, error)
	Speak(ctx context.Context, u Utterance) error
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

const baseWordsPerMinute = 175

// ExecSynthesizer 通过 say 或 espeak-ng 命令在本机朗读。
type ExecSynthesizer struct {
	engine string
	run    commandRunner
	logger zerolog.Logger
}

var _ LocalSynthesizer = (*ExecSynthesizer)(nil)

// NewExecSynthesizer 选择本地引擎；engine 为 "auto" 或空时按平台探测。
func NewExecSynthesizer(engine string, logger zerolog.Logger) (*ExecSynthesizer, error) {
	candidates := []string{"espeak-ng", "espeak"}
	if runtime.GOOS == "darwin" {
		candidates = append([]string{"say"}, candidates...)
	}
	if engine = strings.TrimSpace(engine); engine != "" && engine != "auto" {
		candidates = []string{engine}
	}

	for _, name := range candidates {
		if _, err := exec.LookPath(name); err == nil {
			return newExecSynthesizer(name, runCommand, logger), nil
		}
	}
	return nil, fmt.Errorf("%w: tried %s", ErrNoLocalEngine, strings.Join(candidates, ", "))
}

func newExecSynthesizer(engine string, run commandRunner, logger zerolog.Logger) *ExecSynthesizer {
	return &ExecSynthesizer{
		engine: engine,
		run:    run,
		logger: logger.With().Str("component", "local-tts").Str("engine", engine).Logger(),
	}
}

// Engine 返回使用的命令名。
func (s *ExecSynthesizer) Engine() string {
	return s.engine
}

// Voices 列出引擎提供的音色。
func (s *ExecSynthesizer) Voices(ctx context.Context) ([]LocalVoice, error) {
	if s.engine == "say" {
		out, err := s.run(ctx, "say", "-v", "?")
		if err != nil {
			return nil, fmt.Errorf("list say voices: %w", err)
		}
		return parseSayVoices(string(out)), nil
	}

	out, err := s.run(ctx, s.engine, "--voices")
	if err != nil {
		return nil, fmt.Errorf("list %s voices: %w", s.engine, err)
	}
	return parseEspeakVoices(string(out)), nil
}

// Speak 阻塞直到朗读结束。
func (s *ExecSynthesizer) Speak(ctx context.Context, u Utterance) error {
	text := strings.TrimSpace(u.Text)
	if text == "" {
		return nil
	}

	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	wpm := strconv.Itoa(int(baseWordsPerMinute * rate))

	var args []string
	if s.engine == "say" {
		if u.Voice.Name != "" {
			args = append(args, "-v", u.Voice.Name)
		}
		args = append(args, "-r", wpm, text)
	} else {
		voice := u.Voice.Lang
		if voice == "" {
			voice = "en-us"
		}
		if u.Voice.Gender == Female && !strings.Contains(voice, "+") {
			voice += "+f3"
		}
		args = append(args, "-v", voice, "-s", wpm)
		if u.Pitch > 0 {
			args = append(args, "-p", strconv.Itoa(clampInt(int(50*u.Pitch), 0, 99)))
		}
		if u.Volume > 0 {
			args = append(args, "-a", strconv.Itoa(clampInt(int(100*u.Volume), 0, 200)))
		}
		args = append(args, text)
	}

	if out, err := s.run(ctx, s.engine, args...); err != nil {
		s.logger.Debug().Bytes("output", out).Msg("local engine exited with error")
		return fmt.Errorf("%s failed: %w", s.engine, err)
	}
	return nil
}

// sayVoiceLine 匹配 "Samantha            en_US    # Hello, my name is Samantha."。
var sayVoiceLine = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}[_-][A-Za-z0-9]{2,})\s+#`)

func parseSayVoices(out string) []LocalVoice {
	var voices []LocalVoice
	for _, line := range strings.Split(out, "\n") {
		m := sayVoiceLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		voices = append(voices, LocalVoice{Name: strings.TrimSpace(m[1]), Lang: m[2]})
	}
	return voices
}

// parseEspeakVoices 解析 "Pty Language Age/Gender VoiceName File Other" 表格。
func parseEspeakVoices(out string) []LocalVoice {
	var voices []LocalVoice
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		v := LocalVoice{Lang: fields[1], Name: fields[3]}
		switch {
		case strings.HasSuffix(fields[2], "/F"):
			v.Gender = Female
		case strings.HasSuffix(fields[2], "/M"):
			v.Gender = Male
		}
		voices = append(voices, v)
	}
	return voices
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
