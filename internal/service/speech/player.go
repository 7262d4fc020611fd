package speech

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
)

// AudioPlayer 播放一段完整的音频数据。
type AudioPlayer interface {
	Play(ctx context.Context, audio []byte, format string) error
}

type playerCommand struct {
	name string
	args func(path string) []string
}

var knownPlayers = map[string]playerCommand{
	"ffplay": {name: "ffplay", args: func(p string) []string { return []string{"-nodisp", "-autoexit", "-loglevel", "error", p} }},
	"afplay": {name: "afplay", args: func(p string) []string { return []string{p} }},
	"mpg123": {name: "mpg123", args: func(p string) []string { return []string{"-q", p} }},
	"mpv":    {name: "mpv", args: func(p string) []string { return []string{"--no-video", "--really-quiet", p} }},
	"paplay": {name: "paplay", args: func(p string) []string { return []string{p} }},
	"aplay":  {name: "aplay", args: func(p string) []string { return []string{"-q", p} }},
}

// CommandPlayer 把音频写入临时文件后调用系统播放器。
type CommandPlayer struct {
	cmd    playerCommand
	path   string
	logger zerolog.Logger
}

// NewCommandPlayer 选择可用的播放器；preferred 为空时按平台依次探测。
func NewCommandPlayer(preferred string, logger zerolog.Logger) (*CommandPlayer, error) {
	candidates := []string{"ffplay", "mpv", "mpg123", "paplay", "aplay"}
	if runtime.GOOS == "darwin" {
		candidates = append([]string{"afplay"}, candidates...)
	}
	if preferred = strings.TrimSpace(preferred); preferred != "" {
		candidates = []string{preferred}
	}

	for _, name := range candidates {
		cmd, ok := knownPlayers[name]
		if !ok {
			cmd = playerCommand{name: name, args: func(p string) []string { return []string{p} }}
		}
		path, err := exec.LookPath(cmd.name)
		if err != nil {
			continue
		}
		return &CommandPlayer{
			cmd:    cmd,
			path:   path,
			logger: logger.With().Str("component", "audio-player").Str("player", cmd.name).Logger(),
		}, nil
	}
	return nil, fmt.Errorf("%w: tried %s", ErrNoPlayer, strings.Join(candidates, ", "))
}

// Play 阻塞直到播放结束或 ctx 取消。
func (p *CommandPlayer) Play(ctx context.Context, audio []byte, format string) error {
	if len(audio) == 0 {
		return fmt.Errorf("empty audio")
	}

	f, err := os.CreateTemp("", "voicelink-*"+extensionFor(format))
	if err != nil {
		return fmt.Errorf("create audio temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(audio); err != nil {
		f.Close()
		return fmt.Errorf("write audio temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close audio temp file: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.path, p.cmd.args(f.Name())...)
	if out, err := cmd.CombinedOutput(); err != nil {
		p.logger.Debug().Bytes("output", out).Msg("player exited with error")
		return fmt.Errorf("%s failed: %w", p.cmd.name, err)
	}
	return nil
}

func extensionFor(format string) string {
	format = strings.ToLower(format)
	switch {
	case strings.Contains(format, "mp3"):
		return ".mp3"
	case strings.Contains(format, "riff"), strings.Contains(format, "wav"):
		return ".wav"
	case strings.Contains(format, "ogg"):
		return ".ogg"
	case strings.Contains(format, "webm"):
		return ".webm"
	default:
		return ".bin"
	}
}
