package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/voicelink/internal/analysis/style"
	"github.com/zhouzirui/voicelink/internal/config"
	"github.com/zhouzirui/voicelink/internal/logging"
	"github.com/zhouzirui/voicelink/internal/service/speech"
)

type rootOptions struct {
	voice   string
	lang    string
	timeout time.Duration
	verbose bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "speechtester",
		Short:        "手动检查风格分类、SSML 生成与语音合成",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.voice, "voice", "", "云端音色 ID，默认使用配置中的 SPEECH_VOICE")
	root.PersistentFlags().StringVar(&opts.lang, "lang", "", "SSML 语言，默认使用配置中的 SPEECH_LANGUAGE")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 45*time.Second, "单次合成超时时间")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "输出调试日志")

	root.AddCommand(
		newClassifyCmd(),
		newSSMLCmd(opts),
		newSynthCmd(opts),
		newSpeakCmd(opts),
		newVoicesCmd(opts),
	)
	return root
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>",
		Short: "逐句输出风格判定",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tCATEGORY\tSTYLE\tDEGREE\tSENTENCE")
			for i, d := range style.Segment(strings.Join(args, " ")) {
				fmt.Fprintf(w, "%d\t%s\t%s\t%.1f\t%s\n", i+1, d.Category, d.Style, d.Degree, d.Sentence)
			}
			return w.Flush()
		},
	}
}

func newSSMLCmd(opts *rootOptions) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "ssml <text>",
		Short: "打印风格化合成使用的 SSML 文档",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSpeechConfig(opts)
			if err != nil {
				return err
			}
			segments := speech.SegmentsFrom(style.Segment(strings.Join(args, " ")))
			expressive := !plain && speech.SupportsStyles(cfg.Voice)
			fmt.Fprintln(cmd.OutOrStdout(), speech.BuildSSML(cfg.Voice, cfg.Language, segments, expressive))
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "省略 express-as 风格标记")
	return cmd
}

func newSynthCmd(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "synth <text>",
		Short: "调用云端合成并把音频写入文件",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSpeechConfig(opts)
			if err != nil {
				return err
			}
			logger := newLogger(opts)

			azure, err := speech.NewAzureSynthesizer(speech.AzureConfig{
				Key:          cfg.Key,
				Region:       cfg.Region,
				Endpoint:     cfg.Endpoint,
				OutputFormat: cfg.OutputFormat,
				Timeout:      cfg.Timeout,
				Logger:       logger,
			})
			if err != nil {
				return err
			}

			segments := speech.SegmentsFrom(style.Segment(strings.Join(args, " ")))
			ssml := speech.BuildSSML(cfg.Voice, cfg.Language, segments, speech.SupportsStyles(cfg.Voice))

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			started := time.Now()
			audio, err := azure.Synthesize(ctx, ssml)
			if err != nil {
				return fmt.Errorf("synthesize: %w", err)
			}

			if out == "" {
				out = fmt.Sprintf("tts-output-%d.mp3", time.Now().Unix())
			}
			if err := os.WriteFile(out, audio, 0o644); err != nil {
				return fmt.Errorf("write audio: %w", err)
			}
			logger.Info().
				Str("file", out).
				Int("bytes", len(audio)).
				Dur("elapsed", time.Since(started)).
				Msg("synthesis succeeded")
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "输出文件路径，默认按时间戳生成")
	return cmd
}

func newSpeakCmd(opts *rootOptions) *cobra.Command {
	var styled bool
	cmd := &cobra.Command{
		Use:   "speak <text>",
		Short: "按服务端同样的回退链路朗读文本",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSpeechConfig(opts)
			if err != nil {
				return err
			}
			gateway := buildGateway(cfg, newLogger(opts))

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			text := strings.Join(args, " ")
			speak := gateway.Speak
			if styled {
				speak = gateway.SpeakStyled
			}
			res, err := speak(ctx, text, cfg.Voice)
			if err != nil && !speech.IsSkipped(err) {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "path=%s voice=%s duration=%s\n", res.Path, res.Voice, res.Duration)
			if res.CloudError != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "cloud error: %s\n", res.CloudError)
			}
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "playback skipped: no English local voice")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&styled, "styled", true, "逐句风格化合成")
	return cmd
}

func newVoicesCmd(opts *rootOptions) *cobra.Command {
	var engine string
	cmd := &cobra.Command{
		Use:   "voices",
		Short: "列出本地系统音色并显示回退时选中的音色",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadSpeechConfig(opts)
			if err != nil {
				return err
			}
			if engine == "" {
				engine = cfg.LocalEngine
			}
			synth, err := speech.NewExecSynthesizer(engine, newLogger(opts))
			if err != nil {
				return err
			}

			voices, err := synth.Voices(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tLANG\tGENDER")
			for _, v := range voices {
				fmt.Fprintf(w, "%s\t%s\t%s\n", v.Name, v.Lang, v.Gender)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if picked, ok := speech.ResolveLocalVoice(voices, cfg.Voice); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s -> %s (%s)\n", cfg.Voice, picked.Name, synth.Engine())
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s -> no English voice\n", cfg.Voice)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&engine, "engine", "", "本地引擎: auto, say, espeak-ng, espeak")
	return cmd
}

// loadSpeechConfig 读取 .env 与环境变量，并应用命令行覆盖。
func loadSpeechConfig(opts *rootOptions) (config.SpeechConfig, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return config.SpeechConfig{}, fmt.Errorf("load configuration: %w", err)
	}

	speechCfg := cfg.Speech
	if opts.voice != "" {
		speechCfg.Voice = opts.voice
	}
	if opts.lang != "" {
		speechCfg.Language = opts.lang
	}
	return speechCfg, nil
}

func newLogger(opts *rootOptions) zerolog.Logger {
	level := "info"
	if opts.verbose {
		level = "debug"
	}
	logger, _, err := logging.New(logging.Config{Level: level, Console: true})
	if err != nil {
		return zerolog.Nop()
	}
	return logger
}

func buildGateway(cfg config.SpeechConfig, logger zerolog.Logger) *speech.Gateway {
	var (
		cloud  speech.CloudSynthesizer
		player speech.AudioPlayer
		local  speech.LocalSynthesizer
	)

	if cfg.CloudEnabled() {
		if azure, err := speech.NewAzureSynthesizer(speech.AzureConfig{
			Key:          cfg.Key,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			OutputFormat: cfg.OutputFormat,
			Timeout:      cfg.Timeout,
			Logger:       logger,
		}); err == nil {
			cloud = azure
		} else {
			logger.Warn().Err(err).Msg("cloud speech disabled")
		}
		if p, err := speech.NewCommandPlayer(cfg.Player, logger); err == nil {
			player = p
		} else {
			logger.Warn().Err(err).Msg("no audio player found")
		}
	}

	if engine, err := speech.NewExecSynthesizer(cfg.LocalEngine, logger); err == nil {
		local = engine
	} else {
		logger.Warn().Err(err).Msg("local speech engine unavailable")
	}

	return speech.NewGateway(speech.Config{
		Voice:        cfg.Voice,
		Language:     cfg.Language,
		Style:        cfg.Style,
		StyleDegree:  cfg.StyleDegree,
		OutputFormat: cfg.OutputFormat,
		Rate:         cfg.Rate,
		Pitch:        cfg.Pitch,
		Volume:       cfg.Volume,
	}, cloud, player, local, logger)
}
