package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/zhouzirui/voicelink/internal/config"
	"github.com/zhouzirui/voicelink/internal/handler"
	"github.com/zhouzirui/voicelink/internal/logging"
	"github.com/zhouzirui/voicelink/internal/model/persona"
	"github.com/zhouzirui/voicelink/internal/service/assistant"
	"github.com/zhouzirui/voicelink/internal/service/capture"
	"github.com/zhouzirui/voicelink/internal/service/chat"
	"github.com/zhouzirui/voicelink/internal/service/notice"
	"github.com/zhouzirui/voicelink/internal/service/preferences"
	"github.com/zhouzirui/voicelink/internal/service/pubsub"
	"github.com/zhouzirui/voicelink/internal/service/session"
	"github.com/zhouzirui/voicelink/internal/service/speech"
	"github.com/zhouzirui/voicelink/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger, closer, err := logging.New(logging.Config{Level: cfg.Log.Level, Console: cfg.Log.Console, File: cfg.Log.File})
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize logger")
	}
	defer closer.Close()
	zlog.Logger = logger

	if envErr != nil {
		logger.Warn().Err(envErr).Msg("failed to load .env file, continuing with system environment variables only")
	}

	kv, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to open storage")
	}
	defer kv.Close()
	logger.Info().Str("driver", cfg.Storage.Driver).Msg("storage ready")

	personaStore := persona.NewMemoryStore(persona.Seed())
	chatService := chat.NewService(kv)
	prefService := preferences.NewService(kv)
	notices := notice.NewBroadcaster(100)

	gateway := newSpeechGateway(cfg.Speech, logger)
	bridge := capture.NewBridge(logger, 10*time.Second)

	coordinator := session.New(session.Options{
		Groups:          cfg.PubSub.Groups,
		SendGroup:       cfg.PubSub.SendGroup(),
		DedupWindow:     cfg.Session.DedupWindow,
		EchoWindow:      cfg.Session.EchoWindow,
		ConnectionGrace: cfg.Session.ConnectionGrace,
		RestartDelay:    cfg.Session.RestartDelay,
		ReconnectDelay:  cfg.Session.ReconnectDelay,
		CaptureLanguage: cfg.Session.CaptureLanguage,
	}, session.Deps{
		NewClient:   newClientFactory(cfg.PubSub, cfg.PubSub.UserID, logger),
		Recognizer:  bridge,
		Probe:       bridge,
		Speaker:     gateway,
		Messages:    chatService,
		Preferences: prefService,
		Notices:     notices,
		Logger:      logger,
	})
	defer coordinator.Close()

	if cfg.Session.AutoConnect {
		if err := coordinator.Start(ctx); err != nil {
			logger.Warn().Err(err).Msg("initial connection failed, use /api/session/connect to retry")
		}
	}

	if responder := startAssistant(ctx, cfg, personaStore, logger); responder != nil {
		defer responder.Stop()
	}

	router := handler.NewRouter(handler.Deps{
		Personas:    personaStore,
		Messages:    chatService,
		Preferences: prefService,
		Coordinator: coordinator,
		Bridge:      bridge,
		Notices:     notices,
		Speech:      gateway,
		Logger:      logger,
	})

	startServer(ctx, cfg.Server, router, logger)
}

// newSpeechGateway 组装云端合成、播放器与本地引擎，缺少的部分会被跳过。
func newSpeechGateway(cfg config.SpeechConfig, logger zerolog.Logger) *speech.Gateway {
	var (
		cloud  speech.CloudSynthesizer
		player speech.AudioPlayer
		local  speech.LocalSynthesizer
	)

	if cfg.CloudEnabled() {
		azure, err := speech.NewAzureSynthesizer(speech.AzureConfig{
			Key:          cfg.Key,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			OutputFormat: cfg.OutputFormat,
			Timeout:      cfg.Timeout,
			Logger:       logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("cloud speech disabled")
		} else {
			cloud = azure
			logger.Info().Str("voice", cfg.Voice).Msg("cloud speech enabled")
		}
	} else {
		logger.Info().Msg("cloud speech credentials not configured, using local synthesis only")
	}

	if cloud != nil {
		p, err := speech.NewCommandPlayer(cfg.Player, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("no audio player found, cloud speech disabled")
		} else {
			player = p
		}
	}

	engine, err := speech.NewExecSynthesizer(cfg.LocalEngine, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("local speech engine unavailable")
	} else {
		local = engine
		logger.Info().Str("engine", engine.Engine()).Msg("local speech engine ready")
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

// newClientFactory 未配置实时通道时返回 nil，协调器随之进入本地模拟模式。
func newClientFactory(cfg config.PubSubConfig, userID string, logger zerolog.Logger) session.ClientFactory {
	if !cfg.Enabled() {
		logger.Info().Msg("web pubsub not configured, messages will be simulated locally")
		return nil
	}
	return func() (pubsub.Client, error) {
		return pubsub.NewWebSocketClient(pubsub.Options{
			ClientURL:  cfg.ClientURL,
			Endpoint:   cfg.Endpoint,
			AccessKey:  cfg.AccessKey,
			Hub:        cfg.Hub,
			UserID:     userID,
			Groups:     cfg.Groups,
			TokenTTL:   cfg.TokenTTL,
			AckTimeout: cfg.AckTimeout,
			Logger:     logger,
		}), nil
	}
}

// startAssistant 在配置允许时启动大模型应答方，失败只记录日志。
func startAssistant(ctx context.Context, cfg *config.Config, personas persona.Store, logger zerolog.Logger) *assistant.Responder {
	if !cfg.AI.AssistantEnabled {
		return nil
	}
	if !cfg.AI.Enabled() || !cfg.PubSub.Enabled() {
		logger.Warn().Msg("assistant enabled but ark or web pubsub credentials are missing, skipping")
		return nil
	}
	if cfg.PubSub.ClientURL != "" {
		logger.Warn().Msg("assistant needs WEBPUBSUB_ENDPOINT and WEBPUBSUB_ACCESS_KEY to sign its own token, skipping")
		return nil
	}

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to create chat model, assistant disabled")
		return nil
	}
	generator, err := assistant.NewGenerator(ctx, chatModel, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to build assistant chain, assistant disabled")
		return nil
	}

	client := pubsub.NewWebSocketClient(pubsub.Options{
		Endpoint:   cfg.PubSub.Endpoint,
		AccessKey:  cfg.PubSub.AccessKey,
		Hub:        cfg.PubSub.Hub,
		UserID:     cfg.AI.AssistantUserID,
		TokenTTL:   cfg.PubSub.TokenTTL,
		AckTimeout: cfg.PubSub.AckTimeout,
		Logger:     logger,
	})
	responder := assistant.NewResponder(assistant.Options{
		Client:   client,
		Replier:  generator,
		Personas: personas,
		Group:    cfg.PubSub.SendGroup(),
		UserID:   cfg.AI.AssistantUserID,
		Logger:   logger,
	})
	if err := responder.Start(ctx); err != nil {
		logger.Warn().Err(err).Msg("assistant failed to start")
		return nil
	}
	return responder
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger zerolog.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("voicelink listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
