package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	capturehandler "github.com/zhouzirui/voicelink/internal/handler/capture"
	chathandler "github.com/zhouzirui/voicelink/internal/handler/chat"
	personahandler "github.com/zhouzirui/voicelink/internal/handler/persona"
	prefhandler "github.com/zhouzirui/voicelink/internal/handler/preferences"
	sessionhandler "github.com/zhouzirui/voicelink/internal/handler/session"
	speechhandler "github.com/zhouzirui/voicelink/internal/handler/speech"
	streamhandler "github.com/zhouzirui/voicelink/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/voicelink/internal/middleware"
	personaModel "github.com/zhouzirui/voicelink/internal/model/persona"
	"github.com/zhouzirui/voicelink/pkg/utils"
)

// Deps 汇总路由依赖；为 nil 的可选依赖对应的路由不注册。
type Deps struct {
	Personas    personaModel.Store
	Messages    chathandler.MessageLog
	Preferences prefhandler.Store
	Coordinator sessionhandler.Coordinator
	Bridge      capturehandler.Bridge
	Notices     streamhandler.Source
	Speech      speechhandler.SpeechService
	Heartbeat   time.Duration
	Logger      zerolog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		personahandler.New(deps.Personas).RegisterRoutes(api)
		chathandler.New(deps.Messages).RegisterRoutes(api)
		prefhandler.New(deps.Preferences).RegisterRoutes(api)

		if deps.Coordinator != nil {
			sessionhandler.New(deps.Coordinator).RegisterRoutes(api)
		}
		if deps.Bridge != nil {
			capturehandler.NewWebSocketHandler(deps.Bridge, deps.Logger).RegisterRoutes(api)
		} else {
			api.Get("/capture/ws", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusNotImplemented, "speech capture bridge not available")
			})
		}
		if deps.Notices != nil {
			streamhandler.New(deps.Notices, deps.Heartbeat, deps.Logger).RegisterRoutes(api)
		}
		if deps.Speech != nil {
			speechhandler.New(deps.Speech, deps.Preferences, deps.Logger).RegisterRoutes(api)
		}
	})

	return r
}
