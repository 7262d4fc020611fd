package speech

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/voicelink/internal/analysis/style"
	prefmodel "github.com/zhouzirui/voicelink/internal/model/preferences"
	"github.com/zhouzirui/voicelink/internal/model/speech"
	speechsvc "github.com/zhouzirui/voicelink/internal/service/speech"
	"github.com/zhouzirui/voicelink/pkg/utils"
)

// SpeechService 抽象朗读网关，便于测试与替换实现
type SpeechService interface {
	Speak(ctx context.Context, text, voice string) (speechsvc.Result, error)
	SpeakStyled(ctx context.Context, text, voice string) (speechsvc.Result, error)
	CloudEnabled() bool
	LocalEnabled() bool
	DefaultVoice() string
}

// PreferenceSource 提供未指定音色时使用的偏好。
type PreferenceSource interface {
	Load(ctx context.Context) (prefmodel.Preferences, error)
}

// Handler 语音服务的HTTP处理器
type Handler struct {
	speechSvc SpeechService
	prefs     PreferenceSource
	logger    zerolog.Logger
}

// New 创建语音处理器
func New(speechSvc SpeechService, prefs PreferenceSource, logger zerolog.Logger) *Handler {
	return &Handler{
		speechSvc: speechSvc,
		prefs:     prefs,
		logger:    logger.With().Str("component", "speech-handler").Logger(),
	}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(speechRouter chi.Router) {
		speechRouter.Post("/speak", h.handleSpeak)
		speechRouter.Post("/classify", h.handleClassify)
		speechRouter.Get("/health", h.handleHealth)
	})
}

// handleSpeak 在服务端朗读文本；本地音色不可用时返回 skipped 而不是错误。
func (h *Handler) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req speech.SpeakRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	if strings.TrimSpace(req.Voice) == "" {
		req.Voice = h.resolveVoice(r.Context())
	}

	speak := h.speechSvc.Speak
	if req.Styled {
		speak = h.speechSvc.SpeakStyled
	}

	result, err := speak(r.Context(), req.Text, req.Voice)
	resp := toResponse(result)
	if err != nil {
		if speechsvc.IsSkipped(err) {
			resp.Skipped = true
			utils.RespondJSON(w, http.StatusOK, resp)
			return
		}
		h.logger.Error().Err(err).Msg("speak failed")
		utils.RespondError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

// handleClassify 只返回分句与风格判定，不做合成。
func (h *Handler) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req speech.ClassifyRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	utils.RespondJSON(w, http.StatusOK, toSegments(style.Segment(req.Text)))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, speech.HealthResponse{
		Cloud:        h.speechSvc.CloudEnabled(),
		Local:        h.speechSvc.LocalEnabled(),
		DefaultVoice: h.speechSvc.DefaultVoice(),
	})
}

func (h *Handler) resolveVoice(ctx context.Context) string {
	if h.prefs == nil {
		return ""
	}
	prefs, err := h.prefs.Load(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("load preferences failed, using default voice")
		return ""
	}
	return prefs.Voice
}

func toResponse(result speechsvc.Result) speech.SpeakResponse {
	return speech.SpeakResponse{
		Path:       string(result.Path),
		Voice:      result.Voice,
		DurationMS: result.Duration.Milliseconds(),
		Segments:   toSegments(result.Decisions),
		CloudError: result.CloudError,
		CreatedAt:  time.Now().UTC(),
	}
}

func toSegments(decisions []style.Decision) []speech.SegmentDecision {
	out := make([]speech.SegmentDecision, 0, len(decisions))
	for _, d := range decisions {
		out = append(out, speech.SegmentDecision{
			Text:     d.Sentence,
			Category: string(d.Category),
			Style:    string(d.Style),
			Degree:   d.Degree,
		})
	}
	return out
}
