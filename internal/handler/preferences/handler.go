package preferences

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	model "github.com/zhouzirui/voicelink/internal/model/preferences"
	"github.com/zhouzirui/voicelink/pkg/utils"
)

// Store 抽象偏好记录的读写。
type Store interface {
	Load(ctx context.Context) (model.Preferences, error)
	Save(ctx context.Context, prefs model.Preferences) (model.Preferences, error)
	Reset(ctx context.Context) (model.Preferences, error)
}

// Handler 偏好设置的HTTP处理器
type Handler struct {
	store Store
}

// New 创建偏好处理器
func New(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册偏好相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/preferences", h.handleGet)
	r.Put("/preferences", h.handlePut)
	r.Delete("/preferences", h.handleReset)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.store.Load(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, prefs)
}

// handlePut 整体替换偏好；缺省字段回落到默认值。
func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	prefs := model.Defaults()
	if err := utils.DecodeJSON(r, &prefs); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	saved, err := h.store.Save(r.Context(), prefs)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrInvalid) {
			status = http.StatusBadRequest
		}
		utils.RespondError(w, status, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, saved)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.store.Reset(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, prefs)
}
