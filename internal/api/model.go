package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/PriceEngine/internal/pricing"
	"github.com/MikeSquared-Agency/PriceEngine/internal/reload"
)

// WeightsReloader reloads the weights file on demand.
type WeightsReloader interface {
	ReloadNow(trigger string) (*pricing.Snapshot, bool, error)
}

type ModelHandler struct {
	holder   *pricing.Holder
	reloader WeightsReloader
	logger   *slog.Logger
}

func NewModelHandler(d Deps) *ModelHandler {
	return &ModelHandler{holder: d.Holder, reloader: d.Reloader, logger: d.Logger}
}

type ModelInfo struct {
	ModelVersion string               `json:"model_version"`
	Fingerprint  string               `json:"fingerprint"`
	Source       string               `json:"source"`
	LoadedAt     time.Time            `json:"loaded_at"`
	Weights      pricing.WeightConfig `json:"weights"`
}

func modelInfo(s *pricing.Snapshot) ModelInfo {
	return ModelInfo{
		ModelVersion: s.Weights.ModelVersion,
		Fingerprint:  s.Fingerprint,
		Source:       s.Source,
		LoadedAt:     s.LoadedAt,
		Weights:      s.Weights,
	}
}

func (h *ModelHandler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.holder.Load()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "ok",
		"model_version": snap.Weights.ModelVersion,
	})
}

func (h *ModelHandler) Model(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, modelInfo(h.holder.Load()))
}

type ReloadResponse struct {
	Changed bool      `json:"changed"`
	Error   string    `json:"error,omitempty"`
	Model   ModelInfo `json:"model"`
}

func (h *ModelHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "reload not configured"})
		return
	}
	snap, changed, err := h.reloader.ReloadNow(reload.TriggerAdmin)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ReloadResponse{Error: err.Error(), Model: modelInfo(snap)})
		return
	}
	writeJSON(w, http.StatusOK, ReloadResponse{Changed: changed, Model: modelInfo(snap)})
}
