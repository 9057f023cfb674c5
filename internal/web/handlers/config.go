package handlers

import (
	"net/http"

	"github.com/kozaktomas/reid-eval/internal/config"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config        *config.Config
	classifierSet bool
	reportsSet    bool
	gallerySize   func() int
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config, deps Dependencies) *ConfigHandler {
	h := &ConfigHandler{
		config:        cfg,
		classifierSet: deps.Classifier != nil,
		reportsSet:    deps.Reports != nil,
		gallerySize:   func() int { return 0 },
	}
	if deps.Gallery != nil {
		h.gallerySize = deps.Gallery.Count
	}
	return h
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Model          string  `json:"model,omitempty"`
	P              int     `json:"p"`
	K              int     `json:"k"`
	TopK           int     `json:"top_k"`
	Threshold      float64 `json:"threshold"`
	Classifier     bool    `json:"classifier"`
	ReportsEnabled bool    `json:"reports_enabled"`
	GallerySize    int     `json:"gallery_size"`
}

// Get returns the evaluation defaults and which optional backends are available
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	e := h.config.Evaluation
	response := ConfigResponse{
		P:              e.P,
		K:              e.K,
		TopK:           e.TopK,
		Threshold:      e.Threshold,
		Classifier:     h.classifierSet,
		ReportsEnabled: h.reportsSet,
		GallerySize:    h.gallerySize(),
	}
	if spec, err := h.config.ModelSpec(); err == nil {
		response.Model = spec.String()
	}

	respondJSON(w, http.StatusOK, response)
}
