package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/kozaktomas/reid-eval/internal/database"
)

const defaultGalleryK = 10

// GalleryHandler searches the gallery index
type GalleryHandler struct {
	index *database.GalleryIndex
}

// NewGalleryHandler creates a new gallery handler
func NewGalleryHandler(deps Dependencies) *GalleryHandler {
	return &GalleryHandler{index: deps.Gallery}
}

// GallerySearchRequest is a query embedding
type GallerySearchRequest struct {
	Embedding []float32 `json:"embedding"`
	K         int       `json:"k,omitempty"`
}

// GalleryResult is one ranked gallery sample
type GalleryResult struct {
	ID       int64   `json:"id"`
	Path     string  `json:"path"`
	Identity int     `json:"identity"`
	Camera   int     `json:"camera"`
	Distance float64 `json:"distance"`
}

// GallerySearchResponse lists gallery samples nearest first
type GallerySearchResponse struct {
	Results []GalleryResult `json:"results"`
}

// Search returns the k nearest gallery samples by exact Euclidean distance
func (h *GalleryHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		respondError(w, http.StatusServiceUnavailable, "gallery index not loaded")
		return
	}

	var req GallerySearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Embedding) == 0 {
		respondError(w, http.StatusBadRequest, "embedding is required")
		return
	}
	k := req.K
	if k <= 0 {
		k = defaultGalleryK
	}
	k = min(k, database.MaxSearchResults)

	matches, err := h.index.Search(req.Embedding, k)
	if errors.Is(err, database.ErrGalleryEmpty) {
		respondJSON(w, http.StatusOK, GallerySearchResponse{Results: []GalleryResult{}})
		return
	}
	if err != nil {
		log.Printf("gallery search: %v", err)
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := GallerySearchResponse{Results: make([]GalleryResult, len(matches))}
	for i, m := range matches {
		resp.Results[i] = GalleryResult{
			ID:       m.Sample.ID,
			Path:     m.Sample.Path,
			Identity: m.Sample.Identity,
			Camera:   m.Sample.Camera,
			Distance: m.Distance,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
