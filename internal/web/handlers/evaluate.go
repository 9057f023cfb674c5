package handlers

import (
	"log"
	"net/http"

	"github.com/kozaktomas/reid-eval/internal/config"
	"github.com/kozaktomas/reid-eval/internal/database"
	"github.com/kozaktomas/reid-eval/internal/evaluate"
	"github.com/kozaktomas/reid-eval/internal/metrics"
)

// EvaluateHandler runs evaluations over posted embedding batches
type EvaluateHandler struct {
	config     *config.Config
	classifier evaluate.Classifier
	reports    database.ReportWriter
}

// NewEvaluateHandler creates a new evaluate handler
func NewEvaluateHandler(cfg *config.Config, deps Dependencies) *EvaluateHandler {
	return &EvaluateHandler{
		config:     cfg,
		classifier: deps.Classifier,
		reports:    deps.Reports,
	}
}

// EvaluateRequest is one batch of embeddings with their identities. Zero-valued
// options fall back to the configured defaults. Probabilities, when present, are
// the classifier outputs for the balanced pairs of the batch in order.
type EvaluateRequest struct {
	Embeddings    [][]float32 `json:"embeddings"`
	Labels        []int       `json:"labels"`
	Model         string      `json:"model,omitempty"`
	P             int         `json:"p,omitempty"`
	K             int         `json:"k,omitempty"`
	TopK          int         `json:"top_k,omitempty"`
	Threshold     *float64    `json:"threshold,omitempty"`
	Probabilities []float64   `json:"probabilities,omitempty"`
}

func (h *EvaluateHandler) options(req EvaluateRequest) evaluate.Options {
	e := h.config.Evaluation
	opts := evaluate.Options{P: e.P, K: e.K, TopK: e.TopK, Threshold: e.Threshold}
	if req.P > 0 {
		opts.P = req.P
	}
	if req.K > 0 {
		opts.K = req.K
	}
	if req.TopK > 0 {
		opts.TopK = req.TopK
	}
	if req.Threshold != nil {
		opts.Threshold = *req.Threshold
	}
	return opts
}

// Evaluate computes a metric report for the posted batch
func (h *EvaluateHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	opts := h.options(req)
	if opts.Threshold < 0 || opts.Threshold > 1 {
		respondError(w, http.StatusBadRequest, "threshold must be within [0, 1]")
		return
	}

	model := req.Model
	if model == "" {
		if spec, err := h.config.ModelSpec(); err == nil {
			model = spec.String()
		}
	}
	ev := &evaluate.Evaluator{Options: opts, Model: model}

	var report *metrics.Report
	var err error
	switch {
	case len(req.Probabilities) > 0:
		pairs, perr := ev.Pairs(req.Embeddings, req.Labels)
		if perr != nil {
			err = perr
			break
		}
		report, err = ev.EvaluateScored(req.Embeddings, req.Labels, pairs, req.Probabilities)
	default:
		ev.Classifier = h.classifier
		report, err = ev.Evaluate(r.Context(), req.Embeddings, req.Labels)
	}
	if err != nil {
		if isInputError(err) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("evaluate: %s", sanitizeForLog(err.Error()))
		respondError(w, http.StatusInternalServerError, "evaluation failed")
		return
	}

	if h.reports != nil {
		if err := h.reports.SaveReport(r.Context(), report); err != nil {
			log.Printf("Warning: failed to save report %s: %v", report.ID, err)
		}
	}

	respondJSON(w, http.StatusOK, report)
}
