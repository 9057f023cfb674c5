package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kozaktomas/reid-eval/internal/distance"
	"github.com/kozaktomas/reid-eval/internal/evaluate"
	"github.com/kozaktomas/reid-eval/internal/metrics"
	"github.com/kozaktomas/reid-eval/internal/ranking"
	"github.com/kozaktomas/reid-eval/internal/sampler"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// maxRequestBody bounds JSON request bodies carrying embedding batches.
const maxRequestBody = 64 << 20

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	return json.NewDecoder(r.Body).Decode(v) //nolint:wrapcheck // callers respond with a fixed message
}

// isInputError reports whether err was caused by a malformed evaluation input.
func isInputError(err error) bool {
	for _, target := range []error{
		distance.ErrShapeMismatch,
		distance.ErrEmpty,
		ranking.ErrEmptyQuerySet,
		ranking.ErrLengthMismatch,
		sampler.ErrInsufficientBatch,
		sampler.ErrInvalidBatchShape,
		sampler.ErrLengthMismatch,
		metrics.ErrEmptyInput,
		metrics.ErrLengthMismatch,
		evaluate.ErrProbabilityCount,
		evaluate.ErrProbabilityRange,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
