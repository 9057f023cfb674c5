package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/reid-eval/internal/config"
	"github.com/kozaktomas/reid-eval/internal/sampler"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Models:     config.ModelsConfig{BackboneType: "resnet", AEType: "vae"},
		Evaluation: config.EvaluationConfig{P: 18, K: 5, TopK: 5, Threshold: 0.5},
	}
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonRequest creates a request with a JSON-encoded body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// decodeBody decodes a recorded JSON response
func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(recorder.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// clusteredBatch returns p identities with k samples each on separate axes
func clusteredBatch(p, k int) ([][]float32, []int) {
	var embeddings [][]float32
	var labels []int
	for id := range p {
		for s := range k {
			e := make([]float32, p+1)
			e[id] = 10
			e[p] = float32(s) * 0.01
			embeddings = append(embeddings, e)
			labels = append(labels, id)
		}
	}
	return embeddings, labels
}

// sameClassifier scores same-identity pairs 0.9 and others 0.1
type sameClassifier struct{}

func (sameClassifier) Classify(_ context.Context, pairs []sampler.Pair) ([]float64, error) {
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		out[i] = 0.1
		if p.Same {
			out[i] = 0.9
		}
	}
	return out, nil
}

// stringsReader wraps a raw body
func stringsReader(s string) *bytes.Reader {
	return bytes.NewReader([]byte(s))
}
