package database

import (
	"time"

	"github.com/kozaktomas/reid-eval/internal/metrics"
)

// StoredSample is the embedding of one dataset image under one model combination.
type StoredSample struct {
	ID        int64
	Path      string // image path relative to the dataset dir
	Identity  int
	Camera    int
	Model     string // model spec, e.g. "resnet+vae"
	Embedding []float32
	Dim       int
	CreatedAt time.Time
}

// SampleStats summarizes the stored samples of one model. A gallery index built
// from the same samples reports identical stats.
type SampleStats struct {
	Count     int
	MaxID     int64
	LastWrite time.Time
}

// ReportSummary is the listing view of a stored report.
type ReportSummary struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	Model     string             `json:"model"`
	TopK      int                `json:"top_k"`
	Queries   int                `json:"queries"`
	Pairs     int                `json:"pairs"`
	Scalars   map[string]float64 `json:"scalars"`
}

// Summarize returns the listing view of a full report.
func Summarize(r *metrics.Report) ReportSummary {
	return ReportSummary{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		Model:     r.Model,
		TopK:      r.TopK,
		Queries:   r.Queries,
		Pairs:     r.Pairs,
		Scalars:   r.Scalars,
	}
}

// Identities groups sample positions by identity, the shape the batch sampler expects.
func Identities(samples []StoredSample) map[int][]int {
	out := make(map[int][]int)
	for i, s := range samples {
		out[s.Identity] = append(out[s.Identity], i)
	}
	return out
}
