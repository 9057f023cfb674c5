package database

import (
	"context"

	"github.com/kozaktomas/reid-eval/internal/metrics"
)

// SampleReader provides read-only access to stored sample embeddings
type SampleReader interface {
	// GetSample retrieves a sample by ID, returns nil if not found
	GetSample(ctx context.Context, id int64) (*StoredSample, error)
	// GetSampleByPath retrieves a sample by model and image path, returns nil if not found
	GetSampleByPath(ctx context.Context, model, path string) (*StoredSample, error)
	// Count returns the number of samples stored for a model
	Count(ctx context.Context, model string) (int, error)
	// Stats returns the count, highest ID and latest write time of a model's samples
	Stats(ctx context.Context, model string) (SampleStats, error)
	// ListSamples returns all samples of a model ordered by path
	ListSamples(ctx context.Context, model string) ([]StoredSample, error)
	// FindNearest finds the samples closest to embedding by Euclidean distance
	FindNearest(ctx context.Context, model string, embedding []float32, limit int) ([]StoredSample, []float64, error)
}

// SampleWriter provides write access to sample embeddings
type SampleWriter interface {
	SampleReader

	// SaveSamples upserts samples keyed by (model, path)
	SaveSamples(ctx context.Context, samples []StoredSample) error
	// DeleteModel removes all samples of a model and returns how many were deleted
	DeleteModel(ctx context.Context, model string) (int64, error)
}

// ReportReader provides read-only access to evaluation reports
type ReportReader interface {
	// GetReport retrieves a full report by ID, returns nil if not found
	GetReport(ctx context.Context, id string) (*metrics.Report, error)
	// ListReports returns the newest reports first
	ListReports(ctx context.Context, limit int) ([]ReportSummary, error)
}

// ReportWriter provides write access to evaluation reports
type ReportWriter interface {
	ReportReader

	// SaveReport stores a report; reports are write-once
	SaveReport(ctx context.Context, report *metrics.Report) error
}
