// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/reid-eval/internal/database"
	"github.com/kozaktomas/reid-eval/internal/distance"
	"github.com/kozaktomas/reid-eval/internal/metrics"
)

// MockSampleRepository is an in-memory implementation of database.SampleWriter
type MockSampleRepository struct {
	mu      sync.RWMutex
	samples []*database.StoredSample
	nextID  int64

	// Error injection
	GetError         error
	CountError       error
	ListError        error
	FindNearestError error
	SaveError        error
	DeleteError      error
}

// NewMockSampleRepository creates a new mock sample repository
func NewMockSampleRepository() *MockSampleRepository {
	return &MockSampleRepository{nextID: 1}
}

// AddSample adds a sample to the mock store and returns its ID
func (m *MockSampleRepository) AddSample(s database.StoredSample) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertLocked(s)
}

func (m *MockSampleRepository) upsertLocked(s database.StoredSample) int64 {
	s.Dim = len(s.Embedding)
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	for i, existing := range m.samples {
		if existing.Model == s.Model && existing.Path == s.Path {
			s.ID = existing.ID
			m.samples[i] = &s
			return s.ID
		}
	}
	s.ID = m.nextID
	m.nextID++
	m.samples = append(m.samples, &s)
	return s.ID
}

// GetSample retrieves a sample by ID
func (m *MockSampleRepository) GetSample(ctx context.Context, id int64) (*database.StoredSample, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.samples {
		if s.ID == id {
			c := *s
			return &c, nil
		}
	}
	return nil, nil
}

// GetSampleByPath retrieves a sample by model and path
func (m *MockSampleRepository) GetSampleByPath(ctx context.Context, model, path string) (*database.StoredSample, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.samples {
		if s.Model == model && s.Path == path {
			c := *s
			return &c, nil
		}
	}
	return nil, nil
}

// Count returns the number of samples of a model
func (m *MockSampleRepository) Count(ctx context.Context, model string) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.samples {
		if s.Model == model {
			n++
		}
	}
	return n, nil
}

// Stats returns the count, highest ID and latest write time of a model's samples
func (m *MockSampleRepository) Stats(ctx context.Context, model string) (database.SampleStats, error) {
	var stats database.SampleStats
	if m.CountError != nil {
		return stats, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.samples {
		if s.Model != model {
			continue
		}
		stats.Count++
		stats.MaxID = max(stats.MaxID, s.ID)
		if s.CreatedAt.After(stats.LastWrite) {
			stats.LastWrite = s.CreatedAt
		}
	}
	return stats, nil
}

// ListSamples returns the samples of a model ordered by path
func (m *MockSampleRepository) ListSamples(ctx context.Context, model string) ([]database.StoredSample, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.StoredSample
	for _, s := range m.samples {
		if s.Model == model {
			out = append(out, *s)
		}
	}
	slices.SortFunc(out, func(a, b database.StoredSample) int { return cmp.Compare(a.Path, b.Path) })
	return out, nil
}

// FindNearest does a brute-force Euclidean search over the samples of a model
func (m *MockSampleRepository) FindNearest(ctx context.Context, model string, embedding []float32, limit int) ([]database.StoredSample, []float64, error) {
	if m.FindNearestError != nil {
		return nil, nil, m.FindNearestError
	}
	all, err := m.ListSamples(ctx, model)
	if err != nil || len(all) == 0 {
		return nil, nil, err
	}

	pool := make([][]float32, len(all))
	for i, s := range all {
		pool[i] = s.Embedding
	}
	dist, err := distance.PairwiseHost([][]float32{embedding}, pool)
	if err != nil {
		return nil, nil, fmt.Errorf("mock distance: %w", err)
	}

	order := make([]int, len(all))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(dist[0][a], dist[0][b]) })

	n := min(limit, len(order))
	samples := make([]database.StoredSample, n)
	distances := make([]float64, n)
	for i, idx := range order[:n] {
		samples[i] = all[idx]
		distances[i] = dist[0][idx]
	}
	return samples, distances, nil
}

// SaveSamples upserts samples keyed by (model, path)
func (m *MockSampleRepository) SaveSamples(ctx context.Context, samples []database.StoredSample) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range samples {
		m.upsertLocked(s)
	}
	return nil
}

// DeleteModel removes all samples of a model
func (m *MockSampleRepository) DeleteModel(ctx context.Context, model string) (int64, error) {
	if m.DeleteError != nil {
		return 0, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.samples)
	m.samples = slices.DeleteFunc(m.samples, func(s *database.StoredSample) bool { return s.Model == model })
	return int64(before - len(m.samples)), nil
}

// MockReportRepository is an in-memory implementation of database.ReportWriter
type MockReportRepository struct {
	mu      sync.RWMutex
	reports map[string]*metrics.Report

	// Error injection
	SaveError error
	GetError  error
	ListError error
}

// NewMockReportRepository creates a new mock report repository
func NewMockReportRepository() *MockReportRepository {
	return &MockReportRepository{reports: make(map[string]*metrics.Report)}
}

// SaveReport stores a report; saving an existing ID fails
func (m *MockReportRepository) SaveReport(ctx context.Context, report *metrics.Report) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[report.ID]; ok {
		return fmt.Errorf("report %s already exists", report.ID)
	}
	m.reports[report.ID] = report
	return nil
}

// GetReport retrieves a report by ID
func (m *MockReportRepository) GetReport(ctx context.Context, id string) (*metrics.Report, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reports[id], nil
}

// ListReports returns the newest reports first
func (m *MockReportRepository) ListReports(ctx context.Context, limit int) ([]database.ReportSummary, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.ReportSummary, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, database.Summarize(r))
	}
	slices.SortFunc(out, func(a, b database.ReportSummary) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ database.SampleWriter = (*MockSampleRepository)(nil)
	_ database.ReportWriter = (*MockReportRepository)(nil)
)
