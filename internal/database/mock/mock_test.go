package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/reid-eval/internal/database"
	"github.com/kozaktomas/reid-eval/internal/metrics"
)

func TestMockSampleRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMockSampleRepository()

	err := repo.SaveSamples(ctx, []database.StoredSample{
		{Path: "b.jpg", Identity: 2, Model: "m", Embedding: []float32{3, 4}},
		{Path: "a.jpg", Identity: 1, Model: "m", Embedding: []float32{0, 0}},
		{Path: "a.jpg", Identity: 1, Model: "other", Embedding: []float32{1, 1}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if n, _ := repo.Count(ctx, "m"); n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}

	list, _ := repo.ListSamples(ctx, "m")
	if len(list) != 2 || list[0].Path != "a.jpg" {
		t.Errorf("ListSamples() = %+v, want sorted by path", list)
	}

	// Upsert keeps the ID.
	id := list[0].ID
	repo.AddSample(database.StoredSample{Path: "a.jpg", Identity: 9, Model: "m", Embedding: []float32{0, 1}})
	got, _ := repo.GetSample(ctx, id)
	if got == nil || got.Identity != 9 {
		t.Errorf("GetSample() after upsert = %+v", got)
	}

	samples, distances, err := repo.FindNearest(ctx, "m", []float32{3, 4}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2 || samples[0].Path != "b.jpg" || distances[0] > 1e-5 {
		t.Errorf("FindNearest() = %+v %v", samples, distances)
	}

	if n, _ := repo.DeleteModel(ctx, "other"); n != 1 {
		t.Errorf("DeleteModel() = %d, want 1", n)
	}

	repo.CountError = errors.New("boom")
	if _, err := repo.Count(ctx, "m"); err == nil {
		t.Error("expected injected error")
	}
	if _, err := repo.Stats(ctx, "m"); err == nil {
		t.Error("expected injected Stats error")
	}
}

func TestMockSampleRepository_Stats(t *testing.T) {
	ctx := context.Background()
	repo := NewMockSampleRepository()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	repo.AddSample(database.StoredSample{Path: "a.jpg", Model: "m", Embedding: []float32{0}, CreatedAt: t0})
	repo.AddSample(database.StoredSample{Path: "b.jpg", Model: "m", Embedding: []float32{1}, CreatedAt: t0})
	before, err := repo.Stats(ctx, "m")
	if err != nil {
		t.Fatal(err)
	}

	// Re-embedding an existing path keeps count and IDs but moves the write time.
	repo.AddSample(database.StoredSample{Path: "a.jpg", Model: "m", Embedding: []float32{5}, CreatedAt: t0.Add(time.Minute)})
	after, err := repo.Stats(ctx, "m")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"count before", before.Count, 2},
		{"count after", after.Count, 2},
		{"max id unchanged", after.MaxID, before.MaxID},
		{"last write before", before.LastWrite, t0},
		{"last write after", after.LastWrite, t0.Add(time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	empty, err := repo.Stats(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if empty != (database.SampleStats{}) {
		t.Errorf("Stats(missing) = %+v, want zero", empty)
	}
}

func TestMockReportRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMockReportRepository()

	first := metrics.NewReport("a", 5)
	first.CreatedAt = time.Now().Add(-time.Minute)
	second := metrics.NewReport("b", 5)

	for _, r := range []*metrics.Report{first, second} {
		if err := repo.SaveReport(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.SaveReport(ctx, first); err == nil {
		t.Error("expected error on duplicate report")
	}

	list, err := repo.ListReports(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != second.ID {
		t.Errorf("ListReports(1) = %+v, want newest", list)
	}

	got, _ := repo.GetReport(ctx, first.ID)
	if got != first {
		t.Errorf("GetReport() = %v, want first report", got)
	}
}
