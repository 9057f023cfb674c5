package database

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math/rand"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/reid-eval/internal/ranking"
)

// GalleryMetadata stores metadata for validating cached gallery indexes.
type GalleryMetadata struct {
	Model       string    `json:"model"`
	SampleCount int       `json:"sample_count"`
	MaxSampleID int64     `json:"max_sample_id"`
	LastWrite   time.Time `json:"last_write"`
	BuildTime   time.Time `json:"build_time"`
	Version     int       `json:"version"`
}

const galleryMetadataVersion = 2

// Matches reports whether the metadata describes a gallery of model built from
// samples with exactly these stats.
func (m GalleryMetadata) Matches(model string, stats SampleStats) bool {
	return m.Version == galleryMetadataVersion &&
		m.Model == model &&
		m.SampleCount == stats.Count &&
		m.MaxSampleID == stats.MaxID &&
		m.LastWrite.Equal(stats.LastWrite)
}

// ErrGalleryEmpty is returned by Search when the index holds no samples.
var ErrGalleryEmpty = errors.New("gallery index is empty")

// GalleryMatch is one gallery sample with its exact Euclidean distance to the query.
type GalleryMatch struct {
	Sample   *StoredSample
	Distance float64
}

// GalleryIndex wraps an HNSW graph over stored samples for approximate nearest
// neighbor search. Candidates are re-ranked by exact distance.
type GalleryIndex struct {
	graph      *hnsw.Graph[int64]
	idToSample map[int64]*StoredSample
	dim        int
	mu         sync.RWMutex
}

// NewGalleryIndex creates a new empty gallery index.
func NewGalleryIndex() *GalleryIndex {
	return &GalleryIndex{
		idToSample: make(map[int64]*StoredSample),
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	g.Rng = rand.New(rand.NewSource(HNSWSeed)) //nolint:gosec // level assignment only
	return g
}

// Build replaces the index contents with samples.
func (g *GalleryIndex) Build(samples []StoredSample) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.graph = nil
	g.dim = 0
	g.idToSample = make(map[int64]*StoredSample, len(samples))

	for i := range samples {
		if err := g.addLocked(&samples[i]); err != nil {
			return err
		}
	}
	return nil
}

// Add adds a single sample to the index.
func (g *GalleryIndex) Add(sample *StoredSample) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addLocked(sample)
}

func (g *GalleryIndex) addLocked(sample *StoredSample) error {
	if len(sample.Embedding) == 0 {
		return fmt.Errorf("sample %d (%s) has no embedding", sample.ID, sample.Path)
	}
	if g.dim != 0 && len(sample.Embedding) != g.dim {
		return fmt.Errorf("sample %d has dimension %d, index has %d", sample.ID, len(sample.Embedding), g.dim)
	}
	if _, ok := g.idToSample[sample.ID]; ok {
		return fmt.Errorf("sample %d already indexed", sample.ID)
	}

	if g.graph == nil {
		g.graph = newGraph()
	}
	g.graph.Add(hnsw.MakeNode(sample.ID, sample.Embedding))
	g.idToSample[sample.ID] = sample
	g.dim = len(sample.Embedding)
	return nil
}

// Search returns up to k gallery samples nearest to query, ordered by exact distance.
// Galleries of up to ExactSearchThreshold samples, or queries whose candidate
// pool would cover the whole gallery, are scanned exhaustively and the result is
// the exact top k. Larger galleries take HNSW candidates, so recall may fall
// short of exact.
func (g *GalleryIndex) Search(query []float32, k int) ([]GalleryMatch, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.graph == nil || len(g.idToSample) == 0 {
		return nil, ErrGalleryEmpty
	}
	if len(query) != g.dim {
		return nil, fmt.Errorf("query has dimension %d, index has %d", len(query), g.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	var candidates []*StoredSample
	if n := len(g.idToSample); n <= ExactSearchThreshold || k*HNSWSearchMultiplier >= n {
		candidates = make([]*StoredSample, 0, n)
		for _, id := range slices.Sorted(maps.Keys(g.idToSample)) {
			candidates = append(candidates, g.idToSample[id])
		}
	} else {
		neighbors := g.graph.Search(query, k*HNSWSearchMultiplier)
		candidates = make([]*StoredSample, 0, len(neighbors))
		for _, nb := range neighbors {
			if s, ok := g.idToSample[nb.Key]; ok {
				candidates = append(candidates, s)
			}
		}
	}

	pool := make([][]float32, len(candidates))
	labels := make([]int, len(candidates))
	for i, s := range candidates {
		pool[i] = s.Embedding
		labels[i] = s.Identity
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ranked, err := ranking.Rank(0, query, pool, labels)
	if err != nil {
		return nil, fmt.Errorf("re-ranking candidates: %w", err)
	}

	matches := make([]GalleryMatch, 0, min(k, len(candidates)))
	for i, idx := range ranked.Indices {
		if i == k {
			break
		}
		matches = append(matches, GalleryMatch{Sample: candidates[idx], Distance: ranked.Distances[i]})
	}
	return matches, nil
}

// GetSample returns the sample for a given ID.
func (g *GalleryIndex) GetSample(id int64) *StoredSample {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.idToSample[id]
}

// Count returns the number of indexed samples.
func (g *GalleryIndex) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.idToSample)
}

// Metadata describes the current index contents for model.
func (g *GalleryIndex) Metadata(model string) GalleryMetadata {
	g.mu.RLock()
	defer g.mu.RUnlock()

	meta := GalleryMetadata{Model: model, SampleCount: len(g.idToSample), BuildTime: time.Now().UTC()}
	for id, s := range g.idToSample {
		meta.MaxSampleID = max(meta.MaxSampleID, id)
		if s.CreatedAt.After(meta.LastWrite) {
			meta.LastWrite = s.CreatedAt
		}
	}
	return meta
}

// Save persists the graph, its metadata (.meta) and its samples (.samples) to disk.
func (g *GalleryIndex) Save(path string, metadata GalleryMetadata) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.graph == nil {
		return RemoveGallery(path)
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create gallery index file: %w", err)
	}
	if err := g.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close gallery index file: %w", err)
	}

	metadata.Version = galleryMetadataVersion
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	samples := make([]StoredSample, 0, len(g.idToSample))
	for _, s := range g.idToSample {
		samples = append(samples, *s)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(samples); err != nil {
		return fmt.Errorf("failed to encode samples: %w", err)
	}
	if err := os.WriteFile(path+".samples", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write samples file: %w", err)
	}
	return nil
}

// RemoveGallery deletes a saved gallery index and its sidecar files. Missing
// files are not an error.
func RemoveGallery(path string) error {
	if path == "" {
		return nil
	}
	for _, p := range []string{path, path + ".meta", path + ".samples"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove gallery file: %w", err)
		}
	}
	return nil
}

// LoadGalleryMetadata loads metadata from a separate .meta file.
func LoadGalleryMetadata(path string) (GalleryMetadata, error) {
	var metadata GalleryMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}

// LoadGallery loads a gallery index saved with Save.
func LoadGallery(path string) (*GalleryIndex, error) {
	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return nil, fmt.Errorf("failed to load HNSW index: %w", err)
	}

	data, err := os.ReadFile(path + ".samples") //nolint:gosec // path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("failed to read samples file: %w", err)
	}
	var samples []StoredSample
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&samples); err != nil {
		return nil, fmt.Errorf("failed to decode samples: %w", err)
	}

	g := NewGalleryIndex()
	g.graph = saved.Graph
	g.graph.Distance = hnsw.EuclideanDistance
	for i := range samples {
		g.idToSample[samples[i].ID] = &samples[i]
		g.dim = len(samples[i].Embedding)
	}
	return g, nil
}

// BuildGallery returns the gallery of one model. A saved index at path is reused
// while its metadata matches the count, highest ID and latest write time of the
// stored samples, otherwise the index is rebuilt from reader and saved back to path.
func BuildGallery(ctx context.Context, reader SampleReader, model, path string) (*GalleryIndex, error) {
	stats, err := reader.Stats(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("reading sample stats: %w", err)
	}

	if path != "" {
		if meta, err := LoadGalleryMetadata(path); err == nil && meta.Matches(model, stats) {
			g, err := LoadGallery(path)
			if err == nil {
				fmt.Printf("Gallery index: loaded %d samples from %s\n", g.Count(), path)
				return g, nil
			}
			fmt.Printf("Gallery index: cached index unusable, rebuilding: %v\n", err)
		}
	}

	samples, err := reader.ListSamples(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("listing samples: %w", err)
	}
	g := NewGalleryIndex()
	if err := g.Build(samples); err != nil {
		return nil, err
	}

	if path != "" {
		if err := g.Save(path, g.Metadata(model)); err != nil {
			return nil, err
		}
		fmt.Printf("Gallery index: wrote %d samples to %s\n", g.Count(), path)
	}
	return g, nil
}
