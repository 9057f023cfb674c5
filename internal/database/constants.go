package database

// HNSW index parameters for 256-dim re-id embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 100

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// before exact re-ranking.
	HNSWSearchMultiplier = 3

	// HNSWSeed seeds level assignment so a rebuilt graph has the same layout.
	HNSWSeed = 1501

	// ExactSearchThreshold is the gallery size up to which Search scans every
	// sample instead of the HNSW graph.
	ExactSearchThreshold = 4096

	// MaxSearchResults caps k of a single gallery query.
	MaxSearchResults = 100
)
