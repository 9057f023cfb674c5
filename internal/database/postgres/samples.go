package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/reid-eval/internal/database"
)

const sampleColumns = `id, path, identity, camera, model, embedding, dim, created_at`

// SampleRepository provides PostgreSQL-backed storage of sample embeddings.
type SampleRepository struct {
	pool *Pool
}

// NewSampleRepository creates a new PostgreSQL sample repository
func NewSampleRepository(pool *Pool) *SampleRepository {
	return &SampleRepository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSample(row rowScanner) (database.StoredSample, error) {
	var s database.StoredSample
	var vec pgvector.Vector
	err := row.Scan(&s.ID, &s.Path, &s.Identity, &s.Camera, &s.Model, &vec, &s.Dim, &s.CreatedAt)
	if err != nil {
		return s, err //nolint:wrapcheck // callers wrap
	}
	s.Embedding = vec.Slice()
	return s, nil
}

func scanSamples(rows *sql.Rows) ([]database.StoredSample, error) {
	var samples []database.StoredSample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

// GetSample retrieves a sample by ID, returns nil if not found
func (r *SampleRepository) GetSample(ctx context.Context, id int64) (*database.StoredSample, error) {
	s, err := scanSample(r.pool.QueryRow(ctx, `SELECT `+sampleColumns+` FROM samples WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query sample: %w", err)
	}
	return &s, nil
}

// GetSampleByPath retrieves a sample by model and image path, returns nil if not found
func (r *SampleRepository) GetSampleByPath(ctx context.Context, model, path string) (*database.StoredSample, error) {
	query := `SELECT ` + sampleColumns + ` FROM samples WHERE model = $1 AND path = $2`
	s, err := scanSample(r.pool.QueryRow(ctx, query, model, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query sample by path: %w", err)
	}
	return &s, nil
}

// Count returns the number of samples stored for a model
func (r *SampleRepository) Count(ctx context.Context, model string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM samples WHERE model = $1", model).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return count, nil
}

// Stats returns the count, highest ID and latest write time of a model's samples
func (r *SampleRepository) Stats(ctx context.Context, model string) (database.SampleStats, error) {
	var stats database.SampleStats
	var lastWrite sql.NullTime
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*), COALESCE(MAX(id), 0), MAX(created_at) FROM samples WHERE model = $1", model,
	).Scan(&stats.Count, &stats.MaxID, &lastWrite)
	if err != nil {
		return stats, fmt.Errorf("sample stats: %w", err)
	}
	if lastWrite.Valid {
		stats.LastWrite = lastWrite.Time
	}
	return stats, nil
}

// ListSamples returns all samples of a model ordered by path
func (r *SampleRepository) ListSamples(ctx context.Context, model string) ([]database.StoredSample, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sampleColumns+` FROM samples WHERE model = $1 ORDER BY path`, model)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()
	return scanSamples(rows)
}

// FindNearest finds the samples closest to embedding using the pgvector L2 operator.
// Distances are Euclidean.
func (r *SampleRepository) FindNearest(ctx context.Context, model string, embedding []float32, limit int) ([]database.StoredSample, []float64, error) {
	query := `
		SELECT ` + sampleColumns + `, embedding <-> $2::vector AS distance
		FROM samples
		WHERE model = $1
		ORDER BY embedding <-> $2::vector
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, model, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query nearest samples: %w", err)
	}
	defer rows.Close()

	var samples []database.StoredSample
	var distances []float64
	for rows.Next() {
		var s database.StoredSample
		var vec pgvector.Vector
		var dist float64
		if err := rows.Scan(&s.ID, &s.Path, &s.Identity, &s.Camera, &s.Model, &vec, &s.Dim, &s.CreatedAt, &dist); err != nil {
			return nil, nil, fmt.Errorf("scan nearest sample: %w", err)
		}
		s.Embedding = vec.Slice()
		samples = append(samples, s)
		distances = append(distances, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate nearest samples: %w", err)
	}
	return samples, distances, nil
}

// SaveSamples upserts samples keyed by (model, path) in one transaction
func (r *SampleRepository) SaveSamples(ctx context.Context, samples []database.StoredSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (path, identity, camera, model, embedding, dim)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (model, path) DO UPDATE SET
			identity = EXCLUDED.identity,
			camera = EXCLUDED.camera,
			embedding = EXCLUDED.embedding,
			dim = EXCLUDED.dim,
			created_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		if len(s.Embedding) == 0 {
			return fmt.Errorf("sample %s has no embedding", s.Path)
		}
		_, err := stmt.ExecContext(ctx, s.Path, s.Identity, s.Camera, s.Model, pgvector.NewVector(s.Embedding), len(s.Embedding))
		if err != nil {
			return fmt.Errorf("insert sample %s: %w", s.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit samples: %w", err)
	}
	return nil
}

// DeleteModel removes all samples of a model
func (r *SampleRepository) DeleteModel(ctx context.Context, model string) (int64, error) {
	result, err := r.pool.Exec(ctx, "DELETE FROM samples WHERE model = $1", model)
	if err != nil {
		return 0, fmt.Errorf("delete samples: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
