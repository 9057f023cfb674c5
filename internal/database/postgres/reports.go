package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kozaktomas/reid-eval/internal/database"
	"github.com/kozaktomas/reid-eval/internal/metrics"
)

// ReportRepository stores evaluation reports as JSONB.
type ReportRepository struct {
	pool *Pool
}

// NewReportRepository creates a new PostgreSQL report repository
func NewReportRepository(pool *Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// SaveReport stores a report. Saving an ID twice is an error.
func (r *ReportRepository) SaveReport(ctx context.Context, report *metrics.Report) error {
	scalars, err := json.Marshal(report.Scalars)
	if err != nil {
		return fmt.Errorf("marshal scalars: %w", err)
	}
	full, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO reports (id, model, top_k, queries, pairs, scalars, report, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, report.ID, report.Model, report.TopK, report.Queries, report.Pairs, string(scalars), string(full), report.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetReport retrieves a full report by ID, returns nil if not found
func (r *ReportRepository) GetReport(ctx context.Context, id string) (*metrics.Report, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, "SELECT report FROM reports WHERE id::text = $1", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}

	var report metrics.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}

// ListReports returns the newest reports first
func (r *ReportRepository) ListReports(ctx context.Context, limit int) ([]database.ReportSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, model, top_k, queries, pairs, scalars, created_at
		FROM reports
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var summaries []database.ReportSummary
	for rows.Next() {
		var s database.ReportSummary
		var scalars []byte
		if err := rows.Scan(&s.ID, &s.Model, &s.TopK, &s.Queries, &s.Pairs, &scalars, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if err := json.Unmarshal(scalars, &s.Scalars); err != nil {
			return nil, fmt.Errorf("unmarshal scalars: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return summaries, nil
}
