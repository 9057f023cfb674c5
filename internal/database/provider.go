package database

import (
	"context"
	"errors"
)

var errNotInitialized = errors.New("PostgreSQL backend not initialized: DATABASE_URL is required")

var (
	postgresSampleWriter func() SampleWriter
	postgresReportWriter func() ReportWriter
	postgresInitialized  bool
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(samples func() SampleWriter, reports func() ReportWriter) {
	postgresSampleWriter = samples
	postgresReportWriter = reports
	postgresInitialized = samples != nil && reports != nil
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// GetSampleReader returns a SampleReader from the PostgreSQL backend
func GetSampleReader(ctx context.Context) (SampleReader, error) {
	return GetSampleWriter(ctx)
}

// GetSampleWriter returns a SampleWriter from the PostgreSQL backend
func GetSampleWriter(_ context.Context) (SampleWriter, error) {
	if !postgresInitialized {
		return nil, errNotInitialized
	}
	return postgresSampleWriter(), nil
}

// GetReportReader returns a ReportReader from the PostgreSQL backend
func GetReportReader(ctx context.Context) (ReportReader, error) {
	return GetReportWriter(ctx)
}

// GetReportWriter returns a ReportWriter from the PostgreSQL backend
func GetReportWriter(_ context.Context) (ReportWriter, error) {
	if !postgresInitialized {
		return nil, errNotInitialized
	}
	return postgresReportWriter(), nil
}
