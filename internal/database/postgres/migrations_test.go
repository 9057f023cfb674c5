package postgres

import (
	"slices"
	"testing"
	"testing/fstest"
)

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_reports_index.sql": {Data: []byte("CREATE INDEX x ON reports (model);")},
		"m/001_initial.sql":       {Data: []byte("CREATE TABLE samples ();")},
		"m/README.md":             {Data: []byte("notes")},
		"m/003_later.sql":         {Data: []byte("SELECT 1;")},
	}

	tests := []struct {
		name    string
		applied map[string]bool
		want    []string
	}{
		{"fresh database", nil, []string{"001_initial.sql", "002_reports_index.sql", "003_later.sql"}},
		{"partially applied", map[string]bool{"001_initial.sql": true}, []string{"002_reports_index.sql", "003_later.sql"}},
		{"up to date", map[string]bool{"001_initial.sql": true, "002_reports_index.sql": true, "003_later.sql": true}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := pendingMigrations(fsys, "m", tc.applied)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(got, tc.want) {
				t.Errorf("pendingMigrations() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPendingMigrations_Embedded(t *testing.T) {
	got, err := pendingMigrations(migrationsFS, "migrations", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 || got[0] != "001_initial.sql" {
		t.Errorf("expected 001_initial.sql first, got %v", got)
	}
}

func TestPendingMigrations_MissingDir(t *testing.T) {
	if _, err := pendingMigrations(fstest.MapFS{}, "nope", nil); err == nil {
		t.Error("expected error for missing directory")
	}
}
