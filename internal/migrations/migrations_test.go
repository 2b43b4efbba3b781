package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestDriverURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@db:5432/scans?sslmode=disable", "pgx5://u:p@db:5432/scans?sslmode=disable"},
		{"postgresql://db/scans", "pgx5://db/scans"},
		{"pgx5://db/scans", "pgx5://db/scans"},
	}
	for _, tt := range tests {
		if got := DriverURL(tt.in); got != tt.want {
			t.Errorf("DriverURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "sql")
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}

	var up, down int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			down++
		}
	}
	if up == 0 || up != down {
		t.Errorf("found %d up and %d down migrations, want matching non-zero counts", up, down)
	}

	data, err := fs.ReadFile(migrationsFS, "sql/000001_create_barcode_cache.up.sql")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "CREATE TABLE IF NOT EXISTS barcode_cache") {
		t.Error("initial migration does not create barcode_cache")
	}
}
