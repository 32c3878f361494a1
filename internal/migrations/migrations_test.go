package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrations(t *testing.T) {
	for _, dialect := range []string{DialectMySQL, DialectClickHouse} {
		files, err := fs.Glob(FS, dialect+"/*.sql")
		if err != nil {
			t.Fatalf("Glob failed: %v", err)
		}
		if len(files) == 0 {
			t.Fatalf("Expected %s migrations, got none", dialect)
		}
		for _, name := range files {
			body, _ := fs.ReadFile(FS, name)
			if !strings.Contains(string(body), "-- +goose Up") || !strings.Contains(string(body), "-- +goose Down") {
				t.Errorf("%s is missing goose annotations", name)
			}
		}
	}
}

func TestUpRejectsUnknownDialect(t *testing.T) {
	if err := Up(nil, "postgres"); err == nil {
		t.Error("Expected an error for an unsupported dialect")
	}
}
