package db

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMigrations(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("db:migrations_test - failed to write test file %s: %v", name, err)
		}
	}
}

func TestLoadMigrationFiles_SortOrder(t *testing.T) {
	dir := t.TempDir()
	writeMigrations(t, dir, map[string]string{
		"0003_third.sql":  "THIRD",
		"0001_first.sql":  "FIRST",
		"0002_second.sql": "SECOND",
	})

	result, err := LoadMigrationFiles(dir)
	if err != nil {
		t.Fatalf("db:migrations_test - unexpected error: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("db:migrations_test - expected 3, got %d", len(result))
	}

	want := []Migration{
		{Name: "0001_first", SQL: "FIRST"},
		{Name: "0002_second", SQL: "SECOND"},
		{Name: "0003_third", SQL: "THIRD"},
	}
	for i, w := range want {
		if result[i] != w {
			t.Errorf("db:migrations_test - result[%d] = %+v, want %+v", i, result[i], w)
		}
	}
}

func TestLoadMigrationFiles_SkipsNonSQL(t *testing.T) {
	dir := t.TempDir()
	writeMigrations(t, dir, map[string]string{
		"0001_create.sql": "CREATE TABLE t1;",
		"README.md":       "# Migrations",
		"config.json":     "{}",
	})
	// directory with a .sql suffix
	if err := os.Mkdir(filepath.Join(dir, "subdir.sql"), 0755); err != nil {
		t.Fatalf("db:migrations_test - failed to create subdir: %v", err)
	}

	result, err := LoadMigrationFiles(dir)
	if err != nil {
		t.Fatalf("db:migrations_test - unexpected error: %v", err)
	}
	if len(result) != 1 || result[0].Name != "0001_create" {
		t.Errorf("db:migrations_test - result = %+v", result)
	}
}

func TestLoadMigrationFiles_EmptyDir(t *testing.T) {
	result, err := LoadMigrationFiles(t.TempDir())
	if err != nil {
		t.Fatalf("db:migrations_test - unexpected error: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("db:migrations_test - expected empty result, got %d items", len(result))
	}
}

func TestLoadMigrationFiles_NonExistentDir(t *testing.T) {
	if _, err := LoadMigrationFiles(filepath.Join(t.TempDir(), "nonexistent")); err == nil {
		t.Error("db:migrations_test - expected error for non-existent directory")
	}
}

func TestLoadMigrationFiles_RepositoryMigrations(t *testing.T) {
	result, err := LoadMigrationFiles(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("db:migrations_test - unexpected error: %v", err)
	}
	if len(result) == 0 || result[0].Name != "001_journal" {
		t.Errorf("db:migrations_test - result = %+v", result)
	}
}

func TestPending(t *testing.T) {
	all := []Migration{{Name: "001"}, {Name: "002"}, {Name: "003"}}

	tests := []struct {
		name    string
		applied map[string]bool
		want    []string
	}{
		{"none applied", nil, []string{"001", "002", "003"}},
		{"first applied", map[string]bool{"001": true}, []string{"002", "003"}},
		{"gap", map[string]bool{"002": true}, []string{"001", "003"}},
		{"all applied", map[string]bool{"001": true, "002": true, "003": true}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pending(all, tt.applied)
			if len(got) != len(tt.want) {
				t.Fatalf("db:migrations_test - pending = %+v, want %v", got, tt.want)
			}
			for i, name := range tt.want {
				if got[i].Name != name {
					t.Errorf("db:migrations_test - pending[%d] = %s, want %s", i, got[i].Name, name)
				}
			}
		})
	}
}
