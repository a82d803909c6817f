package db

import (
	"bytes"
	"strings"
	"testing"
)

const poolMigrationTestPrefix = "db:pool_migration_test"

func TestMigrationDown_NoOp(t *testing.T) {
	var buf bytes.Buffer
	if err := MigrationDown(&buf); err != nil {
		t.Errorf("%s - MigrationDown returned %v, want nil", poolMigrationTestPrefix, err)
	}
	if !strings.Contains(buf.String(), "forward-only") {
		t.Errorf("%s - output = %q", poolMigrationTestPrefix, buf.String())
	}
}

func TestWriteStatus(t *testing.T) {
	var buf bytes.Buffer
	files := []Migration{{Name: "001_journal"}, {Name: "002_more"}}
	writeStatus(&buf, files, map[string]bool{"001_journal": true})

	out := buf.String()
	for _, want := range []string{"applied  001_journal", "pending  002_more", "1 pending"} {
		if !strings.Contains(out, want) {
			t.Errorf("%s - missing %q in %q", poolMigrationTestPrefix, want, out)
		}
	}

	buf.Reset()
	writeStatus(&buf, files, map[string]bool{"001_journal": true, "002_more": true})
	if strings.Contains(buf.String(), "pending") {
		t.Errorf("%s - nothing should be pending: %q", poolMigrationTestPrefix, buf.String())
	}
}
