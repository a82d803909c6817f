package file

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestPlugin(t *testing.T) *Plugin {
	t.Helper()
	return New(Config{})
}

func TestWriteString_AppendAndOverwrite(t *testing.T) {
	p := newTestPlugin(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.txt")

	if _, err := p.WriteString(ctx, path, "a", "", false); err != nil {
		t.Fatalf("file:files_test - first write: %v", err)
	}
	if _, err := p.WriteString(ctx, path, "b", "", true); err != nil {
		t.Fatalf("file:files_test - append: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("file:files_test - read: %v", err)
	}
	if string(got) != "ab" {
		t.Errorf("file:files_test - after append = %q, want %q", got, "ab")
	}

	if _, err := p.WriteString(ctx, path, "b", "", false); err != nil {
		t.Fatalf("file:files_test - overwrite: %v", err)
	}
	got, _ = os.ReadFile(path)
	if string(got) != "b" {
		t.Errorf("file:files_test - after overwrite = %q, want %q", got, "b")
	}
}

func TestWrite_CreatesParentDirectories(t *testing.T) {
	p := newTestPlugin(t)
	path := filepath.Join(t.TempDir(), "x", "y", "z.bin")

	n, err := p.WriteBytes(context.Background(), path, []byte{0, 1, 2}, false)
	if err != nil {
		t.Fatalf("file:files_test - write: %v", err)
	}
	if n != 3 {
		t.Errorf("file:files_test - wrote %d bytes, want 3", n)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file:files_test - file missing: %v", err)
	}
}

func TestCharsetRoundTrip(t *testing.T) {
	p := newTestPlugin(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "latin1.txt")

	if _, err := p.WriteString(ctx, path, "café", "ISO-8859-1", false); err != nil {
		t.Fatalf("file:files_test - write: %v", err)
	}
	raw, _ := os.ReadFile(path)
	if !bytes.Equal(raw, []byte{'c', 'a', 'f', 0xE9}) {
		t.Errorf("file:files_test - encoded bytes = %v", raw)
	}

	s, err := p.ReadString(ctx, path, "ISO-8859-1")
	if err != nil {
		t.Fatalf("file:files_test - read: %v", err)
	}
	if s != "café" {
		t.Errorf("file:files_test - decoded = %q, want %q", s, "café")
	}
}

func TestDefaultCharsetIsUTF8(t *testing.T) {
	p := newTestPlugin(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "utf8.txt")

	if _, err := p.WriteString(ctx, path, "naïve", "", false); err != nil {
		t.Fatalf("file:files_test - write: %v", err)
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != "naïve" {
		t.Errorf("file:files_test - bytes = %q", raw)
	}
}

func TestUnknownCharset(t *testing.T) {
	p := newTestPlugin(t)
	path := filepath.Join(t.TempDir(), "x.txt")

	_, err := p.WriteString(context.Background(), path, "x", "no-such-charset", false)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("file:files_test - err = %v, want ErrInvalidArgument", err)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		t.Error("file:files_test - file should not be created for a bad charset")
	}
}

func TestReadBytes_Missing(t *testing.T) {
	p := newTestPlugin(t)
	dir := filepath.Join(t.TempDir(), "sub")
	path := filepath.Join(dir, "missing.txt")

	_, err := p.ReadBytes(context.Background(), path)
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("file:files_test - err = %v, want ErrFileNotFound", err)
	}
	if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
		t.Errorf("file:files_test - parent directory should exist after a read: %v", statErr)
	}
}

func TestReadBytes_EmptyPath(t *testing.T) {
	p := newTestPlugin(t)
	if _, err := p.ReadBytes(context.Background(), ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("file:files_test - err = %v, want ErrInvalidArgument", err)
	}
}

func TestWriteFrom_Cancelled(t *testing.T) {
	p := newTestPlugin(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "c.txt")
	_, err := p.WriteFrom(ctx, path, strings.NewReader("data"), false)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("file:files_test - err = %v, want context.Canceled", err)
	}
}
