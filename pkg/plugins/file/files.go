package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const filesLogPrefix = "file:files"

// ensureParent creates the parent directory of path, including intermediate directories.
func ensureParent(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidArgument)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create directory %s: %v", ErrIOFailure, dir, err)
	}
	return nil
}

// WriteFrom copies r into path, appending or truncating. It returns the bytes written.
// Concurrent writers to the same path are not synchronised; the last writer wins.
func (p *Plugin) WriteFrom(ctx context.Context, path string, r io.Reader, appendMode bool) (int64, error) {
	if err := ensureParent(path); err != nil {
		return 0, err
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %v", ErrIOFailure, path, err)
	}

	n, copyErr := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	closeErr := f.Close()
	if copyErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return n, ctxErr
		}
		return n, fmt.Errorf("%w: write %s: %v", ErrIOFailure, path, copyErr)
	}
	if closeErr != nil {
		return n, fmt.Errorf("%w: close %s: %v", ErrIOFailure, path, closeErr)
	}

	slog.Debug(fmt.Sprintf("%s - wrote %d bytes to %s append=%t", filesLogPrefix, n, path, appendMode))
	return n, nil
}

// WriteBytes writes b to path.
func (p *Plugin) WriteBytes(ctx context.Context, path string, b []byte, appendMode bool) (int64, error) {
	return p.WriteFrom(ctx, path, bytes.NewReader(b), appendMode)
}

// WriteString encodes content with charset (the configured default when empty) and writes it.
func (p *Plugin) WriteString(ctx context.Context, path, content, charset string, appendMode bool) (int64, error) {
	if charset == "" {
		charset = p.cfg.DefaultCharset
	}
	b, err := encodeString(content, charset)
	if err != nil {
		return 0, err
	}
	return p.WriteBytes(ctx, path, b, appendMode)
}

// ReadBytes reads the whole file at path.
func (p *Plugin) ReadBytes(_ context.Context, path string) ([]byte, error) {
	if err := ensureParent(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrIOFailure, path, err)
	}
	return data, nil
}

// ReadString reads the file at path and decodes it with charset (the configured default when empty).
func (p *Plugin) ReadString(ctx context.Context, path, charset string) (string, error) {
	data, err := p.ReadBytes(ctx, path)
	if err != nil {
		return "", err
	}
	if charset == "" {
		charset = p.cfg.DefaultCharset
	}
	return decodeBytes(data, charset)
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}
