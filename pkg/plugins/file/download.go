package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/morezero/script-runtime/pkg/dispatcher"
	"github.com/morezero/script-runtime/pkg/events"
	"github.com/morezero/script-runtime/pkg/value"
)

const downloadLogPrefix = "file:download"

// DelayRange bounds the randomized pause taken before each fetch of a paced download.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// DownloadRequest describes one download call.
type DownloadRequest struct {
	Dir   string
	URLs  []string
	Proxy string
	// Delay, when set, paces the batch.
	Delay *DelayRange
	// Overwrite replaces files that already exist at the destination; otherwise they are skipped.
	Overwrite bool
}

// DownloadTask is one URL fetch inside a download call. It lives for a single loop iteration.
type DownloadTask struct {
	TargetDir string
	URL       string
	Proxy     string
	Overwrite bool
	Index     int
}

// DownloadResult records the outcome for one URL.
type DownloadResult struct {
	URL    string `json:"url"`
	Path   string `json:"path,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Bytes  int64  `json:"bytes"`
	err    error
}

// Err returns the failure cause, wrapping ErrNetworkFailure or ErrIOFailure.
func (r DownloadResult) Err() error {
	return r.err
}

// DownloadReport lists the per-URL outcomes in request order.
type DownloadReport struct {
	Results []DownloadResult `json:"results"`
}

// Count returns the number of results with the given status.
func (r *DownloadReport) Count(status string) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Value renders the report for scripts: a list of [url, status, path-or-error] triples.
func (r *DownloadReport) Value() value.Value {
	items := make([]value.Value, len(r.Results))
	for i, res := range r.Results {
		detail := res.Path
		if res.Status == events.StatusFailed {
			detail = res.Error
		}
		items[i] = value.Strings(res.URL, res.Status, detail)
	}
	return value.List(items...)
}

// Download fetches every URL in order into req.Dir. Per-URL failures are recorded in the
// report and do not stop the batch. The call fails only on invalid arguments, before any
// fetch, or on cancellation, after which nothing more is fetched or written.
func (p *Plugin) Download(ctx context.Context, req DownloadRequest) (*DownloadReport, error) {
	if err := p.validateDownload(req); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create directory %s: %v", ErrIOFailure, req.Dir, err)
	}

	client := p.clientFor(req.Proxy)
	defer client.CloseIdleConnections()

	report := &DownloadReport{Results: make([]DownloadResult, 0, len(req.URLs))}
	for i, raw := range req.URLs {
		task := DownloadTask{
			TargetDir: req.Dir,
			URL:       strings.TrimSpace(raw),
			Proxy:     req.Proxy,
			Overwrite: req.Overwrite,
			Index:     i,
		}

		if req.Delay != nil {
			if err := p.pace(ctx, *req.Delay); err != nil {
				return report, p.cancelled(i, len(req.URLs), err)
			}
		}
		if err := ctx.Err(); err != nil {
			return report, p.cancelled(i, len(req.URLs), err)
		}

		res := p.fetch(ctx, client, task)
		if err := ctx.Err(); err != nil && res.Status != events.StatusWritten {
			return report, p.cancelled(i, len(req.URLs), err)
		}
		report.Results = append(report.Results, res)
		p.publish(ctx, task, res)
	}

	slog.Info(fmt.Sprintf("%s - dir=%s urls=%d written=%d skipped=%d failed=%d",
		downloadLogPrefix, req.Dir, len(req.URLs),
		report.Count(events.StatusWritten), report.Count(events.StatusSkipped), report.Count(events.StatusFailed)))
	return report, nil
}

func (p *Plugin) cancelled(done, total int, err error) error {
	slog.Info(fmt.Sprintf("%s - cancelled after %d of %d urls", downloadLogPrefix, done, total))
	return fmt.Errorf("%s - download cancelled after %d of %d urls: %w", downloadLogPrefix, done, total, err)
}

func (p *Plugin) validateDownload(req DownloadRequest) error {
	if strings.TrimSpace(req.Dir) == "" {
		return fmt.Errorf("%w: empty target directory", ErrInvalidArgument)
	}
	for i, raw := range req.URLs {
		if err := p.validateURL(strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("%w: url %d: %v", ErrInvalidArgument, i, err)
		}
	}
	if req.Proxy != "" {
		if err := validateProxy(req.Proxy); err != nil {
			return fmt.Errorf("%w: proxy %q: %v", ErrInvalidArgument, req.Proxy, err)
		}
	}
	if d := req.Delay; d != nil {
		if d.Min < 0 || d.Max < d.Min {
			return fmt.Errorf("%w: delay range [%d, %d] ms is malformed", ErrInvalidArgument, d.Min.Milliseconds(), d.Max.Milliseconds())
		}
	}
	return nil
}

func (p *Plugin) validateURL(raw string) error {
	if raw == "" {
		return errors.New("url required")
	}
	if len(raw) > p.cfg.MaxURLLength {
		return errors.New("url exceeds max length")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return errors.New("invalid url")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	if parsed.Host == "" {
		return errors.New("url has no host")
	}
	return nil
}

func validateProxy(proxy string) error {
	host, port, err := net.SplitHostPort(proxy)
	if err != nil {
		return err
	}
	if host == "" {
		return errors.New("missing host")
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}

// pace blocks for a uniformly random duration in [Min, Max], returning early with the
// context's error when cancelled.
func (p *Plugin) pace(ctx context.Context, d DelayRange) error {
	wait := d.Min
	if span := d.Max - d.Min; span > 0 {
		wait += time.Duration(rand.Int64N(int64(span) + 1))
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// clientFor returns a client that connects directly, or through proxy when set.
func (p *Plugin) clientFor(proxy string) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	if proxy != "" {
		transport.Proxy = http.ProxyURL(&url.URL{Scheme: "http", Host: proxy})
	}
	return &http.Client{Transport: transport, Timeout: p.cfg.RequestTimeout}
}

// fetch performs a single attempt for task; it never retries.
func (p *Plugin) fetch(ctx context.Context, client *http.Client, task DownloadTask) DownloadResult {
	dest := filepath.Join(task.TargetDir, fileNameFor(task.URL))
	res := DownloadResult{URL: task.URL, Path: dest}

	fail := func(cause error, format string, args ...interface{}) DownloadResult {
		res.Status = events.StatusFailed
		res.err = fmt.Errorf("%w: %s", cause, fmt.Sprintf(format, args...))
		res.Error = res.err.Error()
		slog.Warn(fmt.Sprintf("%s - %s failed: %s", downloadLogPrefix, task.URL, res.Error))
		return res
	}

	if !task.Overwrite {
		found, err := exists(dest)
		if err != nil {
			return fail(ErrIOFailure, "stat %s: %v", dest, err)
		}
		if found {
			res.Status = events.StatusSkipped
			return res
		}
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return fail(ErrNetworkFailure, "rate limiter: %v", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		return fail(ErrNetworkFailure, "build request: %v", err)
	}
	httpReq.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := client.Do(httpReq)
	if err != nil {
		return fail(ErrNetworkFailure, "request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(ErrNetworkFailure, "unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(task.TargetDir, ".download-*")
	if err != nil {
		return fail(ErrIOFailure, "create temp file: %v", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	n, copyErr := io.Copy(tmp, io.LimitReader(resp.Body, p.cfg.MaxBodySize+1))
	closeErr := tmp.Close()
	switch {
	case copyErr != nil:
		return fail(ErrNetworkFailure, "read body: %v", copyErr)
	case closeErr != nil:
		return fail(ErrIOFailure, "close temp file: %v", closeErr)
	case n > p.cfg.MaxBodySize:
		return fail(ErrNetworkFailure, "body exceeds %d bytes", p.cfg.MaxBodySize)
	}

	if err := ctx.Err(); err != nil {
		return fail(ErrNetworkFailure, "cancelled before write: %v", err)
	}
	if !task.Overwrite {
		found, err := exists(dest)
		if err != nil {
			return fail(ErrIOFailure, "stat %s: %v", dest, err)
		}
		if found {
			res.Status = events.StatusSkipped
			return res
		}
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fail(ErrIOFailure, "rename to %s: %v", dest, err)
	}
	committed = true

	res.Status = events.StatusWritten
	res.Bytes = n
	slog.Debug(fmt.Sprintf("%s - %s -> %s (%d bytes)", downloadLogPrefix, task.URL, dest, n))
	return res
}

func (p *Plugin) publish(ctx context.Context, task DownloadTask, res DownloadResult) {
	event := &events.DownloadEvent{
		RequestID: dispatcher.RequestIDFrom(ctx),
		Namespace: Namespace,
		URL:       res.URL,
		Path:      res.Path,
		Proxy:     task.Proxy,
		Status:    res.Status,
		Error:     res.Error,
		Bytes:     res.Bytes,
		Index:     task.Index,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.cfg.Publisher.PublishDownload(ctx, event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish download event for %s: %v", downloadLogPrefix, res.URL, err))
	}
}

// fileNameFor derives the destination file name from the last URL path segment.
func fileNameFor(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "index"
	}
	name := path.Base(parsed.EscapedPath())
	if name == "/" || name == "." {
		return "index"
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	name = strings.NewReplacer("/", "_", "\\", "_", "\x00", "_").Replace(name)
	if name == "" || name == "." || name == ".." {
		return "index"
	}
	return name
}

// exists reports whether p is present. Stat failures other than not-exist are returned
// so the URL is recorded as failed rather than skipped.
func exists(p string) (bool, error) {
	_, err := os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	}
	return false, err
}
