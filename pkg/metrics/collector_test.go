package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/morezero/script-runtime/pkg/dispatcher"
	"github.com/morezero/script-runtime/pkg/events"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("metrics:collector_test - read body: %v", err)
	}
	return string(body)
}

func TestCollector_Invocations(t *testing.T) {
	c := NewCollector(false)
	ctx := context.Background()

	c.Observe(ctx, &dispatcher.Invocation{Namespace: "file", Operation: "write", Code: dispatcher.CodeOK, Duration: 3 * time.Millisecond})
	c.Observe(ctx, &dispatcher.Invocation{Namespace: "file", Operation: "write", Code: dispatcher.CodeOK, Duration: time.Millisecond})
	c.Observe(ctx, &dispatcher.Invocation{Namespace: "file", Operation: "bytes", Code: dispatcher.CodeOperationFailed})

	out := scrape(t, c)
	for _, want := range []string{
		`script_runtime_invocations_total{code="OK",namespace="file",operation="write"} 2`,
		`script_runtime_invocations_total{code="OPERATION_FAILED",namespace="file",operation="bytes"} 1`,
		`script_runtime_invocation_duration_seconds_count{namespace="file",operation="write"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics:collector_test - missing %q in:\n%s", want, out)
		}
	}
}

func TestCollector_Downloads(t *testing.T) {
	c := NewCollector(false)
	ctx := context.Background()

	for _, e := range []*events.DownloadEvent{
		{Status: events.StatusWritten, Bytes: 10},
		{Status: events.StatusWritten, Bytes: 5},
		{Status: events.StatusFailed},
		{Status: events.StatusSkipped},
	} {
		if err := c.PublishDownload(ctx, e); err != nil {
			t.Fatalf("metrics:collector_test - publish: %v", err)
		}
	}

	out := scrape(t, c)
	for _, want := range []string{
		`script_runtime_downloads_total{status="written"} 2`,
		`script_runtime_downloads_total{status="failed"} 1`,
		`script_runtime_downloads_total{status="skipped"} 1`,
		`script_runtime_download_bytes_total 15`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics:collector_test - missing %q", want)
		}
	}
}

func TestCollector_RuntimeCollectors(t *testing.T) {
	if out := scrape(t, NewCollector(true)); !strings.Contains(out, "go_goroutines") {
		t.Error("metrics:collector_test - expected Go runtime metrics")
	}
	if out := scrape(t, NewCollector(false)); strings.Contains(out, "go_goroutines") {
		t.Error("metrics:collector_test - runtime metrics should be opt-in")
	}
}

func TestCollector_Interfaces(t *testing.T) {
	var _ dispatcher.Observer = NewCollector(false)
	var _ events.Publisher = NewCollector(false)
}
