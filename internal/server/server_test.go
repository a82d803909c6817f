package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/script-runtime/internal/config"
	"github.com/morezero/script-runtime/pkg/bootstrap"
	"github.com/morezero/script-runtime/pkg/dispatcher"
	"github.com/morezero/script-runtime/pkg/events"
	"github.com/morezero/script-runtime/pkg/registry"
	"github.com/morezero/script-runtime/pkg/value"
)

const serverTestPrefix = "server:server_test"

func testConfig(commsURL string) *config.Config {
	return &config.Config{
		COMMSURL:             commsURL,
		COMMSName:            "script-runtime-test",
		COMMSEnabled:         commsURL != "",
		InvokeSubject:        "runtime.invoke.v1",
		DownloadEventSubject: "runtime.download",
		RequestTimeout:       5 * time.Second,
		HTTPAddr:             "127.0.0.1:0",
		HealthCheckTimeout:   5 * time.Second,
		LogLevel:             "error",
	}
}

// testServer builds a Server with the default manifest and no backends.
func testServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	t.Setenv(bootstrap.ManifestEnv, "")
	s, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("%s - New: %v", serverTestPrefix, err)
	}
	t.Cleanup(s.close)
	return s
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	return rec
}

func TestHandleHome_Success(t *testing.T) {
	s := testServer(t, testConfig(""))

	rec := get(t, s, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d, want 200", serverTestPrefix, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("%s - Content-Type = %q", serverTestPrefix, ct)
	}
	body := rec.Body.String()
	for _, want := range []string{"Script Runtime", `id="file"`, "download(dir", "write(path", "<code>fs</code>", "status-healthy"} {
		if !strings.Contains(body, want) {
			t.Errorf("%s - home page missing %q", serverTestPrefix, want)
		}
	}
}

func TestHandleHome_OnlyRoot(t *testing.T) {
	s := testServer(t, testConfig(""))
	if rec := get(t, s, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("%s - status = %d, want 404", serverTestPrefix, rec.Code)
	}
}

func TestHealthHandler_NoBackends(t *testing.T) {
	s := testServer(t, testConfig(""))

	rec := get(t, s, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d, want 200", serverTestPrefix, rec.Code)
	}
	var h healthReport
	if err := json.NewDecoder(rec.Body).Decode(&h); err != nil {
		t.Fatalf("%s - decode: %v", serverTestPrefix, err)
	}
	if h.Status != "healthy" || h.Namespaces != 1 || len(h.Checks) != 0 {
		t.Errorf("%s - health = %+v", serverTestPrefix, h)
	}
}

func TestReadyHandler(t *testing.T) {
	s := testServer(t, testConfig(""))

	if rec := get(t, s, "/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("%s - before start status = %d, want 503", serverTestPrefix, rec.Code)
	}
	s.ready.Store(true)
	rec := get(t, s, "/ready")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ready"`) {
		t.Errorf("%s - after start = %d %s", serverTestPrefix, rec.Code, rec.Body.String())
	}
}

func TestNamespacesHandlers(t *testing.T) {
	s := testServer(t, testConfig(""))

	rec := get(t, s, "/namespaces")
	var list struct {
		Namespaces []registry.NamespaceInfo `json:"namespaces"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("%s - decode catalog: %v", serverTestPrefix, err)
	}
	if len(list.Namespaces) != 1 || list.Namespaces[0].Namespace != "file" {
		t.Fatalf("%s - catalog = %+v", serverTestPrefix, list.Namespaces)
	}

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"by name", "/namespaces/file", http.StatusOK, `"namespace":"file"`},
		{"by alias", "/namespaces/fs", http.StatusOK, `"namespace":"file"`},
		{"unknown", "/namespaces/nope", http.StatusNotFound, registry.CodeNamespaceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, tt.path)
			if rec.Code != tt.wantStatus {
				t.Errorf("%s - status = %d, want %d", serverTestPrefix, rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("%s - body %s missing %q", serverTestPrefix, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestMetricsHandler_CountsInvocations(t *testing.T) {
	s := testServer(t, testConfig(""))
	path := filepath.Join(t.TempDir(), "m.txt")

	if _, err := s.Dispatcher().Invoke(context.Background(), "file", "write", []value.Value{value.String(path), value.String("x")}); err != nil {
		t.Fatalf("%s - write: %v", serverTestPrefix, err)
	}

	rec := get(t, s, "/metrics")
	want := `script_runtime_invocations_total{code="OK",namespace="file",operation="write"} 1`
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("%s - metrics missing %q", serverTestPrefix, want)
	}
}

func invokeRequest(t *testing.T, call string, args ...interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{"id": "req-1", "call": call, "args": args})
	if err != nil {
		t.Fatalf("%s - marshal request: %v", serverTestPrefix, err)
	}
	return data
}

func decodeResponse(t *testing.T, data []byte) *dispatcher.InvokeResponse {
	t.Helper()
	var resp dispatcher.InvokeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("%s - decode response %s: %v", serverTestPrefix, data, err)
	}
	return &resp
}

func TestHandleInvoke(t *testing.T) {
	cfg := testConfig("")
	cfg.RequestTimeout = 100 * time.Millisecond
	s := testServer(t, cfg)
	dir := t.TempDir()

	tests := []struct {
		name      string
		data      []byte
		namespace string
		wantOk    bool
		wantCode  string
	}{
		{"undecodable", []byte(`{"call":`), "", false, dispatcher.CodeInvalidRequest},
		{"empty", nil, "", false, dispatcher.CodeInvalidRequest},
		{"missing call", []byte(`{"id":"x","args":[]}`), "", false, dispatcher.CodeInvalidRequest},
		{"write", invokeRequest(t, "file.write", filepath.Join(dir, "a.txt"), "hello"), "", true, ""},
		{"versioned", invokeRequest(t, "file.write@^1", filepath.Join(dir, "b.txt"), "hello"), "", true, ""},
		{"namespace subject", invokeRequest(t, "write@^1.0", filepath.Join(dir, "c.txt"), "hello"), "file", true, ""},
		{"version not satisfied", invokeRequest(t, "file.write@^2", filepath.Join(dir, "d.txt"), "x"), "", false, dispatcher.CodeNamespaceNotFound},
		{"unknown namespace", invokeRequest(t, "http.get", "x"), "", false, dispatcher.CodeNamespaceNotFound},
		{"integer content", invokeRequest(t, "file.write", filepath.Join(dir, "e.txt"), 123), "", false, dispatcher.CodeNoMatchingOverload},
		{"server timeout", invokeRequest(t, "file.download", dir, []string{"http://127.0.0.1:1/a"}, []int{5000, 5000}), "", false, dispatcher.CodeCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := decodeResponse(t, s.handleInvoke(context.Background(), tt.data, tt.namespace))
			if resp.Ok != tt.wantOk {
				t.Fatalf("%s - ok = %v, want %v (%+v)", serverTestPrefix, resp.Ok, tt.wantOk, resp.Error)
			}
			if !tt.wantOk && resp.Error.Code != tt.wantCode {
				t.Errorf("%s - code = %s, want %s", serverTestPrefix, resp.Error.Code, tt.wantCode)
			}
		})
	}

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		if got, _ := os.ReadFile(filepath.Join(dir, name)); string(got) != "hello" {
			t.Errorf("%s - %s = %q", serverTestPrefix, name, got)
		}
	}
}

// startCommsServer starts an in-process NATS server on a random port.
func startCommsServer(t *testing.T) string {
	t.Helper()
	ns, err := commsserver.NewServer(&commsserver.Options{
		Host:   "127.0.0.1",
		Port:   commsserver.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("%s - failed to create NATS server: %v", serverTestPrefix, err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - NATS server failed to start", serverTestPrefix)
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

func TestGateway_OverComms(t *testing.T) {
	url := startCommsServer(t)
	s := testServer(t, testConfig(url))
	if err := s.Start(); err != nil {
		t.Fatalf("%s - Start: %v", serverTestPrefix, err)
	}

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "remote")
	}))
	defer origin.Close()

	client, err := comms.Connect(url, comms.Timeout(5*time.Second))
	if err != nil {
		t.Fatalf("%s - connect: %v", serverTestPrefix, err)
	}
	defer client.Close()

	written := make(chan *events.DownloadEvent, 1)
	sub, err := client.Subscribe("runtime.download.written", func(msg *comms.Msg) {
		var ev events.DownloadEvent
		if err := json.Unmarshal(msg.Data, &ev); err == nil {
			written <- &ev
		}
	})
	if err != nil {
		t.Fatalf("%s - subscribe: %v", serverTestPrefix, err)
	}
	defer sub.Unsubscribe()
	if err := client.Flush(); err != nil {
		t.Fatalf("%s - flush: %v", serverTestPrefix, err)
	}

	dir := t.TempDir()
	msg, err := client.Request("runtime.invoke.v1", invokeRequest(t, "fs.download", dir, origin.URL+"/page.html"), 5*time.Second)
	if err != nil {
		t.Fatalf("%s - request: %v", serverTestPrefix, err)
	}
	resp := decodeResponse(t, msg.Data)
	if !resp.Ok || resp.Result == nil || resp.Result.Len() != 1 {
		t.Fatalf("%s - download response = %+v", serverTestPrefix, resp)
	}

	select {
	case ev := <-written:
		if ev.RequestID != "req-1" || ev.Path != filepath.Join(dir, "page.html") {
			t.Errorf("%s - event = %+v", serverTestPrefix, ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - no download event", serverTestPrefix)
	}

	msg, err = client.Request("runtime.invoke.v1.file", invokeRequest(t, "string", filepath.Join(dir, "page.html")), 5*time.Second)
	if err != nil {
		t.Fatalf("%s - namespace request: %v", serverTestPrefix, err)
	}
	resp = decodeResponse(t, msg.Data)
	if !resp.Ok {
		t.Fatalf("%s - string response = %+v", serverTestPrefix, resp.Error)
	}
	if got, _ := resp.Result.AsString(); got != "remote" {
		t.Errorf("%s - string = %q, want %q", serverTestPrefix, got, "remote")
	}

	httpResp, err := http.Get("http://" + s.HTTPAddr() + "/health")
	if err != nil {
		t.Fatalf("%s - GET /health: %v", serverTestPrefix, err)
	}
	body, _ := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"comms":"ok"`) {
		t.Errorf("%s - health = %d %s", serverTestPrefix, httpResp.StatusCode, body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Shutdown(ctx)
	if s.ready.Load() {
		t.Errorf("%s - server should not be ready after shutdown", serverTestPrefix)
	}
}
