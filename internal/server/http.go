package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/morezero/script-runtime/pkg/registry"
)

const httpLogPrefix = "server:http"

// routes builds the HTTP mux: health, readiness, metrics and the namespace catalog.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHome())
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /namespaces", s.handleNamespaces)
	mux.HandleFunc("GET /namespaces/{prefix}", s.handleNamespace)
	return mux
}

// healthReport is the /health body.
type healthReport struct {
	Status         string            `json:"status"`
	Timestamp      string            `json:"timestamp"`
	Checks         map[string]string `json:"checks"`
	Namespaces     int               `json:"namespaces"`
	JournalDropped int64             `json:"journalDropped,omitempty"`
}

// health checks the optional backends; a disabled backend is not reported.
func (s *Server) health(ctx context.Context) *healthReport {
	h := &healthReport{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Checks:     map[string]string{},
		Namespaces: len(s.reg.Catalog()),
	}
	if s.nc != nil {
		h.Checks["comms"] = "ok"
		if !s.nc.IsConnected() {
			h.Checks["comms"] = "disconnected"
			h.Status = "unhealthy"
		}
	}
	if s.pool != nil {
		h.Checks["database"] = "ok"
		if err := s.pool.Ping(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - database ping: %v", httpLogPrefix, err))
			h.Checks["database"] = "failed"
			h.Status = "unhealthy"
		}
	}
	if s.journal != nil {
		h.JournalDropped = s.journal.Dropped()
	}
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
	defer cancel()
	h := s.health(ctx)
	status := http.StatusOK
	if h.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleNamespaces(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"namespaces": s.reg.Catalog()})
}

func (s *Server) handleNamespace(w http.ResponseWriter, r *http.Request) {
	info, err := s.reg.Describe(r.PathValue("prefix"))
	if err != nil {
		var regErr *registry.RegistryError
		if errors.As(err, &regErr) && regErr.Code == registry.CodeNamespaceNotFound {
			writeJSON(w, http.StatusNotFound, regErr)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - json encode: %v", httpLogPrefix, err))
	}
}

// homePageTemplate is the HTML for the runtime home page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Script Runtime</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    a { color: #0066cc; }
    h1, h2, h3 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 1100px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; vertical-align: top; }
    th { background: #f0f4f8; color: #0066cc; }
    code { background: #f6f8fa; padding: 0 0.25rem; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    section { margin-bottom: 2rem; }
  </style>
</head>
<body>
  <h1>Script Runtime</h1>
  <p class="meta">Health and the operations scripts can call.</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    {{range $name, $state := .Health.Checks}}
    <p>{{$name}}: {{$state}}</p>
    {{end}}
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>

  {{if not .Namespaces}}
  <section><p>No namespaces registered.</p></section>
  {{end}}
  {{range .Namespaces}}
  <section id="{{.Namespace}}">
    <h2>{{.Namespace}} <small>v{{.Version}}</small></h2>
    {{if .Description}}<p>{{.Description}}</p>{{end}}
    {{if .Aliases}}<p class="meta">Aliases: {{range $i, $a := .Aliases}}{{if $i}}, {{end}}<code>{{$a}}</code>{{end}}</p>{{end}}
    <p class="meta"><a href="/namespaces/{{.Namespace}}">JSON</a></p>
    <table>
      <thead>
        <tr><th>Signature</th><th>Returns</th><th>Description</th><th>Example</th></tr>
      </thead>
      <tbody>
        {{range .Operations}}
        <tr>
          <td><code>{{.Signature}}</code></td>
          <td>{{.Returns}}</td>
          <td>{{.Doc}}</td>
          <td>{{if .Example}}<code>{{.Example}}</code>{{end}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
  </section>
  {{end}}
</body>
</html>
`

// homeData is the data passed to the home page template.
type homeData struct {
	Health     *healthReport
	Namespaces []registry.NamespaceInfo
}

// handleHome returns an HTTP handler for the runtime home page.
func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()

		data := homeData{Health: s.health(ctx), Namespaces: s.reg.Catalog()}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", httpLogPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
