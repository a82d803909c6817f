// Package server orchestrates all components: plugin manifest, registry, dispatcher,
// NATS invocation gateway, optional Postgres journal, metrics and HTTP health.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/script-runtime/internal/config"
	"github.com/morezero/script-runtime/pkg/bootstrap"
	"github.com/morezero/script-runtime/pkg/commsutil"
	"github.com/morezero/script-runtime/pkg/db"
	"github.com/morezero/script-runtime/pkg/dispatcher"
	"github.com/morezero/script-runtime/pkg/events"
	"github.com/morezero/script-runtime/pkg/metrics"
	"github.com/morezero/script-runtime/pkg/registry"
)

const logPrefix = "server:server"

// Server is the script-runtime orchestrator.
type Server struct {
	cfg      *config.Config
	manifest *bootstrap.Manifest

	nc      *comms.Conn
	pool    *pgxpool.Pool
	journal *db.Journal
	metrics *metrics.Collector

	reg  *registry.Registry
	disp *dispatcher.Dispatcher

	// baseCtx parents every gateway invocation; cancelled last on shutdown.
	baseCtx    context.Context
	cancelBase context.CancelFunc
	subs       []*comms.Subscription
	inflight   sync.WaitGroup

	httpServer *http.Server
	httpAddr   string
	ready      atomic.Bool
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	SetupLogging(os.Stdout, cfg.LogLevel)

	slog.Info(fmt.Sprintf("%s - Starting script-runtime", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		s.close()
		return err
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.HealthCheckTimeout*2)
	defer shutdownCancel()
	s.Shutdown(shutdownCtx)

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// SetupLogging installs a text slog handler writing to w at the given level. Unknown
// levels fall back to info.
func SetupLogging(w io.Writer, level string) {
	logLevel, err := config.ParseLogLevel(level)
	if err != nil {
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})))
}

// New connects the configured backends and builds the registry and dispatcher. Nothing
// is served until Start. On error every backend opened so far is closed.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{cfg: cfg}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	if err := s.init(ctx); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *Server) init(ctx context.Context) error {
	cfg := s.cfg

	// Step 1: Load plugin manifest
	manifest, err := bootstrap.LoadManifest(cfg.PluginManifest)
	if err != nil {
		return fmt.Errorf("%s - failed to load plugin manifest: %w", logPrefix, err)
	}
	s.manifest = manifest
	slog.Info(fmt.Sprintf("%s - Manifest %s enables %v", logPrefix, manifest.Name, manifest.EnabledPlugins()))

	// Step 2: Metrics
	s.metrics = metrics.NewCollector(cfg.RuntimeMetrics)
	publishers := []events.Publisher{s.metrics}
	observers := []dispatcher.Observer{s.metrics, dispatcher.ObserverFunc(logInvocation)}

	// Step 3: Connect to NATS
	if cfg.COMMSEnabled {
		nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
		}
		s.nc = nc
		publishers = append(publishers, events.NewCommsPublisher(nc, &events.CommsPublisherOpts{
			Subject: cfg.DownloadEventSubject,
		}))
	} else {
		slog.Warn(fmt.Sprintf("%s - COMMS disabled; invocation gateway will not start", logPrefix))
	}

	// Step 4: Connect to database (journal is optional)
	if cfg.JournalEnabled() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
		}
		s.pool = pool

		if cfg.RunMigrations {
			migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
			if err != nil {
				return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
			}
			if _, err := db.RunMigrations(ctx, pool, migrations); err != nil {
				return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
			}
		}

		s.journal = db.NewJournal(db.NewRepository(pool), &db.JournalOptions{Buffer: cfg.JournalBuffer})
		publishers = append(publishers, s.journal)
		observers = append(observers, s.journal)
	}

	// Step 5: Build registry from the manifest
	reg, err := bootstrap.BuildRegistry(manifest, &bootstrap.BuildOptions{
		Deps: bootstrap.Deps{Publisher: events.NewMultiPublisher(publishers...)},
	})
	if err != nil {
		return fmt.Errorf("%s - failed to build registry: %w", logPrefix, err)
	}
	s.reg = reg

	// Step 6: Create dispatcher
	s.disp = dispatcher.NewDispatcher(reg, observers...)
	return nil
}

// Start subscribes the invocation gateway and starts the HTTP server.
func (s *Server) Start() error {
	if s.nc != nil {
		if err := s.subscribe(); err != nil {
			return err
		}
	}

	addr := s.cfg.ListenAddr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%s - failed to listen on %s: %w", logPrefix, addr, err)
	}
	s.httpAddr = ln.Addr().String()
	s.httpServer = &http.Server{Handler: s.routes(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, s.httpAddr))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	s.ready.Store(true)
	slog.Info(fmt.Sprintf("%s - script-runtime is ready", logPrefix))
	return nil
}

// HTTPAddr returns the bound HTTP address once Start has returned.
func (s *Server) HTTPAddr() string {
	return s.httpAddr
}

// Dispatcher returns the server's dispatcher.
func (s *Server) Dispatcher() *dispatcher.Dispatcher {
	return s.disp
}

// Shutdown stops accepting invocations, waits for in-flight calls until ctx is done,
// cancels whatever is still running, then closes every backend.
func (s *Server) Shutdown(ctx context.Context) {
	s.ready.Store(false)
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn(fmt.Sprintf("%s - unsubscribe %s: %v", logPrefix, sub.Subject, err))
		}
	}
	s.subs = nil

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - HTTP shutdown: %v", logPrefix, err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn(fmt.Sprintf("%s - cancelling in-flight invocations", logPrefix))
		s.cancelBase()
		<-done
	}

	s.close()
}

// close releases backends; safe on a partially initialised server.
func (s *Server) close() {
	s.cancelBase()
	if s.journal != nil {
		s.journal.Close()
		if n := s.journal.Dropped(); n > 0 {
			slog.Warn(fmt.Sprintf("%s - journal dropped %d records", logPrefix, n))
		}
		s.journal = nil
	}
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			s.nc.Close()
		}
		s.nc = nil
	}
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
}

func logInvocation(_ context.Context, inv *dispatcher.Invocation) {
	msg := fmt.Sprintf("%s - %s.%s id=%s code=%s took=%s",
		logPrefix, inv.Namespace, inv.Operation, inv.RequestID, inv.Code, inv.Duration)
	switch inv.Code {
	case dispatcher.CodeOK:
		slog.Debug(msg)
	case dispatcher.CodeOperationFailed, dispatcher.CodeInternalError:
		slog.Warn(fmt.Sprintf("%s: %v", msg, inv.Err))
	default:
		slog.Info(msg)
	}
}
