package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	gosecant "github.com/njchilds90/gosecant"
	"github.com/njchilds90/gosecant/internal/config"
	"github.com/njchilds90/gosecant/internal/httpapi"
	"github.com/njchilds90/gosecant/internal/metrics"
	"github.com/njchilds90/gosecant/plot"
)

// App owns solver wiring and HTTP server lifecycle.
type App struct {
	cfg     config.Config
	logger  *slog.Logger
	solver  *gosecant.Solver
	metrics *metrics.Metrics
	handler http.Handler
	server  *http.Server
	ready   atomic.Bool
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		return nil, errors.New("new app: nil logger")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new app config: %w", err)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
	}
	compiler := gosecant.NewCompiler(cfg.CacheSize)
	a.solver = gosecant.NewSolver(gosecant.SolverConfig{
		Compiler:      compiler,
		Logger:        logger,
		MaxIterations: cfg.MaxIterations,
	})

	opts := httpapi.Options{
		Compiler:       compiler,
		Metrics:        a.metrics,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
	}
	if cfg.RenderGraphs {
		opts.Renderer = plot.NewRenderer(plot.Config{
			Workers: cfg.RenderWorkers,
			Logger:  logger,
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/readyz", a.handleReadyz)
	mux.Handle("GET /metrics", a.metrics.Handler())
	mux.Handle("/", httpapi.NewRouter(a.solver, opts))
	a.handler = httpapi.WithRequestID(requestLoggingMiddleware(logger)(recoverMiddleware(logger)(mux)))
	a.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return a, nil
}

// Handler exposes the full middleware chain, mainly for tests.
func (a *App) Handler() http.Handler { return a.handler }

func (a *App) Start() error {
	ln, err := net.Listen("tcp", a.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.HTTPAddr, err)
	}
	return a.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (a *App) Serve(ln net.Listener) error {
	a.logger.Info("http server listening", slog.String("addr", ln.Addr().String()))
	a.ready.Store(true)

	err := a.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	a.ready.Store(false)
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return errors.New("shutdown: nil context")
	}
	a.ready.Store(false)

	err := a.server.Shutdown(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		a.logger.Warn("graceful shutdown timed out; forcing connection close")
		if closeErr := a.server.Close(); closeErr != nil {
			return fmt.Errorf("shutdown timeout and forced close failed: %w", errors.Join(err, closeErr))
		}
		return nil
	}
	return err
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writePlain(w, http.StatusOK, "ok")
}

func (a *App) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !a.ready.Load() {
		writePlain(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writePlain(w, http.StatusOK, "ready")
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
