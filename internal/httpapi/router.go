package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	gosecant "github.com/njchilds90/gosecant"
	"github.com/njchilds90/gosecant/internal/metrics"
)

const (
	DefaultMaxRequestBodyBytes = 1 << 20
	rootMessage                = "Secant Minimization API is running!"
)

// Solver runs one minimization.
type Solver interface {
	Minimize(ctx context.Context, p gosecant.Problem) (*gosecant.Result, error)
}

// Renderer turns a trace into image references.
type Renderer interface {
	IterationGraphs(ctx context.Context, f, df gosecant.Evaluator, iters []gosecant.IterationRecord) ([]string, error)
	FinalGraph(ctx context.Context, f, df gosecant.Evaluator, xMin float64) (string, error)
}

type Options struct {
	// Renderer is optional; without it responses carry no graphs.
	Renderer Renderer
	// Compiler serves the differentiate tool; nil compiles without caching.
	Compiler            *gosecant.Compiler
	Metrics             *metrics.Metrics
	Logger              *slog.Logger
	AllowedOrigins      []string
	MaxRequestBodyBytes int64
}

type handlers struct {
	solver   Solver
	renderer Renderer
	compiler *gosecant.Compiler
	metrics  *metrics.Metrics
	logger   *slog.Logger
	maxBody  int64
}

func NewRouter(solver Solver, opts Options) http.Handler {
	h := &handlers{
		solver:   solver,
		renderer: opts.Renderer,
		compiler: opts.Compiler,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		maxBody:  opts.MaxRequestBodyBytes,
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	if h.maxBody <= 0 {
		h.maxBody = DefaultMaxRequestBodyBytes
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.HandleFunc("POST /minimize", h.handleMinimize)
	mux.HandleFunc("GET /schema", h.handleSchema)
	mux.HandleFunc("POST /tool", h.handleTool)

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	})
	return c.Handler(mux)
}

func (h *handlers) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": rootMessage})
}

// minimizeRequest uses pointers so a missing number is distinguishable
// from zero.
type minimizeRequest struct {
	Fx            string   `json:"fx"`
	A             *float64 `json:"a"`
	B             *float64 `json:"b"`
	Tol           *float64 `json:"tol"`
	MaxIterations int      `json:"max_iterations,omitempty"`
}

func (req minimizeRequest) problem() (gosecant.Problem, error) {
	switch {
	case req.Fx == "":
		return gosecant.Problem{}, invalidRequestError(`"fx" is required`)
	case req.A == nil:
		return gosecant.Problem{}, invalidRequestError(`"a" is required`)
	case req.B == nil:
		return gosecant.Problem{}, invalidRequestError(`"b" is required`)
	case req.Tol == nil:
		return gosecant.Problem{}, invalidRequestError(`"tol" is required`)
	}
	return gosecant.Problem{
		Fx:            req.Fx,
		A:             *req.A,
		B:             *req.B,
		Tol:           *req.Tol,
		MaxIterations: req.MaxIterations,
	}, nil
}

type minimizeResponse struct {
	*gosecant.Result
	Graphs     []string `json:"graphs,omitempty"`
	FinalGraph string   `json:"final_graph,omitempty"`
}

func (h *handlers) handleMinimize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req minimizeRequest
	if err := decodeJSONBody(r, &req); err != nil {
		h.fail(ctx, w, metrics.OutcomeBadRequest, err, start)
		return
	}
	p, err := req.problem()
	if err != nil {
		h.fail(ctx, w, metrics.OutcomeBadRequest, err, start)
		return
	}

	res, err := h.solver.Minimize(ctx, p)
	if err != nil {
		h.fail(ctx, w, string(gosecant.KindOf(err)), err, start)
		return
	}

	resp := minimizeResponse{Result: res}
	if h.renderer != nil {
		graphs, err := h.renderer.IterationGraphs(ctx, res.Function, res.Derivative, res.Iterations)
		if err != nil {
			h.fail(ctx, w, kindInternal, err, start)
			return
		}
		resp.Graphs = graphs

		final, err := h.renderer.FinalGraph(ctx, res.Function, res.Derivative, res.XMin)
		if err != nil {
			h.metrics.RenderFailed()
			h.logger.LogAttrs(ctx, slog.LevelWarn, "final graph dropped",
				slog.String("request_id", RequestID(ctx)),
				slog.Any("error", err),
			)
		}
		resp.FinalGraph = final
	}

	outcome := metrics.OutcomeConverged
	if !res.Converged {
		outcome = metrics.OutcomeIterationLimit
	}
	h.metrics.ObserveMinimize(outcome, len(res.Iterations), time.Since(start))
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) fail(ctx context.Context, w http.ResponseWriter, outcome string, err error, start time.Time) {
	if outcome == "" {
		_, outcome = mapError(err)
	}
	h.metrics.ObserveMinimize(outcome, -1, time.Since(start))
	h.reject(ctx, w, err)
}

func (h *handlers) reject(ctx context.Context, w http.ResponseWriter, err error) {
	status, kind := mapError(err)
	h.logger.LogAttrs(ctx, slog.LevelWarn, "request failed",
		slog.String("request_id", RequestID(ctx)),
		slog.Int("status", status),
		slog.String("kind", kind),
		slog.Any("error", err),
	)
	writeError(w, status, kind, err.Error())
}
