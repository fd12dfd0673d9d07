package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gosecant "github.com/njchilds90/gosecant"
	"github.com/njchilds90/gosecant/internal/metrics"
)

// toolRequest is one agent tool call.
type toolRequest struct {
	Tool   string     `json:"tool"`
	Params toolParams `json:"params"`
}

type toolParams struct {
	Fx            string   `json:"fx"`
	A             *float64 `json:"a,omitempty"`
	B             *float64 `json:"b,omitempty"`
	Tol           *float64 `json:"tol,omitempty"`
	X             *float64 `json:"x,omitempty"`
	MaxIterations int      `json:"max_iterations,omitempty"`
}

type toolResponse struct {
	Result any       `json:"result,omitempty"`
	LaTeX  string    `json:"latex,omitempty"`
	String string    `json:"string,omitempty"`
	Error  *apiError `json:"error,omitempty"`
}

type toolFunc func(h *handlers, ctx context.Context, p toolParams) (toolResponse, error)

var tools = map[string]toolFunc{
	"minimize":      (*handlers).toolMinimize,
	"differentiate": (*handlers).toolDifferentiate,
	"evaluate":      (*handlers).toolEvaluate,
	"to_latex":      (*handlers).toolLaTeX,
}

// ============================================================
// Schema
// ============================================================

type toolSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema inputSchema `json:"inputSchema"`
}

type inputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]property `json:"properties"`
	Required   []string            `json:"required"`
}

type property struct {
	Type string `json:"type"`
}

func ts(name, description string, required []string, props map[string]string) toolSpec {
	properties := make(map[string]property, len(props))
	for k, typ := range props {
		properties[k] = property{Type: typ}
	}
	if required == nil {
		required = []string{}
	}
	return toolSpec{
		Name:        name,
		Description: description,
		InputSchema: inputSchema{Type: "object", Properties: properties, Required: required},
	}
}

var toolSpecs = []toolSpec{
	ts("minimize", "Minimize fx on [a, b] by driving f'(x) to zero with the secant method",
		[]string{"fx", "a", "b", "tol"},
		map[string]string{"fx": "string", "a": "number", "b": "number", "tol": "number", "max_iterations": "integer"}),
	ts("differentiate", "First derivative d/dx of fx", []string{"fx"}, map[string]string{"fx": "string"}),
	ts("evaluate", "Evaluate fx at x", []string{"fx", "x"}, map[string]string{"fx": "string", "x": "number"}),
	ts("to_latex", "Canonical text and LaTeX for fx", []string{"fx"}, map[string]string{"fx": "string"}),
}

func (h *handlers) handleSchema(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]toolSpec{"tools": toolSpecs})
}

// ============================================================
// Tool calls
// ============================================================

func (h *handlers) handleTool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req toolRequest
	if err := decodeJSONBody(r, &req); err != nil {
		h.reject(ctx, w, err)
		return
	}
	fn, ok := tools[req.Tool]
	if !ok {
		h.reject(ctx, w, invalidRequestError(fmt.Sprintf("unknown tool %q", req.Tool)))
		return
	}
	if req.Params.Fx == "" {
		h.reject(ctx, w, invalidRequestError(`"params.fx" is required`))
		return
	}

	resp, err := fn(h, ctx, req.Params)
	if err != nil {
		status, kind := mapError(err)
		if status == http.StatusInternalServerError {
			h.reject(ctx, w, err)
			return
		}
		resp = toolResponse{Error: &apiError{Kind: kind, Message: err.Error()}}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) toolMinimize(ctx context.Context, p toolParams) (toolResponse, error) {
	start := time.Now()
	problem, err := minimizeRequest{Fx: p.Fx, A: p.A, B: p.B, Tol: p.Tol, MaxIterations: p.MaxIterations}.problem()
	if err != nil {
		return toolResponse{}, err
	}
	res, err := h.solver.Minimize(ctx, problem)
	if err != nil {
		h.metrics.ObserveMinimize(string(gosecant.KindOf(err)), -1, time.Since(start))
		return toolResponse{}, err
	}
	outcome := metrics.OutcomeConverged
	if !res.Converged {
		outcome = metrics.OutcomeIterationLimit
	}
	h.metrics.ObserveMinimize(outcome, len(res.Iterations), time.Since(start))
	return toolResponse{Result: res}, nil
}

func (h *handlers) toolDifferentiate(_ context.Context, p toolParams) (toolResponse, error) {
	_, df, err := h.compiler.Compile(p.Fx)
	if err != nil {
		return toolResponse{}, err
	}
	return toolResponse{Result: df.String(), String: df.String(), LaTeX: df.LaTeX()}, nil
}

func (h *handlers) toolEvaluate(_ context.Context, p toolParams) (toolResponse, error) {
	if p.X == nil {
		return toolResponse{}, invalidRequestError(`"params.x" is required`)
	}
	f, err := gosecant.Compile(p.Fx)
	if err != nil {
		return toolResponse{}, err
	}
	v, err := f.Evaluate(*p.X)
	if err != nil {
		return toolResponse{}, err
	}
	return toolResponse{Result: v, String: f.String()}, nil
}

func (h *handlers) toolLaTeX(_ context.Context, p toolParams) (toolResponse, error) {
	f, err := gosecant.Compile(p.Fx)
	if err != nil {
		return toolResponse{}, err
	}
	return toolResponse{String: f.String(), LaTeX: f.LaTeX()}, nil
}
