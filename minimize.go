package gosecant

import (
	"context"
	"log/slog"
	"math"
)

// Problem is one minimization request. All fields are explicit; the only
// default is MaxIterations, where zero means the solver's limit.
type Problem struct {
	Fx            string  `json:"fx" yaml:"fx"`
	A             float64 `json:"a" yaml:"a"`
	B             float64 `json:"b" yaml:"b"`
	Tol           float64 `json:"tol" yaml:"tol"`
	MaxIterations int     `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
}

// Validate checks the arguments that need no evaluation.
func (p Problem) Validate() error {
	switch {
	case !(p.Tol > 0) || math.IsInf(p.Tol, 0):
		return invalidArgumentf("tolerance must be a positive finite number, got %g", p.Tol)
	case math.IsNaN(p.A) || math.IsInf(p.A, 0) || math.IsNaN(p.B) || math.IsInf(p.B, 0):
		return invalidArgumentf("bounds must be finite, got a=%g b=%g", p.A, p.B)
	case p.A >= p.B:
		return invalidArgumentf("lower bound a=%g must be less than upper bound b=%g", p.A, p.B)
	case p.MaxIterations < 0:
		return invalidArgumentf("max iterations must be positive, got %d", p.MaxIterations)
	}
	return nil
}

// Result is the located minimum and the full iteration trace.
type Result struct {
	XMin       float64           `json:"x_min" yaml:"x_min"`
	FMin       float64           `json:"f_min" yaml:"f_min"`
	Iterations []IterationRecord `json:"iterations" yaml:"iterations"`
	Converged  bool              `json:"converged" yaml:"converged"`
	Reason     StopReason        `json:"stop_reason" yaml:"stop_reason"`
	// Function and Derivative are the compiled f and f', exposed for plotting.
	Function   *Expression `json:"function" yaml:"function"`
	Derivative *Expression `json:"derivative" yaml:"derivative"`
}

// Err returns ErrNotConverged when the iteration limit was reached.
func (r *Result) Err() error {
	if r.Converged {
		return nil
	}
	return ErrNotConverged
}

// ============================================================
// Solver
// ============================================================

// Solver wires compilation, bracket validation, and root finding. A Solver
// holds no per-request state and may be shared between goroutines.
type Solver struct {
	compiler      *Compiler
	logger        *slog.Logger
	maxIterations int
}

// SolverConfig holds the optional collaborators of a Solver.
type SolverConfig struct {
	// Compiler shares a compile cache across calls; nil disables caching.
	Compiler *Compiler
	Logger   *slog.Logger
	// MaxIterations is the limit used when a Problem leaves it zero.
	MaxIterations int
}

func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		Logger:        slog.New(slog.DiscardHandler),
		MaxIterations: DefaultMaxIterations,
	}
}

func normalizeSolverConfig(input SolverConfig) SolverConfig {
	defaults := DefaultSolverConfig()
	if input.Logger == nil {
		input.Logger = defaults.Logger
	}
	if input.MaxIterations <= 0 {
		input.MaxIterations = defaults.MaxIterations
	}
	return input
}

func NewSolver(cfg ...SolverConfig) *Solver {
	normalized := DefaultSolverConfig()
	if len(cfg) > 0 {
		normalized = normalizeSolverConfig(cfg[0])
	}
	return &Solver{
		compiler:      normalized.Compiler,
		logger:        normalized.Logger,
		maxIterations: normalized.MaxIterations,
	}
}

// Minimize runs p with a solver that has no cache and logs nothing.
func Minimize(ctx context.Context, p Problem) (*Result, error) {
	return NewSolver().Minimize(ctx, p)
}

// Minimize locates the minimizer of p.Fx on [p.A, p.B] as the root of its
// derivative. On error no Result is returned. Reaching the iteration limit is
// not an error: the Result carries Converged false and the last secant point.
func (s *Solver) Minimize(ctx context.Context, p Problem) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	f, df, err := s.compiler.Compile(p.Fx)
	if err != nil {
		return nil, err
	}
	if err := ValidateBracket(p.A, p.B, df); err != nil {
		return nil, err
	}

	maxIter := p.MaxIterations
	if maxIter == 0 {
		maxIter = s.maxIterations
	}
	root, err := FindRoot(ctx, df, p.A, p.B, p.Tol, RootOptions{
		MaxIterations: maxIter,
		OnIteration: func(rec IterationRecord) {
			s.logger.LogAttrs(ctx, slog.LevelDebug, "secant iteration",
				slog.Int("iteration", rec.Iteration),
				slog.Float64("L", rec.L),
				slog.Float64("R", rec.R),
				slog.Float64("z", rec.Z),
				slog.Float64("fprime_z", rec.FPrimeZ),
			)
		},
	})
	if err != nil {
		return nil, err
	}

	fMin, err := f.Evaluate(root.Z)
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if !root.Converged {
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx, level, "minimization finished",
		slog.String("fx", p.Fx),
		slog.Bool("converged", root.Converged),
		slog.String("stop_reason", string(root.Reason)),
		slog.Int("iterations", len(root.Iterations)),
		slog.Float64("x_min", root.Z),
		slog.Float64("f_min", fMin),
	)

	return &Result{
		XMin:       root.Z,
		FMin:       fMin,
		Iterations: root.Iterations,
		Converged:  root.Converged,
		Reason:     root.Reason,
		Function:   f,
		Derivative: df,
	}, nil
}
