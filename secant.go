package gosecant

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
)

// DefaultMaxIterations caps the root finder when no limit is given.
const DefaultMaxIterations = 100

// ============================================================
// Iteration records
// ============================================================

// IterationRecord is the state one secant step was decided on: the bracket
// before the update, the secant point, and f' at all three.
//
// The wire keys are iteration, L, R, z, f'(L), f'(R) and f'(z). encoding/json
// rejects quotes in struct tags, so JSON goes through MarshalJSON.
type IterationRecord struct {
	Iteration int     `yaml:"iteration"`
	L         float64 `yaml:"L"`
	R         float64 `yaml:"R"`
	Z         float64 `yaml:"z"`
	FPrimeL   float64 `yaml:"f'(L)"`
	FPrimeR   float64 `yaml:"f'(R)"`
	FPrimeZ   float64 `yaml:"f'(z)"`
}

// Width is R - L as recorded.
func (r IterationRecord) Width() float64 { return r.R - r.L }

func (r IterationRecord) MarshalJSON() ([]byte, error) {
	fields := [...]struct {
		key string
		val float64
	}{
		{"L", r.L}, {"R", r.R}, {"z", r.Z},
		{"f'(L)", r.FPrimeL}, {"f'(R)", r.FPrimeR}, {"f'(z)", r.FPrimeZ},
	}
	b := []byte(`{"iteration":`)
	b = strconv.AppendInt(b, int64(r.Iteration), 10)
	for _, f := range fields {
		if math.IsNaN(f.val) || math.IsInf(f.val, 0) {
			return nil, fmt.Errorf("iteration %d: %s is not finite", r.Iteration, f.key)
		}
		b = append(b, ',')
		b = strconv.AppendQuote(b, f.key)
		b = append(b, ':')
		b = strconv.AppendFloat(b, f.val, 'g', -1, 64)
	}
	return append(b, '}'), nil
}

func (r *IterationRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rec := IterationRecord{Iteration: int(raw["iteration"])}
	rec.L, rec.R, rec.Z = raw["L"], raw["R"], raw["z"]
	rec.FPrimeL, rec.FPrimeR, rec.FPrimeZ = raw["f'(L)"], raw["f'(R)"], raw["f'(z)"]
	*r = rec
	return nil
}

// Recorder accumulates iteration records in strict order. Records are
// numbered from 1 and never change once appended.
type Recorder struct {
	records []IterationRecord
}

// Record appends the next record and returns it.
func (r *Recorder) Record(l, rt, z, fl, fr, fz float64) IterationRecord {
	rec := IterationRecord{
		Iteration: len(r.records) + 1,
		L:         l,
		R:         rt,
		Z:         z,
		FPrimeL:   fl,
		FPrimeR:   fr,
		FPrimeZ:   fz,
	}
	r.records = append(r.records, rec)
	return rec
}

func (r *Recorder) Len() int { return len(r.records) }

// Records returns a copy of the trace.
func (r *Recorder) Records() []IterationRecord { return slices.Clone(r.records) }

// ============================================================
// Bracket validation
// ============================================================

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// ValidateBracket checks that l < r and that f' changes sign across [l, r].
// A domain failure at either endpoint is reported as ErrInvalidBracket
// wrapping the ErrDomain cause.
func ValidateBracket(l, r float64, fprime Evaluator) error {
	if !(l < r) {
		return fmt.Errorf("%w: lower bound %g must be less than upper bound %g", ErrInvalidBracket, l, r)
	}
	fl, err := fprime.Evaluate(l)
	if err != nil {
		return fmt.Errorf("%w: f'(%g): %w", ErrInvalidBracket, l, err)
	}
	fr, err := fprime.Evaluate(r)
	if err != nil {
		return fmt.Errorf("%w: f'(%g): %w", ErrInvalidBracket, r, err)
	}
	if sign(fl) == sign(fr) {
		return fmt.Errorf("%w: f'(%g) = %g and f'(%g) = %g do not bracket a root", ErrInvalidBracket, l, fl, r, fr)
	}
	return nil
}

// ============================================================
// Secant root finder
// ============================================================

// StopReason tells which termination rule ended the iteration.
type StopReason string

const (
	StopDerivativeTolerance StopReason = "derivative_tolerance"
	StopBracketWidth        StopReason = "bracket_width"
	StopIterationLimit      StopReason = "iteration_limit"
)

// RootOptions tunes FindRoot.
type RootOptions struct {
	// MaxIterations defaults to DefaultMaxIterations when zero.
	MaxIterations int
	// OnIteration, if set, observes every record as it is produced.
	OnIteration func(IterationRecord)
}

// RootResult is the outcome of FindRoot. L and R are the bracket after the
// last update.
type RootResult struct {
	Z          float64
	L, R       float64
	Converged  bool
	Reason     StopReason
	Iterations []IterationRecord
}

// FindRoot narrows [l, r] toward a root of fprime with the bracketed secant
// (false position) update
//
//	z = L - f'(L)·(R - L) / (f'(R) - f'(L))
//
// replacing whichever endpoint shares the sign of f'(z). It stops when
// |f'(z)| < tol, when the bracket is narrower than tol, or after
// MaxIterations steps with Converged false.
//
// FindRoot does not check the sign-change precondition; callers run
// ValidateBracket first. A flat derivative across the bracket fails with
// ErrStalledIteration.
func FindRoot(ctx context.Context, fprime Evaluator, l, r, tol float64, opts RootOptions) (*RootResult, error) {
	if !(tol > 0) || math.IsInf(tol, 0) {
		return nil, invalidArgumentf("tolerance must be a positive finite number, got %g", tol)
	}
	if !(l < r) || math.IsInf(l, 0) || math.IsInf(r, 0) {
		return nil, invalidArgumentf("bracket [%g, %g] must satisfy finite L < R", l, r)
	}
	maxIter := opts.MaxIterations
	if maxIter == 0 {
		maxIter = DefaultMaxIterations
	}
	if maxIter < 0 {
		return nil, invalidArgumentf("max iterations must be positive, got %d", maxIter)
	}

	fl, err := fprime.Evaluate(l)
	if err != nil {
		return nil, err
	}
	fr, err := fprime.Evaluate(r)
	if err != nil {
		return nil, err
	}

	var rec Recorder
	z := math.NaN()
	for rec.Len() < maxIter {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if fr == fl {
			return nil, fmt.Errorf("%w: f'(L) = f'(R) = %g on [%g, %g] at iteration %d",
				ErrStalledIteration, fl, l, r, rec.Len()+1)
		}
		z = l - fl*(r-l)/(fr-fl)
		if math.IsNaN(z) || math.IsInf(z, 0) {
			return nil, fmt.Errorf("%w: secant point on [%g, %g] is not finite at iteration %d",
				ErrStalledIteration, l, r, rec.Len()+1)
		}
		fz, err := fprime.Evaluate(z)
		if err != nil {
			return nil, err
		}

		step := rec.Record(l, r, z, fl, fr, fz)
		if opts.OnIteration != nil {
			opts.OnIteration(step)
		}

		if sign(fz) == sign(fl) {
			l, fl = z, fz
		} else {
			r, fr = z, fz
		}

		if math.Abs(fz) < tol {
			return &RootResult{Z: z, L: l, R: r, Converged: true, Reason: StopDerivativeTolerance, Iterations: rec.Records()}, nil
		}
		if math.Abs(r-l) < tol {
			return &RootResult{Z: z, L: l, R: r, Converged: true, Reason: StopBracketWidth, Iterations: rec.Records()}, nil
		}
	}
	return &RootResult{Z: z, L: l, R: r, Converged: false, Reason: StopIterationLimit, Iterations: rec.Records()}, nil
}
