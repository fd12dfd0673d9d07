package gosecant_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gosecant "github.com/njchilds90/gosecant"
)

func derivativeOf(t *testing.T, src string) *gosecant.Expression {
	t.Helper()
	d, err := mustCompile(t, src).Derivative()
	require.NoError(t, err)
	return d
}

// ============================================================
// ValidateBracket
// ============================================================

func TestValidateBracket(t *testing.T) {
	tests := []struct {
		name    string
		fx      string
		l, r    float64
		wantErr bool
		domain  bool
	}{
		{name: "sign change", fx: "x**2 - 4*x", l: 0, r: 5},
		{name: "root at left endpoint", fx: "x**2 - 4*x", l: 2, r: 5},
		{name: "same sign", fx: "x**2 - 4*x", l: 3, r: 5, wantErr: true},
		{name: "equal bounds", fx: "x**2", l: 1, r: 1, wantErr: true},
		{name: "reversed bounds", fx: "x**2", l: 1, r: -1, wantErr: true},
		{name: "domain failure at endpoint", fx: "16/x + 2*x**2", l: 0, r: 5, wantErr: true, domain: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gosecant.ValidateBracket(tt.l, tt.r, derivativeOf(t, tt.fx))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, gosecant.ErrInvalidBracket)
			assert.Equal(t, gosecant.KindInvalidBracket, gosecant.KindOf(err))
			assert.Equal(t, tt.domain, errors.Is(err, gosecant.ErrDomain))
		})
	}
}

// ============================================================
// FindRoot
// ============================================================

func TestFindRoot_ExactRoot(t *testing.T) {
	res, err := gosecant.FindRoot(context.Background(), derivativeOf(t, "x**2 - 4*x"), 0, 5, 1e-6, gosecant.RootOptions{})
	require.NoError(t, err)

	want := []gosecant.IterationRecord{
		{Iteration: 1, L: 0, R: 5, Z: 2, FPrimeL: -4, FPrimeR: 6, FPrimeZ: 0},
	}
	if diff := cmp.Diff(want, res.Iterations); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, res.Converged)
	assert.Equal(t, gosecant.StopDerivativeTolerance, res.Reason)
	assert.Equal(t, 2.0, res.Z)
}

func TestFindRoot_RootAtEndpoint(t *testing.T) {
	res, err := gosecant.FindRoot(context.Background(), derivativeOf(t, "x**2 - 4*x"), 2, 5, 1e-6, gosecant.RootOptions{})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, 2.0, res.Z)
	assert.Len(t, res.Iterations, 1)
}

func TestFindRoot_Cosine(t *testing.T) {
	res, err := gosecant.FindRoot(context.Background(), derivativeOf(t, "sin(x)"), 3, 6, 1e-8, gosecant.RootOptions{})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.InDelta(t, 3*math.Pi/2, res.Z, 1e-7)
	assert.LessOrEqual(t, len(res.Iterations), 10)
}

func TestFindRoot_BracketWidth(t *testing.T) {
	// f' = sign(x-1) never gets small, so only the bracket can stop it.
	res, err := gosecant.FindRoot(context.Background(), derivativeOf(t, "abs(x - 1)"), 0, 3, 1e-3, gosecant.RootOptions{})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, gosecant.StopBracketWidth, res.Reason)
	assert.InDelta(t, 1, res.Z, 1e-3)
	assert.Len(t, res.Iterations, 12)
	assert.Less(t, res.R-res.L, 1e-3)
	assert.True(t, res.Z == res.L || res.Z == res.R, "secant point becomes a bracket end")
	last := res.Iterations[len(res.Iterations)-1]
	assert.GreaterOrEqual(t, last.Width(), 1e-3, "previous bracket was still wide")
}

func TestFindRoot_IterationLimit(t *testing.T) {
	df := derivativeOf(t, "x**4")
	res, err := gosecant.FindRoot(context.Background(), df, -1, 2, 1e-6, gosecant.RootOptions{})
	require.NoError(t, err)
	assert.False(t, res.Converged)
	assert.Equal(t, gosecant.StopIterationLimit, res.Reason)
	require.Len(t, res.Iterations, gosecant.DefaultMaxIterations)
	last := res.Iterations[len(res.Iterations)-1]
	assert.Equal(t, last.Z, res.Z)
	assert.Equal(t, gosecant.DefaultMaxIterations, last.Iteration)

	res, err = gosecant.FindRoot(context.Background(), df, -1, 2, 1e-6, gosecant.RootOptions{MaxIterations: 5})
	require.NoError(t, err)
	assert.False(t, res.Converged)
	assert.Len(t, res.Iterations, 5)
}

func TestFindRoot_Stalled(t *testing.T) {
	// A constant derivative gives f'(L) == f'(R): no secant step exists.
	_, err := gosecant.FindRoot(context.Background(), derivativeOf(t, "2*x"), 0, 1, 1e-6, gosecant.RootOptions{})
	require.ErrorIs(t, err, gosecant.ErrStalledIteration)
	assert.Equal(t, gosecant.KindStalledIteration, gosecant.KindOf(err))
}

func TestFindRoot_EvaluationError(t *testing.T) {
	sentinel := errors.New("evaluation failed")
	fprime := gosecant.EvaluatorFunc(func(x float64) (float64, error) {
		switch x {
		case 0:
			return -1, nil
		case 2:
			return 1, nil
		}
		return 0, sentinel
	})
	_, err := gosecant.FindRoot(context.Background(), fprime, 0, 2, 1e-6, gosecant.RootOptions{})
	assert.ErrorIs(t, err, sentinel)
}

func TestFindRoot_InvalidArguments(t *testing.T) {
	df := derivativeOf(t, "x**2")
	tests := []struct {
		name string
		l, r float64
		tol  float64
		max  int
	}{
		{name: "zero tolerance", l: -1, r: 1, tol: 0},
		{name: "negative tolerance", l: -1, r: 1, tol: -1},
		{name: "NaN tolerance", l: -1, r: 1, tol: math.NaN()},
		{name: "equal bounds", l: 1, r: 1, tol: 1e-6},
		{name: "infinite bound", l: -1, r: math.Inf(1), tol: 1e-6},
		{name: "negative limit", l: -1, r: 1, tol: 1e-6, max: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gosecant.FindRoot(context.Background(), df, tt.l, tt.r, tt.tol, gosecant.RootOptions{MaxIterations: tt.max})
			require.ErrorIs(t, err, gosecant.ErrInvalidArgument)
			assert.Equal(t, gosecant.KindInvalidArgument, gosecant.KindOf(err))
		})
	}
}

func TestFindRoot_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gosecant.FindRoot(ctx, derivativeOf(t, "x**2"), -1, 2, 1e-6, gosecant.RootOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindRoot_OnIteration(t *testing.T) {
	var seen []gosecant.IterationRecord
	res, err := gosecant.FindRoot(context.Background(), derivativeOf(t, "exp(x) - 2*x"), 0, 2, 1e-8, gosecant.RootOptions{
		OnIteration: func(rec gosecant.IterationRecord) { seen = append(seen, rec) },
	})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.InDelta(t, math.Ln2, res.Z, 1e-7)
	if diff := cmp.Diff(res.Iterations, seen); diff != "" {
		t.Errorf("observed records differ from trace (-trace +observed):\n%s", diff)
	}
	for i, rec := range seen {
		assert.Equal(t, i+1, rec.Iteration)
	}
}

// ============================================================
// Recorder
// ============================================================

func TestRecorder(t *testing.T) {
	var r gosecant.Recorder
	first := r.Record(0, 4, 1, -2, 3, -1)
	r.Record(1, 4, 2, -1, 3, 0.5)
	assert.Equal(t, 1, first.Iteration)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 4.0, first.Width())

	recs := r.Records()
	recs[0].Z = 99
	assert.Equal(t, 1.0, r.Records()[0].Z, "Records returns a copy")
	assert.Equal(t, 2, r.Records()[1].Iteration)
}

// ============================================================
// Error kinds
// ============================================================

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want gosecant.Kind
	}{
		{err: nil, want: gosecant.KindUnknown},
		{err: errors.New("other"), want: gosecant.KindUnknown},
		{err: gosecant.ErrDomain, want: gosecant.KindDomain},
		{err: gosecant.ErrUnsupportedOperation, want: gosecant.KindUnsupportedOperation},
		{err: &gosecant.ParseError{Input: "y", Msg: "unknown identifier"}, want: gosecant.KindParse},
		{err: gosecant.ErrNotConverged, want: gosecant.KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gosecant.KindOf(tt.err), "%v", tt.err)
	}
}

func TestIterationRecord_JSON(t *testing.T) {
	rec := gosecant.IterationRecord{Iteration: 3, L: 0.5, R: 5, Z: 1e-5, FPrimeL: -62, FPrimeR: 19.36, FPrimeZ: 0.25}
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"iteration":3,"L":0.5,"R":5,"z":1e-05,"f'(L)":-62,"f'(R)":19.36,"f'(z)":0.25}`, string(raw))

	var back gosecant.IterationRecord
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, rec, back)

	_, err = json.Marshal(gosecant.IterationRecord{Iteration: 1, Z: math.NaN()})
	assert.Error(t, err)
}
