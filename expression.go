package gosecant

import (
	"k8s.io/utils/lru"
)

// Evaluator is a real function of one variable that may fail with ErrDomain.
type Evaluator interface {
	Evaluate(x float64) (float64, error)
}

// EvaluatorFunc adapts an ordinary function to Evaluator.
type EvaluatorFunc func(x float64) (float64, error)

func (f EvaluatorFunc) Evaluate(x float64) (float64, error) { return f(x) }

// Expression is a compiled, immutable function of x.
type Expression struct {
	src  string
	root Expr
}

// Compile parses src into an Expression. It fails with a *ParseError
// (matching ErrParse) when src is outside the supported grammar.
func Compile(src string) (*Expression, error) {
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	return &Expression{src: src, root: root}, nil
}

// FromExpr wraps a tree built with the constructor functions.
func FromExpr(root Expr) *Expression {
	return &Expression{src: root.String(), root: root}
}

// Differentiate returns the analytic derivative of e with respect to x.
func Differentiate(e *Expression) (*Expression, error) {
	d, err := e.root.Diff(Var)
	if err != nil {
		return nil, err
	}
	return FromExpr(d), nil
}

func (e *Expression) Derivative() (*Expression, error) { return Differentiate(e) }

// Evaluate computes the expression at x. It is pure and safe for concurrent use.
func (e *Expression) Evaluate(x float64) (float64, error) { return e.root.Eval(x) }

// Source returns the text the expression was compiled from.
func (e *Expression) Source() string { return e.src }

func (e *Expression) Expr() Expr     { return e.root }
func (e *Expression) String() string { return e.root.String() }
func (e *Expression) LaTeX() string  { return e.root.LaTeX() }

func (e *Expression) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

// ============================================================
// Compiler: compile cache keyed by source text
// ============================================================

// Compiler caches compiled functions together with their derivatives. Cached
// expressions are immutable, so concurrent callers may share them freely. A
// nil *Compiler compiles without caching.
type Compiler struct {
	cache *lru.Cache
}

type compiled struct {
	f, df *Expression
}

// NewCompiler returns a Compiler holding at most size entries. A size of zero
// or less disables caching.
func NewCompiler(size int) *Compiler {
	if size <= 0 {
		return &Compiler{}
	}
	return &Compiler{cache: lru.New(size)}
}

// Compile returns the compiled function for src and its derivative.
func (c *Compiler) Compile(src string) (f, df *Expression, err error) {
	if c != nil && c.cache != nil {
		if v, ok := c.cache.Get(src); ok {
			entry := v.(compiled)
			return entry.f, entry.df, nil
		}
	}
	f, err = Compile(src)
	if err != nil {
		return nil, nil, err
	}
	df, err = f.Derivative()
	if err != nil {
		return nil, nil, err
	}
	if c != nil && c.cache != nil {
		c.cache.Add(src, compiled{f: f, df: df})
	}
	return f, df, nil
}

// Len reports the number of cached entries.
func (c *Compiler) Len() int {
	if c == nil || c.cache == nil {
		return 0
	}
	return c.cache.Len()
}
