// Package gosecant locates the minimizer of a single-variable function on a
// bounded interval by finding a root of its analytic derivative.
//
// Design goals:
//   - Closed expression grammar, never evaluated as code
//   - Analytic differentiation on an immutable expression tree
//   - Bracketed secant (false position) iteration with a full trace
//   - Deterministic: identical inputs yield identical traces
//   - No process-wide mutable state; safe for concurrent callers
package gosecant

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// ============================================================
// Core Interface
// ============================================================

// Expr is a node of an immutable expression tree in one real variable.
type Expr interface {
	String() string
	LaTeX() string
	Diff(varName string) (Expr, error)
	Eval(x float64) (float64, error)
	Equal(other Expr) bool
	prec() int
}

// Printing precedence, lowest binds loosest.
const (
	precAdd = iota + 1
	precMul
	precUnary
	precPow
	precAtom
)

func finite(what string, v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, domainErrorf("%s is not a finite real number", what)
	}
	return v, nil
}

// ============================================================
// Num: IEEE double constant
// ============================================================

type Num struct {
	val  float64
	name string
}

func N(v float64) *Num { return &Num{val: v} }

var (
	Pi = &Num{val: math.Pi, name: "pi"}
	E  = &Num{val: math.E, name: "E"}
)

func (n *Num) Value() float64                { return n.val }
func (n *Num) Diff(string) (Expr, error)     { return N(0), nil }
func (n *Num) Eval(float64) (float64, error) { return finite("constant", n.val) }
func (n *Num) Equal(other Expr) bool         { o, ok := other.(*Num); return ok && n.val == o.val }
func (n *Num) IsZero() bool                  { return n.val == 0 }
func (n *Num) IsOne() bool                   { return n.val == 1 }
func (n *Num) IsNegative() bool              { return n.val < 0 }
func (n *Num) IsInteger() bool               { return n.val == math.Trunc(n.val) }
func (n *Num) String() string                { return n.format() }
func (n *Num) LaTeX() string                 { return n.latex() }
func (n *Num) prec() int {
	if n.val < 0 && n.name == "" {
		return precUnary
	}
	return precAtom
}

func (n *Num) format() string {
	if n.name != "" {
		return n.name
	}
	return strconv.FormatFloat(n.val, 'g', -1, 64)
}

func (n *Num) latex() string {
	switch n.name {
	case "pi":
		return "\\pi"
	case "E":
		return "e"
	}
	return n.format()
}

// ============================================================
// Sym: the free variable
// ============================================================

type Sym struct{ name string }

func S(name string) *Sym                       { return &Sym{name: name} }
func (s *Sym) Name() string                    { return s.name }
func (s *Sym) String() string                  { return s.name }
func (s *Sym) LaTeX() string                   { return s.name }
func (s *Sym) Eval(x float64) (float64, error) { return x, nil }
func (s *Sym) Equal(other Expr) bool           { o, ok := other.(*Sym); return ok && s.name == o.name }
func (s *Sym) prec() int                       { return precAtom }
func (s *Sym) Diff(varName string) (Expr, error) {
	if s.name == varName {
		return N(1), nil
	}
	return N(0), nil
}

// ============================================================
// Add: sum of terms
// ============================================================

type Add struct{ terms []Expr }

func AddOf(terms ...Expr) Expr {
	flat := make([]Expr, 0, len(terms))
	for _, t := range terms {
		if inner, ok := t.(*Add); ok {
			flat = append(flat, inner.terms...)
		} else {
			flat = append(flat, t)
		}
	}
	var nums []*Num
	symCoeffs := map[string]float64{}
	symOrder := []string{}
	others := []Expr{}
	for _, t := range flat {
		switch v := t.(type) {
		case *Num:
			nums = append(nums, v)
		case *Sym:
			if _, seen := symCoeffs[v.name]; !seen {
				symOrder = append(symOrder, v.name)
			}
			symCoeffs[v.name]++
		default:
			others = append(others, t)
		}
	}
	result := []Expr{}
	sort.Strings(symOrder)
	for _, name := range symOrder {
		switch coeff := symCoeffs[name]; coeff {
		case 1:
			result = append(result, S(name))
		default:
			result = append(result, MulOf(N(coeff), S(name)))
		}
	}
	result = append(result, others...)
	if c := foldSum(nums); c != nil && !c.IsZero() {
		result = append(result, c)
	}
	if len(result) == 0 {
		return N(0)
	}
	if len(result) == 1 {
		return result[0]
	}
	return &Add{terms: result}
}

func foldSum(nums []*Num) *Num {
	switch len(nums) {
	case 0:
		return nil
	case 1:
		return nums[0]
	}
	acc := 0.0
	for _, n := range nums {
		acc += n.val
	}
	return N(acc)
}

func (a *Add) Terms() []Expr { return append([]Expr(nil), a.terms...) }
func (a *Add) prec() int     { return precAdd }

func (a *Add) String() string {
	var b strings.Builder
	for i, t := range a.terms {
		neg, abs := splitSign(t)
		switch {
		case i == 0 && neg:
			b.WriteString("-" + wrap(abs, precMul))
		case i == 0:
			b.WriteString(t.String())
		case neg:
			b.WriteString(" - " + wrap(abs, precMul))
		default:
			b.WriteString(" + " + t.String())
		}
	}
	return b.String()
}

func (a *Add) LaTeX() string {
	var b strings.Builder
	for i, t := range a.terms {
		neg, abs := splitSign(t)
		switch {
		case i == 0 && neg:
			b.WriteString("-" + abs.LaTeX())
		case i == 0:
			b.WriteString(t.LaTeX())
		case neg:
			b.WriteString(" - " + abs.LaTeX())
		default:
			b.WriteString(" + " + t.LaTeX())
		}
	}
	return b.String()
}

func (a *Add) Diff(varName string) (Expr, error) {
	dTerms := make([]Expr, len(a.terms))
	for i, t := range a.terms {
		d, err := t.Diff(varName)
		if err != nil {
			return nil, err
		}
		dTerms[i] = d
	}
	return AddOf(dTerms...), nil
}

func (a *Add) Eval(x float64) (float64, error) {
	acc := 0.0
	for _, t := range a.terms {
		v, err := t.Eval(x)
		if err != nil {
			return 0, err
		}
		acc += v
	}
	return finite("sum", acc)
}

func (a *Add) Equal(other Expr) bool {
	o, ok := other.(*Add)
	return ok && equalAll(a.terms, o.terms)
}

// splitSign reports whether e prints with a leading minus and returns its
// magnitude, so sums read "a - b" instead of "a + -b".
func splitSign(e Expr) (bool, Expr) {
	switch v := e.(type) {
	case *Num:
		if v.IsNegative() && v.name == "" {
			return true, N(-v.val)
		}
	case *Mul:
		if c, ok := v.factors[0].(*Num); ok && c.IsNegative() && c.name == "" {
			rest := append([]Expr{N(-c.val)}, v.factors[1:]...)
			return true, MulOf(rest...)
		}
	}
	return false, e
}

// ============================================================
// Mul: product of factors
// ============================================================

type Mul struct{ factors []Expr }

func MulOf(factors ...Expr) Expr {
	flat := make([]Expr, 0, len(factors))
	for _, f := range factors {
		if inner, ok := f.(*Mul); ok {
			flat = append(flat, inner.factors...)
		} else {
			flat = append(flat, f)
		}
	}
	var nums []*Num
	groups := map[string]*powerGroup{}
	order := []*powerGroup{}
	for _, f := range flat {
		if v, ok := f.(*Num); ok {
			nums = append(nums, v)
			continue
		}
		base, exp := splitPower(f)
		key := base.String()
		g, seen := groups[key]
		if !seen {
			g = &powerGroup{base: base, first: f}
			groups[key] = g
			order = append(order, g)
		}
		g.exp += exp
		g.count++
	}
	coeff := foldProduct(nums)
	if coeff != nil && coeff.IsZero() {
		return N(0)
	}

	merged := make([]Expr, 0, len(order))
	renormalize := false
	for _, g := range order {
		if g.count == 1 {
			merged = append(merged, g.first)
			continue
		}
		if g.exp == 0 {
			continue
		}
		e := PowOf(g.base, N(g.exp))
		switch e.(type) {
		case *Num, *Mul:
			renormalize = true
		}
		merged = append(merged, e)
	}
	if renormalize {
		// A merged power folded to a constant or a product; fold once more.
		if coeff != nil {
			merged = append(merged, coeff)
		}
		return MulOf(merged...)
	}
	if len(merged) == 0 {
		if coeff == nil {
			return N(1)
		}
		return coeff
	}

	// Precompute sort keys to avoid repeated String() calls in comparator.
	type keyed struct {
		e   Expr
		key string
	}
	ks := make([]keyed, len(merged))
	for i, e := range merged {
		ks[i] = keyed{e: e, key: e.String()}
	}
	sort.SliceStable(ks, func(i, j int) bool { return ks[i].key < ks[j].key })
	sorted := make([]Expr, len(ks))
	for i := range ks {
		sorted[i] = ks[i].e
	}
	return scale(coeff, sorted)
}

type powerGroup struct {
	base  Expr
	first Expr
	exp   float64
	count int
}

// splitPower returns f as base**exp with a numeric exponent, so that repeated
// factors of one base merge into a single power.
func splitPower(f Expr) (Expr, float64) {
	if p, ok := f.(*Pow); ok {
		if en, ok := p.exp.(*Num); ok {
			switch p.base.(type) {
			case *Num, *Mul:
			default:
				return p.base, en.val
			}
		}
	}
	return f, 1
}

// scale multiplies an already canonical factor list by c.
func scale(c *Num, factors []Expr) Expr {
	if len(factors) > 0 {
		if lead, ok := factors[0].(*Num); ok {
			if c == nil {
				c = lead
			} else {
				c = N(c.val * lead.val)
			}
			factors = factors[1:]
		}
	}
	switch {
	case c != nil && c.IsZero():
		return N(0)
	case len(factors) == 0 && c == nil:
		return N(1)
	case len(factors) == 0:
		return c
	case c == nil || c.IsOne():
		if len(factors) == 1 {
			return factors[0]
		}
		return &Mul{factors: factors}
	}
	return &Mul{factors: append([]Expr{c}, factors...)}
}

func foldProduct(nums []*Num) *Num {
	switch len(nums) {
	case 0:
		return nil
	case 1:
		return nums[0]
	}
	acc := 1.0
	for _, n := range nums {
		acc *= n.val
	}
	return N(acc)
}

func (m *Mul) Factors() []Expr { return append([]Expr(nil), m.factors...) }
func (m *Mul) prec() int       { return precMul }

// fraction splits the factors into numerator and denominator, moving any
// power with a negative constant exponent below the line.
func (m *Mul) fraction() (num, den []Expr) {
	for _, f := range m.factors {
		if p, ok := f.(*Pow); ok {
			if e, ok := p.exp.(*Num); ok && e.IsNegative() && e.name == "" {
				den = append(den, PowOf(p.base, N(-e.val)))
				continue
			}
		}
		num = append(num, f)
	}
	return num, den
}

func (m *Mul) String() string {
	num, den := m.fraction()
	var b strings.Builder
	switch {
	case len(num) == 0:
		b.WriteString("1")
	default:
		start := 0
		if c, ok := num[0].(*Num); ok && c.val == -1 && c.name == "" && len(num) > 1 {
			b.WriteString("-")
			start = 1
		}
		for i, f := range num[start:] {
			if i > 0 {
				b.WriteString("*")
			}
			if i == 0 && start == 0 {
				b.WriteString(wrap(f, precUnary))
			} else {
				b.WriteString(wrap(f, precPow))
			}
		}
	}
	switch len(den) {
	case 0:
	case 1:
		b.WriteString("/" + wrap(den[0], precPow))
	default:
		parts := make([]string, len(den))
		for i, f := range den {
			parts[i] = wrap(f, precPow)
		}
		b.WriteString("/(" + strings.Join(parts, "*") + ")")
	}
	return b.String()
}

func (m *Mul) LaTeX() string {
	num, den := m.fraction()
	parts := make([]string, len(num))
	for i, f := range num {
		if f.prec() < precMul {
			parts[i] = "\\left(" + f.LaTeX() + "\\right)"
		} else {
			parts[i] = f.LaTeX()
		}
	}
	top := strings.Join(parts, " ")
	if len(num) == 0 {
		top = "1"
	}
	if len(den) == 0 {
		return top
	}
	bottom := make([]string, len(den))
	for i, f := range den {
		bottom[i] = f.LaTeX()
	}
	return "\\frac{" + top + "}{" + strings.Join(bottom, " ") + "}"
}

func (m *Mul) Diff(varName string) (Expr, error) {
	terms := make([]Expr, 0, len(m.factors))
	for i, fi := range m.factors {
		dfi, err := fi.Diff(varName)
		if err != nil {
			return nil, err
		}
		if n, ok := dfi.(*Num); ok && n.IsZero() {
			continue
		}
		rest := make([]Expr, 0, len(m.factors))
		rest = append(rest, m.factors[:i]...)
		rest = append(rest, m.factors[i+1:]...)
		// The remaining factors are still canonical; only a non-constant
		// derivative has to be merged back in.
		if n, ok := dfi.(*Num); ok {
			terms = append(terms, scale(n, rest))
			continue
		}
		terms = append(terms, MulOf(append([]Expr{dfi}, rest...)...))
	}
	return AddOf(terms...), nil
}

func (m *Mul) Eval(x float64) (float64, error) {
	acc := 1.0
	for _, f := range m.factors {
		v, err := f.Eval(x)
		if err != nil {
			return 0, err
		}
		acc *= v
	}
	return finite("product", acc)
}

func (m *Mul) Equal(other Expr) bool {
	o, ok := other.(*Mul)
	return ok && equalAll(m.factors, o.factors)
}

// ============================================================
// Pow: base**exponent
// ============================================================

type Pow struct{ base, exp Expr }

func PowOf(base, exp Expr) Expr {
	if en, ok := exp.(*Num); ok {
		if en.IsZero() {
			return N(1)
		}
		if en.IsOne() {
			return base
		}
	}
	if bn, ok := base.(*Num); ok {
		if bn.IsOne() {
			return N(1)
		}
		if en, ok := exp.(*Num); ok {
			if v, err := powValue(bn.val, en.val); err == nil {
				return N(v)
			}
			return &Pow{base: base, exp: exp}
		}
	}
	// (u**m)**n collapses only for integer m and n; (x**2)**0.5 is |x|, not x.
	if inner, ok := base.(*Pow); ok {
		m, ok1 := inner.exp.(*Num)
		n, ok2 := exp.(*Num)
		if ok1 && ok2 && m.IsInteger() && n.IsInteger() {
			return PowOf(inner.base, N(m.val*n.val))
		}
	}
	return &Pow{base: base, exp: exp}
}

func powValue(b, e float64) (float64, error) {
	if b == 0 && e < 0 {
		return 0, domainErrorf("division by zero (0 raised to %g)", e)
	}
	if b < 0 && e != math.Trunc(e) {
		return 0, domainErrorf("negative base %g raised to non-integer power %g", b, e)
	}
	return finite("power", math.Pow(b, e))
}

func (p *Pow) Base() Expr     { return p.base }
func (p *Pow) Exponent() Expr { return p.exp }
func (p *Pow) prec() int      { return precPow }

func (p *Pow) String() string {
	// ** is right-associative, so a power base needs parentheses.
	base := wrap(p.base, precAtom)
	if en, ok := p.exp.(*Num); ok && en.IsNegative() {
		return base + "**" + en.String()
	}
	return base + "**" + wrap(p.exp, precPow)
}

func (p *Pow) LaTeX() string {
	baseStr := p.base.LaTeX()
	if p.base.prec() < precAtom {
		baseStr = "\\left(" + baseStr + "\\right)"
	}
	if en, ok := p.exp.(*Num); ok && en.val == 0.5 {
		return "\\sqrt{" + p.base.LaTeX() + "}"
	}
	return baseStr + "^{" + p.exp.LaTeX() + "}"
}

func (p *Pow) Diff(varName string) (Expr, error) {
	du, err := p.base.Diff(varName)
	if err != nil {
		return nil, err
	}
	dv, err := p.exp.Diff(varName)
	if err != nil {
		return nil, err
	}
	if en, ok := p.exp.(*Num); ok {
		return MulOf(en, PowOf(p.base, N(en.val-1)), du), nil
	}
	if _, ok := p.base.(*Num); ok {
		return MulOf(PowOf(p.base, p.exp), LogOf(p.base), dv), nil
	}
	logTerm := MulOf(dv, LogOf(p.base))
	divTerm := MulOf(p.exp, du, PowOf(p.base, N(-1)))
	return MulOf(PowOf(p.base, p.exp), AddOf(logTerm, divTerm)), nil
}

func (p *Pow) Eval(x float64) (float64, error) {
	b, err := p.base.Eval(x)
	if err != nil {
		return 0, err
	}
	e, err := p.exp.Eval(x)
	if err != nil {
		return 0, err
	}
	return powValue(b, e)
}

func (p *Pow) Equal(other Expr) bool {
	o, ok := other.(*Pow)
	return ok && p.base.Equal(o.base) && p.exp.Equal(o.exp)
}

// ============================================================
// Shared helpers
// ============================================================

// wrap parenthesizes e when it binds looser than min.
func wrap(e Expr, min int) string {
	if e.prec() < min {
		return "(" + e.String() + ")"
	}
	return e.String()
}

func equalAll(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
