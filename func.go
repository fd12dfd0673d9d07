package gosecant

import (
	"fmt"
	"math"
)

// ============================================================
// Func: named elementary function applications
// ============================================================

type Func struct {
	name string
	arg  Expr
}

func funcOf(name string, arg Expr) Expr {
	f := &Func{name: name, arg: arg}
	if n, ok := arg.(*Num); ok {
		if v, err := f.apply(n.val); err == nil {
			return N(v)
		}
	}
	return f
}

func SinOf(arg Expr) Expr  { return funcOf("sin", arg) }
func CosOf(arg Expr) Expr  { return funcOf("cos", arg) }
func TanOf(arg Expr) Expr  { return funcOf("tan", arg) }
func ExpOf(arg Expr) Expr  { return funcOf("exp", arg) }
func LogOf(arg Expr) Expr  { return funcOf("log", arg) }
func SqrtOf(arg Expr) Expr { return PowOf(arg, N(0.5)) }
func AbsOf(arg Expr) Expr  { return funcOf("abs", arg) }
func AsinOf(arg Expr) Expr { return funcOf("asin", arg) }
func AcosOf(arg Expr) Expr { return funcOf("acos", arg) }
func AtanOf(arg Expr) Expr { return funcOf("atan", arg) }
func SinhOf(arg Expr) Expr { return funcOf("sinh", arg) }
func CoshOf(arg Expr) Expr { return funcOf("cosh", arg) }
func TanhOf(arg Expr) Expr { return funcOf("tanh", arg) }
func SignOf(arg Expr) Expr { return funcOf("sign", arg) }

// functions is the whitelist accepted by the parser.
var functions = map[string]func(Expr) Expr{
	"sin":  SinOf,
	"cos":  CosOf,
	"tan":  TanOf,
	"exp":  ExpOf,
	"log":  LogOf,
	"ln":   LogOf,
	"sqrt": SqrtOf,
	"abs":  AbsOf,
	"asin": AsinOf,
	"acos": AcosOf,
	"atan": AtanOf,
	"sinh": SinhOf,
	"cosh": CoshOf,
	"tanh": TanhOf,
	"sign": SignOf,
}

func (f *Func) FuncName() string { return f.name }
func (f *Func) Arg() Expr        { return f.arg }
func (f *Func) prec() int        { return precAtom }
func (f *Func) String() string   { return f.name + "(" + f.arg.String() + ")" }

func (f *Func) LaTeX() string {
	switch f.name {
	case "sin", "cos", "tan", "exp", "sinh", "cosh", "tanh":
		return "\\" + f.name + "\\left(" + f.arg.LaTeX() + "\\right)"
	case "log":
		return "\\ln\\left(" + f.arg.LaTeX() + "\\right)"
	case "asin":
		return "\\arcsin\\left(" + f.arg.LaTeX() + "\\right)"
	case "acos":
		return "\\arccos\\left(" + f.arg.LaTeX() + "\\right)"
	case "atan":
		return "\\arctan\\left(" + f.arg.LaTeX() + "\\right)"
	case "abs":
		return "\\left|" + f.arg.LaTeX() + "\\right|"
	case "sign":
		return "\\operatorname{sign}\\left(" + f.arg.LaTeX() + "\\right)"
	}
	return "\\operatorname{" + f.name + "}\\left(" + f.arg.LaTeX() + "\\right)"
}

func (f *Func) Diff(varName string) (Expr, error) {
	du, err := f.arg.Diff(varName)
	if err != nil {
		return nil, err
	}
	var outer Expr
	switch f.name {
	case "sin":
		outer = CosOf(f.arg)
	case "cos":
		outer = MulOf(N(-1), SinOf(f.arg))
	case "tan":
		outer = AddOf(N(1), PowOf(TanOf(f.arg), N(2)))
	case "exp":
		outer = ExpOf(f.arg)
	case "log":
		outer = PowOf(f.arg, N(-1))
	case "abs":
		outer = SignOf(f.arg)
	case "sign":
		// Piecewise constant; zero wherever it is differentiable.
		outer = N(0)
	case "asin":
		outer = PowOf(AddOf(N(1), MulOf(N(-1), PowOf(f.arg, N(2)))), N(-0.5))
	case "acos":
		outer = MulOf(N(-1), PowOf(AddOf(N(1), MulOf(N(-1), PowOf(f.arg, N(2)))), N(-0.5)))
	case "atan":
		outer = PowOf(AddOf(N(1), PowOf(f.arg, N(2))), N(-1))
	case "sinh":
		outer = CoshOf(f.arg)
	case "cosh":
		outer = SinhOf(f.arg)
	case "tanh":
		outer = AddOf(N(1), MulOf(N(-1), PowOf(TanhOf(f.arg), N(2))))
	default:
		return nil, fmt.Errorf("%w: no differentiation rule for %s()", ErrUnsupportedOperation, f.name)
	}
	return MulOf(outer, du), nil
}

func (f *Func) Eval(x float64) (float64, error) {
	v, err := f.arg.Eval(x)
	if err != nil {
		return 0, err
	}
	return f.apply(v)
}

func (f *Func) apply(v float64) (float64, error) {
	var r float64
	switch f.name {
	case "sin":
		r = math.Sin(v)
	case "cos":
		r = math.Cos(v)
	case "tan":
		r = math.Tan(v)
	case "exp":
		r = math.Exp(v)
	case "log":
		if v <= 0 {
			return 0, domainErrorf("log of non-positive value %g", v)
		}
		r = math.Log(v)
	case "abs":
		r = math.Abs(v)
	case "asin":
		if v < -1 || v > 1 {
			return 0, domainErrorf("asin of %g outside [-1, 1]", v)
		}
		r = math.Asin(v)
	case "acos":
		if v < -1 || v > 1 {
			return 0, domainErrorf("acos of %g outside [-1, 1]", v)
		}
		r = math.Acos(v)
	case "atan":
		r = math.Atan(v)
	case "sinh":
		r = math.Sinh(v)
	case "cosh":
		r = math.Cosh(v)
	case "tanh":
		r = math.Tanh(v)
	case "sign":
		switch {
		case v > 0:
			r = 1
		case v < 0:
			r = -1
		}
	default:
		return 0, fmt.Errorf("%w: no evaluation rule for %s()", ErrUnsupportedOperation, f.name)
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, domainErrorf("%s(%g) is not a finite real number", f.name, v)
	}
	return r, nil
}

func (f *Func) Equal(other Expr) bool {
	o, ok := other.(*Func)
	return ok && f.name == o.name && f.arg.Equal(o.arg)
}
