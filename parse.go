package gosecant

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Var is the name of the single free variable accepted by the parser.
const Var = "x"

const (
	maxNesting = 200
	maxTokens  = 10000
)

// ============================================================
// Lexer
// ============================================================

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
	num  float64
}

func (t token) describe() string {
	if t.kind == tokEOF {
		return "end of expression"
	}
	return strconv.Quote(t.text)
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		if len(toks) == maxTokens && !isSpace(c) {
			return nil, &ParseError{Input: src, Pos: i, Msg: "expression too long"}
		}
		switch {
		case isSpace(c):
			i++
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			for i < len(src) && isDigit(src[i]) {
				i++
			}
			if i < len(src) && src[i] == '.' {
				i++
				for i < len(src) && isDigit(src[i]) {
					i++
				}
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				j := i + 1
				if j < len(src) && (src[j] == '+' || src[j] == '-') {
					j++
				}
				if j < len(src) && isDigit(src[j]) {
					for j < len(src) && isDigit(src[j]) {
						j++
					}
					i = j
				}
			}
			text := src[start:i]
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &ParseError{Input: src, Pos: start, Msg: fmt.Sprintf("number %s out of range", text)}
			}
			toks = append(toks, token{kind: tokNumber, text: text, pos: start, num: v})
		case c == '_' || isLetter(c):
			start := i
			for i < len(src) && (src[i] == '_' || isDigit(src[i]) || isLetter(src[i])) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		case c == '*' && i+1 < len(src) && src[i+1] == '*':
			toks = append(toks, token{kind: tokOp, text: "**", pos: i})
			i += 2
		case strings.IndexByte("+-*/^", c) >= 0:
			toks = append(toks, token{kind: tokOp, text: string(c), pos: i})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		default:
			r, _ := utf8.DecodeRuneInString(src[i:])
			return nil, &ParseError{Input: src, Pos: i, Msg: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

func isSpace(c byte) bool  { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

// ============================================================
// Recursive descent parser
//
//	expr    := term (('+' | '-') term)*
//	term    := unary (('*' | '/') unary)*
//	unary   := ('+' | '-') unary | power
//	power   := primary (('**' | '^') unary)?
//	primary := number | x | pi | E | name '(' expr ')' | '(' expr ')'
// ============================================================

type parser struct {
	src   string
	toks  []token
	i     int
	depth int
}

func parse(src string) (Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &ParseError{Input: src, Pos: 0, Msg: "empty expression"}
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		if t.kind == tokRParen {
			return nil, p.errorf(t, "unbalanced %q", ")")
		}
		return nil, p.errorf(t, "unexpected %s", t.describe())
	}
	return e, nil
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) acceptOp(ops ...string) (token, bool) {
	t := p.peek()
	if t.kind != tokOp {
		return t, false
	}
	for _, op := range ops {
		if t.text == op {
			p.i++
			return t, true
		}
	}
	return t, false
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &ParseError{Input: p.src, Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

// enter guards recursion so hostile input cannot exhaust the stack.
func (p *parser) enter(t token) error {
	p.depth++
	if p.depth > maxNesting {
		return p.errorf(t, "expression nested too deeply")
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) expr() (Expr, error) {
	defer p.leave()
	if err := p.enter(p.peek()); err != nil {
		return nil, err
	}
	first, err := p.term()
	if err != nil {
		return nil, err
	}
	terms := []Expr{first}
	for {
		op, ok := p.acceptOp("+", "-")
		if !ok {
			return AddOf(terms...), nil
		}
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		if op.text == "-" {
			right = MulOf(N(-1), right)
		}
		terms = append(terms, right)
	}
}

func (p *parser) term() (Expr, error) {
	first, err := p.unary()
	if err != nil {
		return nil, err
	}
	factors := []Expr{first}
	for {
		op, ok := p.acceptOp("*", "/")
		if !ok {
			return MulOf(factors...), nil
		}
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		if op.text == "/" {
			right = PowOf(right, N(-1))
		}
		factors = append(factors, right)
	}
}

func (p *parser) unary() (Expr, error) {
	if op, ok := p.acceptOp("+", "-"); ok {
		defer p.leave()
		if err := p.enter(op); err != nil {
			return nil, err
		}
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		if op.text == "-" {
			return MulOf(N(-1), operand), nil
		}
		return operand, nil
	}
	return p.power()
}

func (p *parser) power() (Expr, error) {
	base, err := p.primary()
	if err != nil {
		return nil, err
	}
	op, ok := p.acceptOp("**", "^")
	if !ok {
		return base, nil
	}
	defer p.leave()
	if err := p.enter(op); err != nil {
		return nil, err
	}
	exp, err := p.unary()
	if err != nil {
		return nil, err
	}
	return PowOf(base, exp), nil
}

func (p *parser) primary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return N(t.num), nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.call(t)
		}
		switch t.text {
		case Var:
			return S(Var), nil
		case "pi":
			return Pi, nil
		case "E":
			return E, nil
		}
		if _, ok := functions[t.text]; ok {
			return nil, p.errorf(t, "function %s requires a parenthesized argument", t.text)
		}
		return nil, p.errorf(t, "unknown identifier %q", t.text)
	case tokLParen:
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, p.errorf(t, "unbalanced %q", "(")
		}
		p.next()
		return inner, nil
	case tokEOF:
		return nil, p.errorf(t, "unexpected end of expression")
	}
	return nil, p.errorf(t, "unexpected %s", t.describe())
}

func (p *parser) call(name token) (Expr, error) {
	build, ok := functions[name.text]
	if !ok {
		return nil, p.errorf(name, "unknown function %q", name.text)
	}
	open := p.next()
	arg, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokRParen {
		return nil, p.errorf(open, "unbalanced %q", "(")
	}
	p.next()
	return build(arg), nil
}
