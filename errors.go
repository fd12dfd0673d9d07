package gosecant

import (
	"errors"
	"fmt"
)

var (
	// ErrParse is returned when expression text is not in the supported grammar.
	ErrParse = errors.New("gosecant: parse error")
	// ErrDomain is returned when an expression is evaluated outside its real domain.
	ErrDomain = errors.New("gosecant: domain error")
	// ErrInvalidArgument is returned for a non-positive tolerance, a >= b, or non-finite inputs.
	ErrInvalidArgument = errors.New("gosecant: invalid argument")
	// ErrInvalidBracket is returned when f' does not change sign across the bracket.
	ErrInvalidBracket = errors.New("gosecant: invalid bracket")
	// ErrStalledIteration is returned when a secant step cannot be computed.
	ErrStalledIteration = errors.New("gosecant: stalled iteration")
	// ErrUnsupportedOperation is returned when a node has no differentiation rule.
	ErrUnsupportedOperation = errors.New("gosecant: unsupported operation")
	// ErrNotConverged is reported by Result.Err when the iteration limit was reached.
	ErrNotConverged = errors.New("gosecant: did not converge")
)

// ParseError describes malformed expression text.
type ParseError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s at offset %d in %q", ErrParse, e.Msg, e.Pos, e.Input)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Kind is the machine-readable classification of an engine error.
type Kind string

const (
	KindUnknown              Kind = ""
	KindParse                Kind = "ParseError"
	KindDomain               Kind = "DomainError"
	KindInvalidArgument      Kind = "InvalidArgumentError"
	KindInvalidBracket       Kind = "InvalidBracketError"
	KindStalledIteration     Kind = "StalledIterationError"
	KindUnsupportedOperation Kind = "UnsupportedOperationError"
)

// KindOf classifies err. An invalid bracket caused by a domain failure
// reports KindInvalidBracket.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrInvalidBracket):
		return KindInvalidBracket
	case errors.Is(err, ErrStalledIteration):
		return KindStalledIteration
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrUnsupportedOperation):
		return KindUnsupportedOperation
	case errors.Is(err, ErrDomain):
		return KindDomain
	}
	return KindUnknown
}

func domainErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDomain, fmt.Sprintf(format, args...))
}

func invalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
