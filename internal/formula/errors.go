package formula

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package matches exactly one of
// these through errors.Is.
var (
	ErrUnresolvedVariable  = errors.New("unresolved variable")
	ErrMalformedExpression = errors.New("malformed expression")
	ErrNonFiniteResult     = errors.New("non-finite result")
)

// UnresolvedVariableError reports an identifier that is neither an
// allow-listed function/constant nor a key of the value map.
type UnresolvedVariableError struct {
	Name string
	Pos  int
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("unresolved variable %q at position %d", e.Name, e.Pos)
}

func (e *UnresolvedVariableError) Unwrap() error {
	return ErrUnresolvedVariable
}

// MalformedExpressionError reports syntactically invalid expression text.
type MalformedExpressionError struct {
	Pos    int
	Reason string
}

func (e *MalformedExpressionError) Error() string {
	return fmt.Sprintf("malformed expression at position %d: %s", e.Pos, e.Reason)
}

func (e *MalformedExpressionError) Unwrap() error {
	return ErrMalformedExpression
}

// NonFiniteResultError reports an evaluation that produced NaN or ±Inf.
type NonFiniteResultError struct {
	Value float64
	// Op names the operation that first produced the non-finite value, when known.
	Op string
}

func (e *NonFiniteResultError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s produced non-finite result %g", e.Op, e.Value)
	}
	return fmt.Sprintf("non-finite result %g", e.Value)
}

func (e *NonFiniteResultError) Unwrap() error {
	return ErrNonFiniteResult
}

func malformed(pos int, format string, args ...any) error {
	return &MalformedExpressionError{Pos: pos, Reason: fmt.Sprintf(format, args...)}
}

// IsUnresolvedVariable returns true if err is (or wraps) an UnresolvedVariableError.
func IsUnresolvedVariable(err error) bool {
	var target *UnresolvedVariableError
	return errors.As(err, &target)
}

// IsMalformedExpression returns true if err is (or wraps) a MalformedExpressionError.
func IsMalformedExpression(err error) bool {
	var target *MalformedExpressionError
	return errors.As(err, &target)
}

// IsNonFiniteResult returns true if err is (or wraps) a NonFiniteResultError.
func IsNonFiniteResult(err error) bool {
	var target *NonFiniteResultError
	return errors.As(err, &target)
}

// Kind returns a stable snake_case label for err, suitable for metric
// attributes and JSON responses. Unknown errors map to "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnresolvedVariable):
		return "unresolved_variable"
	case errors.Is(err, ErrMalformedExpression):
		return "malformed_expression"
	case errors.Is(err, ErrNonFiniteResult):
		return "non_finite_result"
	default:
		return "internal"
	}
}
