package calculator

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks request-level validation failures (missing ids,
// bad value names, non-finite inputs).
var ErrInvalidInput = errors.New("invalid input")

// ErrUnknownVariable is returned by Session.Set for names the template does
// not declare. ErrConstantVariable is returned when setting a constant.
var (
	ErrUnknownVariable  = errors.New("unknown variable")
	ErrConstantVariable = errors.New("variable is a constant")
)

// DuplicateNameError rejects a template that declares the same variable or
// formula name twice. It aborts creation before anything is persisted.
type DuplicateNameError struct {
	Kind string // "variable" or "formula"
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate %s name %q", e.Kind, e.Name)
}

// InvalidTemplateError rejects a template definition for any reason other
// than a duplicate name.
type InvalidTemplateError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InvalidTemplateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid template %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid template %s: %s", e.Field, e.Reason)
}

func (e *InvalidTemplateError) Unwrap() error {
	return e.Err
}

// IsDuplicateName returns true if err is (or wraps) a DuplicateNameError.
func IsDuplicateName(err error) bool {
	var target *DuplicateNameError
	return errors.As(err, &target)
}

// IsInvalidTemplate returns true if err is (or wraps) an InvalidTemplateError.
func IsInvalidTemplate(err error) bool {
	var target *InvalidTemplateError
	return errors.As(err, &target)
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
