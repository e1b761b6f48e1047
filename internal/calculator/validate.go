package calculator

import (
	"fmt"
	"math"
	"strings"

	"construct-calc/internal/domain/models"
	"construct-calc/internal/formula"
)

// TemplateInput is the user-supplied definition of a new template.
type TemplateInput struct {
	Name          string            `json:"name" yaml:"name"`
	Description   string            `json:"description" yaml:"description"`
	Variables     []models.Variable `json:"variables" yaml:"variables"`
	Formulas      []models.Formula  `json:"formulas" yaml:"formulas"`
	SingleFormula bool              `json:"single_formula" yaml:"single_formula"`
	CreatedBy     string            `json:"-" yaml:"created_by"`
}

// Validate checks every template invariant. It returns a *DuplicateNameError
// for repeated variable/formula names and an *InvalidTemplateError otherwise.
func (in *TemplateInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return &InvalidTemplateError{Field: "name", Reason: "must not be empty"}
	}

	vars := make(map[string]struct{}, len(in.Variables))
	for i, v := range in.Variables {
		field := fmt.Sprintf("variables[%d]", i)
		if err := checkName(field, v.Name); err != nil {
			return err
		}
		if _, dup := vars[v.Name]; dup {
			return &DuplicateNameError{Kind: "variable", Name: v.Name}
		}
		vars[v.Name] = struct{}{}

		if !v.Unit.Valid() {
			return &InvalidTemplateError{Field: field + ".unit", Reason: fmt.Sprintf("unknown unit %q", v.Unit)}
		}
		if err := v.Type.Validate(); err != nil {
			return &InvalidTemplateError{Field: field + ".type", Reason: err.Error()}
		}
		if math.IsNaN(v.DefaultValue) || math.IsInf(v.DefaultValue, 0) {
			return &InvalidTemplateError{Field: field + ".default_value", Reason: "must be finite"}
		}
	}

	if len(in.Formulas) == 0 {
		return &InvalidTemplateError{Field: "formulas", Reason: "at least one formula is required"}
	}
	if in.SingleFormula && len(in.Formulas) != 1 {
		return &InvalidTemplateError{Field: "formulas", Reason: fmt.Sprintf("single-formula template has %d formulas", len(in.Formulas))}
	}

	formulas := make(map[string]struct{}, len(in.Formulas))
	for i, f := range in.Formulas {
		field := fmt.Sprintf("formulas[%d]", i)
		if err := checkName(field, f.Name); err != nil {
			return err
		}
		if _, dup := formulas[f.Name]; dup {
			return &DuplicateNameError{Kind: "formula", Name: f.Name}
		}
		formulas[f.Name] = struct{}{}

		if _, err := formula.Compile(f.Expression); err != nil {
			return &InvalidTemplateError{Field: field + ".expression", Reason: "does not parse", Err: err}
		}
	}

	return nil
}

// UnresolvedReferences maps each formula name to the identifiers in its
// expression that the template does not declare. Such formulas are accepted
// but will fail with an unresolved-variable error at evaluation time.
func (in *TemplateInput) UnresolvedReferences() map[string][]string {
	declared := make(map[string]struct{}, len(in.Variables))
	for _, v := range in.Variables {
		declared[v.Name] = struct{}{}
	}

	out := make(map[string][]string)
	for _, f := range in.Formulas {
		expr, err := formula.Compile(f.Expression)
		if err != nil {
			continue
		}
		if missing := expr.Unresolved(declared); len(missing) > 0 {
			out[f.Name] = missing
		}
	}
	return out
}

func checkName(field, name string) error {
	if !formula.IsIdentifier(name) {
		return &InvalidTemplateError{Field: field + ".name", Reason: fmt.Sprintf("%q is not a valid identifier", name)}
	}
	if formula.IsReserved(name) {
		return &InvalidTemplateError{Field: field + ".name", Reason: fmt.Sprintf("%q is a reserved function or constant name", name)}
	}
	return nil
}

// validateValues rejects value maps whose keys could never be variable names
// or whose values are not finite numbers.
func validateValues(values map[string]float64) error {
	for name, v := range values {
		if !formula.IsIdentifier(name) {
			return invalidInput("value name %q is not a valid identifier", name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalidInput("value %q must be finite", name)
		}
	}
	return nil
}
