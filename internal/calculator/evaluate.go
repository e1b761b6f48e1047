package calculator

import (
	"construct-calc/internal/domain/models"
	"construct-calc/internal/formula"
)

// FormulaResult is the outcome of one formula. Err is nil on success and one
// of the formula package error types otherwise.
type FormulaResult struct {
	Name  string
	Value float64
	Err   error
}

// OK reports whether the formula evaluated successfully.
func (r FormulaResult) OK() bool { return r.Err == nil }

// Evaluation holds the per-formula outcomes of evaluating a template.
type Evaluation struct {
	// Values is the scope the formulas saw: every declared variable.
	Values  map[string]float64
	Results []FormulaResult
}

// ResultMap returns the successful results keyed by formula name.
func (e Evaluation) ResultMap() map[string]float64 {
	out := make(map[string]float64, len(e.Results))
	for _, r := range e.Results {
		if r.OK() {
			out[r.Name] = r.Value
		}
	}
	return out
}

// ErrorMap returns the failure message of every failed formula, or nil when
// all formulas succeeded.
func (e Evaluation) ErrorMap() map[string]string {
	var out map[string]string
	for _, r := range e.Results {
		if r.OK() {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[r.Name] = r.Err.Error()
	}
	return out
}

// Failed returns the number of formulas that did not produce a value.
func (e Evaluation) Failed() int {
	n := 0
	for _, r := range e.Results {
		if !r.OK() {
			n++
		}
	}
	return n
}

// Scope builds the variable scope for tpl: declared defaults overridden by
// values. Constants always keep their default and names the template does
// not declare are ignored, so a formula can only ever see declared variables.
func Scope(tpl *models.Template, values map[string]float64) map[string]float64 {
	scope := make(map[string]float64, len(tpl.Variables))
	for _, v := range tpl.Variables {
		scope[v.Name] = v.DefaultValue
		if v.Type.Normalize() == models.VariableConstant {
			continue
		}
		if val, ok := values[v.Name]; ok {
			scope[v.Name] = val
		}
	}
	return scope
}

// EvaluateTemplate evaluates every formula of tpl independently. A failing
// formula records its error and never prevents the others from computing.
func EvaluateTemplate(tpl *models.Template, values map[string]float64) Evaluation {
	scope := Scope(tpl, values)

	ev := Evaluation{
		Values:  scope,
		Results: make([]FormulaResult, 0, len(tpl.Formulas)),
	}
	for _, f := range tpl.Formulas {
		v, err := formula.Evaluate(f.Expression, scope)
		ev.Results = append(ev.Results, FormulaResult{Name: f.Name, Value: v, Err: err})
	}
	return ev
}
