package models

import "time"

// Variable is a named input declared by a calculator template.
type Variable struct {
	Name         string       `json:"name" bson:"name" yaml:"name"`
	Label        string       `json:"label,omitempty" bson:"label,omitempty" yaml:"label,omitempty"`
	Unit         Unit         `json:"unit,omitempty" bson:"unit,omitempty" yaml:"unit,omitempty"`
	Type         VariableType `json:"type,omitempty" bson:"type,omitempty" yaml:"type,omitempty"`
	DefaultValue float64      `json:"default_value" bson:"default_value" yaml:"default_value"`
}

// Formula is a named expression over a template's variables.
type Formula struct {
	Name        string `json:"name" bson:"name" yaml:"name"`
	Expression  string `json:"expression" bson:"expression" yaml:"expression"`
	Description string `json:"description,omitempty" bson:"description,omitempty" yaml:"description,omitempty"`
}

// Template is a reusable bundle of variable declarations and formulas.
// Templates are immutable once stored.
type Template struct {
	ID            string     `json:"id" bson:"_id" yaml:"id,omitempty"`
	Name          string     `json:"name" bson:"name" yaml:"name"`
	Description   string     `json:"description,omitempty" bson:"description,omitempty" yaml:"description,omitempty"`
	Variables     []Variable `json:"variables" bson:"variables" yaml:"variables"`
	Formulas      []Formula  `json:"formulas" bson:"formulas" yaml:"formulas"`
	SingleFormula bool       `json:"single_formula,omitempty" bson:"single_formula,omitempty" yaml:"single_formula,omitempty"`
	CreatedBy     string     `json:"created_by,omitempty" bson:"created_by,omitempty" yaml:"created_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at" yaml:"-"`
}

// Defaults returns the declared default value of every variable.
func (t *Template) Defaults() map[string]float64 {
	values := make(map[string]float64, len(t.Variables))
	for _, v := range t.Variables {
		values[v.Name] = v.DefaultValue
	}
	return values
}

// Variable looks up a declared variable by name.
func (t *Template) Variable(name string) (Variable, bool) {
	for _, v := range t.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// CalculationRecord is an immutable snapshot of one saved evaluation.
// Values are kept as submitted, independent of later template changes.
type CalculationRecord struct {
	ID            string             `json:"id" bson:"_id"`
	LineItemID    string             `json:"line_item_id" bson:"line_item_id"`
	TemplateID    string             `json:"template_id" bson:"template_id"`
	StationNumber string             `json:"station_number,omitempty" bson:"station_number,omitempty"`
	Values        map[string]float64 `json:"values" bson:"values"`
	Results       map[string]float64 `json:"results" bson:"results"`
	Errors        map[string]string  `json:"errors,omitempty" bson:"errors,omitempty"`
	Notes         string             `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
}

// RecordFilter selects calculation records. LineItemID is required by the
// service layer; an empty TemplateID matches every template.
type RecordFilter struct {
	LineItemID string
	TemplateID string
	Limit      int
}

// Matches reports whether rec satisfies the filter, ignoring Limit.
func (f RecordFilter) Matches(rec *CalculationRecord) bool {
	if f.LineItemID != "" && rec.LineItemID != f.LineItemID {
		return false
	}
	if f.TemplateID != "" && rec.TemplateID != f.TemplateID {
		return false
	}
	return true
}
