package calculator

import (
	"construct-calc/internal/domain/models"
	"construct-calc/internal/formula"
)

// EvaluateRequest is the JSON body for POST /calculator/evaluate.
type EvaluateRequest struct {
	Expression string             `json:"expression"`
	Values     map[string]float64 `json:"values"`
}

// EvaluateResponse is the JSON response for POST /calculator/evaluate.
type EvaluateResponse struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

// TemplateEvaluateRequest is the JSON body for POST /calculator/templates/{id}/evaluate.
type TemplateEvaluateRequest struct {
	Values map[string]float64 `json:"values"`
}

// FormulaResultResponse reports one formula. Exactly one of Value or Error is set.
type FormulaResultResponse struct {
	Name      string   `json:"name"`
	Value     *float64 `json:"value,omitempty"`
	Error     string   `json:"error,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty"`
}

// TemplateEvaluateResponse is the JSON response for template evaluation.
type TemplateEvaluateResponse struct {
	TemplateID string                  `json:"template_id"`
	Values     map[string]float64      `json:"values"`
	Results    []FormulaResultResponse `json:"results"`
}

// CalculationRequest is the JSON body for saving a calculation against a line item.
type CalculationRequest struct {
	TemplateID    string             `json:"template_id"`
	StationNumber string             `json:"station_number,omitempty"`
	Values        map[string]float64 `json:"values"`
	Notes         string             `json:"notes,omitempty"`
}

// TemplateList is the JSON response for GET /calculator/templates.
type TemplateList struct {
	Templates []*models.Template `json:"templates"`
}

// CalculationList is the JSON response for the history endpoint.
type CalculationList struct {
	Calculations []*models.CalculationRecord `json:"calculations"`
}

func newTemplateEvaluateResponse(templateID string, ev Evaluation) TemplateEvaluateResponse {
	resp := TemplateEvaluateResponse{
		TemplateID: templateID,
		Values:     ev.Values,
		Results:    make([]FormulaResultResponse, 0, len(ev.Results)),
	}
	for _, r := range ev.Results {
		item := FormulaResultResponse{Name: r.Name}
		if r.OK() {
			v := r.Value
			item.Value = &v
		} else {
			item.Error = r.Err.Error()
			item.ErrorKind = formula.Kind(r.Err)
		}
		resp.Results = append(resp.Results, item)
	}
	return resp
}
