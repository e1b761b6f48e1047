package calculator

import (
	"context"
	"fmt"

	"construct-calc/internal/domain/models"
)

// State is a step of the calculation workflow.
type State int

const (
	StateIdle State = iota
	StateVariablesEdited
	StateResultsComputed
	StateSaved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateVariablesEdited:
		return "variables_edited"
	case StateResultsComputed:
		return "results_computed"
	case StateSaved:
		return "saved"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RecordSaver persists a calculation. *Service implements it.
type RecordSaver interface {
	SaveCalculation(ctx context.Context, in CalculationInput) (*models.CalculationRecord, error)
}

// HistoryLister loads calculation history. *Service implements it.
type HistoryLister interface {
	ListCalculations(ctx context.Context, lineItemID, templateID string, limit int) ([]*models.CalculationRecord, error)
}

// Session is the edit state of one calculator form bound to a template and a
// line item. Every edit recomputes all formulas synchronously. Saving always
// appends a new record; loading a record from history only copies its values.
//
// A Session is not safe for concurrent use.
type Session struct {
	template   *models.Template
	lineItemID string

	values  map[string]float64
	station string
	notes   string

	state      State
	evaluation Evaluation
	history    []*models.CalculationRecord

	// OnTransition, when set, observes every state change.
	OnTransition func(from, to State)
}

// NewSession starts an Idle session with every variable at its default.
func NewSession(tpl *models.Template, lineItemID string) *Session {
	s := &Session{template: tpl, lineItemID: lineItemID, state: StateIdle}
	s.reset()
	return s
}

func (s *Session) Template() *models.Template { return s.template }
func (s *Session) LineItemID() string          { return s.lineItemID }
func (s *Session) State() State                { return s.state }
func (s *Session) StationNumber() string       { return s.station }
func (s *Session) Notes() string               { return s.notes }
func (s *Session) Evaluation() Evaluation      { return s.evaluation }

// Values returns a copy of the current edit values.
func (s *Session) Values() map[string]float64 {
	out := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// History returns the records loaded or saved in this session, newest first.
func (s *Session) History() []*models.CalculationRecord {
	return append([]*models.CalculationRecord(nil), s.history...)
}

// Set changes one variable and recomputes every formula.
func (s *Session) Set(name string, value float64) error {
	return s.SetValues(map[string]float64{name: value})
}

// SetValues changes several variables at once and recomputes. Unknown or
// constant names reject the whole edit.
func (s *Session) SetValues(values map[string]float64) error {
	if err := validateValues(values); err != nil {
		return err
	}
	for name := range values {
		v, ok := s.template.Variable(name)
		if !ok {
			return fmt.Errorf("%w %q", ErrUnknownVariable, name)
		}
		if v.Type.Normalize() == models.VariableConstant {
			return fmt.Errorf("%w: %q", ErrConstantVariable, name)
		}
	}

	for name, v := range values {
		s.values[name] = v
	}
	s.transition(StateVariablesEdited)
	s.recompute()
	return nil
}

// SetMetadata sets the optional station number and notes for the next save.
func (s *Session) SetMetadata(station, notes string) {
	s.station = station
	s.notes = notes
}

// LoadFromHistory copies a prior record's values, station and notes into the
// form. Names the template no longer declares are kept as part of the
// snapshot but do not participate in evaluation. The record itself is never
// modified. A record saved against another template or line item is
// rejected with ErrInvalidInput and leaves the session unchanged.
func (s *Session) LoadFromHistory(rec *models.CalculationRecord) error {
	if rec == nil {
		return invalidInput("no calculation to load")
	}
	if rec.TemplateID != s.template.ID {
		return invalidInput("calculation %s belongs to template %q, not %q", rec.ID, rec.TemplateID, s.template.ID)
	}
	if rec.LineItemID != s.lineItemID {
		return invalidInput("calculation %s belongs to line item %q, not %q", rec.ID, rec.LineItemID, s.lineItemID)
	}

	s.values = s.template.Defaults()
	for name, v := range rec.Values {
		s.values[name] = v
	}
	s.station = rec.StationNumber
	s.notes = rec.Notes

	s.transition(StateVariablesEdited)
	s.recompute()
	return nil
}

// Save persists the current values as a new record, prepends it to the
// history and resets the form to template defaults. On failure the edit
// state is left untouched.
func (s *Session) Save(ctx context.Context, saver RecordSaver) (*models.CalculationRecord, error) {
	rec, err := saver.SaveCalculation(ctx, CalculationInput{
		LineItemID:    s.lineItemID,
		TemplateID:    s.template.ID,
		StationNumber: s.station,
		Values:        s.Values(),
		Notes:         s.notes,
	})
	if err != nil {
		return nil, err
	}

	s.transition(StateSaved)
	s.history = append([]*models.CalculationRecord{rec}, s.history...)
	s.reset()
	return rec, nil
}

// RefreshHistory replaces the history with the stored records for this
// session's line item and template.
func (s *Session) RefreshHistory(ctx context.Context, lister HistoryLister) error {
	recs, err := lister.ListCalculations(ctx, s.lineItemID, s.template.ID, 0)
	if err != nil {
		return err
	}
	s.history = recs
	return nil
}

func (s *Session) reset() {
	s.values = s.template.Defaults()
	s.station = ""
	s.notes = ""
	s.evaluation = EvaluateTemplate(s.template, s.values)
	s.transition(StateIdle)
}

func (s *Session) recompute() {
	s.evaluation = EvaluateTemplate(s.template, s.values)
	s.transition(StateResultsComputed)
}

func (s *Session) transition(to State) {
	from := s.state
	s.state = to
	if s.OnTransition != nil && from != to {
		s.OnTransition(from, to)
	}
}
