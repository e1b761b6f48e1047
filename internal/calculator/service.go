package calculator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"construct-calc/internal/domain/models"
	"construct-calc/internal/formula"
	"construct-calc/internal/store"
)

// tracer is the calculator's dedicated OpenTelemetry tracer.
var tracer = otel.Tracer("calculator")

// DefaultHistoryLimit caps ListCalculations when the caller gives no limit.
const DefaultHistoryLimit = 100

// MaxHistoryLimit is the largest page ListCalculations returns; larger
// limits are clamped to it.
const MaxHistoryLimit = 500

// CalculationInput is one evaluation to persist against a line item.
type CalculationInput struct {
	LineItemID    string
	TemplateID    string
	StationNumber string
	Values        map[string]float64
	Notes         string
}

// Service implements template management, evaluation and calculation history.
type Service struct {
	templates store.TemplateStore
	records   store.RecordStore
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewService wires a Service to its stores.
func NewService(templates store.TemplateStore, records store.RecordStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		templates: templates,
		records:   records,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// Evaluate evaluates a single expression against values.
func (s *Service) Evaluate(ctx context.Context, expression string, values map[string]float64) (float64, error) {
	_, span := tracer.Start(ctx, "calculator.evaluate",
		trace.WithAttributes(attribute.Int("calculator.expression.length", len(expression))),
	)
	defer span.End()

	if err := validateValues(values); err != nil {
		failSpan(span, err)
		return 0, err
	}

	start := time.Now()
	result, err := formula.Evaluate(expression, values)
	s.recordEvaluation(ctx, "expression", err, time.Since(start))

	if err != nil {
		failSpan(span, err)
		span.SetAttributes(attribute.String("calculator.error_kind", formula.Kind(err)))
		return 0, err
	}

	span.SetAttributes(attribute.Float64("calculator.result", result))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// CreateTemplate validates in and persists it as a new template. Validation
// failures return before the store is touched.
func (s *Service) CreateTemplate(ctx context.Context, in TemplateInput) (*models.Template, error) {
	ctx, span := tracer.Start(ctx, "calculator.create_template")
	defer span.End()

	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		failSpan(span, err)
		return nil, err
	}

	tpl := &models.Template{
		ID:            s.newID(),
		Name:          in.Name,
		Description:   in.Description,
		Variables:     make([]models.Variable, len(in.Variables)),
		Formulas:      append([]models.Formula(nil), in.Formulas...),
		SingleFormula: in.SingleFormula,
		CreatedBy:     in.CreatedBy,
		CreatedAt:     s.now(),
	}
	for i, v := range in.Variables {
		v.Type = v.Type.Normalize()
		tpl.Variables[i] = v
	}

	for name, missing := range in.UnresolvedReferences() {
		s.logger.Warn("formula references undeclared variables",
			zap.String("template", tpl.Name),
			zap.String("formula", name),
			zap.Strings("identifiers", missing),
		)
	}

	if err := s.templates.CreateTemplate(ctx, tpl); err != nil {
		failSpan(span, err)
		return nil, fmt.Errorf("create template: %w", err)
	}

	templatesCreated.Add(ctx, 1)
	span.SetAttributes(attribute.String("calculator.template.id", tpl.ID))
	span.SetStatus(codes.Ok, "")

	s.logger.Info("template created",
		zap.String("template_id", tpl.ID),
		zap.String("name", tpl.Name),
		zap.Int("variables", len(tpl.Variables)),
		zap.Int("formulas", len(tpl.Formulas)),
	)
	return tpl, nil
}

// ListTemplates returns every template, newest first.
func (s *Service) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	ctx, span := tracer.Start(ctx, "calculator.list_templates")
	defer span.End()

	ts, err := s.templates.ListTemplates(ctx)
	if err != nil {
		failSpan(span, err)
		return nil, fmt.Errorf("list templates: %w", err)
	}
	span.SetAttributes(attribute.Int("calculator.templates.count", len(ts)))
	return ts, nil
}

// GetTemplate returns store.ErrNotFound (wrapped) for unknown ids.
func (s *Service) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	ctx, span := tracer.Start(ctx, "calculator.get_template",
		trace.WithAttributes(attribute.String("calculator.template.id", id)),
	)
	defer span.End()

	tpl, err := s.templates.GetTemplate(ctx, id)
	if err != nil {
		failSpan(span, err)
		return nil, fmt.Errorf("get template %s: %w", id, err)
	}
	return tpl, nil
}

// EvaluateTemplate loads a template and evaluates all of its formulas. Each
// formula gets its own child span.
func (s *Service) EvaluateTemplate(ctx context.Context, templateID string, values map[string]float64) (*models.Template, Evaluation, error) {
	if err := validateValues(values); err != nil {
		return nil, Evaluation{}, err
	}

	tpl, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, Evaluation{}, err
	}

	return tpl, s.evaluate(ctx, tpl, values), nil
}

func (s *Service) evaluate(ctx context.Context, tpl *models.Template, values map[string]float64) Evaluation {
	ctx, span := tracer.Start(ctx, "calculator.evaluate_template",
		trace.WithAttributes(
			attribute.String("calculator.template.id", tpl.ID),
			attribute.Int("calculator.formulas.count", len(tpl.Formulas)),
		),
	)
	defer span.End()

	start := time.Now()
	ev := EvaluateTemplate(tpl, values)
	elapsed := time.Since(start)

	for _, r := range ev.Results {
		_, fspan := tracer.Start(ctx, "calculator.formula."+r.Name)
		if r.OK() {
			fspan.SetAttributes(attribute.Float64("calculator.result", r.Value))
			fspan.SetStatus(codes.Ok, "")
		} else {
			failSpan(fspan, r.Err)
			fspan.SetAttributes(attribute.String("calculator.error_kind", formula.Kind(r.Err)))
			s.logger.Debug("formula evaluation failed",
				zap.String("template_id", tpl.ID),
				zap.String("formula", r.Name),
				zap.String("kind", formula.Kind(r.Err)),
				zap.Error(r.Err),
			)
		}
		fspan.End()
		s.recordEvaluation(ctx, "template", r.Err, 0)
	}

	evalHistogram.Record(ctx, ms(elapsed), metric.WithAttributes(attribute.String("scope", "template")))
	span.SetAttributes(attribute.Int("calculator.formulas.failed", ev.Failed()))
	span.SetStatus(codes.Ok, "")
	return ev
}

// SaveCalculation evaluates in against its template and appends a new record.
// The record stores the full variable scope that was evaluated, the
// successful results and the per-formula errors.
func (s *Service) SaveCalculation(ctx context.Context, in CalculationInput) (*models.CalculationRecord, error) {
	ctx, span := tracer.Start(ctx, "calculator.save_calculation",
		trace.WithAttributes(
			attribute.String("calculator.line_item.id", in.LineItemID),
			attribute.String("calculator.template.id", in.TemplateID),
		),
	)
	defer span.End()

	if strings.TrimSpace(in.LineItemID) == "" {
		err := invalidInput("line_item_id is required")
		failSpan(span, err)
		return nil, err
	}
	if strings.TrimSpace(in.TemplateID) == "" {
		err := invalidInput("template_id is required")
		failSpan(span, err)
		return nil, err
	}
	if err := validateValues(in.Values); err != nil {
		failSpan(span, err)
		return nil, err
	}

	tpl, err := s.GetTemplate(ctx, in.TemplateID)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	ev := s.evaluate(ctx, tpl, in.Values)

	rec := &models.CalculationRecord{
		ID:            s.newID(),
		LineItemID:    in.LineItemID,
		TemplateID:    tpl.ID,
		StationNumber: strings.TrimSpace(in.StationNumber),
		Values:        ev.Values,
		Results:       ev.ResultMap(),
		Errors:        ev.ErrorMap(),
		Notes:         in.Notes,
		CreatedAt:     s.now(),
	}

	if err := s.records.AppendRecord(ctx, rec); err != nil {
		failSpan(span, err)
		return nil, fmt.Errorf("save calculation: %w", err)
	}

	recordsSaved.Add(ctx, 1)
	span.SetAttributes(attribute.String("calculator.record.id", rec.ID))
	span.SetStatus(codes.Ok, "")

	s.logger.Info("calculation saved",
		zap.String("record_id", rec.ID),
		zap.String("line_item_id", rec.LineItemID),
		zap.String("template_id", rec.TemplateID),
		zap.Int("results", len(rec.Results)),
		zap.Int("errors", len(rec.Errors)),
	)
	return rec, nil
}

// ListCalculations returns the history of a line item, newest first,
// optionally narrowed to one template. limit <= 0 means DefaultHistoryLimit
// and limits above MaxHistoryLimit are clamped.
func (s *Service) ListCalculations(ctx context.Context, lineItemID, templateID string, limit int) ([]*models.CalculationRecord, error) {
	ctx, span := tracer.Start(ctx, "calculator.list_calculations",
		trace.WithAttributes(attribute.String("calculator.line_item.id", lineItemID)),
	)
	defer span.End()

	if strings.TrimSpace(lineItemID) == "" {
		err := invalidInput("line_item_id is required")
		failSpan(span, err)
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	recs, err := s.records.ListRecords(ctx, models.RecordFilter{
		LineItemID: lineItemID,
		TemplateID: templateID,
		Limit:      limit,
	})
	if err != nil {
		failSpan(span, err)
		return nil, fmt.Errorf("list calculations: %w", err)
	}
	span.SetAttributes(attribute.Int("calculator.records.count", len(recs)))
	return recs, nil
}

// GetCalculation returns one record by id.
func (s *Service) GetCalculation(ctx context.Context, id string) (*models.CalculationRecord, error) {
	ctx, span := tracer.Start(ctx, "calculator.get_calculation",
		trace.WithAttributes(attribute.String("calculator.record.id", id)),
	)
	defer span.End()

	rec, err := s.records.GetRecord(ctx, id)
	if err != nil {
		failSpan(span, err)
		return nil, fmt.Errorf("get calculation %s: %w", id, err)
	}
	return rec, nil
}

func (s *Service) recordEvaluation(ctx context.Context, scope string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = formula.Kind(err)
	}
	evalCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
	))
	if elapsed > 0 {
		evalHistogram.Record(ctx, ms(elapsed), metric.WithAttributes(attribute.String("scope", scope)))
	}
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
