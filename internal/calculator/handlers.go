package calculator

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"construct-calc/internal/domain/models"
	"construct-calc/internal/formula"
	"construct-calc/internal/handlers"
	"construct-calc/internal/observability"
	"construct-calc/internal/store"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// UserHeader optionally names the user creating a template.
const UserHeader = "X-User-ID"

// Handler exposes a Service over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler returns a Handler for svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Evaluate handles POST /calculator/evaluate.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)
	span := trace.SpanFromContext(ctx)

	var req EvaluateRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, "evaluate", err)
		return
	}

	result, err := h.svc.Evaluate(ctx, req.Expression, req.Values)
	if err != nil {
		h.fail(w, r, "evaluate", err)
		return
	}

	logger.Debug("expression evaluated",
		zap.Float64("result", result),
		zap.String("request_id", observability.RequestIDFromContext(ctx)),
	)
	span.AddEvent("evaluation.complete")

	handlers.WriteJSON(w, http.StatusOK, EvaluateResponse{Expression: req.Expression, Result: result})
}

// CreateTemplate handles POST /calculator/templates.
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var in TemplateInput
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, "create_template", err)
		return
	}
	in.CreatedBy = r.Header.Get(UserHeader)

	tpl, err := h.svc.CreateTemplate(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create_template", err)
		return
	}

	w.Header().Set("Location", "/calculator/templates/"+tpl.ID)
	handlers.WriteJSON(w, http.StatusCreated, tpl)
}

// ListTemplates handles GET /calculator/templates.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	ts, err := h.svc.ListTemplates(r.Context())
	if err != nil {
		h.fail(w, r, "list_templates", err)
		return
	}
	if ts == nil {
		ts = []*models.Template{}
	}
	handlers.WriteJSON(w, http.StatusOK, TemplateList{Templates: ts})
}

// GetTemplate handles GET /calculator/templates/{templateID}.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.svc.GetTemplate(r.Context(), chi.URLParam(r, "templateID"))
	if err != nil {
		h.fail(w, r, "get_template", err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, tpl)
}

// EvaluateTemplate handles POST /calculator/templates/{templateID}/evaluate.
// Failing formulas are reported per formula; the response is still 200.
func (h *Handler) EvaluateTemplate(w http.ResponseWriter, r *http.Request) {
	var req TemplateEvaluateRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, "evaluate_template", err)
		return
	}

	tpl, ev, err := h.svc.EvaluateTemplate(r.Context(), chi.URLParam(r, "templateID"), req.Values)
	if err != nil {
		h.fail(w, r, "evaluate_template", err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, newTemplateEvaluateResponse(tpl.ID, ev))
}

// SaveCalculation handles POST /calculator/line-items/{lineItemID}/calculations.
func (h *Handler) SaveCalculation(w http.ResponseWriter, r *http.Request) {
	var req CalculationRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, "save_calculation", err)
		return
	}

	rec, err := h.svc.SaveCalculation(r.Context(), CalculationInput{
		LineItemID:    chi.URLParam(r, "lineItemID"),
		TemplateID:    req.TemplateID,
		StationNumber: req.StationNumber,
		Values:        req.Values,
		Notes:         req.Notes,
	})
	if err != nil {
		h.fail(w, r, "save_calculation", err)
		return
	}

	w.Header().Set("Location", "/calculator/calculations/"+rec.ID)
	handlers.WriteJSON(w, http.StatusCreated, rec)
}

// ListCalculations handles GET /calculator/line-items/{lineItemID}/calculations.
// Query parameters: template_id (optional), limit (optional, clamped to
// MaxHistoryLimit).
func (h *Handler) ListCalculations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if errors.Is(err, strconv.ErrRange) && n > 0 {
			n, err = MaxHistoryLimit, nil
		}
		if err != nil || n < 0 {
			h.fail(w, r, "list_calculations", invalidInput("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	recs, err := h.svc.ListCalculations(r.Context(), chi.URLParam(r, "lineItemID"), q.Get("template_id"), limit)
	if err != nil {
		h.fail(w, r, "list_calculations", err)
		return
	}
	if recs == nil {
		recs = []*models.CalculationRecord{}
	}
	handlers.WriteJSON(w, http.StatusOK, CalculationList{Calculations: recs})
}

// GetCalculation handles GET /calculator/calculations/{calculationID}.
func (h *Handler) GetCalculation(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetCalculation(r.Context(), chi.URLParam(r, "calculationID"))
	if err != nil {
		h.fail(w, r, "get_calculation", err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, rec)
}

// fail maps err onto an HTTP status and records it.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	status, kind, msg := classify(err)
	observability.RecordError(ctx, trace.SpanFromContext(ctx), observability.LoggerWithTrace(ctx), errorCounter,
		observability.ErrorReport{Op: op, Kind: kind, Msg: msg, Err: err, Status: status}, w)
}

// errBadBody marks a request body that could not be decoded.
var errBadBody = errors.New("invalid request body")

func classify(err error) (status int, kind, msg string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "body_too_large",
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)
	case errors.Is(err, errBadBody):
		return http.StatusBadRequest, "invalid_body", err.Error()
	case IsDuplicateName(err):
		return http.StatusBadRequest, "duplicate_name", err.Error()
	case IsInvalidTemplate(err):
		return http.StatusBadRequest, "invalid_template", err.Error()
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input", err.Error()
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "conflict", "already exists"
	case formula.Kind(err) != "internal":
		return http.StatusUnprocessableEntity, formula.Kind(err), err.Error()
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errBadBody, err)
	}
	return nil
}
