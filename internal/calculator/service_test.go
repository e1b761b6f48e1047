package calculator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"construct-calc/internal/domain/models"
	"construct-calc/internal/formula"
	"construct-calc/internal/store"
)

func TestServiceEvaluate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	got, err := svc.Evaluate(ctx, "length * width", map[string]float64{"length": 3, "width": 4})
	require.NoError(t, err)
	assert.Equal(t, 12.0, got)

	_, err = svc.Evaluate(ctx, "length * width", map[string]float64{"length": 3})
	assert.True(t, formula.IsUnresolvedVariable(err))

	_, err = svc.Evaluate(ctx, "1 +", nil)
	assert.True(t, formula.IsMalformedExpression(err))

	_, err = svc.Evaluate(ctx, "1", map[string]float64{"not valid": 1})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestServiceCreateTemplate(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	in := slabInput()
	in.Name = "  Concrete slab  "
	in.CreatedBy = "estimator-7"
	in.Variables[0].Type = ""

	tpl, err := svc.CreateTemplate(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, "id-1", tpl.ID)
	assert.Equal(t, "Concrete slab", tpl.Name)
	assert.Equal(t, "estimator-7", tpl.CreatedBy)
	assert.Equal(t, models.VariableInput, tpl.Variables[0].Type)
	assert.Equal(t, epoch.Add(time.Second), tpl.CreatedAt)

	stored, err := st.MemoryStore.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, tpl.Name, stored.Name)
	assert.Len(t, stored.Formulas, 2)
}

func TestServiceCreateTemplateDuplicateNeverPersists(t *testing.T) {
	svc, st := newTestService()

	in := slabInput()
	in.Variables = append(in.Variables, models.Variable{Name: "length", DefaultValue: 1})

	_, err := svc.CreateTemplate(context.Background(), in)

	assert.True(t, IsDuplicateName(err))
	assert.Equal(t, 0, st.Calls("CreateTemplate"))

	ts, err := svc.ListTemplates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ts)
}

func TestServiceCreateTemplatePersistenceFailure(t *testing.T) {
	svc, st := newTestService()
	st.FailWrites = &store.PersistenceError{Op: "create template", Err: errors.New("disk full")}

	_, err := svc.CreateTemplate(context.Background(), slabInput())

	require.Error(t, err)
	assert.True(t, store.IsPersistence(err))
	assert.Equal(t, 1, st.Calls("CreateTemplate"))
}

func TestServiceListTemplatesNewestFirst(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.CreateTemplate(ctx, slabInput())
	require.NoError(t, err)
	in := slabInput()
	in.Name = "Asphalt overlay"
	second, err := svc.CreateTemplate(ctx, in)
	require.NoError(t, err)

	ts, err := svc.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, ts, 2)
	assert.Equal(t, second.ID, ts[0].ID)
	assert.Equal(t, first.ID, ts[1].ID)
}

func TestServiceGetTemplateNotFound(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.GetTemplate(context.Background(), "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestServiceEvaluateTemplate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tpl, err := svc.CreateTemplate(ctx, slabInput())
	require.NoError(t, err)

	got, ev, err := svc.EvaluateTemplate(ctx, tpl.ID, map[string]float64{"length": 27, "width": 2, "depth": 1})
	require.NoError(t, err)
	assert.Equal(t, tpl.ID, got.ID)
	assert.Equal(t, 54.0, ev.ResultMap()["area"])
	assert.Equal(t, 2.2, ev.ResultMap()["volume_cy"])

	_, _, err = svc.EvaluateTemplate(ctx, "missing", nil)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestServiceSaveCalculation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tpl, err := svc.CreateTemplate(ctx, slabInput())
	require.NoError(t, err)

	rec, err := svc.SaveCalculation(ctx, CalculationInput{
		LineItemID:    "li-1",
		TemplateID:    tpl.ID,
		StationNumber: " 12+50 ",
		Values:        map[string]float64{"length": 20, "ignored": 5},
		Notes:         "north lane",
	})
	require.NoError(t, err)

	assert.Equal(t, "li-1", rec.LineItemID)
	assert.Equal(t, tpl.ID, rec.TemplateID)
	assert.Equal(t, "12+50", rec.StationNumber)
	assert.Equal(t, "north lane", rec.Notes)
	assert.Equal(t, map[string]float64{"length": 20, "width": 4, "depth": 0.5, "waste": 1.1}, rec.Values)
	assert.Equal(t, 80.0, rec.Results["area"])
	assert.Nil(t, rec.Errors)

	got, err := svc.GetCalculation(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Values, got.Values)
}

func TestServiceSaveCalculationKeepsFormulaErrors(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	in := slabInput()
	in.Formulas = append(in.Formulas, models.Formula{Name: "cost", Expression: "area_price * length"})
	tpl, err := svc.CreateTemplate(ctx, in)
	require.NoError(t, err)

	rec, err := svc.SaveCalculation(ctx, CalculationInput{LineItemID: "li-1", TemplateID: tpl.ID})
	require.NoError(t, err)

	assert.Contains(t, rec.Results, "area")
	assert.NotContains(t, rec.Results, "cost")
	assert.Contains(t, rec.Errors["cost"], "area_price")
}

func TestServiceSaveCalculationValidation(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	_, err := svc.SaveCalculation(ctx, CalculationInput{TemplateID: "t"})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = svc.SaveCalculation(ctx, CalculationInput{LineItemID: "li"})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = svc.SaveCalculation(ctx, CalculationInput{LineItemID: "li", TemplateID: "missing"})
	assert.True(t, errors.Is(err, store.ErrNotFound))

	assert.Equal(t, 0, st.Calls("AppendRecord"))
}

func TestServiceListCalculations(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	slab, err := svc.CreateTemplate(ctx, slabInput())
	require.NoError(t, err)
	other := slabInput()
	other.Name = "Other"
	second, err := svc.CreateTemplate(ctx, other)
	require.NoError(t, err)

	var saved []*models.CalculationRecord
	for i, tplID := range []string{slab.ID, second.ID, slab.ID} {
		rec, err := svc.SaveCalculation(ctx, CalculationInput{
			LineItemID: "li-1",
			TemplateID: tplID,
			Values:     map[string]float64{"length": float64(i + 1)},
		})
		require.NoError(t, err)
		saved = append(saved, rec)
	}
	_, err = svc.SaveCalculation(ctx, CalculationInput{LineItemID: "li-2", TemplateID: slab.ID})
	require.NoError(t, err)

	all, err := svc.ListCalculations(ctx, "li-1", "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, saved[2].ID, all[0].ID)
	assert.Equal(t, saved[0].ID, all[2].ID)

	onlySlab, err := svc.ListCalculations(ctx, "li-1", slab.ID, 0)
	require.NoError(t, err)
	require.Len(t, onlySlab, 2)
	for _, r := range onlySlab {
		assert.Equal(t, slab.ID, r.TemplateID)
	}

	limited, err := svc.ListCalculations(ctx, "li-1", "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, saved[2].ID, limited[0].ID)

	_, err = svc.ListCalculations(ctx, " ", "", 0)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, 3, st.Calls("ListRecords"))
}

func TestServiceListCalculationsClampsLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default", 0, DefaultHistoryLimit},
		{"negative", -1, DefaultHistoryLimit},
		{"within range", 25, 25},
		{"at maximum", MaxHistoryLimit, MaxHistoryLimit},
		{"huge", 1_000_000_000, MaxHistoryLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st := newTestService()
			_, err := svc.ListCalculations(context.Background(), "li-1", "tpl-1", tt.limit)
			require.NoError(t, err)
			assert.Equal(t, models.RecordFilter{LineItemID: "li-1", TemplateID: "tpl-1", Limit: tt.want}, st.LastFilter())
		})
	}
}

func TestServiceSaveCalculationPersistenceFailure(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	tpl, err := svc.CreateTemplate(ctx, slabInput())
	require.NoError(t, err)

	st.FailWrites = &store.PersistenceError{Op: "append record", Err: errors.New("connection reset")}
	_, err = svc.SaveCalculation(ctx, CalculationInput{LineItemID: "li-1", TemplateID: tpl.ID})

	assert.True(t, store.IsPersistence(err))
	recs, err := svc.ListCalculations(ctx, "li-1", "", 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
