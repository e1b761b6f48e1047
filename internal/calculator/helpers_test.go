package calculator

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"construct-calc/internal/domain/models"
	"construct-calc/internal/testutil"
)

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func slabInput() TemplateInput {
	return TemplateInput{
		Name: "Concrete slab",
		Variables: []models.Variable{
			{Name: "length", Unit: models.UnitFeet, DefaultValue: 10},
			{Name: "width", Unit: models.UnitFeet, DefaultValue: 4},
			{Name: "depth", Unit: models.UnitFeet, DefaultValue: 0.5},
			{Name: "waste", Type: models.VariableConstant, DefaultValue: 1.1},
		},
		Formulas: []models.Formula{
			{Name: "area", Expression: "length * width"},
			{Name: "volume_cy", Expression: "round(length * width * depth * waste / 27 * 100) / 100"},
		},
	}
}

// newTestService returns a Service over a RecordingStore with a clock that
// advances one second per call and sequential ids.
func newTestService() (*Service, *testutil.RecordingStore) {
	st := testutil.NewRecordingStore()
	svc := NewService(st, st, zap.NewNop())

	var ticks, ids atomic.Int64
	svc.now = func() time.Time {
		return epoch.Add(time.Duration(ticks.Add(1)) * time.Second)
	}
	svc.newID = func() string {
		return fmt.Sprintf("id-%d", ids.Add(1))
	}
	return svc, st
}
