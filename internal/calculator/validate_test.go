package calculator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"construct-calc/internal/domain/models"
	"construct-calc/internal/formula"
)

func TestValidateAcceptsSlab(t *testing.T) {
	in := slabInput()
	require.NoError(t, in.Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TemplateInput)
		field  string
	}{
		{"empty name", func(in *TemplateInput) { in.Name = "  " }, "name"},
		{"no formulas", func(in *TemplateInput) { in.Formulas = nil }, "formulas"},
		{"bad variable name", func(in *TemplateInput) { in.Variables[0].Name = "1length" }, "variables[0].name"},
		{"reserved variable name", func(in *TemplateInput) { in.Variables[0].Name = "sqrt" }, "variables[0].name"},
		{"reserved constant name", func(in *TemplateInput) { in.Variables[1].Name = "PI" }, "variables[1].name"},
		{"unknown unit", func(in *TemplateInput) { in.Variables[0].Unit = "furlong" }, "variables[0].unit"},
		{"unknown type", func(in *TemplateInput) { in.Variables[0].Type = "derived" }, "variables[0].type"},
		{"bad formula name", func(in *TemplateInput) { in.Formulas[0].Name = "area total" }, "formulas[0].name"},
		{"unparseable expression", func(in *TemplateInput) { in.Formulas[1].Expression = "length *" }, "formulas[1].expression"},
		{"single formula with two", func(in *TemplateInput) { in.SingleFormula = true }, "formulas"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := slabInput()
			tt.mutate(&in)

			err := in.Validate()
			require.Error(t, err)

			var invalid *InvalidTemplateError
			require.True(t, errors.As(err, &invalid), "got %T: %v", err, err)
			assert.Equal(t, tt.field, invalid.Field)
			assert.False(t, IsDuplicateName(err))
		})
	}
}

func TestValidateUnparseableExpressionWrapsFormulaError(t *testing.T) {
	in := slabInput()
	in.Formulas[0].Expression = "length * (width"

	err := in.Validate()
	assert.True(t, formula.IsMalformedExpression(err))
}

func TestValidateDuplicateNames(t *testing.T) {
	t.Run("variable", func(t *testing.T) {
		in := slabInput()
		in.Variables = append(in.Variables, models.Variable{Name: "length", DefaultValue: 3})

		err := in.Validate()
		var dup *DuplicateNameError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, "variable", dup.Kind)
		assert.Equal(t, "length", dup.Name)
		assert.False(t, IsInvalidTemplate(err))
	})

	t.Run("formula", func(t *testing.T) {
		in := slabInput()
		in.Formulas = append(in.Formulas, models.Formula{Name: "area", Expression: "1"})

		err := in.Validate()
		var dup *DuplicateNameError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, "formula", dup.Kind)
		assert.Equal(t, "area", dup.Name)
	})
}

func TestValidateAllowsFormulaNamedLikeVariable(t *testing.T) {
	in := slabInput()
	in.Formulas = append(in.Formulas, models.Formula{Name: "length", Expression: "length * 12"})
	assert.NoError(t, in.Validate())
}

func TestValidateSingleFormula(t *testing.T) {
	in := slabInput()
	in.SingleFormula = true
	in.Formulas = in.Formulas[:1]
	assert.NoError(t, in.Validate())
}

func TestUnresolvedReferences(t *testing.T) {
	in := slabInput()
	in.Formulas = append(in.Formulas, models.Formula{Name: "cost", Expression: "area_price * length + sqrt(markup)"})

	refs := in.UnresolvedReferences()
	require.Len(t, refs, 1)
	assert.Equal(t, []string{"area_price", "markup"}, refs["cost"])
}

func TestValidateValues(t *testing.T) {
	assert.NoError(t, validateValues(nil))
	assert.NoError(t, validateValues(map[string]float64{"length": 3}))

	err := validateValues(map[string]float64{"bad name": 1})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
