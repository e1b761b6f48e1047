package formula

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateArithmetic(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"2+3*4", 14},
		{"(2+3)*4", 20},
		{"pow(2,3)", 8},
		{"sqrt(16)", 4},
		{"10/4", 2.5},
		{"10-4-3", 3},
		{"2^3^2", 512},
		{"-2^2", -4},
		{"(-2)^2", 4},
		{"--3", 3},
		{"+3", 3},
		{"2*-3", -6},
		{"1.5e2", 150},
		{".5+.5", 1},
		{"abs(-7)", 7},
		{"ceil(1.2)", 2},
		{"floor(1.8)", 1},
		{"round(2.5)", 3},
		{"round(-2.5)", -2},
		{"round(0.49999999999999994)", 0},
		{"round(4503599627370497)", 4503599627370497},
		{"round(-0.5)", 0},
		{"1e-400", 0},
		{"min(3, 1, 2)", 1},
		{"max(3, 1, 2)", 3},
		{"max(4)", 4},
		{"exp(0)", 1},
		{"log(E)", 1},
		{"cos(0)", 1},
		{"sin(0)", 0},
		{"atan(0)", 0},
		{"  1 +\t2\n", 3},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr, nil)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestEvaluateConstants(t *testing.T) {
	got, err := Evaluate("PI * r^2", map[string]float64{"r": 2})
	require.NoError(t, err)
	assert.InDelta(t, 4*math.Pi, got, 1e-12)
}

func TestEvaluateSubstitutesVariables(t *testing.T) {
	values := map[string]float64{
		"length":     120,
		"width":      12,
		"depth_in":   6,
		"waste_pct":  10,
		"_internal1": 1,
	}

	got, err := Evaluate("length * width * depth_in / 12 / 27 * (1 + waste_pct/100) * _internal1", values)
	require.NoError(t, err)
	assert.InDelta(t, 120.0*12*6/12/27*1.1, got, 1e-9)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	values := map[string]float64{"a": 3.3, "b": 7.1}
	expr := "sqrt(a^2 + b^2) / max(a, b) - round(a)"

	first, err := Evaluate(expr, values)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		got, err := Evaluate(expr, values)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestEvaluateFunctionNamesAreNeverSubstituted(t *testing.T) {
	values := map[string]float64{"sqrt": 999, "PI": 3, "max": 1}

	got, err := Evaluate("sqrt(4)", values)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	got, err = Evaluate("PI", values)
	require.NoError(t, err)
	assert.Equal(t, math.Pi, got)

	got, err = Evaluate("max(1, 5)", values)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got)
}

func TestEvaluateUnresolvedVariable(t *testing.T) {
	_, err := Evaluate("y + unknown", map[string]float64{"y": 2})
	require.Error(t, err)

	var unresolved *UnresolvedVariableError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "unknown", unresolved.Name)
	assert.Equal(t, 4, unresolved.Pos)
	assert.True(t, errors.Is(err, ErrUnresolvedVariable))
	assert.Equal(t, "unresolved_variable", Kind(err))
}

func TestEvaluateMalformed(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"2+",
		"*2",
		"(2+3",
		"2+3)",
		"2 3",
		"sqrt",
		"sqrt()",
		"sqrt(1,2)",
		"pow(2)",
		"min()",
		"PI(2)",
		"foo(2)",
		"2x",
		"1..2",
		"1.2.3",
		"a.b",
		"a % b",
		"a == b",
		"a = 1",
		"2,3",
	}

	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			_, err := Evaluate(expr, map[string]float64{"a": 1, "b": 2})
			require.Error(t, err)
			assert.True(t, IsMalformedExpression(err), "expected malformed expression error, got %v", err)
			assert.Equal(t, "malformed_expression", Kind(err))
		})
	}
}

func TestEvaluateRejectsInjection(t *testing.T) {
	attacks := []string{
		`"); fetch('http://evil'); ("`,
		`process.exit(1)`,
		`constructor.constructor("return this")()`,
		`window["alert"](1)`,
		`this`,
		`globalThis`,
		`require('child_process')`,
		"`whoami`",
		`x; y`,
		`a => a`,
	}

	for _, expr := range attacks {
		t.Run(expr, func(t *testing.T) {
			_, err := Evaluate(expr, map[string]float64{"x": 1, "y": 2})
			require.Error(t, err)
			assert.True(t, IsMalformedExpression(err) || IsUnresolvedVariable(err),
				"expected rejection, got %v", err)
		})
	}
}

func TestEvaluateNonFinite(t *testing.T) {
	tests := []struct {
		expr string
		op   string
	}{
		{"1/0", "division"},
		{"0/0", "division"},
		{"sqrt(-1)", "sqrt"},
		{"log(0)", "log"},
		{"10^400", "exponentiation"},
		{"x/y", "division"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := Evaluate(tt.expr, map[string]float64{"x": 1, "y": 0})
			require.Error(t, err)

			var nf *NonFiniteResultError
			require.True(t, errors.As(err, &nf))
			assert.Equal(t, tt.op, nf.Op)
			assert.Equal(t, "non_finite_result", Kind(err))
		})
	}
}

func TestCompileOverflowingLiteral(t *testing.T) {
	for _, src := range []string{"1e400", "2 * 1e400", "1" + strings.Repeat("0", 400)} {
		t.Run(src[:min(len(src), 12)], func(t *testing.T) {
			_, err := Compile(src)
			require.Error(t, err)
			assert.True(t, IsNonFiniteResult(err))
			assert.False(t, IsMalformedExpression(err))
			assert.Equal(t, "non_finite_result", Kind(err))
			assert.Less(t, len(err.Error()), 100)
		})
	}
}

func TestEvaluateRejectsNonFiniteInput(t *testing.T) {
	_, err := Evaluate("x + 1", map[string]float64{"x": math.Inf(1)})
	require.Error(t, err)
	assert.True(t, IsNonFiniteResult(err))
}

func TestCompileLimits(t *testing.T) {
	_, err := Compile(strings.Repeat("1+", MaxExpressionLength) + "1")
	assert.True(t, IsMalformedExpression(err))

	deep := strings.Repeat("(", MaxDepth+1) + "1" + strings.Repeat(")", MaxDepth+1)
	_, err = Compile(deep)
	assert.True(t, IsMalformedExpression(err))

	ok := strings.Repeat("(", MaxDepth-1) + "1" + strings.Repeat(")", MaxDepth-1)
	_, err = Compile(ok)
	assert.NoError(t, err)
}

func TestExpressionIdentifiers(t *testing.T) {
	e := MustCompile("length * width + sqrt(length) * PI + max(depth, 1)")

	assert.Equal(t, []string{"length", "width", "depth"}, e.Identifiers())
	assert.Equal(t, []string{"depth"}, e.Unresolved(map[string]struct{}{"length": {}, "width": {}}))
	assert.Equal(t, "length * width + sqrt(length) * PI + max(depth, 1)", e.Source())
}

func TestExpressionString(t *testing.T) {
	e := MustCompile("1 + 2 * -x ^ 2")
	assert.Equal(t, "(1 + (2 * (-(x ^ 2))))", e.String())
}

func TestKindUnknownError(t *testing.T) {
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, "internal", Kind(errors.New("boom")))
}
