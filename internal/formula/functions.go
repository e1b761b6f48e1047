package formula

import (
	"math"
	"sort"
)

type function struct {
	minArgs int
	maxArgs int // -1 for variadic
	call    func(args []float64) float64
}

func unary(fn func(float64) float64) function {
	return function{minArgs: 1, maxArgs: 1, call: func(args []float64) float64 { return fn(args[0]) }}
}

// functions is the complete namespace callable from an expression.
var functions = map[string]function{
	"abs":   unary(math.Abs),
	"ceil":  unary(math.Ceil),
	"floor": unary(math.Floor),
	"round": unary(roundHalfUp),
	"sqrt":  unary(math.Sqrt),
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"asin":  unary(math.Asin),
	"acos":  unary(math.Acos),
	"atan":  unary(math.Atan),
	"log":   unary(math.Log),
	"exp":   unary(math.Exp),
	"pow": {minArgs: 2, maxArgs: 2, call: func(args []float64) float64 {
		return math.Pow(args[0], args[1])
	}},
	"min": {minArgs: 1, maxArgs: -1, call: func(args []float64) float64 {
		m := args[0]
		for _, v := range args[1:] {
			m = math.Min(m, v)
		}
		return m
	}},
	"max": {minArgs: 1, maxArgs: -1, call: func(args []float64) float64 {
		m := args[0]
		for _, v := range args[1:] {
			m = math.Max(m, v)
		}
		return m
	}},
}

var constants = map[string]float64{
	"PI": math.Pi,
	"E":  math.E,
}

// roundHalfUp rounds .5 towards +Inf, so round(-2.5) is -2. Adding 0.5
// before flooring is inexact near 0.5 and above 2^52, so compare the
// fractional part instead.
func roundHalfUp(x float64) float64 {
	f := math.Floor(x)
	if x-f >= 0.5 {
		return f + 1
	}
	return f
}

// IsReserved reports whether name belongs to the function/constant namespace.
// Reserved names are never substituted from a value map.
func IsReserved(name string) bool {
	if _, ok := functions[name]; ok {
		return true
	}
	_, ok := constants[name]
	return ok
}

// ReservedNames returns the allow-listed function and constant names, sorted.
func ReservedNames() []string {
	names := make([]string, 0, len(functions)+len(constants))
	for name := range functions {
		names = append(names, name)
	}
	for name := range constants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsIdentifier reports whether s is a valid variable or formula name.
func IsIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}
