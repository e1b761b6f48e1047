// Package formula evaluates user-authored arithmetic formulas against a map
// of variable values.
//
// Expressions are parsed into a small AST and interpreted; nothing in an
// expression can reach anything beyond numeric literals, the supplied values
// and a fixed namespace of math functions (abs, ceil, floor, round, max, min,
// pow, sqrt, sin, cos, tan, asin, acos, atan, log, exp) and constants (PI, E).
package formula

import (
	"math"
)

// Expression is a compiled formula. It is immutable and safe for concurrent use.
type Expression struct {
	source string
	root   node
	idents []string
}

// Compile parses src. It returns a MalformedExpressionError for invalid text
// and a NonFiniteResultError for a numeric literal that overflows float64.
func Compile(src string) (*Expression, error) {
	root, idents, err := parse(src)
	if err != nil {
		return nil, err
	}
	return &Expression{source: src, root: root, idents: idents}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(src string) *Expression {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

// Evaluate compiles and evaluates expression in one step.
func Evaluate(expression string, values map[string]float64) (float64, error) {
	e, err := Compile(expression)
	if err != nil {
		return 0, err
	}
	return e.Eval(values)
}

// Source returns the original expression text.
func (e *Expression) Source() string { return e.source }

// String returns the fully parenthesised form of the parsed expression.
func (e *Expression) String() string { return e.root.String() }

// Identifiers returns the variable names referenced by the expression, in
// order of first appearance. Function and constant names are excluded.
func (e *Expression) Identifiers() []string {
	out := make([]string, len(e.idents))
	copy(out, e.idents)
	return out
}

// Unresolved returns the referenced identifiers that are missing from names.
func (e *Expression) Unresolved(names map[string]struct{}) []string {
	var missing []string
	for _, id := range e.idents {
		if _, ok := names[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// Eval evaluates the expression. values is only read.
func (e *Expression) Eval(values map[string]float64) (float64, error) {
	v, err := e.root.eval(values)
	if err != nil {
		return 0, err
	}
	if !isFinite(v) {
		return 0, &NonFiniteResultError{Value: v}
	}
	return v, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (n *numberNode) eval(map[string]float64) (float64, error) { return n.value, nil }

func (n *constNode) eval(map[string]float64) (float64, error) { return n.value, nil }

func (n *variableNode) eval(values map[string]float64) (float64, error) {
	v, ok := values[n.name]
	if !ok {
		return 0, &UnresolvedVariableError{Name: n.name, Pos: n.pos}
	}
	if !isFinite(v) {
		return 0, &NonFiniteResultError{Value: v, Op: "variable " + n.name}
	}
	return v, nil
}

func (n *unaryNode) eval(values map[string]float64) (float64, error) {
	v, err := n.operand.eval(values)
	if err != nil {
		return 0, err
	}
	return -v, nil
}

func (n *binaryNode) eval(values map[string]float64) (float64, error) {
	l, err := n.left.eval(values)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(values)
	if err != nil {
		return 0, err
	}

	var v float64
	var op string
	switch n.op {
	case '+':
		v, op = l+r, "addition"
	case '-':
		v, op = l-r, "subtraction"
	case '*':
		v, op = l*r, "multiplication"
	case '/':
		v, op = l/r, "division"
	case '^':
		v, op = math.Pow(l, r), "exponentiation"
	}
	if !isFinite(v) {
		return 0, &NonFiniteResultError{Value: v, Op: op}
	}
	return v, nil
}

func (n *callNode) eval(values map[string]float64) (float64, error) {
	args := make([]float64, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(values)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	v := n.fn.call(args)
	if !isFinite(v) {
		return 0, &NonFiniteResultError{Value: v, Op: n.name}
	}
	return v, nil
}
