package formula

import (
	"strconv"
)

const (
	// MaxExpressionLength bounds the expression text accepted by Compile.
	MaxExpressionLength = 4096
	// MaxDepth bounds the nesting of parentheses, calls and unary operators.
	MaxDepth = 64
)

// node is an AST node. Evaluation never touches anything outside the
// number literals, the value map and the allow-listed namespace.
type node interface {
	eval(values map[string]float64) (float64, error)
	String() string
}

type numberNode struct {
	value float64
}

type constNode struct {
	name  string
	value float64
}

type variableNode struct {
	name string
	pos  int
}

type unaryNode struct {
	op      byte
	operand node
}

type binaryNode struct {
	op          byte
	left, right node
}

type callNode struct {
	name string
	fn   function
	args []node
}

func (n *numberNode) String() string { return strconv.FormatFloat(n.value, 'g', -1, 64) }
func (n *constNode) String() string  { return n.name }
func (n *variableNode) String() string {
	return n.name
}
func (n *unaryNode) String() string { return "(" + string(n.op) + n.operand.String() + ")" }
func (n *binaryNode) String() string {
	return "(" + n.left.String() + " " + string(n.op) + " " + n.right.String() + ")"
}
func (n *callNode) String() string {
	s := n.name + "("
	for i, a := range n.args {
		if i > 0 {
			s += ", "
		}
		s += a.String()
	}
	return s + ")"
}

type parser struct {
	tokens []token
	pos    int
	depth  int
	idents []string
	seen   map[string]struct{}
}

func parse(src string) (node, []string, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, nil, err
	}
	if len(tokens) == 1 {
		return nil, nil, malformed(0, "empty expression")
	}

	p := &parser{tokens: tokens, seen: make(map[string]struct{})}
	root, err := p.parseExpr()
	if err != nil {
		return nil, nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, nil, malformed(tok.pos, "unexpected %s %q", tok.kind, tok.text)
	}
	return root, p.idents, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) enter(pos int) error {
	p.depth++
	if p.depth > MaxDepth {
		return malformed(pos, "expression nested deeper than %d levels", MaxDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

// expr := term (('+'|'-') term)*
func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOp || (tok.text != "+" && tok.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: tok.text[0], left: left, right: right}
	}
}

// term := unary (('*'|'/') unary)*
func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOp || (tok.text != "*" && tok.text != "/") {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: tok.text[0], left: left, right: right}
	}
}

// unary := ('-'|'+') unary | power
func (p *parser) parseUnary() (node, error) {
	tok := p.peek()
	if tok.kind == tokOp && (tok.text == "-" || tok.text == "+") {
		p.next()
		if err := p.enter(tok.pos); err != nil {
			return nil, err
		}
		defer p.leave()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if tok.text == "+" {
			return operand, nil
		}
		return &unaryNode{op: '-', operand: operand}, nil
	}
	return p.parsePower()
}

// power := primary ('^' unary)?
// The exponent binds tighter than a leading minus: -2^2 == -4, 2^3^2 == 512.
func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	if tok.kind != tokOp || tok.text != "^" {
		return base, nil
	}
	p.next()
	if err := p.enter(tok.pos); err != nil {
		return nil, err
	}
	defer p.leave()
	exp, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &binaryNode{op: '^', left: base, right: exp}, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return &numberNode{value: tok.num}, nil

	case tokLParen:
		if err := p.enter(tok.pos); err != nil {
			return nil, err
		}
		defer p.leave()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, malformed(closing.pos, "expected ')' to close '(' at position %d, got %s", tok.pos, closing.kind)
		}
		return inner, nil

	case tokIdent:
		return p.parseIdent(tok)

	case tokEOF:
		return nil, malformed(tok.pos, "unexpected end of expression")

	default:
		return nil, malformed(tok.pos, "unexpected %s %q", tok.kind, tok.text)
	}
}

func (p *parser) parseIdent(tok token) (node, error) {
	if fn, ok := functions[tok.text]; ok {
		return p.parseCall(tok, fn)
	}
	if v, ok := constants[tok.text]; ok {
		if p.peek().kind == tokLParen {
			return nil, malformed(tok.pos, "constant %s is not callable", tok.text)
		}
		return &constNode{name: tok.text, value: v}, nil
	}
	if p.peek().kind == tokLParen {
		return nil, malformed(tok.pos, "unknown function %q", tok.text)
	}
	if _, ok := p.seen[tok.text]; !ok {
		p.seen[tok.text] = struct{}{}
		p.idents = append(p.idents, tok.text)
	}
	return &variableNode{name: tok.text, pos: tok.pos}, nil
}

func (p *parser) parseCall(name token, fn function) (node, error) {
	open := p.next()
	if open.kind != tokLParen {
		return nil, malformed(name.pos, "function %s must be called", name.text)
	}
	if err := p.enter(open.pos); err != nil {
		return nil, err
	}
	defer p.leave()

	var args []node
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		sep := p.next()
		if sep.kind == tokRParen {
			break
		}
		if sep.kind != tokComma {
			return nil, malformed(sep.pos, "expected ',' or ')' in call to %s, got %s", name.text, sep.kind)
		}
	}

	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, malformed(name.pos, "%s expects %s, got %d", name.text, arity(fn), len(args))
	}
	return &callNode{name: name.text, fn: fn, args: args}, nil
}

func arity(fn function) string {
	switch {
	case fn.maxArgs < 0:
		return "at least " + strconv.Itoa(fn.minArgs) + " argument(s)"
	case fn.minArgs == fn.maxArgs && fn.minArgs == 1:
		return "1 argument"
	case fn.minArgs == fn.maxArgs:
		return strconv.Itoa(fn.minArgs) + " arguments"
	default:
		return strconv.Itoa(fn.minArgs) + "-" + strconv.Itoa(fn.maxArgs) + " arguments"
	}
}
