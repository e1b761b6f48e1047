package formula

import (
	"errors"
	"math"
	"strconv"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp     // + - * / ^
	tokLParen // (
	tokRParen // )
	tokComma
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of expression"
	case tokNumber:
		return "number"
	case tokIdent:
		return "identifier"
	case tokOp:
		return "operator"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	default:
		return "token"
	}
}

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// tokenize splits src into tokens. Identifiers are maximal runs of
// [A-Za-z_][A-Za-z0-9_]*. Anything outside the arithmetic alphabet is
// rejected here, so quotes, semicolons, member access and the like never
// reach the parser.
func tokenize(src string) ([]token, error) {
	if len(src) > MaxExpressionLength {
		return nil, malformed(MaxExpressionLength, "expression longer than %d bytes", MaxExpressionLength)
	}

	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: src[start:i], pos: start})

		case isDigit(c) || c == '.':
			start := i
			end, err := scanNumber(src, i)
			if err != nil {
				return nil, err
			}
			text := src[start:end]
			v, perr := strconv.ParseFloat(text, 64)
			switch {
			case perr == nil:
			case errors.Is(perr, strconv.ErrRange) && math.IsInf(v, 0):
				// Well formed but too large for a float64.
				return nil, &NonFiniteResultError{Value: v, Op: "number literal " + abbreviate(text)}
			case errors.Is(perr, strconv.ErrRange):
				// Underflow rounds to zero or a denormal; keep it.
			default:
				return nil, malformed(start, "invalid number %q", text)
			}
			// A number glued to an identifier ("2x") is not implicit multiplication.
			if end < len(src) && isIdentStart(src[end]) {
				return nil, malformed(end, "unexpected %q after number", src[end])
			}
			tokens = append(tokens, token{kind: tokNumber, text: text, num: v, pos: start})
			i = end

		case c == '+' || c == '-' || c == '*' || c == '/' || c == '^':
			tokens = append(tokens, token{kind: tokOp, text: string(c), pos: i})
			i++

		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++

		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++

		case c == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i})
			i++

		default:
			return nil, malformed(i, "unexpected character %q", c)
		}
	}

	tokens = append(tokens, token{kind: tokEOF, pos: len(src)})
	return tokens, nil
}

// scanNumber returns the end offset of the numeric literal starting at i:
// digits, an optional fraction and an optional exponent.
func scanNumber(src string, i int) (int, error) {
	start := i
	digits := 0
	for i < len(src) && isDigit(src[i]) {
		i++
		digits++
	}
	if i < len(src) && src[i] == '.' {
		i++
		for i < len(src) && isDigit(src[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0, malformed(start, "invalid number")
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(src[j]) {
			for j < len(src) && isDigit(src[j]) {
				j++
			}
			i = j
		}
	}
	if i < len(src) && src[i] == '.' {
		return 0, malformed(i, "unexpected '.' in number")
	}
	return i, nil
}

func abbreviate(s string) string {
	const keep = 24
	if len(s) <= keep {
		return s
	}
	return s[:keep] + "..."
}
