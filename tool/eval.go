package tool

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// The evaluator behind the calculate and run_code tools. It is a closed
// little language: numbers, strings, variables, arithmetic, and an
// allow-list of pure functions. It has no access to the host process,
// filesystem, or network, and any construct outside the grammar is
// rejected rather than guessed at.

// errDisallowed marks rejections that the code tool reports as sandbox
// violations. Callers wrap it into their own fault kind.
var errDisallowed = errors.New("disallowed")

// deniedIdents are names whose mere appearance is rejected outright, so a
// hostile script fails on the identifier rather than on a missing binding.
var deniedIdents = map[string]bool{
	"process": true, "require": true, "import": true, "eval": true,
	"exec": true, "fetch": true, "http": true, "fs": true, "os": true,
	"global": true, "globalThis": true, "window": true, "system": true,
}

type evalFunc struct {
	arity int // -1 for variadic (at least one argument)
	fn    func(args []any) (any, error)
}

var evalFuncs = map[string]evalFunc{
	"abs":   {1, func(a []any) (any, error) { return applyNum1(a[0], math.Abs) }},
	"sqrt":  {1, func(a []any) (any, error) { return applyNum1(a[0], math.Sqrt) }},
	"floor": {1, func(a []any) (any, error) { return applyNum1(a[0], math.Floor) }},
	"ceil":  {1, func(a []any) (any, error) { return applyNum1(a[0], math.Ceil) }},
	"round": {1, func(a []any) (any, error) { return applyNum1(a[0], math.Round) }},
	"pow":   {2, func(a []any) (any, error) { return applyNum2(a[0], a[1], math.Pow) }},
	"min":   {-1, func(a []any) (any, error) { return fold(a, math.Min) }},
	"max":   {-1, func(a []any) (any, error) { return fold(a, math.Max) }},
	"len": {1, func(a []any) (any, error) {
		s, ok := a[0].(string)
		if !ok {
			return nil, fmt.Errorf("len wants a string")
		}
		return float64(len(s)), nil
	}},
	"upper": applyStr(strings.ToUpper),
	"lower": applyStr(strings.ToLower),
}

func applyNum1(v any, f func(float64) float64) (any, error) {
	n, ok := v.(float64)
	if !ok {
		return nil, fmt.Errorf("want a number, got %T", v)
	}
	return f(n), nil
}

func applyNum2(a, b any, f func(_, _ float64) float64) (any, error) {
	x, okx := a.(float64)
	y, oky := b.(float64)
	if !okx || !oky {
		return nil, fmt.Errorf("want numbers")
	}
	return f(x, y), nil
}

func fold(args []any, f func(_, _ float64) float64) (any, error) {
	acc, ok := args[0].(float64)
	if !ok {
		return nil, fmt.Errorf("want numbers")
	}
	for _, v := range args[1:] {
		n, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("want numbers")
		}
		acc = f(acc, n)
	}
	return acc, nil
}

func applyStr(f func(string) string) evalFunc {
	return evalFunc{1, func(a []any) (any, error) {
		s, ok := a[0].(string)
		if !ok {
			return nil, fmt.Errorf("want a string, got %T", a[0])
		}
		return f(s), nil
	}}
}

// evalProgram runs a sequence of statements separated by newlines or
// semicolons and returns the value of the last one. Statements are either
// `name = expr` assignments or bare expressions.
func evalProgram(src string) (any, error) {
	p := &parser{}
	if err := p.lex(src); err != nil {
		return nil, err
	}
	vars := make(map[string]any)
	var last any
	hadStmt := false
	for !p.atEnd() {
		if p.accept(tokSep) {
			continue
		}
		v, err := p.statement(vars)
		if err != nil {
			return nil, err
		}
		last = v
		hadStmt = true
		if !p.atEnd() && !p.accept(tokSep) {
			return nil, fmt.Errorf("%w: unexpected %q", errDisallowed, p.peek().text)
		}
	}
	if !hadStmt {
		return nil, fmt.Errorf("%w: empty program", errDisallowed)
	}
	return last, nil
}

// evalExpr evaluates a single expression with no variables in scope.
func evalExpr(src string) (any, error) {
	p := &parser{}
	if err := p.lex(src); err != nil {
		return nil, err
	}
	v, err := p.expr(map[string]any{})
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, fmt.Errorf("%w: unexpected %q", errDisallowed, p.peek().text)
	}
	return v, nil
}

type tokKind int

const (
	tokNumber tokKind = iota
	tokString
	tokIdent
	tokOp  // single-char operator or punctuation
	tokSep // newline or semicolon
	tokEOF
)

type token struct {
	kind tokKind
	text string
	num  float64
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) lex(src string) error {
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n' || c == ';':
			p.toks = append(p.toks, token{kind: tokSep, text: string(c)})
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.' || src[j] == 'e' ||
				src[j] == 'E' || ((src[j] == '+' || src[j] == '-') && j > i && (src[j-1] == 'e' || src[j-1] == 'E'))) {
				j++
			}
			n, err := strconv.ParseFloat(src[i:j], 64)
			if err != nil {
				return fmt.Errorf("%w: bad number %q", errDisallowed, src[i:j])
			}
			p.toks = append(p.toks, token{kind: tokNumber, text: src[i:j], num: n})
			i = j
		case c == '"' || c == '\'':
			quote := c
			j := i + 1
			var sb strings.Builder
			for j < len(src) && src[j] != quote {
				if src[j] == '\\' && j+1 < len(src) {
					j++
				}
				sb.WriteByte(src[j])
				j++
			}
			if j >= len(src) {
				return fmt.Errorf("%w: unterminated string", errDisallowed)
			}
			p.toks = append(p.toks, token{kind: tokString, text: sb.String()})
			i = j + 1
		case isIdentStart(rune(c)):
			j := i
			for j < len(src) && isIdentPart(rune(src[j])) {
				j++
			}
			p.toks = append(p.toks, token{kind: tokIdent, text: src[i:j]})
			i = j
		case strings.ContainsRune("+-*/%()=,", rune(c)):
			p.toks = append(p.toks, token{kind: tokOp, text: string(c)})
			i++
		default:
			return fmt.Errorf("%w: unexpected character %q", errDisallowed, string(c))
		}
	}
	p.toks = append(p.toks, token{kind: tokEOF})
	return nil
}

func isIdentStart(r rune) bool { return unicode.IsLetter(r) || r == '_' }
func isIdentPart(r rune) bool  { return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' }

func (p *parser) peek() token { return p.toks[p.pos] }
func (p *parser) next() token { t := p.toks[p.pos]; p.pos++; return t }
func (p *parser) atEnd() bool { return p.peek().kind == tokEOF }

func (p *parser) accept(kind tokKind) bool {
	if p.peek().kind == kind {
		p.pos++
		return true
	}
	return false
}

func (p *parser) acceptOp(op string) bool {
	if t := p.peek(); t.kind == tokOp && t.text == op {
		p.pos++
		return true
	}
	return false
}

// statement parses `let? IDENT = expr` or a bare expression.
func (p *parser) statement(vars map[string]any) (any, error) {
	if t := p.peek(); t.kind == tokIdent {
		// Optional `let` prefix before an assignment.
		offset := 0
		name := t.text
		if t.text == "let" && p.toks[p.pos+1].kind == tokIdent {
			offset = 1
			name = p.toks[p.pos+1].text
		}
		if eq := p.toks[p.pos+offset+1]; eq.kind == tokOp && eq.text == "=" {
			if deniedIdents[name] {
				return nil, fmt.Errorf("%w: identifier %q", errDisallowed, name)
			}
			p.pos += offset + 2
			v, err := p.expr(vars)
			if err != nil {
				return nil, err
			}
			vars[name] = v
			return v, nil
		}
	}
	return p.expr(vars)
}

func (p *parser) expr(vars map[string]any) (any, error) {
	left, err := p.term(vars)
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.acceptOp("+"):
			right, err := p.term(vars)
			if err != nil {
				return nil, err
			}
			left, err = add(left, right)
			if err != nil {
				return nil, err
			}
		case p.acceptOp("-"):
			right, err := p.term(vars)
			if err != nil {
				return nil, err
			}
			left, err = arith(left, right, func(a, b float64) (float64, error) { return a - b, nil })
			if err != nil {
				return nil, err
			}
		default:
			return left, nil
		}
	}
}

func (p *parser) term(vars map[string]any) (any, error) {
	left, err := p.unary(vars)
	if err != nil {
		return nil, err
	}
	for {
		var op func(a, b float64) (float64, error)
		switch {
		case p.acceptOp("*"):
			op = func(a, b float64) (float64, error) { return a * b, nil }
		case p.acceptOp("/"):
			op = func(a, b float64) (float64, error) {
				if b == 0 {
					return 0, fmt.Errorf("division by zero")
				}
				return a / b, nil
			}
		case p.acceptOp("%"):
			op = func(a, b float64) (float64, error) {
				if b == 0 {
					return 0, fmt.Errorf("division by zero")
				}
				return math.Mod(a, b), nil
			}
		default:
			return left, nil
		}
		right, err := p.unary(vars)
		if err != nil {
			return nil, err
		}
		left, err = arith(left, right, op)
		if err != nil {
			return nil, err
		}
	}
}

func (p *parser) unary(vars map[string]any) (any, error) {
	if p.acceptOp("-") {
		v, err := p.unary(vars)
		if err != nil {
			return nil, err
		}
		n, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("cannot negate %T", v)
		}
		return -n, nil
	}
	return p.primary(vars)
}

func (p *parser) primary(vars map[string]any) (any, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return t.num, nil
	case tokString:
		return t.text, nil
	case tokIdent:
		if deniedIdents[t.text] {
			return nil, fmt.Errorf("%w: identifier %q", errDisallowed, t.text)
		}
		if p.acceptOp("(") {
			return p.call(t.text, vars)
		}
		v, ok := vars[t.text]
		if !ok {
			return nil, fmt.Errorf("%w: unknown identifier %q", errDisallowed, t.text)
		}
		return v, nil
	case tokOp:
		if t.text == "(" {
			v, err := p.expr(vars)
			if err != nil {
				return nil, err
			}
			if !p.acceptOp(")") {
				return nil, fmt.Errorf("%w: missing )", errDisallowed)
			}
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: unexpected %q", errDisallowed, t.text)
}

func (p *parser) call(name string, vars map[string]any) (any, error) {
	f, ok := evalFuncs[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown function %q", errDisallowed, name)
	}
	var args []any
	if !p.acceptOp(")") {
		for {
			v, err := p.expr(vars)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
			if p.acceptOp(")") {
				break
			}
			if !p.acceptOp(",") {
				return nil, fmt.Errorf("%w: missing , in %s()", errDisallowed, name)
			}
		}
	}
	if f.arity >= 0 && len(args) != f.arity {
		return nil, fmt.Errorf("%s wants %d argument(s), got %d", name, f.arity, len(args))
	}
	if f.arity < 0 && len(args) == 0 {
		return nil, fmt.Errorf("%s wants at least one argument", name)
	}
	return f.fn(args)
}

func add(a, b any) (any, error) {
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return as + bs, nil
		}
		return nil, fmt.Errorf("cannot add string and %T", b)
	}
	return arith(a, b, func(x, y float64) (float64, error) { return x + y, nil })
}

func arith(a, b any, f func(_, _ float64) (float64, error)) (any, error) {
	x, okx := a.(float64)
	y, oky := b.(float64)
	if !okx || !oky {
		return nil, fmt.Errorf("cannot operate on %T and %T", a, b)
	}
	return f(x, y)
}
