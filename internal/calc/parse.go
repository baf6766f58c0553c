package calc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/efp"

	"sheetdrill/internal/grid"
)

// node is one element of a parsed formula.
type node any

type numberNode struct{ v float64 }

type textNode struct{ s string }

type boolNode struct{ b bool }

type refNode struct{ ref grid.Ref }

type rangeNode struct{ from, to grid.Ref }

type unaryNode struct {
	op string
	x  node
}

type percentNode struct{ x node }

type binaryNode struct {
	op   string
	l, r node
}

type callNode struct {
	name string
	fn   *function
	args []node
}

// parser walks the efp token stream with recursive descent.
// Precedence, lowest first: comparison, &, + -, * /, ^, %, prefix sign.
type parser struct {
	tokens []efp.Token
	pos    int
}

func tokenize(formula string) (tokens []efp.Token, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: tokenizer: %v", ErrFormula, r)
		}
	}()
	ps := efp.ExcelParser()
	for _, t := range ps.Parse(formula) {
		if t.TType == efp.TokenTypeWhitespace || t.TType == efp.TokenTypeNoop {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

func parseTokens(tokens []efp.Token) (node, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty formula", ErrFormula)
	}
	p := parser{tokens: tokens}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, p.unexpected()
	}
	return n, nil
}

func (p *parser) peek() (efp.Token, bool) {
	if p.pos >= len(p.tokens) {
		return efp.Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) unexpected() error {
	t, ok := p.peek()
	if !ok {
		return fmt.Errorf("%w: unexpected end of formula", ErrFormula)
	}
	return fmt.Errorf("%w: unexpected %s %q", ErrFormula, t.TType, t.TValue)
}

// infix returns the operator at the cursor when it is one of ops.
func (p *parser) infix(ops ...string) (string, bool) {
	t, ok := p.peek()
	if !ok || t.TType != efp.TokenTypeOperatorInfix {
		return "", false
	}
	for _, op := range ops {
		if t.TValue == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseExpr() (node, error) {
	return p.parseBinary(0)
}

var precedence = [][]string{
	{"=", "<>", "<", ">", "<=", ">="},
	{"&"},
	{"+", "-"},
	{"*", "/"},
	{"^"},
}

func (p *parser) parseBinary(level int) (node, error) {
	if level == len(precedence) {
		return p.parseUnary()
	}
	left, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.infix(precedence[level]...)
		if !ok {
			return left, nil
		}
		right, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, l: left, r: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	t, ok := p.peek()
	if ok && t.TType == efp.TokenTypeOperatorPrefix {
		p.pos++
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if t.TValue == "+" {
			return x, nil
		}
		return unaryNode{op: t.TValue, x: x}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.TType != efp.TokenTypeOperatorPostfix || t.TValue != "%" {
			return x, nil
		}
		p.pos++
		x = percentNode{x: x}
	}
}

func (p *parser) parsePrimary() (node, error) {
	t, ok := p.peek()
	if !ok {
		return nil, p.unexpected()
	}
	switch t.TType {
	case efp.TokenTypeOperand:
		p.pos++
		return operand(t)
	case efp.TokenTypeSubexpression:
		if t.TSubType != efp.TokenSubTypeStart {
			return nil, p.unexpected()
		}
		p.pos++
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectStop(efp.TokenTypeSubexpression); err != nil {
			return nil, err
		}
		return x, nil
	case efp.TokenTypeFunction:
		if t.TSubType != efp.TokenSubTypeStart {
			return nil, p.unexpected()
		}
		p.pos++
		return p.parseCall(t.TValue)
	}
	return nil, p.unexpected()
}

func (p *parser) expectStop(ttype string) error {
	t, ok := p.peek()
	if !ok || t.TType != ttype || t.TSubType != efp.TokenSubTypeStop {
		return p.unexpected()
	}
	p.pos++
	return nil
}

func (p *parser) parseCall(name string) (node, error) {
	canonical, fn := lookupFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	var args []node
	if t, ok := p.peek(); ok && t.TType == efp.TokenTypeFunction && t.TSubType == efp.TokenSubTypeStop {
		p.pos++
	} else {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			t, ok := p.peek()
			if ok && t.TType == efp.TokenTypeArgument {
				p.pos++
				continue
			}
			if err := p.expectStop(efp.TokenTypeFunction); err != nil {
				return nil, err
			}
			break
		}
	}
	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, fmt.Errorf("%w: %s takes %s arguments, got %d", ErrFormula, canonical, fn.arity(), len(args))
	}
	return callNode{name: canonical, fn: fn, args: args}, nil
}

func operand(t efp.Token) (node, error) {
	switch t.TSubType {
	case efp.TokenSubTypeNumber:
		f, err := strconv.ParseFloat(t.TValue, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", ErrFormula, t.TValue)
		}
		return numberNode{v: f}, nil
	case efp.TokenSubTypeText:
		return textNode{s: t.TValue}, nil
	case efp.TokenSubTypeLogical:
		return boolNode{b: strings.EqualFold(t.TValue, "TRUE")}, nil
	case efp.TokenSubTypeRange:
		return reference(t.TValue)
	}
	return nil, fmt.Errorf("%w: unsupported operand %q", ErrFormula, t.TValue)
}

// reference accepts A1, $A$1 and A1:B5. Sheet-qualified names are not
// supported since an exercise has a single sheet.
func reference(s string) (node, error) {
	if from, to, ok := strings.Cut(s, ":"); ok {
		a, err := grid.ParseRef(from)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormula, err)
		}
		b, err := grid.ParseRef(to)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormula, err)
		}
		return rangeNode{from: a, to: b}, nil
	}
	ref, err := grid.ParseRef(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormula, err)
	}
	return refNode{ref: ref}, nil
}

// collectRefs appends every reference in n, range corners included.
func collectRefs(n node, out []grid.Ref) []grid.Ref {
	switch n := n.(type) {
	case refNode:
		out = append(out, n.ref)
	case rangeNode:
		out = append(out, n.from, n.to)
	case unaryNode:
		out = collectRefs(n.x, out)
	case percentNode:
		out = collectRefs(n.x, out)
	case binaryNode:
		out = collectRefs(n.l, out)
		out = collectRefs(n.r, out)
	case callNode:
		for _, a := range n.args {
			out = collectRefs(a, out)
		}
	}
	return out
}
