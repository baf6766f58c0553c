package calc

import (
	"fmt"
	"math"
	"strings"

	"sheetdrill/internal/grid"
)

// Resolver hands out the current value of a cell. Absent cells resolve to
// Empty. An error aborts the formula being evaluated.
type Resolver interface {
	Resolve(a grid.Addr) (Value, error)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(a grid.Addr) (Value, error)

func (f ResolverFunc) Resolve(a grid.Addr) (Value, error) { return f(a) }

type evaluator struct {
	res Resolver
}

func (ev *evaluator) resolve(a grid.Addr) (Value, error) {
	if ev.res == nil {
		return Empty, nil
	}
	return ev.res.Resolve(a)
}

// value evaluates n in a scalar context. References give the cell's value.
func (ev *evaluator) value(n node) (Value, error) {
	switch n := n.(type) {
	case numberNode:
		return Number(n.v), nil
	case textNode:
		return Text(n.s), nil
	case boolNode:
		return Bool(n.b), nil
	case refNode:
		return ev.resolve(n.ref.Addr)
	case rangeNode:
		return Empty, fmt.Errorf("%w: range %s:%s used as a value", ErrFormula, n.from, n.to)
	case unaryNode:
		f, err := ev.number(n.x)
		if err != nil {
			return Empty, err
		}
		return Number(-f), nil
	case percentNode:
		f, err := ev.number(n.x)
		if err != nil {
			return Empty, err
		}
		return Number(f / 100), nil
	case binaryNode:
		return ev.binary(n)
	case callNode:
		return n.fn.call(ev, n.args)
	}
	return Empty, fmt.Errorf("%w: unknown node %T", ErrFormula, n)
}

// operand is the arithmetic view of n: a bare reference turns into its
// numeric value, 0 when the cell is empty or holds text.
func (ev *evaluator) operand(n node) (Value, error) {
	if r, ok := n.(refNode); ok {
		v, err := ev.resolve(r.ref.Addr)
		if err != nil {
			return Empty, err
		}
		f, _ := v.AsNumber()
		return Number(f), nil
	}
	return ev.value(n)
}

func (ev *evaluator) number(n node) (float64, error) {
	v, err := ev.operand(n)
	if err != nil {
		return 0, err
	}
	return toNumber(v)
}

func toNumber(v Value) (float64, error) {
	if v.IsEmpty() {
		return 0, nil
	}
	f, ok := v.AsNumber()
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a number", ErrFormula, v.String())
	}
	return f, nil
}

func (ev *evaluator) binary(n binaryNode) (Value, error) {
	switch n.op {
	case "&":
		l, err := ev.value(n.l)
		if err != nil {
			return Empty, err
		}
		r, err := ev.value(n.r)
		if err != nil {
			return Empty, err
		}
		return Text(l.String() + r.String()), nil
	case "=", "<>", "<", ">", "<=", ">=":
		l, err := ev.value(n.l)
		if err != nil {
			return Empty, err
		}
		r, err := ev.value(n.r)
		if err != nil {
			return Empty, err
		}
		return Bool(compare(n.op, l, r)), nil
	case "+":
		l, err := ev.operand(n.l)
		if err != nil {
			return Empty, err
		}
		r, err := ev.operand(n.r)
		if err != nil {
			return Empty, err
		}
		if isText(l) || isText(r) {
			return Text(l.String() + r.String()), nil
		}
		a, _ := l.AsNumber()
		b, _ := r.AsNumber()
		return Number(a + b), nil
	}

	a, err := ev.number(n.l)
	if err != nil {
		return Empty, err
	}
	b, err := ev.number(n.r)
	if err != nil {
		return Empty, err
	}
	switch n.op {
	case "-":
		return Number(a - b), nil
	case "*":
		return Number(a * b), nil
	case "/":
		if b == 0 {
			return Empty, ErrDivByZero
		}
		return Number(a / b), nil
	case "^":
		f := math.Pow(a, b)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Empty, fmt.Errorf("%w: %s^%s", ErrFormula, FormatNumber(a), FormatNumber(b))
		}
		return Number(f), nil
	}
	return Empty, fmt.Errorf("%w: unsupported operator %q", ErrFormula, n.op)
}

// isText reports a non-numeric string, the case where + concatenates.
func isText(v Value) bool {
	if v.Kind != KindText {
		return false
	}
	_, ok := parseNumber(v.Str)
	return !ok
}

func compare(op string, l, r Value) bool {
	var c int
	a, aok := l.AsNumber()
	b, bok := r.AsNumber()
	if l.IsEmpty() && bok {
		a, aok = 0, true
	}
	if r.IsEmpty() && aok {
		b, bok = 0, true
	}
	if aok && bok {
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	} else {
		c = strings.Compare(strings.ToLower(l.String()), strings.ToLower(r.String()))
	}
	switch op {
	case "=":
		return c == 0
	case "<>":
		return c != 0
	case "<":
		return c < 0
	case ">":
		return c > 0
	case "<=":
		return c <= 0
	case ">=":
		return c >= 0
	}
	return false
}

// flatten expands range arguments into the values of their cells, in
// row-major order. Other arguments contribute one value each.
func (ev *evaluator) flatten(args []node) ([]Value, error) {
	out := make([]Value, 0, len(args))
	for _, a := range args {
		if r, ok := a.(rangeNode); ok {
			vals, err := ev.rangeValues(r)
			if err != nil {
				return nil, err
			}
			out = append(out, vals...)
			continue
		}
		v, err := ev.value(a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (ev *evaluator) rangeValues(r rangeNode) ([]Value, error) {
	addrs := grid.Box(r.from.Addr, r.to.Addr)
	out := make([]Value, 0, len(addrs))
	for _, a := range addrs {
		v, err := ev.resolve(a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// list is flatten for a single argument that may be a range or a scalar.
func (ev *evaluator) list(n node) ([]Value, error) {
	return ev.flatten([]node{n})
}
