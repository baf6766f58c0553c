// Package calc parses and evaluates spreadsheet formulas.
package calc

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"sheetdrill/internal/grid"
)

const FormulaPrefix = "="

// ErrorMarker is what a cell shows when its formula cannot be evaluated.
const ErrorMarker = "#ERROR"

var ErrFormula = errors.New("formula error")

var (
	ErrCircularReference = fmt.Errorf("%w: circular reference detected", ErrFormula)
	ErrDivByZero         = fmt.Errorf("%w: division by zero", ErrFormula)
	ErrUnknownFunction   = fmt.Errorf("%w: unknown function", ErrFormula)
)

// IsFormula reports whether raw cell input is a formula.
func IsFormula(s string) bool {
	return strings.HasPrefix(s, FormulaPrefix)
}

// Formula is a parsed formula ready to be evaluated against a grid.
type Formula struct {
	Source string
	root   node
}

// Parse builds the expression tree for src. The leading "=" is optional.
func Parse(src string) (*Formula, error) {
	body := strings.TrimPrefix(strings.TrimSpace(src), FormulaPrefix)
	tokens, err := tokenize(body)
	if err != nil {
		return nil, err
	}
	root, err := parseTokens(tokens)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	return &Formula{Source: src, root: root}, nil
}

// Eval computes the formula. Numeric results are rounded to 10 decimal
// digits.
func (f *Formula) Eval(r Resolver) (out Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = Empty, fmt.Errorf("%w: %v", ErrFormula, p)
		}
	}()
	ev := &evaluator{res: r}
	out, err = ev.value(f.root)
	if err != nil {
		return Empty, err
	}
	if out.Kind == KindNumber {
		if math.IsNaN(out.Num) || math.IsInf(out.Num, 0) {
			return Empty, fmt.Errorf("%w: result is not a finite number", ErrFormula)
		}
		out.Num = roundResult(out.Num)
	}
	return out, nil
}

// References lists every reference in the formula, range corners included.
func (f *Formula) References() []grid.Ref {
	return collectRefs(f.root, nil)
}

// Evaluate parses and evaluates src in one go.
func Evaluate(src string, r Resolver) (Value, error) {
	f, err := Parse(src)
	if err != nil {
		return Empty, err
	}
	return f.Eval(r)
}

// Display evaluates src and returns the text a cell shows, ErrorMarker on
// failure.
func Display(src string, r Resolver) string {
	v, err := Evaluate(src, r)
	if err != nil {
		return ErrorMarker
	}
	return v.String()
}
