// Package fill implements the autofill gesture: reference shifting for
// formulas, series increments for numbers and the drag state machine.
package fill

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"sheetdrill/internal/calc"
	"sheetdrill/internal/grid"
)

// refPattern matches a cell reference with optional $ markers.
var refPattern = regexp.MustCompile(`(\$?)([A-Za-z]{1,3})(\$?)([0-9]+)`)

// ShiftFormula moves every relative reference in formula by (dRow, dCol).
// Absolute axes are kept. A reference that would leave the sheet is left
// as written. Text inside string literals is never touched.
func ShiftFormula(formula string, dRow, dCol int) string {
	var b strings.Builder
	inString := false
	start := 0
	for i := 0; i < len(formula); i++ {
		if formula[i] != '"' {
			continue
		}
		if !inString {
			b.WriteString(shiftSegment(formula[start:i], dRow, dCol))
			start = i
		} else {
			b.WriteString(formula[start : i+1])
			start = i + 1
		}
		inString = !inString
	}
	if inString {
		b.WriteString(formula[start:])
	} else {
		b.WriteString(shiftSegment(formula[start:], dRow, dCol))
	}
	return b.String()
}

func shiftSegment(s string, dRow, dCol int) string {
	matches := refPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		if !isBoundary(s, m[0], m[1]) {
			continue
		}
		b.WriteString(s[last:m[0]])
		b.WriteString(shiftRef(s[m[0]:m[1]], s[m[2]:m[3]] == "$", s[m[4]:m[5]], s[m[6]:m[7]] == "$", s[m[8]:m[9]], dRow, dCol))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

// isBoundary rejects matches glued to identifiers (LOG10, SUMAR.SI2) or
// followed by "(" which makes them function names.
func isBoundary(s string, from, to int) bool {
	if from > 0 {
		c := s[from-1]
		if isWordByte(c) || c == '.' {
			return false
		}
	}
	if to < len(s) {
		c := s[to]
		if isWordByte(c) || c == '(' || c == '.' {
			return false
		}
	}
	return true
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func shiftRef(orig string, absCol bool, letters string, absRow bool, digits string, dRow, dCol int) string {
	col, err := excelize.ColumnNameToNumber(letters)
	if err != nil {
		return orig
	}
	row, err := strconv.Atoi(digits)
	if err != nil || row < 1 {
		return orig
	}
	if !absCol {
		col += dCol
	}
	if !absRow {
		row += dRow
	}
	if col < 1 || col > grid.MaxCols || row < 1 || row > grid.MaxRows {
		return orig
	}
	ref := grid.Ref{Addr: grid.Addr{Row: row - 1, Col: col - 1}, AbsCol: absCol, AbsRow: absRow}
	return ref.String()
}

// ShiftValue is the series rule for literal sources: numbers advance by
// dRow+dCol, everything else is copied.
func ShiftValue(v calc.Value, dRow, dCol int) calc.Value {
	if v.Kind == calc.KindNumber {
		return calc.Number(v.Num + float64(dRow+dCol))
	}
	return v
}
