// Package sheet holds the grid model of an exercise: cells, recalculation,
// user edits and autofill.
package sheet

import (
	"errors"
	"fmt"
	"sort"

	"sheetdrill/internal/calc"
	"sheetdrill/internal/fill"
	"sheetdrill/internal/grid"
)

var (
	ErrReadOnlyCell = errors.New("cell is read-only")
	ErrUnknownCell  = errors.New("cell is outside the sheet")
)

// Grid padding around the cells an exercise mentions.
const (
	MarginRows = 3
	MarginCols = 2
	MinRows    = 8
	MinCols    = 5
)

// Cell is either a literal (Raw) or a formula, never both.
type Cell struct {
	Raw      calc.Value
	Formula  string
	ReadOnly bool

	parsed  *calc.Formula
	display calc.Value
	err     error
}

// IsFormula reports whether the cell holds a formula.
func (c *Cell) IsFormula() bool { return c.Formula != "" }

// Input is the text a user would type to recreate the cell.
func (c *Cell) Input() string {
	if c.IsFormula() {
		return c.Formula
	}
	return c.Raw.String()
}

// Err is the evaluation error of the last recalculation, if any.
func (c *Cell) Err() error { return c.err }

// Sheet is the authoritative in-memory grid. It is not safe for concurrent
// use; the UI drives it from a single event loop.
type Sheet struct {
	exercise *Exercise
	cells    map[grid.Addr]*Cell
	rows     int
	cols     int
}

// New builds the grid of ex.
func New(ex *Exercise) (*Sheet, error) {
	if ex == nil {
		ex = &Exercise{}
	}
	if err := ex.check(); err != nil {
		return nil, err
	}
	s := &Sheet{exercise: ex}
	s.Reset()
	return s, nil
}

// Reset rebuilds every cell from the exercise, discarding edits.
func (s *Sheet) Reset() {
	ex := s.exercise
	s.cells = map[grid.Addr]*Cell{}

	maxRow, maxCol := -1, -1
	for _, a := range ex.addresses() {
		maxRow = max(maxRow, a.Row)
		maxCol = max(maxCol, a.Col)
	}
	s.rows = max(maxRow+1+MarginRows, MinRows)
	s.cols = max(maxCol+1+MarginCols, MinCols)

	for name, v := range ex.InitialData {
		a, _ := grid.ParseAddr(name)
		raw, _ := scalar(v)
		if calc.IsFormula(raw) {
			s.cells[a] = &Cell{Formula: raw}
			continue
		}
		s.cells[a] = &Cell{Raw: calc.Literal(raw), ReadOnly: true}
	}
	for name := range ex.Validate {
		a, _ := grid.ParseAddr(name)
		if _, ok := s.cells[a]; !ok {
			s.cells[a] = &Cell{}
		}
	}
	s.Recalculate()
}

func (s *Sheet) Exercise() *Exercise { return s.exercise }
func (s *Sheet) Rows() int           { return s.rows }
func (s *Sheet) Cols() int           { return s.cols }

// Contains reports whether a lies inside the sheet dimensions.
func (s *Sheet) Contains(a grid.Addr) bool {
	return a.Row >= 0 && a.Col >= 0 && a.Row < s.rows && a.Col < s.cols
}

// Cell returns the cell at a, nil when nothing was ever stored there.
func (s *Sheet) Cell(a grid.Addr) *Cell {
	return s.cells[a]
}

// Addresses lists the stored cells row-major.
func (s *Sheet) Addresses() []grid.Addr {
	out := make([]grid.Addr, 0, len(s.cells))
	for a := range s.cells {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Inputs returns the raw input of every non-empty cell.
func (s *Sheet) Inputs() map[grid.Addr]string {
	out := make(map[grid.Addr]string, len(s.cells))
	for a, c := range s.cells {
		if in := c.Input(); in != "" {
			out[a] = in
		}
	}
	return out
}

// ReadOnly reports whether a is given data the user may not change.
func (s *Sheet) ReadOnly(a grid.Addr) bool {
	c := s.cells[a]
	return c != nil && c.ReadOnly
}

// SetCell stores raw user input at a and recalculates. Input starting with
// "=" becomes a formula, numeric input a number, anything else text.
//
// When a holds a formula and raw equals what the formula currently shows,
// the formula is kept: the user focused the cell and left it unchanged.
func (s *Sheet) SetCell(a grid.Addr, raw string) error {
	if !s.Contains(a) {
		return fmt.Errorf("%w: %s", ErrUnknownCell, a)
	}
	c := s.cells[a]
	if c != nil && c.ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnlyCell, a)
	}
	if c != nil && c.IsFormula() && raw == s.Display(a) {
		return nil
	}
	s.put(a, raw)
	s.Recalculate()
	return nil
}

// Clear empties a, dropping any formula even when its result is blank.
func (s *Sheet) Clear(a grid.Addr) error {
	if !s.Contains(a) {
		return fmt.Errorf("%w: %s", ErrUnknownCell, a)
	}
	c := s.cells[a]
	if c == nil {
		return nil
	}
	if c.ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnlyCell, a)
	}
	s.put(a, "")
	s.Recalculate()
	return nil
}

func (s *Sheet) put(a grid.Addr, raw string) {
	c := s.cells[a]
	if c == nil {
		c = &Cell{}
		s.cells[a] = c
	}
	c.parsed, c.err = nil, nil
	if calc.IsFormula(raw) {
		c.Formula = raw
		c.Raw = calc.Empty
		return
	}
	c.Formula = ""
	c.Raw = calc.Literal(raw)
	c.display = c.Raw
}

// Recalculate re-evaluates every formula cell. Values computed during the
// sweep are shared, so each formula runs once per sweep.
func (s *Sheet) Recalculate() {
	sw := &sweep{sheet: s, done: map[grid.Addr]result{}, visiting: map[grid.Addr]bool{}}
	for _, a := range s.Addresses() {
		c := s.cells[a]
		if !c.IsFormula() {
			c.display, c.err = c.Raw, nil
			continue
		}
		r := sw.eval(a, c)
		c.display, c.err = r.value, r.err
	}
}

// DisplayValue is the current value of a: the literal, the formula result,
// or Empty for an absent cell or a failing formula.
func (s *Sheet) DisplayValue(a grid.Addr) calc.Value {
	c := s.cells[a]
	if c == nil || c.err != nil {
		return calc.Empty
	}
	return c.display
}

// Display is the text shown in the grid for a.
func (s *Sheet) Display(a grid.Addr) string {
	c := s.cells[a]
	if c == nil {
		return ""
	}
	if c.err != nil {
		return calc.ErrorMarker
	}
	return c.display.String()
}

// NumericValue returns the number held or computed at a; ok is false for
// absent, empty, text or failing cells.
func (s *Sheet) NumericValue(a grid.Addr) (float64, bool) {
	v := s.DisplayValue(a)
	if v.Kind == calc.KindBool {
		return 0, false
	}
	return v.AsNumber()
}

// Resolve evaluates a on demand, formulas included. It implements
// calc.Resolver for callers outside a recalculation sweep.
func (s *Sheet) Resolve(a grid.Addr) (calc.Value, error) {
	sw := &sweep{sheet: s, done: map[grid.Addr]result{}, visiting: map[grid.Addr]bool{}}
	return sw.Resolve(a)
}

// Autofill copies the content of src along the dominant axis up to dst.
// Read-only targets are skipped. It returns the number of cells written.
func (s *Sheet) Autofill(src, dst grid.Addr) (int, error) {
	if !s.Contains(src) || !s.Contains(dst) {
		return 0, fmt.Errorf("%w: %s:%s", ErrUnknownCell, src, dst)
	}
	content := fill.Source{}
	if c := s.cells[src]; c != nil {
		content.Formula = c.Formula
		content.Value = c.Raw
	}
	n := 0
	for _, w := range fill.Plan(src, dst, content) {
		if !s.Contains(w.Addr) || s.ReadOnly(w.Addr) {
			continue
		}
		if w.Formula != "" {
			s.put(w.Addr, w.Formula)
		} else {
			s.put(w.Addr, w.Value.String())
		}
		n++
	}
	if n > 0 {
		s.Recalculate()
	}
	return n, nil
}

type result struct {
	value calc.Value
	err   error
}

// sweep resolves cells for one recalculation, guarding against cycles.
type sweep struct {
	sheet    *Sheet
	done     map[grid.Addr]result
	visiting map[grid.Addr]bool
}

func (sw *sweep) Resolve(a grid.Addr) (calc.Value, error) {
	c := sw.sheet.cells[a]
	if c == nil {
		return calc.Empty, nil
	}
	if !c.IsFormula() {
		return c.Raw, nil
	}
	r := sw.eval(a, c)
	return r.value, r.err
}

func (sw *sweep) eval(a grid.Addr, c *Cell) result {
	if r, ok := sw.done[a]; ok {
		return r
	}
	if sw.visiting[a] {
		return result{err: fmt.Errorf("%s: %w", a, calc.ErrCircularReference)}
	}
	sw.visiting[a] = true
	defer delete(sw.visiting, a)

	var r result
	if c.parsed == nil {
		c.parsed, r.err = calc.Parse(c.Formula)
	}
	if r.err == nil {
		r.value, r.err = c.parsed.Eval(sw)
	}
	sw.done[a] = r
	return r
}
