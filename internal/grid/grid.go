package grid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet limits, same as the xlsx format.
const (
	MaxCols = excelize.MaxColumns
	MaxRows = excelize.TotalRows
)

var ErrInvalidAddress = errors.New("invalid cell address")

// Addr is a 0-based (row, col) cell coordinate.
type Addr struct {
	Row int
	Col int
}

// String returns the canonical name, e.g. {Row: 11, Col: 1} -> "B12".
func (a Addr) String() string {
	return ColRowToName(a.Col, a.Row)
}

// Less orders addresses row-major.
func (a Addr) Less(b Addr) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Col < b.Col
}

// Offset returns a shifted by (dRow, dCol) without bounds checks.
func (a Addr) Offset(dRow, dCol int) Addr {
	return Addr{Row: a.Row + dRow, Col: a.Col + dCol}
}

// Ref is a cell reference as written in a formula, keeping the $ markers.
type Ref struct {
	Addr
	AbsCol bool
	AbsRow bool
}

// String writes the reference back with its $ markers.
func (r Ref) String() string {
	var b strings.Builder
	if r.AbsCol {
		b.WriteByte('$')
	}
	b.WriteString(ColToName(r.Col))
	if r.AbsRow {
		b.WriteByte('$')
	}
	fmt.Fprintf(&b, "%d", r.Row+1)
	return b.String()
}

// ColToName: 0 -> A, 25 -> Z, 26 -> AA and so on
func ColToName(col int) string {
	name, err := excelize.ColumnNumberToName(col + 1)
	if err != nil {
		return "?"
	}
	return name
}

// ColRowToName builds cell name from 0-based col,row -> e.g., col 0,row0 -> "A1"
func ColRowToName(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return "?"
	}
	return name
}

// FormatAddr is the inverse of ParseAddr.
func FormatAddr(row, col int) string {
	return ColRowToName(col, row)
}

// ParseRef parses names like A1, $B$7, aa10 keeping the absolute markers.
func ParseRef(name string) (Ref, error) {
	s := strings.TrimSpace(name)
	i := 0
	ref := Ref{}
	if i < len(s) && s[i] == '$' {
		ref.AbsCol = true
		i++
	}
	start := i
	for i < len(s) && isLetter(s[i]) {
		i++
	}
	letters := s[start:i]
	if i < len(s) && s[i] == '$' {
		ref.AbsRow = true
		i++
	}
	digits := s[i:]
	if letters == "" || digits == "" || !allDigits(digits) {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidAddress, name)
	}
	col, row, err := excelize.CellNameToCoordinates(letters + digits)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidAddress, name)
	}
	ref.Addr = Addr{Row: row - 1, Col: col - 1}
	return ref, nil
}

// ParseAddr parses a cell name case-insensitively, ignoring $ markers.
func ParseAddr(name string) (Addr, error) {
	ref, err := ParseRef(name)
	if err != nil {
		return Addr{}, err
	}
	return ref.Addr, nil
}

// ExpandRange lists every address of the box between from and to, inclusive,
// row by row. Corners may be given in any order.
func ExpandRange(from, to string) ([]Addr, error) {
	a, err := ParseAddr(from)
	if err != nil {
		return nil, err
	}
	b, err := ParseAddr(to)
	if err != nil {
		return nil, err
	}
	return Box(a, b), nil
}

// Box is ExpandRange over parsed corners.
func Box(a, b Addr) []Addr {
	rmin, rmax := minInt(a.Row, b.Row), maxInt(a.Row, b.Row)
	cmin, cmax := minInt(a.Col, b.Col), maxInt(a.Col, b.Col)
	out := make([]Addr, 0, (rmax-rmin+1)*(cmax-cmin+1))
	for r := rmin; r <= rmax; r++ {
		for c := cmin; c <= cmax; c++ {
			out = append(out, Addr{Row: r, Col: c})
		}
	}
	return out
}

func isLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isDigit(b byte) bool {
	return (b >= '0' && b <= '9')
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
