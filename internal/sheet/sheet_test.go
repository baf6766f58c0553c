package sheet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetdrill/internal/calc"
	"sheetdrill/internal/grid"
)

func addr(t *testing.T, name string) grid.Addr {
	t.Helper()
	a, err := grid.ParseAddr(name)
	require.NoError(t, err)
	return a
}

func newSheet(t *testing.T, initial map[string]any, validate map[string]any) *Sheet {
	t.Helper()
	s, err := New(&Exercise{InitialData: initial, Validate: validate})
	require.NoError(t, err)
	return s
}

func TestNewSizingAndCells(t *testing.T) {
	s := newSheet(t,
		map[string]any{"A1": float64(5), "B1": "10", "C1": "=A1+B1", "A2": "label"},
		map[string]any{"D4": float64(15)},
	)
	assert.Equal(t, 8, s.Rows(), "max(4+3, 8)")
	assert.Equal(t, 6, s.Cols(), "max(4+2, 5)")

	assert.True(t, s.ReadOnly(addr(t, "A1")))
	assert.True(t, s.ReadOnly(addr(t, "B1")))
	assert.False(t, s.ReadOnly(addr(t, "C1")), "formula cells stay editable")
	assert.False(t, s.ReadOnly(addr(t, "D4")))

	assert.Equal(t, calc.Number(10), s.Cell(addr(t, "B1")).Raw, "numeric strings are numbers")
	assert.Equal(t, "15", s.Display(addr(t, "C1")))
	assert.Equal(t, "label", s.Display(addr(t, "A2")))
	assert.Equal(t, "", s.Display(addr(t, "D4")))
	assert.Equal(t, "", s.Display(addr(t, "E7")))

	n, ok := s.NumericValue(addr(t, "C1"))
	assert.True(t, ok)
	assert.Equal(t, 15.0, n)
	_, ok = s.NumericValue(addr(t, "A2"))
	assert.False(t, ok)
}

func TestNewRejectsBadAddress(t *testing.T) {
	_, err := New(&Exercise{InitialData: map[string]any{"1A": float64(1)}})
	assert.ErrorIs(t, err, ErrExerciseFormat)
	assert.ErrorIs(t, err, grid.ErrInvalidAddress)
}

func TestSetCell(t *testing.T) {
	s := newSheet(t, map[string]any{"A1": float64(2), "A2": float64(3)}, nil)
	b1 := addr(t, "B1")

	require.NoError(t, s.SetCell(b1, "=A1*A2"))
	assert.Equal(t, "6", s.Display(b1))

	require.NoError(t, s.SetCell(addr(t, "C1"), "=B1+1"))
	assert.Equal(t, "7", s.Display(addr(t, "C1")))

	require.NoError(t, s.SetCell(b1, "42"))
	assert.Equal(t, calc.Number(42), s.Cell(b1).Raw)
	assert.Equal(t, "43", s.Display(addr(t, "C1")), "dependents follow")

	require.NoError(t, s.SetCell(b1, "hello"))
	assert.Equal(t, calc.Text("hello"), s.Cell(b1).Raw)

	require.NoError(t, s.SetCell(b1, ""))
	assert.Equal(t, "", s.Display(b1))
	assert.Equal(t, "1", s.Display(addr(t, "C1")))

	err := s.SetCell(addr(t, "A1"), "9")
	assert.ErrorIs(t, err, ErrReadOnlyCell)
	assert.Equal(t, "2", s.Display(addr(t, "A1")))

	err = s.SetCell(grid.Addr{Row: 100, Col: 0}, "1")
	assert.ErrorIs(t, err, ErrUnknownCell)
}

func TestSetCellBlurKeepsFormula(t *testing.T) {
	s := newSheet(t, nil, map[string]any{"A1": float64(2)})
	a1 := addr(t, "A1")
	require.NoError(t, s.SetCell(a1, "=1+1"))

	// leaving the cell with its displayed value unchanged
	require.NoError(t, s.SetCell(a1, "2"))
	assert.Equal(t, "=1+1", s.Cell(a1).Formula)
	assert.Equal(t, "2", s.Display(a1))

	require.NoError(t, s.SetCell(a1, "3"))
	assert.Equal(t, "", s.Cell(a1).Formula)
	assert.Equal(t, calc.Number(3), s.Cell(a1).Raw)
}

func TestClearDropsBlankFormula(t *testing.T) {
	s := newSheet(t, map[string]any{"B1": float64(1)}, nil)
	a1 := addr(t, "A1")
	require.NoError(t, s.SetCell(a1, "=B5"))
	require.Equal(t, "", s.Display(a1))

	// a blank commit is the unchanged result, so the formula survives it
	require.NoError(t, s.SetCell(a1, ""))
	assert.Equal(t, "=B5", s.Cell(a1).Formula)

	require.NoError(t, s.Clear(a1))
	assert.Equal(t, "", s.Cell(a1).Formula)
	assert.Equal(t, calc.Empty, s.Cell(a1).Raw)
	assert.NotContains(t, s.Inputs(), a1)

	require.NoError(t, s.Clear(addr(t, "C3")), "clearing an absent cell is a no-op")
	assert.Nil(t, s.Cell(addr(t, "C3")))

	assert.ErrorIs(t, s.Clear(addr(t, "B1")), ErrReadOnlyCell)
	assert.Equal(t, "1", s.Display(addr(t, "B1")))
	assert.ErrorIs(t, s.Clear(grid.Addr{Row: 100, Col: 0}), ErrUnknownCell)
}

func TestFormulaErrorsAreContained(t *testing.T) {
	s := newSheet(t, map[string]any{"A1": float64(1)}, nil)
	b1, c1 := addr(t, "B1"), addr(t, "C1")

	require.NoError(t, s.SetCell(b1, "=FOO(A1"))
	assert.Equal(t, calc.ErrorMarker, s.Display(b1))
	assert.ErrorIs(t, s.Cell(b1).Err(), calc.ErrFormula)

	require.NoError(t, s.SetCell(c1, "=A1+1"))
	assert.Equal(t, "2", s.Display(c1), "other cells still evaluate")
}

func TestCircularReference(t *testing.T) {
	s := newSheet(t, nil, nil)
	a1, b1, c1 := addr(t, "A1"), addr(t, "B1"), addr(t, "C1")

	require.NoError(t, s.SetCell(a1, "=A1+1"))
	assert.Equal(t, calc.ErrorMarker, s.Display(a1))
	assert.ErrorIs(t, s.Cell(a1).Err(), calc.ErrCircularReference)

	require.NoError(t, s.SetCell(b1, "=C1"))
	require.NoError(t, s.SetCell(c1, "=B1*2"))
	assert.Equal(t, calc.ErrorMarker, s.Display(b1))
	assert.Equal(t, calc.ErrorMarker, s.Display(c1))

	require.NoError(t, s.SetCell(c1, "5"))
	assert.Equal(t, "5", s.Display(b1), "breaking the cycle recovers")
}

func TestResolve(t *testing.T) {
	s := newSheet(t, map[string]any{"A1": float64(4), "A2": "=A1*A1"}, nil)
	v, err := s.Resolve(addr(t, "A2"))
	require.NoError(t, err)
	assert.Equal(t, calc.Number(16), v)

	v, err = s.Resolve(addr(t, "Z9"))
	require.NoError(t, err)
	assert.Equal(t, calc.Empty, v)
}

func TestAutofill(t *testing.T) {
	s := newSheet(t,
		map[string]any{"A1": float64(1), "A2": float64(2), "A3": float64(3), "B3": float64(100)},
		map[string]any{"B1": float64(10), "B2": float64(20)},
	)
	b1 := addr(t, "B1")
	require.NoError(t, s.SetCell(b1, "=A1*10"))

	n, err := s.Autofill(b1, addr(t, "B3"))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "read-only B3 is skipped")
	assert.Equal(t, "=A2*10", s.Cell(addr(t, "B2")).Formula)
	assert.Equal(t, "20", s.Display(addr(t, "B2")))
	assert.Equal(t, "100", s.Display(addr(t, "B3")))

	c1 := addr(t, "C1")
	require.NoError(t, s.SetCell(c1, "5"))
	n, err = s.Autofill(c1, addr(t, "C4"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "8", s.Display(addr(t, "C4")), "numbers form a series")

	n, err = s.Autofill(c1, c1)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.Autofill(c1, grid.Addr{Row: 0, Col: 40})
	assert.ErrorIs(t, err, ErrUnknownCell)
}

func TestResetDiscardsEdits(t *testing.T) {
	s := newSheet(t, map[string]any{"A1": float64(1), "B1": "=A1"}, nil)
	require.NoError(t, s.SetCell(addr(t, "B1"), "x"))
	require.NoError(t, s.SetCell(addr(t, "C3"), "7"))

	s.Reset()
	assert.Equal(t, "=A1", s.Cell(addr(t, "B1")).Formula)
	assert.Nil(t, s.Cell(addr(t, "C3")))
	assert.Len(t, s.Addresses(), 2)
}

func TestInputs(t *testing.T) {
	s := newSheet(t, map[string]any{"A1": float64(1.5), "B1": "=A1*2"}, map[string]any{"C1": float64(3)})
	assert.Equal(t, map[grid.Addr]string{
		addr(t, "A1"): "1.5",
		addr(t, "B1"): "=A1*2",
	}, s.Inputs())
}

const exerciseJSON = `{
  "initialData": {"A1": 10, "A2": "20", "B1": "=A1*2"},
  "validate": {"A3": 30},
  "instructions": "Suma A1 y A2 en A3"
}`

func TestDecodeExercise(t *testing.T) {
	ex, err := DecodeExercise([]byte(exerciseJSON))
	require.NoError(t, err)
	assert.Equal(t, "Suma A1 y A2 en A3", ex.Instructions)
	assert.Equal(t, map[grid.Addr]any{{Row: 2, Col: 0}: float64(30)}, ex.Targets())

	_, err = DecodeExercise([]byte(`{"initialData": [1]}`))
	assert.ErrorIs(t, err, ErrExerciseFormat)

	_, err = DecodeExercise([]byte(`{"initialData": {"A1": {"x": 1}}}`))
	assert.ErrorIs(t, err, ErrExerciseFormat)
}

func TestDecodeExerciseYAML(t *testing.T) {
	ex, err := DecodeExerciseYAML([]byte(`
initialData:
  A1: 10
  A2: "=A1+1"
validate:
  A3: 21
instructions: Add them up
`))
	require.NoError(t, err)
	s, err := New(ex)
	require.NoError(t, err)
	assert.Equal(t, "11", s.Display(addr(t, "A2")))
	assert.Equal(t, "Add them up", ex.Instructions)
}

func TestExtractFromMarkdown(t *testing.T) {
	page := "# Lesson\n\n```json\n{\"initialData\": {\"A1\": 1}}\n```\n\n" +
		"```spreadsheet\n" + exerciseJSON + "\n```\n"
	ex, err := ExtractFromMarkdown([]byte(page))
	require.NoError(t, err)
	assert.Len(t, ex.InitialData, 3, "spreadsheet block wins")

	ex, err = ExtractFromMarkdown([]byte("text\n```json\n{\"initialData\": {\"A1\": 1}}\n```\n"))
	require.NoError(t, err)
	assert.Len(t, ex.InitialData, 1)

	_, err = ExtractFromMarkdown([]byte("no blocks here"))
	assert.ErrorIs(t, err, ErrExerciseFormat)
}

func TestLoadExercise(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sum.json")
	require.NoError(t, os.WriteFile(path, []byte(exerciseJSON), 0o644))

	ex, err := LoadExercise(path)
	require.NoError(t, err)
	s, err := New(ex)
	require.NoError(t, err)
	assert.Equal(t, "20", s.Display(addr(t, "B1")))

	_, err = LoadExercise(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
