package app

import (
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"sheetdrill/internal/calc"
	"sheetdrill/internal/fill"
	"sheetdrill/internal/grid"
	"sheetdrill/internal/sheet"
	"sheetdrill/internal/storage"
	"sheetdrill/internal/verify"

	"github.com/gdamore/tcell/v2"
)

type Mode string

const (
	ModeNormal Mode = "normal"
	ModeInsert Mode = "insert"
)

// Options are the editing preferences exposed as command-line flags.
type Options struct {
	ColWidth            int
	MoveAfterEnter      bool
	SelectAllOnEdit     bool
	EnterStartsEdit     bool
	PrintableStartsEdit bool
}

func DefaultOptions() Options {
	return Options{
		ColWidth:        12,
		MoveAfterEnter:  true,
		SelectAllOnEdit: true,
		EnterStartsEdit: true,
	}
}

type App struct {
	// layout
	LeftGutter  int
	TopLines    int
	StatusLines int
	CellPadding int
	ColWidths   []int

	Sheet  *sheet.Sheet
	Report *verify.Report
	Log    *log.Logger

	// cursor / view
	CurRow  int
	CurCol  int
	ViewRow int
	ViewCol int

	// UI state
	Mode              Mode
	InputBuf          string
	ReplaceOnNextRune bool
	Message           string
	Popup             string
	HelpVisible       bool
	Quit              bool
	Drag              fill.Drag

	Options
}

// NewApp builds the UI state for sh. A nil logger discards output.
func NewApp(sh *sheet.Sheet, opts Options, logger *log.Logger) *App {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.ColWidth < 4 {
		opts.ColWidth = DefaultOptions().ColWidth
	}
	a := &App{
		LeftGutter:  5,
		TopLines:    3,
		StatusLines: 2,
		CellPadding: 1,
		Sheet:       sh,
		Log:         logger,
		Mode:        ModeNormal,
		Options:     opts,
	}
	for i := 0; i < sh.Cols(); i++ {
		a.ColWidths = append(a.ColWidths, opts.ColWidth)
	}
	return a
}

// Cursor is the focused cell.
func (a *App) Cursor() grid.Addr {
	return grid.Addr{Row: a.CurRow, Col: a.CurCol}
}

func (a *App) moveTo(c grid.Addr) {
	a.CurRow = max(0, min(c.Row, a.Sheet.Rows()-1))
	a.CurCol = max(0, min(c.Col, a.Sheet.Cols()-1))
}

// ----------------------------- Events / Input -----------------------------

func (a *App) HandleKeyEvent(s tcell.Screen, ev *tcell.EventKey) {
	if a.Mode == ModeInsert {
		a.handleInsertKey(ev)
		return
	}

	// popups consume keys; Esc, Enter or their own key close them
	if a.HelpVisible {
		if ev.Key() == tcell.KeyEsc || ev.Key() == tcell.KeyEnter || ev.Rune() == '?' {
			a.HelpVisible = false
		}
		return
	}
	if a.Popup != "" {
		if ev.Key() == tcell.KeyEsc || ev.Key() == tcell.KeyEnter || ev.Rune() == 'v' {
			a.Popup = ""
		}
		return
	}

	mod := ev.Modifiers()
	switch ev.Key() {
	case tcell.KeyCtrlC:
		a.Quit = true
	case tcell.KeyUp:
		a.moveTo(a.Cursor().Offset(-1, 0))
	case tcell.KeyDown:
		a.moveTo(a.Cursor().Offset(1, 0))
	case tcell.KeyLeft:
		if mod&tcell.ModCtrl != 0 {
			if a.ColWidths[a.CurCol] > 4 {
				a.ColWidths[a.CurCol]--
			}
		} else {
			a.moveTo(a.Cursor().Offset(0, -1))
		}
	case tcell.KeyRight:
		if mod&tcell.ModCtrl != 0 {
			a.ColWidths[a.CurCol]++
		} else {
			a.moveTo(a.Cursor().Offset(0, 1))
		}
	case tcell.KeyTab:
		a.moveTo(a.Cursor().Offset(0, 1))
	case tcell.KeyBacktab:
		a.moveTo(a.Cursor().Offset(0, -1))
	case tcell.KeyPgUp:
		vr, _ := a.ComputeVisible(s)
		a.moveTo(a.Cursor().Offset(-vr, 0))
	case tcell.KeyPgDn:
		vr, _ := a.ComputeVisible(s)
		a.moveTo(a.Cursor().Offset(vr, 0))
	case tcell.KeyHome:
		a.moveTo(grid.Addr{})
	case tcell.KeyEnd:
		a.moveTo(grid.Addr{Row: a.Sheet.Rows() - 1, Col: a.Sheet.Cols() - 1})
	case tcell.KeyDelete, tcell.KeyBackspace, tcell.KeyBackspace2:
		a.clear(a.Cursor())
	case tcell.KeyEnter:
		if a.EnterStartsEdit {
			a.startEdit()
		}
	case tcell.KeyRune:
		a.handleRune(s, ev.Rune())
	}
}

func (a *App) handleRune(s tcell.Screen, r rune) {
	switch r {
	case 'q':
		a.Quit = true
	case 'i':
		a.startEdit()
	case 'v':
		a.Verify()
	case 'R':
		a.Reset()
	case '?':
		a.HelpVisible = true
	case ':':
		command, ok := a.PopupInput(s, ":", "")
		if ok {
			a.ExecuteCommand(command)
		}
	case '=':
		cur := a.Cursor()
		if a.Sheet.ReadOnly(cur) {
			a.Message = cur.String() + " is read-only"
			return
		}
		initial := calc.FormulaPrefix
		if c := a.Sheet.Cell(cur); c != nil && c.IsFormula() {
			initial = c.Formula
		}
		value, ok := a.PopupInput(s, cur.String(), initial)
		if ok {
			a.commit(cur, value)
		}
	default:
		if a.PrintableStartsEdit && a.startEdit() {
			a.InputBuf = string(r)
			a.ReplaceOnNextRune = false
		}
	}
}

func (a *App) handleInsertKey(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEsc:
		a.stopEdit()
	case tcell.KeyEnter, tcell.KeyTab:
		cur := a.Cursor()
		if !a.commitEdit() {
			return
		}
		switch {
		case ev.Key() == tcell.KeyTab:
			a.moveTo(cur.Offset(0, 1))
		case ev.Modifiers()&tcell.ModCtrl == 0 && a.MoveAfterEnter:
			a.moveTo(cur.Offset(1, 0))
		}
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if a.ReplaceOnNextRune {
			a.InputBuf = ""
		} else if n := len([]rune(a.InputBuf)); n > 0 {
			a.InputBuf = string([]rune(a.InputBuf)[:n-1])
		}
		a.ReplaceOnNextRune = false
	case tcell.KeyRune:
		r := ev.Rune()
		if a.ReplaceOnNextRune {
			a.InputBuf = string(r)
			a.ReplaceOnNextRune = false
		} else {
			a.InputBuf += string(r)
		}
	}
}

// startEdit enters insert mode on the focused cell. The buffer starts with
// what the cell shows, so confirming it unchanged keeps a formula.
func (a *App) startEdit() bool {
	cur := a.Cursor()
	if a.Sheet.ReadOnly(cur) {
		a.Message = cur.String() + " is read-only"
		return false
	}
	a.Mode = ModeInsert
	a.InputBuf = a.Sheet.Display(cur)
	a.ReplaceOnNextRune = a.SelectAllOnEdit
	a.Message = ""
	return true
}

// commitEdit leaves insert mode writing the buffer to the focused cell.
func (a *App) commitEdit() bool {
	buf := a.InputBuf
	a.stopEdit()
	return a.commit(a.Cursor(), buf)
}

func (a *App) stopEdit() {
	a.Mode = ModeNormal
	a.InputBuf = ""
	a.ReplaceOnNextRune = false
}

// commit writes raw into c and drops the verification colours, which no
// longer describe the grid.
func (a *App) commit(c grid.Addr, raw string) bool {
	return a.applied(c, a.Sheet.SetCell(c, raw))
}

func (a *App) clear(c grid.Addr) bool {
	return a.applied(c, a.Sheet.Clear(c))
}

func (a *App) applied(c grid.Addr, err error) bool {
	if err != nil {
		if errors.Is(err, sheet.ErrReadOnlyCell) {
			a.Message = c.String() + " is read-only"
		} else {
			a.Message = err.Error()
		}
		return false
	}
	a.Report = nil
	return true
}

// HandleMouseEvent drives the fill handle: pressing on it starts a drag,
// moving with the button held tracks the target and releasing commits the
// autofill. A plain click focuses a cell.
func (a *App) HandleMouseEvent(s tcell.Screen, ev *tcell.EventMouse) {
	if a.HelpVisible || a.Popup != "" {
		return
	}
	x, y := ev.Position()
	btn := ev.Buttons()

	switch {
	case btn&tcell.Button1 != 0 && a.Drag.Phase == fill.Dragging:
		if target, ok := a.CellAt(s, x, y); ok {
			a.Drag.Move(target)
		}
	case btn&tcell.Button1 != 0:
		if a.onFillHandle(s, x, y) {
			if a.Mode == ModeInsert {
				a.commitEdit()
			}
			a.Drag.Begin(a.Cursor())
			return
		}
		target, ok := a.CellAt(s, x, y)
		if !ok {
			return
		}
		if a.Mode == ModeInsert && target != a.Cursor() {
			a.commitEdit()
		}
		a.moveTo(target)
	case btn == tcell.ButtonNone && a.Drag.Phase == fill.Dragging:
		src, dst, ok := a.Drag.Release()
		if !ok {
			return
		}
		n, err := a.Sheet.Autofill(src, dst)
		if err != nil {
			a.Message = err.Error()
			a.Log.Printf("autofill %s:%s: %v", src, dst, err)
			return
		}
		a.Report = nil
		a.Message = fmt.Sprintf("Filled %d cell(s)", n)
	}
}

// Verify grades the grid and shows the result.
func (a *App) Verify() {
	rep := verify.Verify(a.Sheet, a.Sheet.Exercise().Targets())
	a.Report = &rep
	a.Popup = reportText(rep)
	a.Message = fmt.Sprintf("%d/%d correct", rep.Correct, rep.Total)
}

// Reset restores the exercise data and forgets edits and grades.
func (a *App) Reset() {
	a.Sheet.Reset()
	a.Report = nil
	a.Drag = fill.Drag{}
	a.stopEdit()
	a.moveTo(grid.Addr{})
	a.Message = "Exercise reset"
}

func reportText(rep verify.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d correct\n", rep.Correct, rep.Total)
	for _, r := range rep.Results {
		mark := "✗"
		if r.Pass {
			mark = "✓"
		}
		actual := r.Actual
		if actual == "" {
			actual = "(empty)"
		}
		fmt.Fprintf(&b, "\n%s %s: expected %s, got %s", mark, r.Cell, r.Expected, actual)
	}
	if rep.AllCorrect() {
		b.WriteString("\n\nAll correct!")
	}
	return b.String()
}

// ----------------------------- Commands / Storage -----------------------------

func (a *App) ExecuteCommand(cmd string) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}
	switch parts[0] {
	case "q", "quit":
		a.Quit = true
	case "verify":
		a.Verify()
	case "reset":
		a.Reset()
	case "cw":
		if len(parts) >= 2 {
			if v, err := strconv.Atoi(parts[1]); err == nil && v >= 4 {
				for i := range a.ColWidths {
					a.ColWidths[i] = v
				}
			}
		}
	case "w":
		if len(parts) < 2 {
			a.Message = "usage: :w file.csv|file.xlsx"
			return
		}
		a.write(parts[1])
	case "o":
		if len(parts) < 2 {
			a.Message = "usage: :o file.csv"
			return
		}
		a.open(parts[1])
	default:
		a.Message = "unknown command: " + parts[0]
	}
}

func (a *App) write(filename string) {
	var err error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		err = storage.ExportXLSX(a.Sheet, a.Report, filename)
	case ".csv":
		err = storage.SaveCSV(a.Sheet.Inputs(), filename)
	default:
		filename += ".csv"
		err = storage.SaveCSV(a.Sheet.Inputs(), filename)
	}
	if err != nil {
		a.Log.Printf("error saving %s: %v", filename, err)
		a.Message = "error saving: " + err.Error()
		return
	}
	a.Message = "Saved " + filename
}

func (a *App) open(filename string) {
	answers, err := storage.LoadCSV(filename)
	if err != nil {
		a.Log.Printf("error loading %s: %v", filename, err)
		a.Message = "error loading: " + err.Error()
		return
	}
	n, err := storage.ApplyAnswers(a.Sheet, answers)
	if err != nil {
		a.Log.Printf("answers from %s: %v", filename, err)
	}
	a.Report = nil
	a.Message = fmt.Sprintf("Loaded %d answer(s) from %s", n, filename)
}

// ----------------------------- Viewport / Geometry -----------------------------

func (a *App) gridHeight(s tcell.Screen) int {
	_, h := s.Size()
	return max(1, h-a.TopLines-a.StatusLines)
}

func (a *App) ComputeVisible(s tcell.Screen) (visibleRows, visibleCols int) {
	w, _ := s.Size()
	usableW := max(1, w-a.LeftGutter)
	sumW := 0
	for c := a.ViewCol; c < len(a.ColWidths); c++ {
		if sumW+a.ColWidths[c] > usableW {
			break
		}
		sumW += a.ColWidths[c]
		visibleCols++
	}
	return a.gridHeight(s), max(1, visibleCols)
}

func (a *App) EnsureCursorVisible(s tcell.Screen) {
	if s == nil {
		return
	}
	visibleRows, visibleCols := a.ComputeVisible(s)
	if a.CurCol < a.ViewCol {
		a.ViewCol = a.CurCol
	} else if a.CurCol >= a.ViewCol+visibleCols {
		a.ViewCol = a.CurCol - visibleCols + 1
	}
	if a.CurRow < a.ViewRow {
		a.ViewRow = a.CurRow
	} else if a.CurRow >= a.ViewRow+visibleRows {
		a.ViewRow = a.CurRow - visibleRows + 1
	}
	a.ViewCol = max(0, min(a.ViewCol, len(a.ColWidths)-1))
	a.ViewRow = max(0, min(a.ViewRow, a.Sheet.Rows()-1))
}

// cellRect returns the screen position and width of cell c, ok is false
// when it is scrolled out of view.
func (a *App) cellRect(s tcell.Screen, c grid.Addr) (x, y, width int, ok bool) {
	w, _ := s.Size()
	if c.Row < a.ViewRow || c.Col < a.ViewCol || c.Row-a.ViewRow >= a.gridHeight(s) {
		return 0, 0, 0, false
	}
	x = a.LeftGutter
	for cc := a.ViewCol; cc < c.Col; cc++ {
		x += a.ColWidths[cc]
	}
	if x >= w {
		return 0, 0, 0, false
	}
	return x, a.TopLines + c.Row - a.ViewRow, a.ColWidths[c.Col], true
}

// CellAt maps a screen position to the cell drawn there.
func (a *App) CellAt(s tcell.Screen, x, y int) (grid.Addr, bool) {
	row := y - a.TopLines
	if row < 0 || row >= a.gridHeight(s) || x < a.LeftGutter {
		return grid.Addr{}, false
	}
	row += a.ViewRow
	if row >= a.Sheet.Rows() {
		return grid.Addr{}, false
	}
	cx := a.LeftGutter
	for c := a.ViewCol; c < len(a.ColWidths); c++ {
		if x < cx+a.ColWidths[c] {
			return grid.Addr{Row: row, Col: c}, true
		}
		cx += a.ColWidths[c]
	}
	return grid.Addr{}, false
}

// FillHandle is the screen position of the focused cell's fill handle: its
// bottom-right character.
func (a *App) FillHandle(s tcell.Screen) (x, y int, ok bool) {
	cx, cy, cw, ok := a.cellRect(s, a.Cursor())
	if !ok {
		return 0, 0, false
	}
	return cx + cw - 1, cy, true
}

func (a *App) onFillHandle(s tcell.Screen, x, y int) bool {
	hx, hy, ok := a.FillHandle(s)
	return ok && hx == x && hy == y
}
