package app

import (
	"fmt"
	"strings"

	"sheetdrill/internal/calc"
	"sheetdrill/internal/fill"
	"sheetdrill/internal/grid"

	"github.com/gdamore/tcell/v2"
)

const keysHelp = "\n" +
	" arrows / Tab - move \n" +
	" i / Enter - edit cell \n" +
	" Ctrl+Enter - save&stay \n" +
	" = - formula \n" +
	" Del - clear cell \n" +
	" drag ■ - autofill \n" +
	" v - verify \n" +
	" R - reset exercise \n" +
	" Ctrl←/Ctrl→ - col width \n" +
	" PgUp/PgDn/Home/End - scroll \n" +
	" :w file.csv|file.xlsx \n" +
	" :o file.csv | :verify | :reset | :q \n"

var helpText = keysHelp + "\n Functions: " + strings.Join(calc.FunctionNames(), ", ") + "\n"

// FillHandleRune marks the bottom-right corner of the focused cell.
const FillHandleRune = '■'

var (
	headerStyle   = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	activeStyle   = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow)
	selectedStyle = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorLightGray)
	readOnlyStyle = tcell.StyleDefault.Foreground(tcell.ColorGray)
	passStyle     = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorGreen)
	failStyle     = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorRed)
	previewStyle  = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorNavy)
	handleStyle   = tcell.StyleDefault.Foreground(tcell.ColorBlue).Background(tcell.ColorLightGray)
	statusStyle   = tcell.StyleDefault.Background(tcell.ColorGray).Foreground(tcell.ColorWhite)
)

// ----------------------------- Drawing -----------------------------

func (a *App) Draw(s tcell.Screen) {
	s.Clear()
	w, h := s.Size()

	a.drawTop(s, w)

	// header row: column names
	hy := a.TopLines - 1
	x := a.LeftGutter
	for c := a.ViewCol; c < len(a.ColWidths) && x < w; c++ {
		wc := a.ColWidths[c]
		style := headerStyle
		if c == a.CurCol {
			style = activeStyle
			a.printTextFixedWidth(s, x, hy, "", style, wc)
		}
		a.printTextFixedWidth(s, x+a.CellPadding, hy, grid.ColToName(c), style, max(1, wc-2*a.CellPadding))
		x += wc
	}

	preview := map[grid.Addr]bool{}
	for _, c := range a.Drag.Preview() {
		preview[c] = true
	}

	// rows
	rows := a.gridHeight(s)
	for r := a.ViewRow; r < a.Sheet.Rows() && r-a.ViewRow < rows; r++ {
		y := a.TopLines + r - a.ViewRow
		gutter := headerStyle
		if r == a.CurRow {
			gutter = activeStyle
		}
		a.printTextFixedWidth(s, 0, y, fmt.Sprintf("%*d", a.LeftGutter-1, r+1), gutter, a.LeftGutter-1)

		x := a.LeftGutter
		for c := a.ViewCol; c < len(a.ColWidths) && x < w; c++ {
			addr := grid.Addr{Row: r, Col: c}
			a.drawCell(s, x, y, a.ColWidths[c], addr, a.cellStyle(addr, preview[addr]))
			x += a.ColWidths[c]
		}
	}

	if hx, hy, ok := a.FillHandle(s); ok && hx < w {
		s.SetContent(hx, hy, FillHandleRune, nil, handleStyle)
	}

	a.drawStatus(s, w, h)

	if a.HelpVisible {
		a.drawPopup(s, helpText)
	} else if a.Popup != "" {
		a.drawPopup(s, a.Popup)
	}

	a.drawInsertCursor(s)
	s.Show()
}

// drawTop prints the instructions and the formula bar.
func (a *App) drawTop(s tcell.Screen, w int) {
	instructions := strings.Join(strings.Fields(a.Sheet.Exercise().Instructions), " ")
	a.printTextFixedWidth(s, 0, 0, instructions, tcell.StyleDefault.Bold(true), w)

	cur := a.Cursor()
	content := a.Sheet.Display(cur)
	if c := a.Sheet.Cell(cur); c != nil && c.IsFormula() {
		content = c.Formula
	}
	if a.Sheet.ReadOnly(cur) {
		content += "  (read-only)"
	}
	a.printTextFixedWidth(s, 0, 1, fmt.Sprintf("%-*s│ %s", a.LeftGutter, cur, content), tcell.StyleDefault, w)
}

func (a *App) cellStyle(c grid.Addr, inPreview bool) tcell.Style {
	switch {
	case c == a.Cursor():
		return selectedStyle
	case inPreview:
		return previewStyle
	}
	if a.Report != nil {
		if pass, ok := a.Report.Passed(c); ok {
			if pass {
				return passStyle
			}
			return failStyle
		}
	}
	if a.Sheet.ReadOnly(c) {
		return readOnlyStyle
	}
	return tcell.StyleDefault
}

func (a *App) drawCell(s tcell.Screen, x, y, wc int, c grid.Addr, style tcell.Style) {
	a.printTextFixedWidth(s, x, y, "", style, wc)
	innerW := max(1, wc-2*a.CellPadding)
	text := a.Sheet.Display(c)
	if a.Mode == ModeInsert && c == a.Cursor() {
		text = a.InputBuf
	} else if a.Sheet.DisplayValue(c).Kind == calc.KindNumber && runeLen(text) < innerW {
		text = strings.Repeat(" ", innerW-runeLen(text)) + text
	}
	a.printTextFixedWidth(s, x+a.CellPadding, y, text, style, innerW)
}

func (a *App) drawStatus(s tcell.Screen, w, h int) {
	statusY := max(0, h-a.StatusLines)
	left := fmt.Sprintf("Mode:%s  Cell:%s  Grid:%dx%d", a.Mode, a.Cursor(), a.Sheet.Rows(), a.Sheet.Cols())
	if a.Drag.Phase == fill.Dragging {
		left += fmt.Sprintf("  Fill:%s→%s", a.Drag.Source, a.Drag.Current)
	}
	if a.Report != nil {
		left += fmt.Sprintf("  Score:%d/%d", a.Report.Correct, a.Report.Total)
	}
	a.printTextFixedWidth(s, 0, statusY, left, statusStyle, w)

	line := a.Message
	if a.Mode == ModeInsert {
		line = "EDIT: " + a.InputBuf
	}
	a.printTextFixedWidth(s, 0, statusY+1, line, statusStyle, w)
}

func (a *App) drawInsertCursor(s tcell.Screen) {
	if a.Mode != ModeInsert {
		s.HideCursor()
		return
	}
	x, y, wc, ok := a.cellRect(s, a.Cursor())
	if !ok {
		s.HideCursor()
		return
	}
	innerW := max(1, wc-2*a.CellPadding)
	cx := x + a.CellPadding + min(runeLen(a.InputBuf), innerW-1)
	s.SetContent(cx, y, '▏', nil, tcell.StyleDefault.Foreground(tcell.ColorRed).Background(tcell.ColorLightGray))
}

// ----------------------------- Helpers -----------------------------

func (a *App) printTextFixedWidth(s tcell.Screen, x, y int, str string, style tcell.Style, width int) {
	runes := []rune(str)
	for i := 0; i < width; i++ {
		ch := ' '
		if i < len(runes) {
			ch = runes[i]
		}
		if x+i >= 0 && y >= 0 {
			s.SetContent(x+i, y, ch, nil, style)
		}
	}
}

func (a *App) drawPopup(s tcell.Screen, text string) {
	w, h := s.Size()
	if w < 10 || h < 5 {
		return
	}

	padding := 2
	maxPW := w - 4
	maxPH := h - 2

	innerW := min(maxPW-padding*2, 56)
	lines := wrapText(text, innerW)
	if len(lines) > maxPH-padding*2 {
		lines = lines[:max(0, maxPH-padding*2)]
	}
	innerH := max(3, len(lines))

	pw := innerW + padding*2
	ph := innerH + padding*2
	left := (w - pw) / 2
	top := (h - ph) / 2

	style := tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorDefault)

	for yy := 0; yy < ph; yy++ {
		for xx := 0; xx < pw; xx++ {
			s.SetContent(left+xx, top+yy, ' ', nil, style)
		}
	}

	s.SetContent(left, top, '┌', nil, style)
	s.SetContent(left+pw-1, top, '┐', nil, style)
	s.SetContent(left, top+ph-1, '└', nil, style)
	s.SetContent(left+pw-1, top+ph-1, '┘', nil, style)
	for xx := 1; xx < pw-1; xx++ {
		s.SetContent(left+xx, top, '─', nil, style)
		s.SetContent(left+xx, top+ph-1, '─', nil, style)
	}
	for yy := 1; yy < ph-1; yy++ {
		s.SetContent(left, top+yy, '│', nil, style)
		s.SetContent(left+pw-1, top+yy, '│', nil, style)
	}

	vOffset := (ph - padding*2 - innerH) / 2
	for i, ln := range lines {
		a.printTextFixedWidth(s, left+padding, top+padding+vOffset+i, ln, style, innerW)
	}
}

// wrapText breaks s into lines of at most width runes, keeping paragraph
// breaks. Words longer than a line are chunked.
func wrapText(s string, width int) []string {
	if width <= 2 {
		return []string{s}
	}

	var result []string
	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			result = append(result, "")
			continue
		}

		cur := ""
		for _, w := range words {
			for _, chunk := range chunkString(w, width) {
				switch {
				case cur == "":
					cur = chunk
				case runeLen(cur)+1+runeLen(chunk) <= width:
					cur += " " + chunk
				default:
					result = append(result, cur)
					cur = chunk
				}
			}
		}
		result = append(result, cur)
	}
	return result
}

func runeLen(s string) int {
	return len([]rune(s))
}

func chunkString(s string, size int) []string {
	r := []rune(s)
	var out []string
	for i := 0; i < len(r); i += size {
		out = append(out, string(r[i:min(i+size, len(r))]))
	}
	return out
}
