package app

import (
	"github.com/gdamore/tcell/v2"
)

// maxPopupInput caps the popup buffer.
const maxPopupInput = 4096

// PopupInput shows a modal input box with prompt and initial text over the
// grid and runs its own event loop until the user confirms with Enter (the
// text and true) or cancels with Esc ("" and false).
func (a *App) PopupInput(s tcell.Screen, prompt, initial string) (string, bool) {
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorReset)

	promptRunes := []rune(prompt)
	buf := []rune(initial)
	pos := len(buf)

	w, h := s.Size()
	contentW := min(max(40, len(promptRunes)+len(buf)+2), w-4)
	boxW := contentW + 4
	boxH := 3
	left := (w - boxW) / 2
	top := (h - boxH) / 2

	drawBox := func() {
		for y := top; y < top+boxH; y++ {
			for x := left; x < left+boxW; x++ {
				s.SetContent(x, y, ' ', nil, style)
			}
		}
		for x := left; x < left+boxW; x++ {
			s.SetContent(x, top, tcell.RuneHLine, nil, style)
			s.SetContent(x, top+boxH-1, tcell.RuneHLine, nil, style)
		}
		for y := top; y < top+boxH; y++ {
			s.SetContent(left, y, tcell.RuneVLine, nil, style)
			s.SetContent(left+boxW-1, y, tcell.RuneVLine, nil, style)
		}
		s.SetContent(left, top, tcell.RuneULCorner, nil, style)
		s.SetContent(left+boxW-1, top, tcell.RuneURCorner, nil, style)
		s.SetContent(left, top+boxH-1, tcell.RuneLLCorner, nil, style)
		s.SetContent(left+boxW-1, top+boxH-1, tcell.RuneLRCorner, nil, style)

		x := left + 2
		y := top + 1
		for i, r := range promptRunes {
			s.SetContent(x+i, y, r, nil, style)
		}
		x += len(promptRunes) + 1

		maxField := max(1, boxW-5-len(promptRunes))
		display := buf
		start := 0
		if len(display) > maxField {
			if pos > maxField {
				start = pos - maxField
			}
			display = display[start:min(start+maxField, len(display))]
		}
		for i := 0; i < maxField; i++ {
			r := ' '
			if i < len(display) {
				r = display[i]
			}
			s.SetContent(x+i, y, r, nil, style)
		}
		s.ShowCursor(max(left+1, x+pos-start), y)
	}

	redraw := func() {
		a.Draw(s)
		drawBox()
		s.Show()
	}
	done := func() {
		s.HideCursor()
		a.Draw(s)
	}

	redraw()
	for {
		switch ev := s.PollEvent().(type) {
		case nil:
			// screen finalized
			return "", false
		case *tcell.EventKey:
			switch ev.Key() {
			case tcell.KeyEsc:
				done()
				return "", false
			case tcell.KeyEnter:
				done()
				return string(buf), true
			case tcell.KeyBackspace, tcell.KeyBackspace2:
				if pos > 0 {
					buf = append(buf[:pos-1], buf[pos:]...)
					pos--
				}
			case tcell.KeyDelete:
				if pos < len(buf) {
					buf = append(buf[:pos], buf[pos+1:]...)
				}
			case tcell.KeyLeft:
				pos = max(0, pos-1)
			case tcell.KeyRight:
				pos = min(len(buf), pos+1)
			case tcell.KeyHome:
				pos = 0
			case tcell.KeyEnd:
				pos = len(buf)
			case tcell.KeyRune:
				if len(buf) < maxPopupInput {
					buf = append(buf[:pos], append([]rune{ev.Rune()}, buf[pos:]...)...)
					pos++
				}
			}
			redraw()
		case *tcell.EventResize:
			s.Sync()
			w, h = s.Size()
			boxW = min(boxW, w-4)
			left = (w - boxW) / 2
			top = (h - boxH) / 2
			redraw()
		}
	}
}
