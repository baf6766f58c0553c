package app

import (
	"time"

	"github.com/gdamore/tcell/v2"
)

const splashTitle = "SHEET:DRILL"

// Splash reveals the title letter by letter, shows the exercise
// instructions and waits for a key.
func Splash(s tcell.Screen, instructions string, delay time.Duration) {
	width, height := s.Size()
	y := height / 3

	for reveal := 1; reveal <= len(splashTitle); reveal++ {
		s.Clear()
		startX := (width - len(splashTitle)) / 2
		for i, ch := range splashTitle[:reveal] {
			color := tcell.ColorWhite
			if i >= 5 {
				color = tcell.ColorYellow
			}
			s.SetContent(startX+i, y, ch, nil, tcell.StyleDefault.Foreground(color).Bold(true))
		}
		s.Show()
		time.Sleep(delay)
	}

	lines := wrapText(instructions, min(60, max(10, width-4)))
	for i, ln := range lines {
		centered(s, y+2+i, ln, tcell.StyleDefault)
	}
	centered(s, y+3+len(lines), "Press any key to start", tcell.StyleDefault.Foreground(tcell.ColorYellow))
	s.Show()

	for {
		switch s.PollEvent().(type) {
		case *tcell.EventKey, nil:
			return
		case *tcell.EventResize:
			s.Sync()
		}
	}
}

func centered(s tcell.Screen, y int, text string, style tcell.Style) {
	width, _ := s.Size()
	x := max(0, (width-runeLen(text))/2)
	for i, ch := range []rune(text) {
		s.SetContent(x+i, y, ch, nil, style)
	}
}
