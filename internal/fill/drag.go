package fill

import (
	"sheetdrill/internal/calc"
	"sheetdrill/internal/grid"
)

// Targets lists the cells an autofill from src towards dst writes to. The
// larger of |dRow| and |dCol| picks the axis (ties go vertical); the cells
// after src up to and including the projection of dst on that axis are
// returned in order. A zero delta fills nothing.
func Targets(src, dst grid.Addr) []grid.Addr {
	dRow, dCol := dst.Row-src.Row, dst.Col-src.Col
	if dRow == 0 && dCol == 0 {
		return nil
	}
	var out []grid.Addr
	if abs(dRow) >= abs(dCol) {
		step := sign(dRow)
		for r := src.Row + step; ; r += step {
			out = append(out, grid.Addr{Row: r, Col: src.Col})
			if r == dst.Row {
				break
			}
		}
		return out
	}
	step := sign(dCol)
	for c := src.Col + step; ; c += step {
		out = append(out, grid.Addr{Row: src.Row, Col: c})
		if c == dst.Col {
			break
		}
	}
	return out
}

// Source is what the dragged cell holds.
type Source struct {
	Formula string
	Value   calc.Value
}

// Write is one planned autofill write: either a formula or a value.
type Write struct {
	Addr    grid.Addr
	Formula string
	Value   calc.Value
}

// Plan computes the writes of an autofill from src towards dst. Each target
// is shifted by its own offset from src.
func Plan(src, dst grid.Addr, content Source) []Write {
	targets := Targets(src, dst)
	out := make([]Write, 0, len(targets))
	for _, t := range targets {
		dRow, dCol := t.Row-src.Row, t.Col-src.Col
		w := Write{Addr: t}
		if content.Formula != "" {
			w.Formula = ShiftFormula(content.Formula, dRow, dCol)
		} else {
			w.Value = ShiftValue(content.Value, dRow, dCol)
		}
		out = append(out, w)
	}
	return out
}

type Phase int

const (
	Idle Phase = iota
	Dragging
)

func (p Phase) String() string {
	if p == Dragging {
		return "dragging"
	}
	return "idle"
}

// Drag is the fill-handle gesture: Idle until Begin, Dragging until
// Release. Releasing always commits; there is no cancel.
type Drag struct {
	Phase   Phase
	Source  grid.Addr
	Current grid.Addr
}

// Begin anchors a drag on src. It is ignored while a drag is in progress.
func (d *Drag) Begin(src grid.Addr) {
	if d.Phase == Dragging {
		return
	}
	d.Phase = Dragging
	d.Source = src
	d.Current = src
}

// Move tracks the hovered cell.
func (d *Drag) Move(target grid.Addr) {
	if d.Phase != Dragging {
		return
	}
	d.Current = target
}

// Release ends the drag and returns the (source, target) pair to commit.
// ok is false when nothing was dragged or the pointer came back to the
// source.
func (d *Drag) Release() (src, dst grid.Addr, ok bool) {
	if d.Phase != Dragging {
		return grid.Addr{}, grid.Addr{}, false
	}
	src, dst = d.Source, d.Current
	*d = Drag{}
	return src, dst, src != dst
}

// Preview returns the cells that would be filled if released now.
func (d *Drag) Preview() []grid.Addr {
	if d.Phase != Dragging {
		return nil
	}
	return Targets(d.Source, d.Current)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	if n < 0 {
		return -1
	}
	return 1
}
