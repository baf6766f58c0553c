// Package verify grades a sheet against the values an exercise expects.
package verify

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"sheetdrill/internal/calc"
	"sheetdrill/internal/grid"
)

// Tolerance is the largest accepted difference for numeric targets.
const Tolerance = 0.01

// Displayer is the read side of the grid the verifier needs.
type Displayer interface {
	Display(a grid.Addr) string
	NumericValue(a grid.Addr) (float64, bool)
}

type Result struct {
	Addr     grid.Addr `json:"-"`
	Cell     string    `json:"cell"`
	Expected string    `json:"expected"`
	Actual   string    `json:"actual"`
	Pass     bool      `json:"pass"`
}

type Report struct {
	Correct int      `json:"correct"`
	Total   int      `json:"total"`
	Results []Result `json:"results"`
}

// AllCorrect reports whether every target passed. An exercise with no
// targets is never complete.
func (r Report) AllCorrect() bool {
	return r.Total > 0 && r.Correct == r.Total
}

// Passed returns the verdict for a; ok is false when a is not a target.
func (r Report) Passed(a grid.Addr) (pass, ok bool) {
	for _, res := range r.Results {
		if res.Addr == a {
			return res.Pass, true
		}
	}
	return false, false
}

// Verify compares every target with the grid. It only reads d.
func Verify(d Displayer, expected map[grid.Addr]any) Report {
	addrs := make([]grid.Addr, 0, len(expected))
	for a := range expected {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })

	rep := Report{Total: len(addrs), Results: make([]Result, 0, len(addrs))}
	for _, a := range addrs {
		res := check(d, a, expected[a])
		if res.Pass {
			rep.Correct++
		}
		rep.Results = append(rep.Results, res)
	}
	return rep
}

func check(d Displayer, a grid.Addr, want any) Result {
	res := Result{Addr: a, Cell: a.String(), Actual: d.Display(a)}
	if f, ok := expectedNumber(want); ok {
		res.Expected = calc.FormatNumber(f)
		got, ok := d.NumericValue(a)
		res.Pass = ok && math.Abs(got-f) < Tolerance
		return res
	}
	res.Expected = expectedText(want)
	res.Pass = strings.EqualFold(strings.TrimSpace(res.Actual), strings.TrimSpace(res.Expected))
	return res
}

func expectedNumber(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func expectedText(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return calc.Bool(v).String()
	}
	return ""
}
