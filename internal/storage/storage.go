// Package storage reads and writes learner answers and exports graded
// workbooks. None of it is session state: a sheet is always rebuilt from
// its exercise.
package storage

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"os"

	"sheetdrill/internal/grid"
	"sheetdrill/internal/sheet"
)

// SaveCSV writes raw cell inputs to filename in grid layout.
func SaveCSV(inputs map[grid.Addr]string, filename string) error {
	maxR, maxC := -1, -1
	for a := range inputs {
		maxR = max(maxR, a.Row)
		maxC = max(maxC, a.Col)
	}
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	if maxR < 0 {
		return nil
	}
	// a lone empty field would be written as a blank line, which readers skip
	cols := max(maxC+1, 2)
	out := make([][]string, maxR+1)
	for r := 0; r <= maxR; r++ {
		row := make([]string, cols)
		for c := 0; c < cols; c++ {
			row[c] = inputs[grid.Addr{Row: r, Col: c}]
		}
		out[r] = row
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(out); err != nil {
		return fmt.Errorf("error writing CSV: %w", err)
	}
	return f.Close()
}

// LoadCSV reads raw cell inputs written by SaveCSV. Empty fields are
// skipped.
func LoadCSV(filename string) (map[grid.Addr]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	out := map[grid.Addr]string{}
	for rIdx, row := range records {
		for cIdx, val := range row {
			if val != "" {
				out[grid.Addr{Row: rIdx, Col: cIdx}] = val
			}
		}
	}
	return out, nil
}

// ApplyAnswers writes answers into the editable cells of s. Read-only cells
// keep the exercise data. It returns how many cells were written.
func ApplyAnswers(s *sheet.Sheet, answers map[grid.Addr]string) (int, error) {
	n := 0
	var errs []error
	for a, raw := range answers {
		if s.ReadOnly(a) {
			continue
		}
		if err := s.SetCell(a, raw); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}
