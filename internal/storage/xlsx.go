package storage

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"sheetdrill/internal/calc"
	"sheetdrill/internal/grid"
	"sheetdrill/internal/sheet"
	"sheetdrill/internal/verify"
)

const (
	SheetName  = "Exercise"
	ReportName = "Report"

	readOnlyFill = "D9D9D9"
	passFill     = "C6EFCE"
	failFill     = "FFC7CE"
)

// ExportXLSX writes s to path as a workbook. See WriteXLSX.
func ExportXLSX(s *sheet.Sheet, rep *verify.Report, path string) error {
	f, err := workbook(s, rep)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

// WriteXLSX writes s as a workbook: formulas stay formulas, read-only
// cells are shaded grey and, when rep is not nil, graded cells green or
// red with a second sheet listing the results.
func WriteXLSX(s *sheet.Sheet, rep *verify.Report, w io.Writer) error {
	f, err := workbook(s, rep)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

func workbook(s *sheet.Sheet, rep *verify.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, err
	}
	styles, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	for _, a := range s.Addresses() {
		if err := writeCell(f, s, a); err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", a, err)
		}
		style := 0
		if s.ReadOnly(a) {
			style = styles.readOnly
		}
		if rep != nil {
			if pass, ok := rep.Passed(a); ok {
				style = styles.fail
				if pass {
					style = styles.pass
				}
			}
		}
		if style != 0 {
			if err := f.SetCellStyle(SheetName, a.String(), a.String(), style); err != nil {
				f.Close()
				return nil, err
			}
		}
	}
	if rep != nil {
		if err := writeReport(f, rep); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// writeCell stores the input of a. Formulas that do not parse are kept as
// text so the workbook still opens.
func writeCell(f *excelize.File, s *sheet.Sheet, a grid.Addr) error {
	c := s.Cell(a)
	if c.IsFormula() {
		if _, err := calc.Parse(c.Formula); err != nil {
			return f.SetCellStr(SheetName, a.String(), c.Formula)
		}
		return f.SetCellFormula(SheetName, a.String(), strings.TrimPrefix(c.Formula, calc.FormulaPrefix))
	}
	switch c.Raw.Kind {
	case calc.KindNumber:
		return f.SetCellFloat(SheetName, a.String(), c.Raw.Num, -1, 64)
	case calc.KindBool:
		return f.SetCellBool(SheetName, a.String(), c.Raw.Bool)
	case calc.KindText:
		return f.SetCellStr(SheetName, a.String(), c.Raw.Str)
	}
	return nil
}

func writeReport(f *excelize.File, rep *verify.Report) error {
	if _, err := f.NewSheet(ReportName); err != nil {
		return err
	}
	rows := [][]any{{"Cell", "Expected", "Actual", "Pass"}}
	for _, r := range rep.Results {
		rows = append(rows, []any{r.Cell, r.Expected, r.Actual, r.Pass})
	}
	rows = append(rows, []any{"Correct", fmt.Sprintf("%d/%d", rep.Correct, rep.Total)})
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ReportName, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

type styleIDs struct {
	readOnly, pass, fail int
}

func newStyles(f *excelize.File) (styleIDs, error) {
	var ids styleIDs
	for _, s := range []struct {
		id    *int
		color string
	}{
		{&ids.readOnly, readOnlyFill},
		{&ids.pass, passFill},
		{&ids.fail, failFill},
	} {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{s.color}},
		})
		if err != nil {
			return ids, err
		}
		*s.id = id
	}
	return ids, nil
}
