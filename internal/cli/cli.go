// Package cli wires the sheetdrill commands.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"sheetdrill/internal/app"
	"sheetdrill/internal/sheet"
	"sheetdrill/internal/storage"
	"sheetdrill/internal/verify"
)

// ErrIncomplete is returned by verify when some target does not match.
var ErrIncomplete = errors.New("not all cells are correct")

const splashDelay = 80 * time.Millisecond

// NewRootCommand returns the sheetdrill command tree.
func NewRootCommand() *cobra.Command {
	opts := app.DefaultOptions()
	var (
		answers  string
		logPath  string
		noSplash bool
	)
	cmd := &cobra.Command{
		Use:   "sheetdrill <exercise>",
		Short: "Practice spreadsheet formulas in the terminal",
		Long: `Open a spreadsheet exercise (JSON, YAML or a markdown lesson page with a
spreadsheet block), fill in the missing cells and verify the results.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := openSheet(args[0], answers)
			if err != nil {
				return err
			}
			logger, closeLog, err := openLog(logPath)
			if err != nil {
				return err
			}
			defer closeLog()
			return run(app.NewApp(sh, opts, logger), !noSplash)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.MoveAfterEnter, "move-after-enter", opts.MoveAfterEnter, "move the cursor down after committing an edit")
	f.BoolVar(&opts.SelectAllOnEdit, "select-all-on-edit", opts.SelectAllOnEdit, "typing replaces the cell content when an edit starts")
	f.BoolVar(&opts.PrintableStartsEdit, "type-to-edit", opts.PrintableStartsEdit, "any printable key starts editing the focused cell")
	f.IntVar(&opts.ColWidth, "col-width", opts.ColWidth, "column width in characters")
	f.StringVar(&answers, "answers", "", "CSV file with previously saved answers")
	f.StringVar(&logPath, "log", "", "append diagnostics to this file")
	f.BoolVar(&noSplash, "no-splash", false, "skip the title screen")

	cmd.AddCommand(newVerifyCommand())
	cmd.AddCommand(newExportCommand())
	return cmd
}

func newVerifyCommand() *cobra.Command {
	var (
		answers    string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "verify <exercise>",
		Short: "Grade saved answers without opening the grid",
		Long:  "Load the exercise, apply the answers and print the verdict per cell. Exits with status 1 unless every cell is correct.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := openSheet(args[0], answers)
			if err != nil {
				return err
			}
			rep := verify.Verify(sh, sh.Exercise().Targets())
			if jsonOutput {
				data, err := json.Marshal(rep)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			} else {
				printReport(cmd.OutOrStdout(), rep)
			}
			if !rep.AllCorrect() {
				return ErrIncomplete
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&answers, "answers", "", "CSV file with the answers to grade")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")
	return cmd
}

func newExportCommand() *cobra.Command {
	var answers, output string
	cmd := &cobra.Command{
		Use:   "export <exercise>",
		Short: "Write the exercise and its grading to an .xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := openSheet(args[0], answers)
			if err != nil {
				return err
			}
			var rep *verify.Report
			if answers != "" {
				r := verify.Verify(sh, sh.Exercise().Targets())
				rep = &r
			}
			if err := storage.ExportXLSX(sh, rep, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&answers, "answers", "", "CSV file with answers; graded cells are coloured")
	cmd.Flags().StringVarP(&output, "output", "o", "exercise.xlsx", "workbook to write")
	return cmd
}

func openSheet(path, answers string) (*sheet.Sheet, error) {
	ex, err := sheet.LoadExercise(path)
	if err != nil {
		return nil, err
	}
	sh, err := sheet.New(ex)
	if err != nil {
		return nil, err
	}
	if answers == "" {
		return sh, nil
	}
	in, err := storage.LoadCSV(answers)
	if err != nil {
		return nil, err
	}
	if _, err := storage.ApplyAnswers(sh, in); err != nil {
		return nil, fmt.Errorf("%s: %w", answers, err)
	}
	return sh, nil
}

func openLog(path string) (*log.Logger, func(), error) {
	if path == "" {
		return log.New(io.Discard, "", 0), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return log.New(f, "sheetdrill ", log.LstdFlags), func() { f.Close() }, nil
}

func printReport(w io.Writer, rep verify.Report) {
	for _, r := range rep.Results {
		mark := "FAIL"
		if r.Pass {
			mark = "ok  "
		}
		fmt.Fprintf(w, "%s %-6s expected %-12s got %s\n", mark, r.Cell, r.Expected, r.Actual)
	}
	fmt.Fprintf(w, "%d/%d correct\n", rep.Correct, rep.Total)
}

// run owns the terminal until the user quits.
func run(a *app.App, splash bool) error {
	s, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("cannot create screen: %w", err)
	}
	if err := s.Init(); err != nil {
		return fmt.Errorf("cannot init screen: %w", err)
	}
	defer s.Fini()

	s.EnableMouse(tcell.MouseButtonEvents | tcell.MouseDragEvents)
	s.Clear()
	if splash {
		app.Splash(s, a.Sheet.Exercise().Instructions, splashDelay)
	}
	a.Log.Printf("opened exercise with %d cells", len(a.Sheet.Addresses()))

	for !a.Quit {
		a.EnsureCursorVisible(s)
		a.Draw(s)
		switch ev := s.PollEvent().(type) {
		case nil:
			return nil
		case *tcell.EventKey:
			a.HandleKeyEvent(s, ev)
		case *tcell.EventMouse:
			a.HandleMouseEvent(s, ev)
		case *tcell.EventResize:
			s.Sync()
		}
	}
	return nil
}
