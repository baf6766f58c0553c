package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	"sheetdrill/internal/calc"
	"sheetdrill/internal/grid"
)

var ErrExerciseFormat = errors.New("invalid exercise")

// Exercise is the configuration a lesson embeds for one spreadsheet task.
// Values are numbers or strings; strings starting with "=" are formulas.
type Exercise struct {
	InitialData      map[string]any `json:"initialData" yaml:"initialData"`
	ExpectedFormulas map[string]any `json:"expectedFormulas,omitempty" yaml:"expectedFormulas,omitempty"`
	Validate         map[string]any `json:"validate" yaml:"validate"`
	Instructions     string         `json:"instructions" yaml:"instructions"`
}

// DecodeExercise reads the JSON form of an exercise.
func DecodeExercise(data []byte) (*Exercise, error) {
	ex := &Exercise{}
	if err := sonic.Unmarshal(data, ex); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExerciseFormat, err)
	}
	return ex, ex.check()
}

// DecodeExerciseYAML reads the YAML form of an exercise.
func DecodeExerciseYAML(data []byte) (*Exercise, error) {
	ex := &Exercise{}
	if err := yaml.Unmarshal(data, ex); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExerciseFormat, err)
	}
	return ex, ex.check()
}

// fencedBlock finds the config block of a lesson page: ```spreadsheet or ```json.
var fencedBlock = regexp.MustCompile("(?s)```[ \t]*(spreadsheet|json)[^\n]*\n(.*?)\n[ \t]*```")

// ExtractFromMarkdown pulls the exercise JSON out of a lesson page. Blocks
// tagged spreadsheet win over plain json blocks.
func ExtractFromMarkdown(page []byte) (*Exercise, error) {
	var fallback []byte
	for _, m := range fencedBlock.FindAllSubmatch(page, -1) {
		if string(m[1]) == "spreadsheet" {
			return DecodeExercise(m[2])
		}
		if fallback == nil {
			fallback = m[2]
		}
	}
	if fallback == nil {
		return nil, fmt.Errorf("%w: no spreadsheet block found", ErrExerciseFormat)
	}
	return DecodeExercise(fallback)
}

// LoadExercise reads an exercise file. The format follows the extension:
// .json, .yaml/.yml or .md (lesson page).
func LoadExercise(path string) (*Exercise, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ex *Exercise
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		ex, err = DecodeExerciseYAML(data)
	case ".md", ".markdown":
		ex, err = ExtractFromMarkdown(data)
	default:
		ex, err = DecodeExercise(bytes.TrimSpace(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ex, nil
}

func (ex *Exercise) check() error {
	for _, m := range []map[string]any{ex.InitialData, ex.ExpectedFormulas, ex.Validate} {
		for name, v := range m {
			if _, err := grid.ParseAddr(name); err != nil {
				return fmt.Errorf("%w: %w", ErrExerciseFormat, err)
			}
			if _, err := scalar(v); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrExerciseFormat, name, err)
			}
		}
	}
	return nil
}

// Targets returns the validation targets keyed by address.
func (ex *Exercise) Targets() map[grid.Addr]any {
	out := make(map[grid.Addr]any, len(ex.Validate))
	for name, v := range ex.Validate {
		a, err := grid.ParseAddr(name)
		if err != nil {
			continue
		}
		out[a] = v
	}
	return out
}

// addresses lists every address the exercise mentions, row-major.
func (ex *Exercise) addresses() []grid.Addr {
	seen := map[grid.Addr]bool{}
	for _, m := range []map[string]any{ex.InitialData, ex.ExpectedFormulas, ex.Validate} {
		for name := range m {
			if a, err := grid.ParseAddr(name); err == nil {
				seen[a] = true
			}
		}
	}
	out := make([]grid.Addr, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// scalar turns a decoded JSON/YAML value into the raw text of a cell.
func scalar(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case float64:
		return calc.FormatNumber(v), nil
	case float32:
		return calc.FormatNumber(float64(v)), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case bool:
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	}
	return "", fmt.Errorf("unsupported value %v (%T)", v, v)
}
