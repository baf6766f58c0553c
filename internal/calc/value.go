package calc

import (
	"math"
	"strconv"
	"strings"
)

type Kind int

const (
	KindEmpty Kind = iota
	KindNumber
	KindText
	KindBool
)

// Value is a scalar cell or formula result.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
	Bool bool
}

var Empty = Value{}

func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }
func Text(s string) Value     { return Value{Kind: KindText, Str: s} }
func Bool(b bool) Value       { return Value{Kind: KindBool, Bool: b} }

// Literal coerces raw cell input: numbers become KindNumber, anything else
// stays text. Empty input is Empty.
func Literal(raw string) Value {
	if raw == "" {
		return Empty
	}
	if f, ok := parseNumber(raw); ok {
		return Number(f)
	}
	return Text(raw)
}

func (v Value) IsEmpty() bool  { return v.Kind == KindEmpty }
func (v Value) IsNumber() bool { return v.Kind == KindNumber }

// AsNumber is the arithmetic view of v. Numeric text counts as a number,
// booleans are 1/0, empty is 0 but reported as not numeric.
func (v Value) AsNumber() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	case KindText:
		return parseNumber(v.Str)
	}
	return 0, false
}

// Truthy follows spreadsheet rules for IF and the logical functions.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Num != 0
	case KindText:
		if strings.EqualFold(v.Str, "TRUE") {
			return true
		}
		if f, ok := parseNumber(v.Str); ok {
			return f != 0
		}
		return false
	}
	return false
}

// String is the display form.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return FormatNumber(v.Num)
	case KindText:
		return v.Str
	case KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	}
	return ""
}

// FormatNumber prints f without exponent noise for the usual magnitudes.
func FormatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	if math.Abs(f) >= 1e21 || math.Abs(f) < 1e-7 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// roundResult drops floating point noise: 0.1+0.2 shows as 0.3.
func roundResult(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', 10, 64), 64)
	if err != nil {
		return f
	}
	return r
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
