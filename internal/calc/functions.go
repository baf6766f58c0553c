package calc

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

type function struct {
	minArgs int
	maxArgs int // -1 for variadic
	call    func(ev *evaluator, args []node) (Value, error)
}

func (f *function) arity() string {
	switch {
	case f.maxArgs < 0:
		return fmt.Sprintf("at least %d", f.minArgs)
	case f.minArgs == f.maxArgs:
		return strconv.Itoa(f.minArgs)
	}
	return fmt.Sprintf("%d to %d", f.minArgs, f.maxArgs)
}

var functions map[string]*function

// localized spellings accepted as synonyms
var aliases = map[string]string{
	"SUMA":       "SUM",
	"PROMEDIO":   "AVERAGE",
	"CONTAR":     "COUNT",
	"CONTARA":    "COUNTA",
	"SI":         "IF",
	"CONCATENAR": "CONCATENATE",
	"REDONDEAR":  "ROUND",
	"POTENCIA":   "POWER",
	"RAIZ":       "SQRT",
	"SUMAR.SI":   "SUMIF",
	"CONTAR.SI":  "COUNTIF",
	"BUSCARV":    "VLOOKUP",
	"IZQUIERDA":  "LEFT",
	"DERECHA":    "RIGHT",
	"MAYUSC":     "UPPER",
	"MINUSC":     "LOWER",
	"LARGO":      "LEN",
	"Y":          "AND",
	"O":          "OR",
	"NO":         "NOT",
}

func init() {
	functions = map[string]*function{
		"SUM":         {1, -1, fnSum},
		"AVERAGE":     {1, -1, fnAverage},
		"MAX":         {1, -1, fnMax},
		"MIN":         {1, -1, fnMin},
		"COUNT":       {1, -1, fnCount},
		"COUNTA":      {1, -1, fnCountA},
		"IF":          {2, 3, fnIf},
		"CONCAT":      {1, -1, fnConcat},
		"CONCATENATE": {1, -1, fnConcat},
		"ABS":         {1, 1, fnAbs},
		"ROUND":       {1, 2, fnRound},
		"POWER":       {2, 2, fnPower},
		"SQRT":        {1, 1, fnSqrt},
		"SUMIF":       {2, 3, fnSumIf},
		"COUNTIF":     {2, 2, fnCountIf},
		"VLOOKUP":     {2, 4, fnVLookup},
		"LEFT":        {1, 2, fnLeft},
		"RIGHT":       {1, 2, fnRight},
		"UPPER":       {1, 1, fnUpper},
		"LOWER":       {1, 1, fnLower},
		"LEN":         {1, 1, fnLen},
		"AND":         {1, -1, fnAnd},
		"OR":          {1, -1, fnOr},
		"NOT":         {1, 1, fnNot},
	}
}

// lookupFunction resolves a name case-insensitively, localized spellings
// included, and returns the canonical English name.
func lookupFunction(name string) (string, *function) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if canonical, ok := aliases[n]; ok {
		n = canonical
	}
	return n, functions[n]
}

// FunctionNames lists the canonical names in alphabetical order.
func FunctionNames() []string {
	out := make([]string, 0, len(functions))
	for n := range functions {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func numbers(vals []Value) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v.IsNumber() {
			out = append(out, v.Num)
		}
	}
	return out
}

func fnSum(ev *evaluator, args []node) (Value, error) {
	vals, err := ev.flatten(args)
	if err != nil {
		return Empty, err
	}
	sum := 0.0
	for _, v := range vals {
		// non-numeric contributes 0
		if f, ok := v.AsNumber(); ok {
			sum += f
		}
	}
	return Number(sum), nil
}

func fnAverage(ev *evaluator, args []node) (Value, error) {
	vals, err := ev.flatten(args)
	if err != nil {
		return Empty, err
	}
	if len(vals) == 0 {
		return Empty, ErrDivByZero
	}
	sum := 0.0
	for _, v := range vals {
		if f, ok := v.AsNumber(); ok {
			sum += f
		}
	}
	return Number(sum / float64(len(vals))), nil
}

func fnMax(ev *evaluator, args []node) (Value, error) {
	vals, err := ev.flatten(args)
	if err != nil {
		return Empty, err
	}
	nums := numbers(vals)
	if len(nums) == 0 {
		return Number(0), nil
	}
	m := nums[0]
	for _, f := range nums[1:] {
		m = math.Max(m, f)
	}
	return Number(m), nil
}

func fnMin(ev *evaluator, args []node) (Value, error) {
	vals, err := ev.flatten(args)
	if err != nil {
		return Empty, err
	}
	nums := numbers(vals)
	if len(nums) == 0 {
		return Number(0), nil
	}
	m := nums[0]
	for _, f := range nums[1:] {
		m = math.Min(m, f)
	}
	return Number(m), nil
}

func fnCount(ev *evaluator, args []node) (Value, error) {
	vals, err := ev.flatten(args)
	if err != nil {
		return Empty, err
	}
	return Number(float64(len(numbers(vals)))), nil
}

func fnCountA(ev *evaluator, args []node) (Value, error) {
	vals, err := ev.flatten(args)
	if err != nil {
		return Empty, err
	}
	n := 0
	for _, v := range vals {
		if !v.IsEmpty() && v.String() != "" {
			n++
		}
	}
	return Number(float64(n)), nil
}

func fnIf(ev *evaluator, args []node) (Value, error) {
	cond, err := ev.value(args[0])
	if err != nil {
		return Empty, err
	}
	if cond.Truthy() {
		return ev.value(args[1])
	}
	if len(args) < 3 {
		return Bool(false), nil
	}
	return ev.value(args[2])
}

func fnConcat(ev *evaluator, args []node) (Value, error) {
	vals, err := ev.flatten(args)
	if err != nil {
		return Empty, err
	}
	var b strings.Builder
	for _, v := range vals {
		b.WriteString(v.String())
	}
	return Text(b.String()), nil
}

func fnAbs(ev *evaluator, args []node) (Value, error) {
	f, err := ev.number(args[0])
	if err != nil {
		return Empty, err
	}
	return Number(math.Abs(f)), nil
}

func fnRound(ev *evaluator, args []node) (Value, error) {
	f, err := ev.number(args[0])
	if err != nil {
		return Empty, err
	}
	digits := 0.0
	if len(args) > 1 {
		if digits, err = ev.number(args[1]); err != nil {
			return Empty, err
		}
	}
	p := math.Pow(10, math.Trunc(digits))
	return Number(math.Round(f*p) / p), nil
}

func fnPower(ev *evaluator, args []node) (Value, error) {
	return ev.binary(binaryNode{op: "^", l: args[0], r: args[1]})
}

func fnSqrt(ev *evaluator, args []node) (Value, error) {
	f, err := ev.number(args[0])
	if err != nil {
		return Empty, err
	}
	if f < 0 {
		return Empty, fmt.Errorf("%w: square root of %s", ErrFormula, FormatNumber(f))
	}
	return Number(math.Sqrt(f)), nil
}

// matchRange evaluates the range and criterion arguments shared by SUMIF
// and COUNTIF and returns the matching positions.
func matchRange(ev *evaluator, rangeArg, criterionArg node) ([]bool, error) {
	vals, err := ev.list(rangeArg)
	if err != nil {
		return nil, err
	}
	cv, err := ev.value(criterionArg)
	if err != nil {
		return nil, err
	}
	crit := ParseCriterion(cv.String())
	hits := make([]bool, len(vals))
	for i, v := range vals {
		if hits[i], err = crit.Match(v); err != nil {
			return nil, err
		}
	}
	return hits, nil
}

func fnSumIf(ev *evaluator, args []node) (Value, error) {
	hits, err := matchRange(ev, args[0], args[1])
	if err != nil {
		return Empty, err
	}
	sumArg := args[0]
	if len(args) > 2 {
		sumArg = args[2]
	}
	addends, err := ev.list(sumArg)
	if err != nil {
		return Empty, err
	}
	sum := 0.0
	for i, hit := range hits {
		if !hit || i >= len(addends) {
			continue
		}
		if f, ok := addends[i].AsNumber(); ok {
			sum += f
		}
	}
	return Number(sum), nil
}

func fnCountIf(ev *evaluator, args []node) (Value, error) {
	hits, err := matchRange(ev, args[0], args[1])
	if err != nil {
		return Empty, err
	}
	n := 0
	for _, hit := range hits {
		if hit {
			n++
		}
	}
	return Number(float64(n)), nil
}

// fnVLookup returns the lookup value itself; there is no table search.
func fnVLookup(ev *evaluator, args []node) (Value, error) {
	return ev.value(args[0])
}

func textAndCount(ev *evaluator, args []node) ([]rune, int, error) {
	v, err := ev.value(args[0])
	if err != nil {
		return nil, 0, err
	}
	n := 1
	if len(args) > 1 {
		f, err := ev.number(args[1])
		if err != nil {
			return nil, 0, err
		}
		if f < 0 {
			return nil, 0, fmt.Errorf("%w: negative length %s", ErrFormula, FormatNumber(f))
		}
		n = int(f)
	}
	runes := []rune(v.String())
	if n > len(runes) {
		n = len(runes)
	}
	return runes, n, nil
}

func fnLeft(ev *evaluator, args []node) (Value, error) {
	runes, n, err := textAndCount(ev, args)
	if err != nil {
		return Empty, err
	}
	return Text(string(runes[:n])), nil
}

func fnRight(ev *evaluator, args []node) (Value, error) {
	runes, n, err := textAndCount(ev, args)
	if err != nil {
		return Empty, err
	}
	return Text(string(runes[len(runes)-n:])), nil
}

func fnUpper(ev *evaluator, args []node) (Value, error) {
	v, err := ev.value(args[0])
	if err != nil {
		return Empty, err
	}
	return Text(strings.ToUpper(v.String())), nil
}

func fnLower(ev *evaluator, args []node) (Value, error) {
	v, err := ev.value(args[0])
	if err != nil {
		return Empty, err
	}
	return Text(strings.ToLower(v.String())), nil
}

func fnLen(ev *evaluator, args []node) (Value, error) {
	v, err := ev.value(args[0])
	if err != nil {
		return Empty, err
	}
	return Number(float64(len([]rune(v.String())))), nil
}

func fnAnd(ev *evaluator, args []node) (Value, error) {
	vals, err := ev.flatten(args)
	if err != nil {
		return Empty, err
	}
	for _, v := range vals {
		if !v.Truthy() {
			return Bool(false), nil
		}
	}
	return Bool(true), nil
}

func fnOr(ev *evaluator, args []node) (Value, error) {
	vals, err := ev.flatten(args)
	if err != nil {
		return Empty, err
	}
	for _, v := range vals {
		if v.Truthy() {
			return Bool(true), nil
		}
	}
	return Bool(false), nil
}

func fnNot(ev *evaluator, args []node) (Value, error) {
	v, err := ev.value(args[0])
	if err != nil {
		return Empty, err
	}
	return Bool(!v.Truthy()), nil
}
