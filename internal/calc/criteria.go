package calc

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Criterion is a parsed SUMIF/COUNTIF condition such as ">10" or "apple".
type Criterion struct {
	Op      string // one of > < >= <= = <>
	Operand string
	Num     float64
	Numeric bool
}

type numericEnv struct {
	V float64 `expr:"v"`
	N float64 `expr:"n"`
}

type textEnv struct {
	V string `expr:"v"`
	N string `expr:"n"`
}

// compiled predicates, keyed by operator
var criteriaCache sync.Map

var criterionOps = map[string]string{
	">":  "v > n",
	"<":  "v < n",
	">=": "v >= n",
	"<=": "v <= n",
	"=":  "v == n",
	"<>": "v != n",
}

// ParseCriterion splits the comparison operator off s. A leading > or <
// compares numerically with the remainder, anything else is exact text
// equality with surrounding quotes stripped.
func ParseCriterion(s string) Criterion {
	s = strings.TrimSpace(s)
	c := Criterion{Op: "="}
	for _, op := range []string{">=", "<=", "<>", ">", "<", "="} {
		if strings.HasPrefix(s, op) {
			c.Op = op
			s = s[len(op):]
			break
		}
	}
	c.Operand = strings.Trim(strings.TrimSpace(s), `"'`)
	switch c.Op {
	case ">", "<", ">=", "<=":
		f, ok := parseNumber(c.Operand)
		if !ok {
			// nothing compares true against NaN
			f = math.NaN()
		}
		c.Num, c.Numeric = f, true
	}
	return c
}

// Match reports whether v satisfies the criterion. Values that are not
// numeric never satisfy a numeric comparison.
func (c Criterion) Match(v Value) (bool, error) {
	program, err := predicate(c.Op, c.Numeric)
	if err != nil {
		return false, err
	}
	var env any
	if c.Numeric {
		f, ok := v.AsNumber()
		if !ok || v.Kind == KindBool {
			return false, nil
		}
		env = numericEnv{V: f, N: c.Num}
	} else {
		env = textEnv{V: v.String(), N: c.Operand}
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("%w: criterion: %w", ErrFormula, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

func predicate(op string, numeric bool) (*vm.Program, error) {
	key := op
	var env any = textEnv{}
	if numeric {
		key = "#" + op
		env = numericEnv{}
	}
	if cached, ok := criteriaCache.Load(key); ok {
		return cached.(*vm.Program), nil
	}
	code, ok := criterionOps[op]
	if !ok {
		return nil, fmt.Errorf("%w: unknown criterion operator %q", ErrFormula, op)
	}
	program, err := expr.Compile(code, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: compile criterion %q: %w", ErrFormula, code, err)
	}
	criteriaCache.Store(key, program)
	return program, nil
}
