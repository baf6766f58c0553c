package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetdrill/internal/grid"
)

// cells is a minimal resolver: literal values only.
type cells map[string]Value

func (c cells) Resolve(a grid.Addr) (Value, error) {
	return c[a.String()], nil
}

func TestEvaluateArithmetic(t *testing.T) {
	tests := []struct {
		formula string
		want    string
	}{
		{"=1+2*3", "7"},
		{"=(1+2)*3", "9"},
		{"=10/4", "2.5"},
		{"=2^3", "8"},
		{"=-2^2", "4"},
		{"=-A1", "-5"},
		{"=50%", "0.5"},
		{"=0.1+0.2", "0.3"},
		{"=1/3", "0.3333333333"},
		{"=A1+B1", "15"},
		{"=a1*2", "10"},
		{"=$A$1+A$1+$A1", "15"},
		{"=C1+1", "1"},   // empty counts as 0
		{"=T1+1", "1"},   // text reference counts as 0
		{"=\"a\"+1", "a1"}, // text literal concatenates
		{"=\"a\"&B1", "a10"},
		{"=1+1=2", "TRUE"},
		{"=A1>B1", "FALSE"},
		{"=T1=\"HELLO\"", "TRUE"},
		{"=A1<>5", "FALSE"},
		{"=T1", "hello"}, // a lone reference keeps its value
		{"=C1", ""},
	}
	c := cells{"A1": Number(5), "B1": Number(10), "T1": Text("hello")}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			assert.Equal(t, tt.want, Display(tt.formula, c))
		})
	}
}

func TestEvaluateFunctions(t *testing.T) {
	c := cells{
		"A1": Number(5), "A3": Number(10),
		"B1": Number(10), "B2": Number(20),
		"C1": Number(5), "C2": Number(15), "C3": Number(25),
		"D1": Number(1), "D2": Number(2), "D3": Number(3),
		"E1": Text("apple"), "E2": Text("pear"), "E3": Text("apple"),
		"F1": Text("Hola Mundo"), "F2": Number(-3.14159),
	}
	tests := []struct {
		formula string
		want    string
	}{
		{"=SUM(A1:A3)", "15"},
		{"=SUM(A1,A3,100)", "115"},
		{"=SUM(A1:A3, E1)", "15"},
		{"=AVERAGE(B1:B2)", "15"},
		{"=AVERAGE(A1:A3)", "5"},
		{"=MAX(C1:C3)", "25"},
		{"=MIN(C1:C3, 2)", "2"},
		{"=MAX(E1:E3)", "0"},
		{"=COUNT(A1:A3)", "2"},
		{"=COUNT(A1:A3, E1:E3)", "2"},
		{"=COUNTA(A1:A3, E1:E3)", "5"},
		{"=IF(A1>3, \"big\", \"small\")", "big"},
		{"=IF(A1>30, \"big\", \"small\")", "small"},
		{"=IF(A1>30, 1)", "FALSE"},
		{"=IF(A1=5, SUM(C1:C3), 1/0)", "45"},
		{"=CONCAT(E1, \"-\", E2)", "apple-pear"},
		{"=CONCATENATE(A1:A3)", "510"},
		{"=ABS(F2)", "3.14159"},
		{"=ROUND(F2, 2)", "-3.14"},
		{"=ROUND(2.5)", "3"},
		{"=ROUND(1234, -2)", "1200"},
		{"=POWER(2, 10)", "1024"},
		{"=SQRT(16)", "4"},
		{"=SUMIF(C1:C3, \">10\", D1:D3)", "5"},
		{"=SUMIF(C1:C3, \"<10\", D1:D3)", "1"},
		{"=SUMIF(C1:C3, \">=15\")", "40"},
		{"=SUMIF(E1:E3, \"apple\", D1:D3)", "4"},
		{"=COUNTIF(E1:E3, \"apple\")", "2"},
		{"=COUNTIF(C1:C3, \">10\")", "2"},
		{"=COUNTIF(C1:C3, 15)", "1"},
		{"=COUNTIF(E1:E3, \"<>apple\")", "1"},
		{"=COUNTIF(E1:E3, \">x\")", "0"},
		{"=VLOOKUP(E2, C1:D3, 2, FALSE)", "pear"},
		{"=LEFT(F1, 4)", "Hola"},
		{"=RIGHT(F1, 5)", "Mundo"},
		{"=LEFT(F1)", "H"},
		{"=RIGHT(F1, 99)", "Hola Mundo"},
		{"=UPPER(F1)", "HOLA MUNDO"},
		{"=LOWER(F1)", "hola mundo"},
		{"=LEN(F1)", "10"},
		{"=AND(A1>1, B1>1)", "TRUE"},
		{"=OR(A1>10, B1>10)", "FALSE"},
		{"=NOT(A1>10)", "TRUE"},
		{"=SUM(MAX(C1:C3), MIN(C1, D1), ROUND(AVERAGE(B1:B2), 0))", "41"},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			v, err := Evaluate(tt.formula, c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestLocalizedNames(t *testing.T) {
	c := cells{"A1": Number(2), "A2": Number(4), "B1": Text("sol")}
	tests := map[string]string{
		"=SUMA(A1:A2)":                   "6",
		"=promedio(A1:A2)":               "3",
		"=SI(A1>1, \"si\", \"no\")":      "si",
		"=CONTAR.SI(A1:A2, \">3\")":      "1",
		"=SUMAR.SI(A1:A2, \">1\", A1:A2)": "6",
		"=MAYUSC(B1)":                    "SOL",
		"=LARGO(B1)":                     "3",
		"=REDONDEAR(RAIZ(2), 3)":         "1.414",
		"=CONCATENAR(B1, A1)":            "sol2",
		"=POTENCIA(A1, 3)":               "8",
	}
	for formula, want := range tests {
		assert.Equal(t, want, Display(formula, c), formula)
	}
}

func TestEvaluateErrors(t *testing.T) {
	c := cells{"A1": Number(1), "T1": Text("x")}
	tests := []string{
		"=FOO(",
		"=FOO(1)",
		"=SUM(A1",
		"=1+",
		"=(1+2",
		"=1/0",
		"=SQRT(-1)",
		"=AVERAGE()",
		"=A1:A3",
		"=ABS(A1:A3)",
		"=IF(1)",
		"=\"x\"*2",
		"=ROUND(1, 400)",
		"=POWER(10, 400)",
		"=",
		"=ZZ",
	}
	for _, formula := range tests {
		t.Run(formula, func(t *testing.T) {
			_, err := Evaluate(formula, c)
			assert.ErrorIs(t, err, ErrFormula)
			assert.Equal(t, ErrorMarker, Display(formula, c))
		})
	}
}

func TestResolverErrorPropagates(t *testing.T) {
	r := ResolverFunc(func(a grid.Addr) (Value, error) {
		return Empty, ErrCircularReference
	})
	_, err := Evaluate("=A1+1", r)
	assert.ErrorIs(t, err, ErrCircularReference)
	assert.ErrorIs(t, err, ErrFormula)
}

func TestReferences(t *testing.T) {
	f, err := Parse("=SUM($A$1:B3) + C$4*2 + \"D5\"")
	require.NoError(t, err)
	refs := f.References()
	require.Len(t, refs, 3)
	assert.Equal(t, "$A$1", refs[0].String())
	assert.Equal(t, "B3", refs[1].String())
	assert.Equal(t, "C$4", refs[2].String())
}

func TestCriterion(t *testing.T) {
	c := ParseCriterion(">10")
	assert.True(t, c.Numeric)
	ok, err := c.Match(Number(15))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.Match(Number(5))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = c.Match(Text("zzz"))
	require.NoError(t, err)
	assert.False(t, ok)

	c = ParseCriterion(`"apple"`)
	assert.Equal(t, "=", c.Op)
	assert.Equal(t, "apple", c.Operand)
	ok, err = c.Match(Text("apple"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.Match(Text("Apple"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTextCriteriaAreExact(t *testing.T) {
	c := cells{"T1": Text("hello"), "T2": Text("Hello"), "N1": Number(3), "N2": Number(4)}
	assert.Equal(t, "1", Display(`=COUNTIF(T1:T2,"hello")`, c))
	assert.Equal(t, "0", Display(`=COUNTIF(T1:T1,"HELLO")`, c))
	assert.Equal(t, "1", Display(`=COUNTIF(T1:T2,"<>hello")`, c))
	assert.Equal(t, "4", Display(`=SUMIF(T1:T2,"Hello",N1:N2)`, c))
}

func TestFunctionNamesSorted(t *testing.T) {
	names := FunctionNames()
	assert.IsNonDecreasing(t, names)
	assert.Contains(t, names, "VLOOKUP")
	assert.NotContains(t, names, "SUMA", "localized spellings are aliases")
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, Number(12.5), Literal("12.5"))
	assert.Equal(t, Text("abc"), Literal("abc"))
	assert.Equal(t, Empty, Literal(""))
	assert.Equal(t, Text("NaN"), Literal("NaN"))
}
