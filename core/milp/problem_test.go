package milp

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallProblem() (*Problem, Var, Var, Var) {
	p := NewProblem("small", 3)
	x := p.Continuous("x", 0, 10)
	y := p.Continuous("y", -5, math.Inf(1))
	z := p.Binary("z")
	p.Constrain("cap", Sum(T(1, x), T(1, y)), LE, 8)
	p.Constrain("link", Sum(T(1, x), T(-10, z)), LE, 0)
	p.Constrain("fix", Sum(T(1, y)), EQ, 2)
	p.Minimize(Sum(T(-1, x), T(3, z)))
	return p, x, y, z
}

func TestCheckAcceptsFeasiblePoint(t *testing.T) {
	p, _, _, _ := smallProblem()
	require.NoError(t, p.Check([]float64{6, 2, 1}, 1e-9))
	assert.Equal(t, -3.0, p.ObjectiveValue([]float64{6, 2, 1}))
}

func TestCheckReportsViolations(t *testing.T) {
	p, _, _, _ := smallProblem()
	cases := []struct {
		values []float64
		name   string
	}{
		{[]float64{11, 2, 1}, "x upper bound"},
		{[]float64{1, 2, 0.5}, "z integrality"},
		{[]float64{7, 2, 1}, "cap"},
		{[]float64{1, 2, 0}, "link"},
		{[]float64{1, 3, 1}, "fix"},
	}
	for _, c := range cases {
		err := p.Check(c.values, 1e-9)
		var v *Violation
		require.True(t, errors.As(err, &v), "values %v", c.values)
		assert.Equal(t, c.name, v.Name)
		assert.Greater(t, v.Amount, 0.0)
	}
	assert.Error(t, p.Check([]float64{1}, 1e-9))
}

func TestNumBinaryAndKinds(t *testing.T) {
	p, x, _, z := smallProblem()
	assert.Equal(t, 1, p.NumBinary())
	assert.Equal(t, Continuous, p.Vars[x].Kind)
	assert.Equal(t, Binary, p.Vars[z].Kind)
	assert.Equal(t, "binary", Binary.String())
	assert.Equal(t, ">=", GE.String())
}

func TestWriteLP(t *testing.T) {
	p, _, _, _ := smallProblem()
	var buf bytes.Buffer
	require.NoError(t, WriteLP(&buf, p))
	out := buf.String()
	for _, want := range []string{
		"Minimize\n obj: - 1 x0 + 3 x2\n",
		"Subject To\n c0: + 1 x0 + 1 x1 <= 8\n",
		" c1: + 1 x0 - 10 x2 <= 0\n",
		" c2: + 1 x1 = 2\n",
		" 0 <= x0 <= 10\n",
		" x1 >= -5\n",
		"Binaries\n x2\n",
	} {
		assert.Contains(t, out, want)
	}
	assert.True(t, strings.HasSuffix(out, "End\n"))
}

func TestWriteLPWrapsLongRows(t *testing.T) {
	p := NewProblem("wide", 20)
	var e Expr
	for i := 0; i < 20; i++ {
		e = append(e, T(1, p.Continuous("v", 0, 1)))
	}
	p.Minimize(e)
	var buf bytes.Buffer
	require.NoError(t, WriteLP(&buf, p))
	for _, line := range strings.Split(buf.String(), "\n") {
		assert.LessOrEqual(t, len(line), 255)
	}
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusOptimal.HasSolution())
	assert.True(t, StatusFeasible.HasSolution())
	assert.False(t, StatusInfeasible.HasSolution())
	assert.Equal(t, "feasible", StatusFeasible.String())
	opts := DefaultOptions()
	assert.Equal(t, 180.0, opts.TimeLimit.Seconds())
	assert.Equal(t, 0.01, opts.RelativeGap)
}
