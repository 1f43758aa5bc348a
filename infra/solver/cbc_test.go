package solver

import (
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ems/core/milp"
)

func TestParseSolutionOptimal(t *testing.T) {
	p := knapsack()
	in := `Optimal - objective value -20.00000000
      0 x0                        0                      -10
      1 x1                        1                      -13
      2 x2                        1                       -7
      0 c0                        9                        0
`
	sol, err := parseSolution(strings.NewReader(in), p)
	require.NoError(t, err)
	assert.Equal(t, milp.StatusOptimal, sol.Status)
	assert.Equal(t, []float64{0, 1, 1}, sol.Values)
	assert.InDelta(t, -20, sol.Objective, 1e-9)
}

func TestParseSolutionStoppedOnTime(t *testing.T) {
	p := knapsack()
	in := `Stopped on time - objective value -17.00000000
      0 x0                        1                      -10
**    2 x2                        1                       -7
`
	sol, err := parseSolution(strings.NewReader(in), p)
	require.NoError(t, err)
	assert.Equal(t, milp.StatusFeasible, sol.Status)
	assert.Equal(t, []float64{1, 0, 1}, sol.Values)
}

func TestParseSolutionStatuses(t *testing.T) {
	p := knapsack()
	sol, err := parseSolution(strings.NewReader("Infeasible - objective value 0\n"), p)
	require.NoError(t, err)
	assert.Equal(t, milp.StatusInfeasible, sol.Status)

	sol, err = parseSolution(strings.NewReader("Integer infeasible - objective value 0\n"), p)
	require.NoError(t, err)
	assert.Equal(t, milp.StatusInfeasible, sol.Status)

	_, err = parseSolution(strings.NewReader("Unbounded - objective value 0\n"), p)
	assert.ErrorIs(t, err, milp.ErrUnbounded)

	_, err = parseSolution(strings.NewReader("Stopped on time (no integer solution - continuous used) - objective value 1\n"), p)
	assert.ErrorIs(t, err, milp.ErrNoIncumbent)

	_, err = parseSolution(strings.NewReader(""), p)
	assert.Error(t, err)

	_, err = parseSolution(strings.NewReader("Something odd\n"), p)
	assert.Error(t, err)
}

func TestCBCArgs(t *testing.T) {
	args := cbcArgs("m.lp", "m.sol", milp.Options{TimeLimit: 1500 * time.Millisecond, RelativeGap: 0.01})
	assert.Equal(t, []string{
		"m.lp", "-sec", "2", "-timeMode", "elapsed", "-ratio", "0.01",
		"-branch", "-printingOptions", "all", "-solution", "m.sol",
	}, args)
	assert.Equal(t, []string{"m.lp", "-branch", "-printingOptions", "all", "-solution", "m.sol"},
		cbcArgs("m.lp", "m.sol", milp.Options{}))
}

func TestCBCWithoutPathIsUnavailable(t *testing.T) {
	_, err := (&CBC{}).Solve(knapsack(), milp.DefaultOptions())
	assert.ErrorIs(t, err, milp.ErrSolverUnavailable)
}

func TestLookupCBCMissing(t *testing.T) {
	_, err := LookupCBC("definitely-not-a-cbc-binary")
	assert.ErrorIs(t, err, milp.ErrSolverUnavailable)
}

func TestCBCKnapsack(t *testing.T) {
	if _, err := exec.LookPath("cbc"); err != nil {
		t.Skip("cbc not installed")
	}
	path, err := LookupCBC("")
	require.NoError(t, err)
	s := NewCBC(path, nil)
	s.TempDir = t.TempDir()
	sol, err := s.Solve(knapsack(), milp.Options{TimeLimit: 10 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, milp.StatusOptimal, sol.Status)
	assert.InDelta(t, -20, sol.Objective, 1e-6)
}
