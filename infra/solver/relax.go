package solver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/ems/core/milp"
)

const feasTol = 1e-7

var errNodeInfeasible = errors.New("relaxation infeasible")

// relax solves the LP relaxation of p with the given bounds. Binary variables
// are treated as continuous within their bounds. Fixed variables are folded
// into the right-hand sides; every other variable keeps its own bounds as a
// column of the bounded simplex, so no extra rows are added for them.
func relax(p *milp.Problem, lower, upper []float64) ([]float64, float64, error) {
	nv := len(p.Vars)
	x := make([]float64, nv)
	col := make([]int, nv)
	var lo, hi []float64
	for i := 0; i < nv; i++ {
		l, u := lower[i], upper[i]
		if l > u+feasTol {
			return nil, 0, errNodeInfeasible
		}
		if math.Abs(u-l) <= feasTol {
			x[i] = l
			col[i] = -1
			continue
		}
		col[i] = len(lo)
		lo = append(lo, l)
		hi = append(hi, u)
	}
	nStruct := len(lo)

	// Rows whose columns are all fixed reduce to a constant check.
	type row struct {
		c   milp.Constraint
		rhs float64
	}
	rows := make([]row, 0, len(p.Constraints))
	for _, c := range p.Constraints {
		r := row{c: c, rhs: c.RHS}
		live := false
		for _, t := range c.Expr {
			if col[t.Var] < 0 {
				r.rhs -= t.Coef * x[t.Var]
			} else if t.Coef != 0 {
				live = true
			}
		}
		if !live {
			if !constantRowHolds(c.Sense, r.rhs) {
				return nil, 0, errNodeInfeasible
			}
			continue
		}
		rows = append(rows, r)
	}

	// One slack per inequality: a.x + s = b with s >= 0 for <= rows and
	// s <= 0 for >= rows.
	m := len(rows)
	n := nStruct
	for _, r := range rows {
		if r.c.Sense != milp.EQ {
			lo = append(lo, 0)
			hi = append(hi, 0)
			if r.c.Sense == milp.LE {
				hi[n] = math.Inf(1)
			} else {
				lo[n] = math.Inf(-1)
			}
			n++
		}
	}

	cost := make([]float64, n)
	objConst := 0.0
	for _, t := range p.Objective {
		if col[t.Var] < 0 {
			objConst += t.Coef * x[t.Var]
			continue
		}
		cost[col[t.Var]] += t.Coef
	}

	var A *mat.Dense
	b := make([]float64, m)
	slack := make([]int, m)
	if m > 0 {
		A = mat.NewDense(m, n, nil)
		s := nStruct
		for i, r := range rows {
			a := A.RawRowView(i)
			for _, t := range r.c.Expr {
				if j := col[t.Var]; j >= 0 {
					a[j] += t.Coef
				}
			}
			slack[i] = -1
			if r.c.Sense != milp.EQ {
				a[s] = 1
				slack[i] = s
				s++
			}
			b[i] = r.rhs
		}
	}

	sol, err := newTableau(A, b, slack, cost, lo, hi).solve()
	if err != nil {
		return nil, 0, err
	}
	obj := objConst
	for i := 0; i < nv; i++ {
		if j := col[i]; j >= 0 {
			x[i] = math.Min(math.Max(sol[j], lower[i]), upper[i])
		}
	}
	for _, t := range p.Objective {
		if col[t.Var] >= 0 {
			obj += t.Coef * x[t.Var]
		}
	}
	return x, obj, nil
}

func constantRowHolds(sense milp.Sense, rhs float64) bool {
	switch sense {
	case milp.LE:
		return rhs >= -feasTol
	case milp.GE:
		return rhs <= feasTol
	default:
		return math.Abs(rhs) <= feasTol
	}
}
