package solver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/ems/core/milp"
)

const (
	pivTol       = 1e-9
	dualTol      = 1e-9
	degenTol     = 1e-12
	refreshEvery = 100
	stallLimit   = 500
)

var errIterationLimit = errors.New("simplex iteration limit reached")

// tableau is a dense bounded-variable primal simplex for
//
//	minimize cost.x  subject to  A x = b,  lo <= x <= hi.
//
// Every row starts with its slack or with an artificial column in the basis,
// so A needs neither full row rank nor a feasible starting point. Redundant
// rows keep their artificial basic at zero.
type tableau struct {
	m, n int
	// t holds B^-1 [A | b]; artificial columns are not stored since they
	// never re-enter the basis.
	t      *mat.Dense
	cost   []float64
	d      []float64
	lo, hi []float64
	x      []float64
	basis  []int
	pos    []int
	beta   []float64

	artHi     float64
	infeasTol float64
	bland     bool
}

// newTableau sets every column to its finite bound closest to zero (or zero
// when free) and picks the starting basis row by row. slack[i] is the slack
// column of row i, or -1 for equalities.
func newTableau(A *mat.Dense, b []float64, slack []int, cost, lo, hi []float64) *tableau {
	m, n := len(b), len(cost)
	tb := &tableau{
		m: m, n: n,
		cost: cost,
		d:    make([]float64, n),
		lo:   lo, hi: hi,
		x:     make([]float64, n),
		basis: make([]int, m),
		pos:   make([]int, n),
		beta:  make([]float64, m),
	}
	for j := range tb.x {
		tb.pos[j] = -1
		switch {
		case !math.IsInf(lo[j], -1):
			tb.x[j] = lo[j]
		case !math.IsInf(hi[j], 1):
			tb.x[j] = hi[j]
		}
	}
	bmax := 0.0
	if m > 0 {
		tb.t = mat.NewDense(m, n+1, nil)
	}
	for i := 0; i < m; i++ {
		a := A.RawRowView(i)
		row := tb.t.RawRowView(i)
		r := b[i] - floats.Dot(a, tb.x)
		bmax = math.Max(bmax, math.Abs(b[i]))
		copy(row, a)
		row[n] = b[i]
		if s := slack[i]; s >= 0 && r >= lo[s] && r <= hi[s] {
			tb.basis[i], tb.pos[s], tb.beta[i] = s, i, r
			continue
		}
		if r < 0 {
			floats.Scale(-1, row)
		}
		tb.basis[i], tb.beta[i] = n+i, math.Abs(r)
	}
	tb.infeasTol = 1e-8 * (1 + bmax)
	return tb
}

// solve runs phase one when artificials are basic, then minimizes cost.
// It returns the value of every column.
func (tb *tableau) solve() ([]float64, error) {
	if tb.artificialRows() > 0 {
		tb.artHi = math.Inf(1)
		tb.phaseOneCosts()
		if err := tb.iterate(); err != nil {
			return nil, err
		}
		tb.refresh()
		for i, k := range tb.basis {
			if k >= tb.n && tb.beta[i] > tb.infeasTol {
				return nil, errNodeInfeasible
			}
		}
	}
	tb.artHi = 0
	tb.phaseTwoCosts()
	if err := tb.iterate(); err != nil {
		return nil, err
	}
	tb.refresh()

	out := make([]float64, tb.n)
	for j := range out {
		if r := tb.pos[j]; r >= 0 {
			out[j] = tb.beta[r]
		} else {
			out[j] = tb.x[j]
		}
	}
	return out, nil
}

func (tb *tableau) artificialRows() int {
	k := 0
	for _, b := range tb.basis {
		if b >= tb.n {
			k++
		}
	}
	return k
}

func (tb *tableau) bounds(k int) (float64, float64) {
	if k >= tb.n {
		return 0, tb.artHi
	}
	return tb.lo[k], tb.hi[k]
}

// phaseOneCosts prices the sum of the artificials.
func (tb *tableau) phaseOneCosts() {
	for j := range tb.d {
		tb.d[j] = 0
	}
	for i, k := range tb.basis {
		if k >= tb.n {
			floats.AddScaled(tb.d, -1, tb.t.RawRowView(i)[:tb.n])
		}
	}
}

func (tb *tableau) phaseTwoCosts() {
	copy(tb.d, tb.cost)
	for i, k := range tb.basis {
		if k < tb.n && tb.cost[k] != 0 {
			floats.AddScaled(tb.d, -tb.cost[k], tb.t.RawRowView(i)[:tb.n])
		}
	}
	for j, r := range tb.pos {
		if r >= 0 {
			tb.d[j] = 0
		}
	}
}

func (tb *tableau) iterate() error {
	limit := 50 * (tb.m + tb.n + 10)
	stall := 0
	tb.bland = false
	for it := 1; it <= limit; it++ {
		if it%refreshEvery == 0 {
			tb.refresh()
		}
		j, dir := tb.price()
		if j < 0 {
			return nil
		}
		r, theta := tb.ratio(j, dir)
		if math.IsInf(theta, 1) {
			return milp.ErrUnbounded
		}
		tb.step(j, dir, r, theta)
		if theta <= degenTol {
			stall++
			tb.bland = stall > stallLimit
		} else {
			stall = 0
			tb.bland = false
		}
	}
	return errIterationLimit
}

// price picks the entering column and its direction (+1 up, -1 down).
// Dantzig's rule is used until the search stalls, then Bland's.
func (tb *tableau) price() (int, float64) {
	best, dir, score := -1, 0.0, dualTol
	for j := 0; j < tb.n; j++ {
		if tb.pos[j] >= 0 || tb.hi[j]-tb.lo[j] <= feasTol {
			continue
		}
		dj := tb.d[j]
		var s, dd float64
		switch {
		case dj < -dualTol && tb.x[j] < tb.hi[j]:
			s, dd = -dj, 1
		case dj > dualTol && tb.x[j] > tb.lo[j]:
			s, dd = dj, -1
		default:
			continue
		}
		if tb.bland {
			return j, dd
		}
		if s > score {
			best, dir, score = j, dd, s
		}
	}
	return best, dir
}

// ratio returns the blocking row and step length for moving column j in
// direction dir. Row -1 means the column reaches its own opposite bound.
func (tb *tableau) ratio(j int, dir float64) (int, float64) {
	theta := tb.hi[j] - tb.lo[j]
	r, rAlpha := -1, 0.0
	for i := 0; i < tb.m; i++ {
		a := tb.t.At(i, j) * dir
		if math.Abs(a) <= pivTol {
			continue
		}
		l, u := tb.bounds(tb.basis[i])
		var lim float64
		if a > 0 {
			if math.IsInf(l, -1) {
				continue
			}
			lim = (tb.beta[i] - l) / a
		} else {
			if math.IsInf(u, 1) {
				continue
			}
			lim = (u - tb.beta[i]) / -a
		}
		lim = math.Max(lim, 0)
		// prefer the larger pivot among ties
		if lim < theta-degenTol || (r >= 0 && lim <= theta+degenTol && math.Abs(a) > rAlpha) {
			theta, r, rAlpha = lim, i, math.Abs(a)
		}
	}
	return r, theta
}

func (tb *tableau) step(j int, dir float64, r int, theta float64) {
	delta := dir * theta
	if delta != 0 {
		for i := 0; i < tb.m; i++ {
			tb.beta[i] -= delta * tb.t.At(i, j)
		}
	}
	if r < 0 {
		if dir > 0 {
			tb.x[j] = tb.hi[j]
		} else {
			tb.x[j] = tb.lo[j]
		}
		return
	}
	k := tb.basis[r]
	if k < tb.n {
		if tb.t.At(r, j)*dir > 0 {
			tb.x[k] = tb.lo[k]
		} else {
			tb.x[k] = tb.hi[k]
		}
		tb.pos[k] = -1
	}
	tb.beta[r] = tb.x[j] + delta
	tb.basis[r], tb.pos[j] = j, r
	tb.pivot(r, j)
}

func (tb *tableau) pivot(r, j int) {
	pr := tb.t.RawRowView(r)
	floats.Scale(1/pr[j], pr)
	pr[j] = 1
	for i := 0; i < tb.m; i++ {
		if i == r {
			continue
		}
		ri := tb.t.RawRowView(i)
		if f := ri[j]; f != 0 {
			floats.AddScaled(ri, -f, pr)
			ri[j] = 0
		}
	}
	if dj := tb.d[j]; dj != 0 {
		floats.AddScaled(tb.d, -dj, pr[:tb.n])
		tb.d[j] = 0
	}
}

// refresh recomputes the basic values from the transformed right-hand side
// to keep rounding from accumulating over many pivots.
func (tb *tableau) refresh() {
	if tb.m == 0 {
		return
	}
	xn := make([]float64, tb.n)
	for j, v := range tb.x {
		if tb.pos[j] < 0 {
			xn[j] = v
		}
	}
	for i := 0; i < tb.m; i++ {
		row := tb.t.RawRowView(i)
		tb.beta[i] = row[tb.n] - floats.Dot(row[:tb.n], xn)
	}
}
