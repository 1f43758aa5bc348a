package solver

import (
	"errors"
	"math"
	"time"

	"github.com/kilianp07/ems/core/milp"
	"github.com/kilianp07/ems/infra/logger"
)

const integralityTol = 1e-6

// BranchAndBound is an in-process MILP backend. It runs a depth-first
// branch-and-bound over binary variables and solves each node relaxation
// with a bounded simplex on gonum dense matrices. The root relaxation is
// rounded into a first incumbent so a node or time limit still yields a
// plan. It is meant for small horizons and for environments without a CBC
// executable.
type BranchAndBound struct {
	// MaxNodes stops the search after this many tree nodes. Zero means no limit.
	MaxNodes int
	Log      logger.Logger

	now func() time.Time
}

// NewBranchAndBound returns a BranchAndBound backend.
func NewBranchAndBound(maxNodes int, log logger.Logger) *BranchAndBound {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &BranchAndBound{MaxNodes: maxNodes, Log: log, now: time.Now}
}

func (s *BranchAndBound) Name() string { return BackendGonum }

type node struct {
	lower, upper []float64
}

// Solve implements milp.Solver.
func (s *BranchAndBound) Solve(p *milp.Problem, opts milp.Options) (milp.Solution, error) {
	now := s.now
	if now == nil {
		now = time.Now
	}
	log := s.Log
	if log == nil {
		log = logger.NopLogger{}
	}
	start := now()

	root := node{lower: make([]float64, len(p.Vars)), upper: make([]float64, len(p.Vars))}
	for i, v := range p.Vars {
		root.lower[i], root.upper[i] = v.Lower, v.Upper
	}

	var (
		best     []float64
		bestObj  = math.Inf(1)
		nodes    int
		failed   int
		limitHit bool
		stack    = []node{root}
	)
	for len(stack) > 0 {
		if (opts.TimeLimit > 0 && now().Sub(start) >= opts.TimeLimit) || (s.MaxNodes > 0 && nodes >= s.MaxNodes) {
			limitHit = true
			break
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		x, obj, err := relax(p, nd.lower, nd.upper)
		switch {
		case errors.Is(err, errNodeInfeasible):
			continue
		case errors.Is(err, milp.ErrUnbounded):
			return milp.Solution{}, err
		case err != nil:
			if nodes == 1 {
				return milp.Solution{}, err
			}
			failed++
			log.Debugf("node %d relaxation failed: %v", nodes, err)
			continue
		}
		j := branchVar(p, x)
		if nodes == 1 && j >= 0 {
			for _, round := range []func(float64) float64{math.Round, math.Floor} {
				if hx, hobj, ok := complete(p, nd, x, round); ok && hobj < bestObj {
					best, bestObj = hx, hobj
					log.Debugf("rounded root incumbent %.4f", hobj)
				}
			}
		}
		if best != nil && obj >= bestObj-opts.RelativeGap*math.Abs(bestObj) {
			continue
		}

		if j < 0 {
			// re-solve with the binaries pinned so they are exactly integral
			if cx, cobj, ok := complete(p, nd, x, math.Round); ok {
				x, obj = cx, cobj
			}
			if obj < bestObj {
				best, bestObj = x, obj
				log.Debugf("incumbent %.4f after %d nodes", obj, nodes)
			}
			continue
		}
		down := node{lower: nd.lower, upper: cloneWith(nd.upper, j, 0)}
		up := node{lower: cloneWith(nd.lower, j, 1), upper: nd.upper}
		// explore the side closest to the relaxation first
		if x[j] >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	log.Debugw("branch and bound finished", map[string]any{
		"nodes":     nodes,
		"failed":    failed,
		"limit_hit": limitHit,
		"elapsed":   now().Sub(start).String(),
	})

	if best == nil {
		if limitHit || failed > 0 {
			return milp.Solution{}, milp.ErrNoIncumbent
		}
		return milp.Solution{Status: milp.StatusInfeasible}, nil
	}
	values := polish(p, best)
	status := milp.StatusOptimal
	if limitHit || failed > 0 {
		status = milp.StatusFeasible
	}
	return milp.Solution{Status: status, Values: values, Objective: p.ObjectiveValue(values)}, nil
}

// branchVar returns the most fractional binary variable, or -1.
func branchVar(p *milp.Problem, x []float64) int {
	best, bestFrac := -1, integralityTol
	for i, v := range p.Vars {
		if v.Kind != milp.Binary {
			continue
		}
		f := math.Min(x[i]-math.Floor(x[i]), math.Ceil(x[i])-x[i])
		if f > bestFrac {
			best, bestFrac = i, f
		}
	}
	return best
}

// complete pins every binary to round(x) within the node bounds and solves
// the remaining LP.
func complete(p *milp.Problem, nd node, x []float64, round func(float64) float64) ([]float64, float64, bool) {
	lower := make([]float64, len(x))
	upper := make([]float64, len(x))
	copy(lower, nd.lower)
	copy(upper, nd.upper)
	for i, v := range p.Vars {
		if v.Kind != milp.Binary {
			continue
		}
		val := math.Min(math.Max(round(x[i]), nd.lower[i]), nd.upper[i])
		lower[i], upper[i] = val, val
	}
	cx, obj, err := relax(p, lower, upper)
	if err != nil {
		return nil, 0, false
	}
	return cx, obj, true
}

func cloneWith(src []float64, i int, v float64) []float64 {
	dst := make([]float64, len(src))
	copy(dst, src)
	dst[i] = v
	return dst
}

// polish rounds binaries and clips values into their bounds.
func polish(p *milp.Problem, x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range p.Vars {
		val := x[i]
		if v.Kind == milp.Binary {
			val = math.Round(val)
		}
		out[i] = math.Min(math.Max(val, v.Lower), v.Upper)
	}
	return out
}
