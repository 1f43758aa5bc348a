package milp

import (
	"fmt"
	"math"
)

// Kind distinguishes continuous from binary variables.
type Kind int

const (
	Continuous Kind = iota
	Binary
)

func (k Kind) String() string {
	if k == Binary {
		return "binary"
	}
	return "continuous"
}

// Var is an index into Problem.Vars.
type Var int

// Variable describes one decision variable. Bounds may be infinite.
type Variable struct {
	Name  string
	Kind  Kind
	Lower float64
	Upper float64
}

// Term is a coefficient applied to a variable.
type Term struct {
	Var  Var
	Coef float64
}

// Expr is a linear expression.
type Expr []Term

// Sum builds an expression from terms.
func Sum(terms ...Term) Expr { return Expr(terms) }

// T is shorthand for a term.
func T(coef float64, v Var) Term { return Term{Var: v, Coef: coef} }

// Sense is the relation of a constraint row.
type Sense int

const (
	LE Sense = iota
	GE
	EQ
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	default:
		return "="
	}
}

// Constraint is Expr <sense> RHS.
type Constraint struct {
	Name  string
	Expr  Expr
	Sense Sense
	RHS   float64
}

// Problem is a minimization MILP.
type Problem struct {
	Name        string
	Vars        []Variable
	Constraints []Constraint
	Objective   Expr
}

// NewProblem returns an empty problem. capacity pre-sizes the variable arena.
func NewProblem(name string, capacity int) *Problem {
	return &Problem{Name: name, Vars: make([]Variable, 0, capacity)}
}

// Continuous adds a continuous variable with the given bounds.
func (p *Problem) Continuous(name string, lower, upper float64) Var {
	p.Vars = append(p.Vars, Variable{Name: name, Kind: Continuous, Lower: lower, Upper: upper})
	return Var(len(p.Vars) - 1)
}

// Binary adds a {0,1} variable.
func (p *Problem) Binary(name string) Var {
	p.Vars = append(p.Vars, Variable{Name: name, Kind: Binary, Lower: 0, Upper: 1})
	return Var(len(p.Vars) - 1)
}

// Constrain appends a constraint row. Terms with a zero coefficient are dropped.
func (p *Problem) Constrain(name string, e Expr, sense Sense, rhs float64) {
	row := make(Expr, 0, len(e))
	for _, t := range e {
		if t.Coef != 0 {
			row = append(row, t)
		}
	}
	p.Constraints = append(p.Constraints, Constraint{Name: name, Expr: row, Sense: sense, RHS: rhs})
}

// Minimize sets the objective.
func (p *Problem) Minimize(e Expr) { p.Objective = e }

// NumBinary counts binary variables.
func (p *Problem) NumBinary() int {
	n := 0
	for _, v := range p.Vars {
		if v.Kind == Binary {
			n++
		}
	}
	return n
}

// Eval computes e for the given variable values.
func Eval(e Expr, values []float64) float64 {
	var s float64
	for _, t := range e {
		s += t.Coef * values[t.Var]
	}
	return s
}

// ObjectiveValue evaluates the objective at values.
func (p *Problem) ObjectiveValue(values []float64) float64 { return Eval(p.Objective, values) }

// Violation describes the first failed check in Check.
type Violation struct {
	Name   string
	Amount float64
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s violated by %g", v.Name, v.Amount)
}

// Check verifies that values satisfy every bound, integrality requirement and
// constraint within tol. It returns a *Violation for the first failure.
func (p *Problem) Check(values []float64, tol float64) error {
	if len(values) != len(p.Vars) {
		return fmt.Errorf("milp: %d values for %d variables", len(values), len(p.Vars))
	}
	for i, v := range p.Vars {
		x := values[i]
		if math.IsNaN(x) {
			return &Violation{Name: v.Name, Amount: math.NaN()}
		}
		if x < v.Lower-tol {
			return &Violation{Name: v.Name + " lower bound", Amount: v.Lower - x}
		}
		if x > v.Upper+tol {
			return &Violation{Name: v.Name + " upper bound", Amount: x - v.Upper}
		}
		if v.Kind == Binary {
			if d := math.Min(math.Abs(x), math.Abs(x-1)); d > tol {
				return &Violation{Name: v.Name + " integrality", Amount: d}
			}
		}
	}
	for _, c := range p.Constraints {
		lhs := Eval(c.Expr, values)
		var amount float64
		switch c.Sense {
		case LE:
			amount = lhs - c.RHS
		case GE:
			amount = c.RHS - lhs
		case EQ:
			amount = math.Abs(lhs - c.RHS)
		}
		if amount > tol*math.Max(1, math.Abs(c.RHS)) {
			return &Violation{Name: c.Name, Amount: amount}
		}
	}
	return nil
}
