package milp

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
)

const termsPerLine = 6

// WriteLP encodes p in CPLEX LP format, readable by CBC, GLPK and HiGHS.
// Variables are written as x<index> so names never need escaping.
func WriteLP(w io.Writer, p *Problem) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "\\ %s\n", p.Name)
	fmt.Fprintln(bw, "Minimize")
	bw.WriteString(" obj:")
	if len(p.Objective) == 0 && len(p.Vars) > 0 {
		// LP readers reject an empty objective.
		bw.WriteString(" 0 " + LPName(0))
	}
	writeExpr(bw, p.Objective)
	bw.WriteString("\n")

	fmt.Fprintln(bw, "Subject To")
	for i, c := range p.Constraints {
		fmt.Fprintf(bw, " c%d:", i)
		if len(c.Expr) == 0 {
			bw.WriteString(" 0 " + LPName(0))
		}
		writeExpr(bw, c.Expr)
		fmt.Fprintf(bw, " %s %s\n", c.Sense, formatFloat(c.RHS))
	}

	fmt.Fprintln(bw, "Bounds")
	for i, v := range p.Vars {
		name := LPName(Var(i))
		switch {
		case math.IsInf(v.Lower, -1) && math.IsInf(v.Upper, 1):
			fmt.Fprintf(bw, " %s free\n", name)
		case math.IsInf(v.Upper, 1):
			fmt.Fprintf(bw, " %s >= %s\n", name, formatFloat(v.Lower))
		default:
			fmt.Fprintf(bw, " %s <= %s <= %s\n", formatFloat(v.Lower), name, formatFloat(v.Upper))
		}
	}

	if p.NumBinary() > 0 {
		fmt.Fprintln(bw, "Binaries")
		n := 0
		for i, v := range p.Vars {
			if v.Kind != Binary {
				continue
			}
			bw.WriteString(" " + LPName(Var(i)))
			n++
			if n%termsPerLine == 0 {
				bw.WriteString("\n")
			}
		}
		bw.WriteString("\n")
	}
	fmt.Fprintln(bw, "End")
	return bw.Flush()
}

// LPName is the identifier used for v in LP files.
func LPName(v Var) string { return "x" + strconv.Itoa(int(v)) }

func writeExpr(bw *bufio.Writer, e Expr) {
	for i, t := range e {
		if i > 0 && i%termsPerLine == 0 {
			bw.WriteString("\n   ")
		}
		sign := "+"
		c := t.Coef
		if c < 0 {
			sign = "-"
			c = -c
		}
		fmt.Fprintf(bw, " %s %s %s", sign, formatFloat(c), LPName(t.Var))
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "+inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
