package solver

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/ems/core/milp"
	"github.com/kilianp07/ems/infra/logger"
)

// grace is added to the solver time limit before the process is killed.
const grace = 30 * time.Second

// CBC runs the COIN-OR CBC executable found at Path.
type CBC struct {
	Path string
	// TempDir holds the model and solution files; empty uses os.TempDir.
	TempDir string
	Log     logger.Logger
}

// LookupCBC resolves the CBC executable once. name may be an absolute path
// or a command searched in PATH; empty means "cbc".
func LookupCBC(name string) (string, error) {
	if name == "" {
		name = "cbc"
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", milp.ErrSolverUnavailable, err)
	}
	return path, nil
}

// NewCBC returns a CBC backend for the resolved executable path.
func NewCBC(path string, log logger.Logger) *CBC {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &CBC{Path: path, Log: log}
}

func (c *CBC) Name() string { return BackendCBC }

// Solve implements milp.Solver.
func (c *CBC) Solve(p *milp.Problem, opts milp.Options) (milp.Solution, error) {
	if c.Path == "" {
		return milp.Solution{}, fmt.Errorf("%w: no cbc executable configured", milp.ErrSolverUnavailable)
	}
	dir, err := os.MkdirTemp(c.TempDir, "ems-cbc-*")
	if err != nil {
		return milp.Solution{}, fmt.Errorf("cbc workdir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	lpPath := filepath.Join(dir, "model.lp")
	solPath := filepath.Join(dir, "model.sol")
	if err := writeModel(lpPath, p); err != nil {
		return milp.Solution{}, err
	}

	ctx := context.Background()
	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit+grace)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, c.Path, cbcArgs(lpPath, solPath, opts)...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return milp.Solution{}, fmt.Errorf("cbc run: %w: %s", err, tail(out.String(), 512))
	}
	if c.Log != nil {
		c.Log.Debugf("cbc finished: %s", tail(out.String(), 256))
	}

	f, err := os.Open(solPath)
	if err != nil {
		return milp.Solution{}, fmt.Errorf("cbc produced no solution file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return parseSolution(f, p)
}

func writeModel(path string, p *milp.Problem) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cbc model file: %w", err)
	}
	if err := milp.WriteLP(f, p); err != nil {
		_ = f.Close()
		return fmt.Errorf("write lp: %w", err)
	}
	return f.Close()
}

func cbcArgs(lpPath, solPath string, opts milp.Options) []string {
	args := []string{lpPath}
	if opts.TimeLimit > 0 {
		secs := int(math.Ceil(opts.TimeLimit.Seconds()))
		args = append(args, "-sec", strconv.Itoa(secs), "-timeMode", "elapsed")
	}
	if opts.RelativeGap > 0 {
		args = append(args, "-ratio", strconv.FormatFloat(opts.RelativeGap, 'g', -1, 64))
	}
	return append(args, "-branch", "-printingOptions", "all", "-solution", solPath)
}

// parseSolution reads a CBC solution file. The first line carries the status,
// the remaining lines are "index name value reduced-cost", optionally
// prefixed by "**" for rows or columns with infeasibilities.
func parseSolution(r io.Reader, p *milp.Problem) (milp.Solution, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return milp.Solution{}, err
		}
		return milp.Solution{}, fmt.Errorf("cbc: empty solution file")
	}
	head := strings.TrimSpace(sc.Text())
	var status milp.Status
	switch {
	case strings.HasPrefix(head, "Optimal"):
		status = milp.StatusOptimal
	case strings.HasPrefix(head, "Infeasible"), strings.HasPrefix(head, "Integer infeasible"):
		return milp.Solution{Status: milp.StatusInfeasible}, nil
	case strings.HasPrefix(head, "Unbounded"):
		return milp.Solution{}, milp.ErrUnbounded
	case strings.HasPrefix(head, "Stopped"):
		if strings.Contains(head, "no integer solution") {
			return milp.Solution{}, milp.ErrNoIncumbent
		}
		status = milp.StatusFeasible
	default:
		return milp.Solution{}, fmt.Errorf("cbc: unrecognized status %q", head)
	}

	values := make([]float64, len(p.Vars))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) > 0 && fields[0] == "**" {
			fields = fields[1:]
		}
		if len(fields) < 3 || !strings.HasPrefix(fields[1], "x") {
			continue
		}
		idx, err := strconv.Atoi(fields[1][1:])
		if err != nil || idx < 0 || idx >= len(values) {
			continue
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return milp.Solution{}, fmt.Errorf("cbc: value for %s: %w", fields[1], err)
		}
		values[idx] = v
	}
	if err := sc.Err(); err != nil {
		return milp.Solution{}, err
	}
	return milp.Solution{Status: status, Values: values, Objective: p.ObjectiveValue(values)}, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
