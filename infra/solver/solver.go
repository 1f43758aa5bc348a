// Package solver provides milp.Solver backends: the CBC executable and an
// in-process branch-and-bound over a bounded simplex on gonum matrices.
package solver

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/ems/core/milp"
	"github.com/kilianp07/ems/infra/logger"
)

const (
	BackendAuto  = "auto"
	BackendCBC   = "cbc"
	BackendGonum = "gonum"
)

// Config selects and tunes the backend.
type Config struct {
	Backend          string  `json:"backend"`
	CBCPath          string  `json:"cbc_path"`
	TimeLimitSeconds int     `json:"time_limit_seconds"`
	RelativeGap      float64 `json:"relative_gap"`
	MaxNodes         int     `json:"max_nodes"`
}

// SetDefaults applies the production limits.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendAuto
	}
	if c.TimeLimitSeconds == 0 {
		c.TimeLimitSeconds = 180
	}
	if c.RelativeGap == 0 {
		c.RelativeGap = 0.01
	}
}

// Validate checks the backend name and limits.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendCBC, BackendGonum:
	default:
		return fmt.Errorf("unknown solver backend %q", c.Backend)
	}
	if c.TimeLimitSeconds < 0 {
		return errors.New("time_limit_seconds must not be negative")
	}
	if c.RelativeGap < 0 || c.RelativeGap >= 1 {
		return errors.New("relative_gap must be in [0,1)")
	}
	return nil
}

// Options converts the limits for milp.Solver.Solve.
func (c Config) Options() milp.Options {
	return milp.Options{
		TimeLimit:   time.Duration(c.TimeLimitSeconds) * time.Second,
		RelativeGap: c.RelativeGap,
	}
}

// New resolves the configured backend. "auto" prefers CBC and falls back to
// the in-process solver when no executable is found. The CBC path is
// resolved here once and never looked up again.
func New(cfg Config, log logger.Logger) (milp.Solver, error) {
	if log == nil {
		log = logger.NopLogger{}
	}
	switch cfg.Backend {
	case BackendGonum:
		return NewBranchAndBound(cfg.MaxNodes, log), nil
	case BackendCBC:
		path, err := LookupCBC(cfg.CBCPath)
		if err != nil {
			return nil, err
		}
		return NewCBC(path, log), nil
	case BackendAuto, "":
		path, err := LookupCBC(cfg.CBCPath)
		if err != nil {
			log.Warnf("cbc not found, using in-process branch and bound: %v", err)
			return NewBranchAndBound(cfg.MaxNodes, log), nil
		}
		return NewCBC(path, log), nil
	default:
		return nil, fmt.Errorf("unknown solver backend %q", cfg.Backend)
	}
}
