package solver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ems/core/milp"
)

func TestConfigDefaultsAndOptions(t *testing.T) {
	var c Config
	c.SetDefaults()
	require.NoError(t, c.Validate())
	assert.Equal(t, BackendAuto, c.Backend)
	opts := c.Options()
	assert.Equal(t, 180*time.Second, opts.TimeLimit)
	assert.Equal(t, 0.01, opts.RelativeGap)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Backend: "glpk"}.Validate())
	assert.Error(t, Config{Backend: BackendCBC, TimeLimitSeconds: -1}.Validate())
	assert.Error(t, Config{Backend: BackendCBC, RelativeGap: 1}.Validate())
	assert.NoError(t, Config{Backend: BackendGonum, RelativeGap: 0.05}.Validate())
}

func TestNewBackends(t *testing.T) {
	s, err := New(Config{Backend: BackendGonum, MaxNodes: 10}, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendGonum, s.Name())

	_, err = New(Config{Backend: BackendCBC, CBCPath: "/nonexistent/cbc"}, nil)
	assert.ErrorIs(t, err, milp.ErrSolverUnavailable)

	s, err = New(Config{Backend: BackendAuto, CBCPath: "/nonexistent/cbc"}, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendGonum, s.Name())

	_, err = New(Config{Backend: "glpk"}, nil)
	assert.Error(t, err)
}
