package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ems/core/dispatch"
	"github.com/kilianp07/ems/core/model"
)

func TestDecode_YAML(t *testing.T) {
	data := `params:
  num_days: 1
  resolution_minutes: 15
  weather: rainy
load_profile: [1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24]
start: 2024-06-01T00:00:00Z
`
	req, err := Decode(strings.NewReader(data), "yaml")
	require.NoError(t, err)
	assert.Equal(t, 1, req.Params.NumDays)
	assert.Equal(t, 15, req.Params.ResolutionMinutes)
	assert.Equal(t, "rainy", req.Params.Weather)
	// unset fields keep their defaults
	assert.Equal(t, model.DefaultSiteParams().DieselCapacityKW, req.Params.DieselCapacityKW)
	assert.Len(t, req.LoadProfile, 24)
	assert.Equal(t, 24.0, req.LoadProfile[23])
	assert.Equal(t, dispatch.DefaultPriceProfile(), req.PriceProfile)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), req.Start.UTC())
}

func TestDecode_JSON(t *testing.T) {
	req, err := Decode(strings.NewReader(`{"params":{"diesel_capacity_kw":0}}`), "json")
	require.NoError(t, err)
	assert.Zero(t, req.Params.DieselCapacityKW)
	assert.Equal(t, 2, req.Params.NumDays)
	assert.Equal(t, dispatch.DefaultLoadProfile(), req.LoadProfile)
}

func TestDecode_Empty(t *testing.T) {
	req, err := Decode(strings.NewReader(""), "yaml")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSiteParams(), req.Params)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"params":{"num_dayz":3}}`), "json")
	assert.Error(t, err, "unknown fields are rejected")
	_, err = Decode(strings.NewReader("params:\n  bogus: 1\n"), "yaml")
	assert.Error(t, err)
	_, err = Decode(strings.NewReader(""), "toml")
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.yml")
	require.NoError(t, os.WriteFile(path, []byte("params:\n  num_days: 4\n"), 0o644))
	req, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, req.Params.NumDays)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
