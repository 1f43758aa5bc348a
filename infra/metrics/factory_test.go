package metrics

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ems/core/factory"
	coremetrics "github.com/kilianp07/ems/core/metrics"
	"github.com/kilianp07/ems/infra/kpi"
)

func TestSQLiteSinkFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	sink, err := coremetrics.NewSink([]factory.ModuleConfig{
		{Type: "nop"},
		{Type: "sqlite", Conf: map[string]any{"path": path}},
	})
	require.NoError(t, err)
	defer coremetrics.CloseSink(sink)

	lister, ok := coremetrics.Lookup[coremetrics.RunLister](sink)
	require.True(t, ok)
	assert.IsType(t, &kpi.SQLiteStore{}, lister)

	require.NoError(t, sink.RecordRun(coremetrics.RunEvent{RunID: "r1", Status: coremetrics.StatusOptimal}))
	runs, err := lister.Recent(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "r1", runs[0].RunID)
}
