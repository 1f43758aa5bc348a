//go:build !no_containers

package test

import (
	"context"
	"fmt"
	"testing"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ems/core/dispatch"
	coremetrics "github.com/kilianp07/ems/core/metrics"
	"github.com/kilianp07/ems/infra/metrics"
	"github.com/kilianp07/ems/internal/eventbus"
	"github.com/kilianp07/ems/test/util"
)

func countRows(ctx context.Context, t *testing.T, url, flux string) int {
	t.Helper()
	client := influxdb2.NewClient(url, util.InfluxToken)
	defer client.Close()
	res, err := client.QueryAPI(util.InfluxOrg).Query(ctx, flux)
	require.NoError(t, err)
	n := 0
	for res.Next() {
		n++
	}
	require.NoError(t, res.Err())
	return n
}

func TestInfluxSinkWithContainer(t *testing.T) {
	requireDocker(t)
	ctx := context.Background()

	url, cleanup, err := util.StartInflux(ctx)
	if err != nil {
		t.Skipf("influx container: %v", err)
	}
	defer cleanup()

	sink := metrics.NewInfluxSinkWithFallback(url, util.InfluxToken, util.InfluxOrg, util.InfluxBucket)
	_, isInflux := sink.(*metrics.InfluxSink)
	require.True(t, isInflux, "health check should pass, got %T", sink)
	defer coremetrics.CloseSink(sink)

	res := sampleResult("influx-run")
	require.NoError(t, sink.RecordRun(coremetrics.RunEvent{
		RunID:         res.RunID,
		Status:        coremetrics.StatusOptimal,
		Backend:       res.Backend,
		Time:          time.Now(),
		Steps:         len(res.Steps),
		SolveDuration: 1500 * time.Millisecond,
		TotalCost:     res.Summary.Costs.Total,
	}))

	// plans reach the sink through the result bus
	bus := eventbus.NewTyped[*dispatch.Result]()
	collectCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	require.True(t, metrics.StartPlanCollector(collectCtx, bus.Subscribe, sink))
	bus.Publish(res)

	stepQuery := fmt.Sprintf(`from(bucket: %q)
  |> range(start: -48h)
  |> filter(fn: (r) => r._measurement == "dispatch_step" and r.run_id == %q and r._field == "grid_kw")`,
		util.InfluxBucket, res.RunID)
	require.Eventually(t, func() bool {
		return countRows(ctx, t, url, stepQuery) == len(res.Steps)
	}, 10*time.Second, 200*time.Millisecond)

	runQuery := fmt.Sprintf(`from(bucket: %q)
  |> range(start: -1h)
  |> filter(fn: (r) => r._measurement == "optimization_run" and r._field == "total_cost")`,
		util.InfluxBucket)
	assert.Equal(t, 1, countRows(ctx, t, url, runQuery))
}

func TestInfluxSinkFallback(t *testing.T) {
	sink := metrics.NewInfluxSinkWithFallback("http://127.0.0.1:1", "t", "o", "b")
	assert.IsType(t, coremetrics.NopSink{}, sink)
}
