package metrics

import (
	"context"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/samber/lo"

	coremetrics "github.com/kilianp07/ems/core/metrics"
	"github.com/kilianp07/ems/infra/logger"
)

// InfluxSink writes runs and planned steps to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.RunRecorder {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRun writes one optimization_run point.
func (s *InfluxSink) RecordRun(ev coremetrics.RunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("optimization_run").
		AddTag("run_id", ev.RunID).
		AddTag("status", ev.Status).
		AddTag("backend", ev.Backend).
		AddField("steps", ev.Steps).
		AddField("variables", ev.Variables).
		AddField("binaries", ev.Binaries).
		AddField("constraints", ev.Constraints).
		AddField("solve_seconds", round3(ev.SolveDuration.Seconds())).
		AddField("total_cost", round3(ev.TotalCost)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPlan writes every planned step as a dispatch_step point.
func (s *InfluxSink) RecordPlan(points []coremetrics.PlanPoint) error {
	if len(points) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	batch := make([]*write.Point, len(points))
	for i, pt := range points {
		p := write.NewPointWithMeasurement("dispatch_step").
			AddTag("run_id", pt.RunID).
			AddField("step", pt.Index)
		keys := lo.Keys(pt.Fields)
		sort.Strings(keys)
		for _, k := range keys {
			p.AddField(k, round3(pt.Fields[k]))
		}
		batch[i] = p.SetTime(pt.Time)
	}
	return s.writeAPI.WritePoint(ctx, batch...)
}

// Close releases the client resources.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
