package metrics

import (
	"context"

	"github.com/kilianp07/ems/core/dispatch"
	coremetrics "github.com/kilianp07/ems/core/metrics"
	"github.com/kilianp07/ems/infra/logger"
)

// StartPlanCollector stores the schedule of every published result when sink
// can record plans. subscribe is only called in that case, so a sink without
// plan support leaves no idle subscription behind. It reports whether a
// collector was started; the collector stops when ctx is canceled or the
// subscription is closed.
func StartPlanCollector(ctx context.Context, subscribe func() <-chan *dispatch.Result, sink coremetrics.RunRecorder) bool {
	pr, ok := sink.(coremetrics.PlanRecorder)
	if subscribe == nil || !ok {
		return false
	}
	sub := subscribe()
	if sub == nil {
		return false
	}
	log := logger.New("plan_collector")
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case res, ok := <-sub:
				if !ok {
					return
				}
				if err := pr.RecordPlan(dispatch.PlanPoints(res)); err != nil {
					log.Errorf("run %s: record plan: %v", res.RunID, err)
				}
			}
		}
	}()
	return true
}
