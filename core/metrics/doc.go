// Package metrics defines the recorder interfaces used to observe
// optimization runs. A RunRecorder receives one RunEvent per request and a
// PlanRecorder receives the planned steps of every successful run. Sinks are
// built from configuration through NewSink, which returns a MultiSink when
// several sinks are configured.
package metrics
