package metrics

import "github.com/kilianp07/ems/core/factory"

var sinkRegistry = factory.NewRegistry[RunRecorder]()

// RegisterSink adds a sink factory identified by name.
func RegisterSink(name string, f factory.Factory[RunRecorder]) error {
	return sinkRegistry.Register(name, f)
}

// NewSink creates a RunRecorder from the provided configuration.
func NewSink(cfgs []factory.ModuleConfig) (RunRecorder, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	if len(cfgs) == 1 {
		return sinkRegistry.Create(cfgs[0])
	}
	sinks := make([]RunRecorder, 0, len(cfgs))
	for _, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			// release the clients opened for earlier entries
			for _, created := range sinks {
				CloseSink(created)
			}
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return NewMultiSink(sinks...), nil
}

// MultiSink fans out runs and plans to several sinks.
type MultiSink struct {
	Sinks []RunRecorder
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...RunRecorder) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordRun(ev RunEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordRun(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordPlan forwards plan points to the sinks that store plans.
func (m *MultiSink) RecordPlan(points []PlanPoint) error {
	for _, s := range m.Sinks {
		if pr, ok := s.(PlanRecorder); ok {
			if err := pr.RecordPlan(points); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes the sinks that hold connections.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		CloseSink(s)
	}
}

// CloseSink calls Close on s when the sink provides it.
func CloseSink(s RunRecorder) {
	switch c := s.(type) {
	case interface{ Close() }:
		c.Close()
	case interface{ Close() error }:
		_ = c.Close()
	}
}

// Lookup returns the first sink implementing T, searching inside a MultiSink.
func Lookup[T any](s RunRecorder) (T, bool) {
	if t, ok := s.(T); ok {
		return t, true
	}
	if m, ok := s.(*MultiSink); ok {
		for _, child := range m.Sinks {
			if t, ok := Lookup[T](child); ok {
				return t, true
			}
		}
	}
	var zero T
	return zero, false
}
