package metrics

import "github.com/kilianp07/ems/core/factory"

// Config lists the sinks to build. PrometheusPort is the port of the
// /metrics endpoint when a prometheus sink is configured.
type Config struct {
	Sinks          []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	PrometheusPort string                 `json:"prometheus_port" yaml:"prometheus_port"`
}

// HasSink reports whether a sink of the given type is configured.
func (c Config) HasSink(typ string) bool {
	for _, s := range c.Sinks {
		if s.Type == typ {
			return true
		}
	}
	return false
}
