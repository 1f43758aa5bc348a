// Package infra contains technical adapters such as solver backends, MQTT
// publishers, metrics exporters and the run history store. These packages
// should depend only on the interfaces defined in the core packages.
package infra
