// Package profile turns coarse hourly forecasts into per-step series for the
// optimization horizon and provides the weather-dependent solar shapes.
package profile
