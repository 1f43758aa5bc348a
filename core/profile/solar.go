package profile

import "github.com/kilianp07/ems/core/model"

var sunnyShape = [24]float64{
	0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.05, 0.2, 0.4, 0.6, 0.8, 0.9,
	1.0, 0.95, 0.85, 0.7, 0.5, 0.25, 0.05, 0.0, 0.0, 0.0, 0.0, 0.0,
}

var rainyShape = [24]float64{
	0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.01, 0.05, 0.1, 0.15, 0.2, 0.25,
	0.3, 0.25, 0.2, 0.15, 0.1, 0.05, 0.01, 0.0, 0.0, 0.0, 0.0, 0.0,
}

// SolarShape returns the hourly PV capacity factor for a weather class.
// Unrecognized classes use the sunny curve.
func SolarShape(w model.Weather) [24]float64 {
	if w == model.WeatherRainy {
		return rainyShape
	}
	return sunnyShape
}

// SolarAvailable expands the weather shape to the horizon and scales it by
// the installed PV capacity in kW.
func SolarAvailable(w model.Weather, capacityKW float64, stepsPerHour, numDays int) []float64 {
	shape := SolarShape(w)
	out := Resample(shape[:], stepsPerHour, numDays)
	for i := range out {
		out[i] *= capacityKW
	}
	return out
}
