package profile

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/kilianp07/ems/core/model"
)

// MinSamples is the shortest raw profile accepted.
const MinSamples = 24

// Resample interpolates an hourly profile to stepsPerHour points per sample
// and repeats the resulting day numDays times. The fine axis spans
// [0, len(hourly)-1] with len(hourly)*stepsPerHour evenly spaced points.
func Resample(hourly []float64, stepsPerHour, numDays int) []float64 {
	n := len(hourly)
	if n == 0 || stepsPerHour < 1 || numDays < 1 {
		return nil
	}
	day := make([]float64, n*stepsPerHour)
	if n == 1 || len(day) == 1 {
		for i := range day {
			day[i] = hourly[0]
		}
	} else {
		xs := make([]float64, n)
		for i := range xs {
			xs[i] = float64(i)
		}
		var pl interp.PiecewiseLinear
		if err := pl.Fit(xs, hourly); err != nil {
			// xs is strictly increasing and len(xs) == len(hourly) >= 2
			panic(fmt.Sprintf("profile: fit: %v", err))
		}
		floats.Span(day, 0, float64(n-1))
		for i, x := range day {
			day[i] = pl.Predict(x)
		}
	}
	out := make([]float64, 0, len(day)*numDays)
	for d := 0; d < numDays; d++ {
		out = append(out, day...)
	}
	return out
}

// Prepare returns a series of exactly steps values. Raw profiles already at
// horizon length are used as-is; anything else is treated as hourly and
// resampled. name identifies the series in validation errors.
func Prepare(name string, raw []float64, stepsPerHour, numDays int) ([]float64, error) {
	if len(raw) < MinSamples {
		return nil, &model.ValidationError{
			Field:  name,
			Reason: fmt.Sprintf("must contain at least %d data points, got %d", MinSamples, len(raw)),
		}
	}
	steps := numDays * 24 * stepsPerHour
	if len(raw) == steps {
		out := make([]float64, steps)
		copy(out, raw)
		return out, nil
	}
	out := Resample(raw, stepsPerHour, numDays)
	return out[:steps], nil
}
