package dispatch

import (
	"fmt"
	"math"

	"github.com/kilianp07/ems/core/model"
	"github.com/kilianp07/ems/core/profile"
)

// Series holds the per-step inputs of one run, all of length site.Steps().
type Series struct {
	Load  []float64
	Price []float64
	Solar []float64
}

// NewSeries validates the raw profiles and brings them to horizon length.
// The solar series is generated from the site's weather and capacity.
func NewSeries(site model.Site, load, price []float64) (Series, error) {
	if err := finite("load_profile", load); err != nil {
		return Series{}, err
	}
	for i, x := range load {
		if x < 0 {
			return Series{}, &model.ValidationError{Field: "load_profile", Reason: fmt.Sprintf("value at index %d is negative", i)}
		}
	}
	if err := finite("price_profile", price); err != nil {
		return Series{}, err
	}
	sph, days := site.StepsPerHour(), site.NumDays
	l, err := profile.Prepare("load_profile", load, sph, days)
	if err != nil {
		return Series{}, err
	}
	p, err := profile.Prepare("price_profile", price, sph, days)
	if err != nil {
		return Series{}, err
	}
	return Series{
		Load:  l,
		Price: p,
		Solar: profile.SolarAvailable(site.Sky(), site.SolarCapacityKW, sph, days),
	}, nil
}

func finite(name string, v []float64) error {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return &model.ValidationError{Field: name, Reason: fmt.Sprintf("value at index %d is not finite", i)}
		}
	}
	return nil
}

func (s Series) check(steps int) error {
	for _, c := range []struct {
		name string
		v    []float64
	}{{"load_profile", s.Load}, {"price_profile", s.Price}, {"solar", s.Solar}} {
		if len(c.v) != steps {
			return &model.ValidationError{
				Field:  c.name,
				Reason: fmt.Sprintf("expected %d steps, got %d", steps, len(c.v)),
			}
		}
	}
	return nil
}
