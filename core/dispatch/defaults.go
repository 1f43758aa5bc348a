package dispatch

import "github.com/kilianp07/ems/core/model"

// Built-in 24 hour profiles used when a caller supplies none.
var (
	defaultLoad = []float64{
		800, 750, 700, 650, 600, 650, 750, 850, 950, 1100, 1200, 1300,
		1250, 1200, 1150, 1200, 1300, 1400, 1500, 1450, 1300, 1150, 1000, 900,
	}
	defaultPrice = []float64{
		3.5, 3.2, 3.0, 2.8, 2.5, 2.8, 4.2, 5.5, 6.2, 7.8, 8.5, 9.2,
		8.8, 8.2, 7.5, 8.0, 8.8, 9.5, 10.2, 9.8, 8.5, 7.2, 5.5, 4.2,
	}
)

// DefaultLoadProfile returns a copy of the built-in hourly load in kW.
func DefaultLoadProfile() []float64 { return append([]float64(nil), defaultLoad...) }

// DefaultPriceProfile returns a copy of the built-in hourly grid price per kWh.
func DefaultPriceProfile() []float64 { return append([]float64(nil), defaultPrice...) }

// WithDefaults fills empty profiles with the built-in ones.
func (r Request) WithDefaults() Request {
	if len(r.LoadProfile) == 0 {
		r.LoadProfile = DefaultLoadProfile()
	}
	if len(r.PriceProfile) == 0 {
		r.PriceProfile = DefaultPriceProfile()
	}
	return r
}

// NewRequest returns a request carrying the default site parameters and no
// profiles. Decoders unmarshal over it so unset fields keep their defaults.
func NewRequest() Request {
	return Request{Params: model.DefaultSiteParams()}
}
