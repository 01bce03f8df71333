package caom

// Point is a sky position in ICRS right ascension and declination, degrees.
type Point struct {
	RA  float64 `json:"ra"`
	Dec float64 `json:"dec"`
}

// Polygon is a closed spherical polygon given by its vertices in order.
type Polygon struct {
	Points []Point `json:"points"`
}

// Interval is a closed numeric range with Lower <= Upper.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contains reports whether v lies within the interval.
func (i Interval) Contains(v float64) bool { return v >= i.Lower && v <= i.Upper }

// Union widens the interval to include o.
func (i Interval) Union(o Interval) Interval {
	if o.Lower < i.Lower {
		i.Lower = o.Lower
	}
	if o.Upper > i.Upper {
		i.Upper = o.Upper
	}
	return i
}

// SpatialWCS summarises the sky footprint of a chunk.
type SpatialWCS struct {
	Bounds Polygon `json:"bounds"`
}

// SpectralWCS summarises the energy coverage of a chunk. Double-sideband
// receivers carry two disjoint ranges, one per sideband; continuum data
// carry a single filter range.
type SpectralWCS struct {
	// Ranges are frequency intervals in Hz for heterodyne data, or a single
	// wavelength interval in metres for continuum data.
	Ranges []Interval `json:"ranges"`
	// RestFrequencyHz is the rest frequency of the observed transition,
	// zero for continuum data.
	RestFrequencyHz float64 `json:"rest_frequency_hz,omitempty"`
	// ResolvingPower is the dimensionless spectral resolution.
	ResolvingPower float64 `json:"resolving_power,omitempty"`
	// BandpassName names the filter or molecular transition.
	BandpassName string `json:"bandpass_name,omitempty"`
}

// TemporalWCS summarises the time coverage of a chunk in MJD days.
type TemporalWCS struct {
	Bounds Interval `json:"bounds"`
	// Samples lists one interval per contributing member for composites.
	Samples []Interval `json:"samples,omitempty"`
	// ExposureSeconds is the total integration time.
	ExposureSeconds float64 `json:"exposure_seconds,omitempty"`
}
