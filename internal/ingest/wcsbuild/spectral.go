package wcsbuild

import (
	"math"
	"sort"

	"obsingest/pkg/caom"
)

// Subsystem is one heterodyne spectral subsystem as recorded for one file.
type Subsystem struct {
	Number     int
	RestFreqHz float64
	IFFreqHz   float64
	IFChanSpHz float64
	// Signal is the signal-sideband frequency range in Hz.
	Signal caom.Interval
	// Image is the image-sideband range for double-sideband receivers.
	Image *caom.Interval
}

// HybridKey identifies subsystems that are halves of one hybrid-mode
// spectrum and must be merged.
type HybridKey struct {
	RestFreqHz float64
	IFFreqHz   float64
	IFChanSpHz float64
}

// Hybrid is a merged group of subsystems sharing a HybridKey. Its bounds
// are the running union across the group.
type Hybrid struct {
	Key     HybridKey
	Members []int
	Signal  caom.Interval
	Image   *caom.Interval
}

// MergeHybrids groups subsystems by (restfreq, iffreq, ifchansp) and merges
// each group's frequency bounds. Groups are returned ordered by their
// lowest member number.
func MergeHybrids(subsystems []Subsystem) []Hybrid {
	groups := map[HybridKey]*Hybrid{}
	for _, s := range subsystems {
		key := HybridKey{RestFreqHz: s.RestFreqHz, IFFreqHz: s.IFFreqHz, IFChanSpHz: s.IFChanSpHz}
		h, ok := groups[key]
		if !ok {
			h = &Hybrid{Key: key, Signal: s.Signal}
			if s.Image != nil {
				img := *s.Image
				h.Image = &img
			}
			groups[key] = h
		} else {
			h.Signal = h.Signal.Union(s.Signal)
			if s.Image != nil {
				if h.Image == nil {
					img := *s.Image
					h.Image = &img
				} else {
					img := h.Image.Union(*s.Image)
					h.Image = &img
				}
			}
		}
		h.Members = append(h.Members, s.Number)
	}
	merged := make([]Hybrid, 0, len(groups))
	for _, h := range groups {
		sort.Ints(h.Members)
		merged = append(merged, *h)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Members[0] < merged[j].Members[0] })
	return merged
}

// SpectralWCS renders the hybrid group as a chunk energy summary. A
// double-sideband group carries two disjoint ranges, signal then image; if
// the sidebands overlap they collapse into one range.
func (h Hybrid) SpectralWCS(bandpassName string) *caom.SpectralWCS {
	wcs := &caom.SpectralWCS{
		Ranges:          []caom.Interval{h.Signal},
		RestFrequencyHz: h.Key.RestFreqHz,
		BandpassName:    bandpassName,
	}
	if h.Image != nil {
		if h.Image.Lower <= h.Signal.Upper && h.Signal.Lower <= h.Image.Upper {
			wcs.Ranges[0] = wcs.Ranges[0].Union(*h.Image)
		} else {
			wcs.Ranges = append(wcs.Ranges, *h.Image)
		}
	}
	if h.Key.IFChanSpHz != 0 {
		mean := (h.Signal.Lower + h.Signal.Upper) / 2
		wcs.ResolvingPower = math.Abs(mean / h.Key.IFChanSpHz)
	}
	return wcs
}

// ContinuumSpectralWCS renders a filter-based energy summary: one
// wavelength range of filter plus or minus half the bandwidth, in metres.
func ContinuumSpectralWCS(filterMicrons, bandwidthMicrons float64, bandpassName string) (*caom.SpectralWCS, error) {
	if filterMicrons <= 0 {
		return nil, &GeometryError{Reason: "continuum filter wavelength must be positive"}
	}
	half := bandwidthMicrons / 2
	return &caom.SpectralWCS{
		Ranges: []caom.Interval{{
			Lower: (filterMicrons - half) * 1e-6,
			Upper: (filterMicrons + half) * 1e-6,
		}},
		BandpassName: bandpassName,
	}, nil
}
