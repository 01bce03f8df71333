package wcsbuild

import (
	"time"

	"obsingest/pkg/caom"
)

// mjdEpoch is 1858-11-17T00:00:00 UTC, the zero point of modified Julian
// date.
var mjdEpoch = time.Date(1858, time.November, 17, 0, 0, 0, 0, time.UTC)

// MJD converts a timestamp to modified Julian date in days.
func MJD(t time.Time) float64 {
	return t.Sub(mjdEpoch).Seconds() / 86400.0
}

// FromMJD converts a modified Julian date in days back to a timestamp.
func FromMJD(mjd float64) time.Time {
	return mjdEpoch.Add(time.Duration(mjd * 86400 * float64(time.Second)))
}

// TimeBounds renders the observation's time coverage as one interval in
// MJD. The two timestamps are treated as the centres of the first and last
// samples of a one-pixel axis, so the interval spans exactly start to end.
func TimeBounds(start, end time.Time) (caom.Interval, error) {
	if end.Before(start) {
		return caom.Interval{}, &GeometryError{Reason: "observation end precedes start"}
	}
	return caom.Interval{Lower: MJD(start), Upper: MJD(end)}, nil
}

// AttachCompositeTime attaches a composite time axis, with one bound sample
// per member, to every chunk that already carries spatial coverage. Chunks
// without spatial coverage are left untouched so no time-only axis is
// orphaned. It returns the number of chunks updated.
func AttachCompositeTime(obs *caom.Observation, samples []caom.Interval) int {
	if len(samples) == 0 {
		return 0
	}
	bounds := samples[0]
	for _, s := range samples[1:] {
		bounds = bounds.Union(s)
	}
	updated := 0
	for _, productID := range obs.ProductIDs() {
		plane := obs.Planes[productID]
		for _, uri := range plane.ArtifactURIs() {
			artifact := plane.Artifacts[uri]
			for _, part := range artifact.Parts {
				for _, chunk := range part.Chunks {
					if chunk.Position == nil {
						continue
					}
					chunk.Time = &caom.TemporalWCS{
						Bounds:  bounds,
						Samples: append([]caom.Interval(nil), samples...),
					}
					updated++
				}
			}
		}
	}
	return updated
}
