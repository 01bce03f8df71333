package wcsbuild

import (
	"math"

	"obsingest/pkg/caom"
)

// coincidenceEpsilon is the angular scale, in degrees, below which two
// recorded corner positions are treated as the same point (0.1 arcsec).
const coincidenceEpsilon = 0.1 / 3600.0

// BeamHeterodyne returns the beam full width in degrees for a heterodyne
// receiver at the given mean frequency.
func BeamHeterodyne(meanFreqGHz float64) (float64, error) {
	if meanFreqGHz <= 0 {
		return 0, &GeometryError{Reason: "heterodyne beam undefined for non-positive frequency"}
	}
	return 1.435 / meanFreqGHz, nil
}

// BeamContinuum returns the beam full width in degrees for a continuum
// filter at the given wavelength.
func BeamContinuum(filterMicrons float64) (float64, error) {
	if filterMicrons <= 0 {
		return 0, &GeometryError{Reason: "continuum beam undefined for non-positive wavelength"}
	}
	return 4.787e-6 * filterMicrons, nil
}

// Corners holds the four recorded footprint corners in bottom-left,
// bottom-right, top-right, top-left order.
type Corners [4]caom.Point

// RepairFootprint turns four recorded corner positions into a simple
// bounding polygon, repairing the degenerate cases in order: all corners
// coincident (expand to a beam-sized box), corners collinear along one grid
// axis (expand perpendicular to that axis by the beam size), and bowtie
// vertex ordering (swap the misrecorded pair). Right-ascension offsets are
// scaled by 1/cos(dec). Any other degenerate arrangement is an error.
func RepairFootprint(corners Corners, beamDeg float64) (caom.Polygon, error) {
	if coincident(corners) {
		return beamBox(center(corners), beamDeg/2)
	}
	if alongRA, _, ok := collinearAxis(corners); ok {
		return expandAxis(corners, alongRA, beamDeg)
	}
	return untangle(corners)
}

func coincident(c Corners) bool {
	for i := 1; i < len(c); i++ {
		if math.Abs(c[i].RA-c[0].RA) > coincidenceEpsilon || math.Abs(c[i].Dec-c[0].Dec) > coincidenceEpsilon {
			return false
		}
	}
	return true
}

func center(c Corners) caom.Point {
	var p caom.Point
	for _, v := range c {
		p.RA += v.RA
		p.Dec += v.Dec
	}
	p.RA /= float64(len(c))
	p.Dec /= float64(len(c))
	return p
}

func beamBox(at caom.Point, halfDeg float64) (caom.Polygon, error) {
	cosDec := math.Cos(at.Dec * math.Pi / 180)
	if cosDec < 1e-9 {
		return caom.Polygon{}, &GeometryError{Reason: "cannot widen a footprint at the celestial pole"}
	}
	dRA := halfDeg / cosDec
	return caom.Polygon{Points: []caom.Point{
		{RA: at.RA - dRA, Dec: at.Dec - halfDeg},
		{RA: at.RA + dRA, Dec: at.Dec - halfDeg},
		{RA: at.RA + dRA, Dec: at.Dec + halfDeg},
		{RA: at.RA - dRA, Dec: at.Dec + halfDeg},
	}}, nil
}

// collinearAxis reports whether all corners lie on one grid line, returning
// which axis the line runs along.
func collinearAxis(c Corners) (alongRA, alongDec bool, ok bool) {
	alongRA, alongDec = true, true
	for i := 1; i < len(c); i++ {
		if math.Abs(c[i].Dec-c[0].Dec) > coincidenceEpsilon {
			alongRA = false
		}
		if math.Abs(c[i].RA-c[0].RA) > coincidenceEpsilon {
			alongDec = false
		}
	}
	return alongRA, alongDec, alongRA || alongDec
}

// expandAxis widens a line of corners into a strip perpendicular to the
// line's axis.
func expandAxis(c Corners, alongRA bool, beamDeg float64) (caom.Polygon, error) {
	minRA, maxRA := c[0].RA, c[0].RA
	minDec, maxDec := c[0].Dec, c[0].Dec
	for _, p := range c[1:] {
		minRA = math.Min(minRA, p.RA)
		maxRA = math.Max(maxRA, p.RA)
		minDec = math.Min(minDec, p.Dec)
		maxDec = math.Max(maxDec, p.Dec)
	}
	mid := center(c)
	half := beamDeg / 2
	if alongRA {
		// Corners run along right ascension; widen in declination.
		return caom.Polygon{Points: []caom.Point{
			{RA: minRA, Dec: mid.Dec - half},
			{RA: maxRA, Dec: mid.Dec - half},
			{RA: maxRA, Dec: mid.Dec + half},
			{RA: minRA, Dec: mid.Dec + half},
		}}, nil
	}
	cosDec := math.Cos(mid.Dec * math.Pi / 180)
	if cosDec < 1e-9 {
		return caom.Polygon{}, &GeometryError{Reason: "cannot widen a footprint at the celestial pole"}
	}
	dRA := half / cosDec
	return caom.Polygon{Points: []caom.Point{
		{RA: mid.RA - dRA, Dec: minDec},
		{RA: mid.RA + dRA, Dec: minDec},
		{RA: mid.RA + dRA, Dec: maxDec},
		{RA: mid.RA - dRA, Dec: maxDec},
	}}, nil
}

// vertexOrders lists the candidate corner orderings tried when the recorded
// order self-intersects: the identity, then each adjacent-pair swap that can
// untangle a bowtie.
var vertexOrders = [][4]int{
	{0, 1, 2, 3},
	{0, 2, 1, 3},
	{0, 1, 3, 2},
	{1, 0, 2, 3},
}

// untangle verifies the vertex winding by the sign of the included angle at
// each corner. A simple polygon turns the same way at every vertex; mixed
// signs mean two corners were recorded in bowtie order.
func untangle(c Corners) (caom.Polygon, error) {
	var lastErr error
	for _, order := range vertexOrders {
		pts := [4]caom.Point{c[order[0]], c[order[1]], c[order[2]], c[order[3]]}
		simple, err := isSimple(pts)
		if err != nil {
			lastErr = err
			continue
		}
		if simple {
			return caom.Polygon{Points: pts[:]}, nil
		}
	}
	if lastErr != nil {
		return caom.Polygon{}, lastErr
	}
	return caom.Polygon{}, &GeometryError{Reason: "corner ordering cannot be untangled into a simple polygon"}
}

func isSimple(pts [4]caom.Point) (bool, error) {
	vs := [4]vec{unitVec(pts[0]), unitVec(pts[1]), unitVec(pts[2]), unitVec(pts[3])}
	sign := 0
	for i := range vs {
		prev := vs[(i+3)%4]
		next := vs[(i+1)%4]
		angle, err := includedAngle(prev, vs[i], next)
		if err != nil {
			return false, err
		}
		if math.Abs(angle) < 1e-9 || math.Abs(math.Pi-math.Abs(angle)) < 1e-9 {
			return false, &GeometryError{Reason: "collinear corners do not bound an area"}
		}
		s := 1
		if angle < 0 {
			s = -1
		}
		if sign == 0 {
			sign = s
		} else if s != sign {
			return false, nil
		}
	}
	return true, nil
}
