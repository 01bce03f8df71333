// Package wcsbuild computes the spatial, spectral and temporal coordinate
// summaries attached to chunks, repairing degenerate footprint geometry and
// merging hybrid spectral subsystems.
package wcsbuild

import (
	"math"

	"obsingest/pkg/caom"
)

// vec is a unit vector on the celestial sphere.
type vec struct {
	x, y, z float64
}

func unitVec(p caom.Point) vec {
	ra := p.RA * math.Pi / 180
	dec := p.Dec * math.Pi / 180
	return vec{
		x: math.Cos(dec) * math.Cos(ra),
		y: math.Cos(dec) * math.Sin(ra),
		z: math.Sin(dec),
	}
}

func (v vec) dot(o vec) float64 { return v.x*o.x + v.y*o.y + v.z*o.z }

func (v vec) cross(o vec) vec {
	return vec{
		x: v.y*o.z - v.z*o.y,
		y: v.z*o.x - v.x*o.z,
		z: v.x*o.y - v.y*o.x,
	}
}

func (v vec) scale(s float64) vec { return vec{x: v.x * s, y: v.y * s, z: v.z * s} }

func (v vec) sub(o vec) vec { return vec{x: v.x - o.x, y: v.y - o.y, z: v.z - o.z} }

func (v vec) norm() float64 { return math.Sqrt(v.dot(v)) }

// includedAngle returns the signed interior angle at cur between the arcs
// toward prev and next, positive for a counter-clockwise turn as seen from
// outside the sphere. Coincident neighbours make the angle undefined.
func includedAngle(prev, cur, next vec) (float64, error) {
	u := prev.sub(cur.scale(prev.dot(cur)))
	w := next.sub(cur.scale(next.dot(cur)))
	if u.norm() < 1e-12 || w.norm() < 1e-12 {
		return 0, &GeometryError{Reason: "included angle undefined for coincident vertices"}
	}
	return math.Atan2(u.cross(w).dot(cur), u.dot(w)), nil
}
