package caom

import (
	"fmt"
	"strings"
)

// Scheme is the URI scheme used for observation and plane references.
const Scheme = "caom"

// ObservationURI references an observation as caom:<collection>/<observationID>.
type ObservationURI struct {
	Collection    string `json:"collection"`
	ObservationID string `json:"observation_id"`
}

// NewObservationURI builds an observation reference, validating both parts.
func NewObservationURI(collection, observationID string) (ObservationURI, error) {
	if collection == "" || observationID == "" {
		return ObservationURI{}, fmt.Errorf("observation uri requires collection and observation id, got %q/%q", collection, observationID)
	}
	if strings.ContainsAny(collection, "/ ") || strings.ContainsAny(observationID, "/ ") {
		return ObservationURI{}, fmt.Errorf("observation uri parts must not contain '/' or spaces: %q/%q", collection, observationID)
	}
	return ObservationURI{Collection: collection, ObservationID: observationID}, nil
}

// ParseObservationURI parses caom:<collection>/<observationID>.
func ParseObservationURI(raw string) (ObservationURI, error) {
	rest, ok := strings.CutPrefix(raw, Scheme+":")
	if !ok {
		return ObservationURI{}, fmt.Errorf("observation uri %q missing %q scheme", raw, Scheme)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		return ObservationURI{}, fmt.Errorf("observation uri %q must have form %s:<collection>/<observationID>", raw, Scheme)
	}
	return NewObservationURI(parts[0], parts[1])
}

// String renders the caom:<collection>/<observationID> form.
func (u ObservationURI) String() string {
	return fmt.Sprintf("%s:%s/%s", Scheme, u.Collection, u.ObservationID)
}

// IsZero reports whether the reference is unset.
func (u ObservationURI) IsZero() bool { return u.Collection == "" && u.ObservationID == "" }

// FileID normalises a file reference into the archive's file identifier:
// base name, extension stripped at the first dot, lower case. Artifact URIs
// and provenance references for the same file normalise to the same id.
func FileID(name string) string {
	base := name
	if i := strings.LastIndexAny(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSpace(base)
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}
	return strings.ToLower(base)
}

// PlaneURI references a plane as caom:<collection>/<observationID>/<productID>.
type PlaneURI struct {
	Collection    string `json:"collection"`
	ObservationID string `json:"observation_id"`
	ProductID     string `json:"product_id"`
}

// NewPlaneURI builds a plane reference, validating all three parts.
func NewPlaneURI(collection, observationID, productID string) (PlaneURI, error) {
	obs, err := NewObservationURI(collection, observationID)
	if err != nil {
		return PlaneURI{}, err
	}
	if productID == "" || strings.ContainsAny(productID, "/ ") {
		return PlaneURI{}, fmt.Errorf("plane uri requires a product id without '/' or spaces, got %q", productID)
	}
	return PlaneURI{Collection: obs.Collection, ObservationID: obs.ObservationID, ProductID: productID}, nil
}

// ParsePlaneURI parses caom:<collection>/<observationID>/<productID>.
func ParsePlaneURI(raw string) (PlaneURI, error) {
	rest, ok := strings.CutPrefix(raw, Scheme+":")
	if !ok {
		return PlaneURI{}, fmt.Errorf("plane uri %q missing %q scheme", raw, Scheme)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return PlaneURI{}, fmt.Errorf("plane uri %q must have form %s:<collection>/<observationID>/<productID>", raw, Scheme)
	}
	return NewPlaneURI(parts[0], parts[1], parts[2])
}

// String renders the caom:<collection>/<observationID>/<productID> form.
func (u PlaneURI) String() string {
	return fmt.Sprintf("%s:%s/%s/%s", Scheme, u.Collection, u.ObservationID, u.ProductID)
}

// Observation returns the reference to the plane's parent observation.
func (u PlaneURI) Observation() ObservationURI {
	return ObservationURI{Collection: u.Collection, ObservationID: u.ObservationID}
}
