package wcsbuild

import "fmt"

// GeometryError reports a degenerate coordinate geometry that could not be
// repaired.
type GeometryError struct {
	File   string
	Reason string
}

// Error implements the error interface.
func (e *GeometryError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("wcs geometry: %s", e.Reason)
	}
	return fmt.Sprintf("file %s: wcs geometry: %s", e.File, e.Reason)
}
