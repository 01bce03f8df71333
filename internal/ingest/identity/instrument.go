package identity

import (
	"fmt"
	"strings"

	"obsingest/internal/ingest/header"
	"obsingest/pkg/caom"
)

// Strictness selects how instrument keyword validation reacts to unknown
// values.
type Strictness int

// Keyword validation strictness levels.
const (
	// StrictRaw rejects any unknown keyword value.
	StrictRaw Strictness = iota
	// StrictPipeline drops unknown values and reports them.
	StrictPipeline
	// StrictExternal accepts anything, reporting nothing.
	StrictExternal
)

var permittedSidebands = map[string]bool{"LSB": true, "USB": true}

var permittedSidebandModes = map[string]bool{"SSB": true, "DSB": true, "2SB": true}

var permittedInBeam = map[string]bool{"POL": true, "POL2": true, "FTS2": true, "SHUTTER": true}

// InstrumentName joins the in-beam components, frontend and backend into
// the archive instrument name, e.g. HARP-ACSIS or POL2-SCUBA-2.
func InstrumentName(frontend, backend string, inBeam []string) string {
	var parts []string
	for _, component := range inBeam {
		switch {
		case strings.HasPrefix(component, "POL"):
			if frontend == "SCUBA-2" {
				parts = append(parts, "POL2")
			} else {
				parts = append(parts, "POL")
			}
		case strings.HasPrefix(component, "FTS"):
			parts = append(parts, "FTS2")
		}
	}
	if frontend != "" {
		parts = append(parts, frontend)
	}
	if backend != "" && backend != frontend {
		parts = append(parts, backend)
	}
	return strings.Join(parts, "-")
}

// InstrumentKeywords validates and collects the instrument configuration
// keywords for a file: sideband, sideband mode, switching mode and in-beam
// components. Unknown values fail at StrictRaw, are dropped and reported at
// StrictPipeline, and pass through at StrictExternal. Historical headers
// with a blank sideband mode are repaired to DSB for every frontend except
// RXB3.
func InstrumentKeywords(strict Strictness, f *header.Fields) (keywords, rejected []string, err error) {
	type candidate struct {
		field     string
		value     string
		permitted map[string]bool
	}
	var candidates []candidate
	if f.Heterodyne() {
		sideband := strings.ToUpper(f.Sideband)
		if sideband != "" {
			candidates = append(candidates, candidate{"sideband", sideband, permittedSidebands})
		}
		mode := strings.ToUpper(f.SidebandMode)
		if mode == "" && f.Frontend != "RXB3" {
			mode = "DSB"
		}
		if mode != "" {
			candidates = append(candidates, candidate{"sideband mode", mode, permittedSidebandModes})
		}
	}
	if f.SwitchMode != "" {
		candidates = append(candidates, candidate{"switching mode", strings.ToUpper(f.SwitchMode), nil})
	}
	for _, component := range f.InBeam {
		candidates = append(candidates, candidate{"in-beam component", component, permittedInBeam})
	}

	for _, c := range candidates {
		if c.permitted == nil || c.permitted[c.value] || strict == StrictExternal {
			keywords = append(keywords, c.value)
			continue
		}
		if strict == StrictRaw {
			return nil, nil, &IdentifierError{File: f.File, Reason: fmt.Sprintf("%s %q is not permitted", c.field, c.value)}
		}
		rejected = append(rejected, c.value)
	}
	return keywords, rejected, nil
}

// IntentFor classifies an observation as science or calibration. SCUBA-2
// pointings are retained as science because the survey pipelines consume
// them directly.
func IntentFor(obsType, backend string) caom.Intent {
	if obsType == "science" || (obsType == "pointing" && backend == "SCUBA-2") {
		return caom.IntentScience
	}
	return caom.IntentCalibration
}

// TargetName normalises an object name: upper case with internal
// whitespace collapsed to single spaces.
func TargetName(object string) string {
	return strings.Join(strings.Fields(strings.ToUpper(object)), " ")
}
