// Package aggregate folds per-file facts into shared observation and plane
// records under deterministic per-field merge policies, producing one
// finalized observation per distinct observation identifier.
package aggregate

import (
	"time"

	"obsingest/pkg/caom"
)

// ObservationFacts are the observation-level scalars one file contributes.
// Nil or zero fields contribute nothing.
type ObservationFacts struct {
	Type        string
	Intent      caom.Intent
	Proposal    *caom.Proposal
	Target      *caom.Target
	Telescope   *caom.Telescope
	Instrument  *caom.Instrument
	Environment *caom.Environment
	// MetaRelease merges under the only-if-later policy.
	MetaRelease *time.Time
}

// ProvenanceFacts are the provenance scalars one file contributes to its
// plane. Inputs are resolved separately and merged as a set.
type ProvenanceFacts struct {
	Name         string
	Reference    string
	Version      string
	Project      string
	Producer     string
	RunID        string
	LastExecuted *time.Time
	Keywords     []string
}

// PlaneFacts are the plane-level scalars one file contributes.
type PlaneFacts struct {
	DataProductType caom.DataProductType
	Calibration     *caom.CalibrationLevel
	// MetaRelease and DataRelease merge under the only-if-later policy.
	MetaRelease *time.Time
	DataRelease *time.Time
	Provenance  ProvenanceFacts
	// SourceDensity merges under the zero-never-overwrites policy: a later
	// file reporting zero cannot blank out an earlier computed value.
	SourceDensity *float64
}

// PartFact describes one addressable section of an artifact and its
// coordinate summaries.
type PartFact struct {
	Name        string
	ProductType caom.ProductType
	Chunks      []*caom.Chunk
}

// ArtifactFact describes one artifact contribution: the archive URI, the
// local path it was staged from, and per-section overrides.
type ArtifactFact struct {
	URI           string
	LocalPath     string
	ProductType   caom.ProductType
	ReleaseType   caom.ReleaseType
	ContentType   string
	ContentLength int64
	Parts         []PartFact
	Custom        map[string]any
}

// Member is a resolved membership reference with the timing metadata
// needed to build composite time axes.
type Member struct {
	URI         caom.ObservationURI
	TimeBounds  caom.Interval
	ReleaseDate time.Time
}

// FileRecord is everything one file contributes to the aggregation: its
// place in the hierarchy plus observation, plane and artifact facts.
type FileRecord struct {
	File          string
	Collection    string
	ObservationID string
	ProductID     string
	Algorithm     caom.Algorithm

	Observation ObservationFacts
	Plane       PlaneFacts

	Members  []Member
	Inputs   []caom.PlaneURI
	Deferred []string

	Artifacts []ArtifactFact
	Custom    map[string]any
}

// mergeString is the default last-writer-wins policy for scalars.
func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// mergeLater implements the only-if-later policy for release dates.
func mergeLater(dst **time.Time, v *time.Time) {
	if v == nil {
		return
	}
	if *dst == nil || v.After(**dst) {
		t := *v
		*dst = &t
	}
}

// mergeNonZero implements the zero-never-overwrites policy.
func mergeNonZero(dst **float64, v *float64) {
	if v == nil {
		return
	}
	if *dst != nil && **dst != 0 && *v == 0 {
		return
	}
	f := *v
	*dst = &f
}

func mergeTime(dst **time.Time, v *time.Time) {
	if v != nil {
		t := *v
		*dst = &t
	}
}
