package caom

import (
	"sort"
	"time"
)

// Proposal identifies the observing programme that requested the data.
type Proposal struct {
	ID      string `json:"id"`
	PI      string `json:"pi,omitempty"`
	Title   string `json:"title,omitempty"`
	Project string `json:"project,omitempty"`
}

// Target describes the observed source.
type Target struct {
	Name     string `json:"name"`
	Standard bool   `json:"standard,omitempty"`
	Moving   bool   `json:"moving,omitempty"`
}

// Telescope names the collecting facility.
type Telescope struct {
	Name string `json:"name"`
}

// Instrument names the frontend/backend combination and its configuration
// keywords.
type Instrument struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords,omitempty"`
}

// Environment captures site conditions averaged over the observation.
type Environment struct {
	Tau           *float64 `json:"tau,omitempty"`
	WavelengthTau *float64 `json:"wavelength_tau,omitempty"`
	Elevation     *float64 `json:"elevation,omitempty"`
	Humidity      *float64 `json:"humidity,omitempty"`
	Seeing        *float64 `json:"seeing,omitempty"`
	AmbientTemp   *float64 `json:"ambient_temp,omitempty"`
}

// Observation is the root archive record, identified by (collection,
// observationID). Composite observations carry a non-empty member set.
type Observation struct {
	Collection    string            `json:"collection"`
	ObservationID string            `json:"observation_id"`
	Algorithm     Algorithm         `json:"algorithm"`
	Type          string            `json:"type,omitempty"`
	Intent        Intent            `json:"intent,omitempty"`
	Proposal      *Proposal         `json:"proposal,omitempty"`
	Target        *Target           `json:"target,omitempty"`
	Telescope     *Telescope        `json:"telescope,omitempty"`
	Instrument    *Instrument       `json:"instrument,omitempty"`
	Environment   *Environment      `json:"environment,omitempty"`
	Members       []ObservationURI  `json:"members,omitempty"`
	MetaRelease   *time.Time        `json:"meta_release,omitempty"`
	Planes        map[string]*Plane `json:"planes"`
}

// NewObservation builds an empty observation record.
func NewObservation(collection, observationID string, algorithm Algorithm) *Observation {
	return &Observation{
		Collection:    collection,
		ObservationID: observationID,
		Algorithm:     algorithm,
		Planes:        map[string]*Plane{},
	}
}

// URI returns the observation's reference.
func (o *Observation) URI() ObservationURI {
	return ObservationURI{Collection: o.Collection, ObservationID: o.ObservationID}
}

// Plane returns the plane with the given product ID, creating it when absent.
func (o *Observation) Plane(productID string) *Plane {
	if o.Planes == nil {
		o.Planes = map[string]*Plane{}
	}
	p, ok := o.Planes[productID]
	if !ok {
		p = &Plane{ProductID: productID, Artifacts: map[string]*Artifact{}}
		o.Planes[productID] = p
	}
	return p
}

// ProductIDs returns the plane keys in sorted order.
func (o *Observation) ProductIDs() []string {
	ids := make([]string, 0, len(o.Planes))
	for id := range o.Planes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AddMember inserts a member reference, keeping the set sorted and unique.
func (o *Observation) AddMember(uri ObservationURI) {
	for _, m := range o.Members {
		if m == uri {
			return
		}
	}
	o.Members = append(o.Members, uri)
	sort.Slice(o.Members, func(i, j int) bool { return o.Members[i].String() < o.Members[j].String() })
}

// Provenance records how a plane's data were produced.
type Provenance struct {
	Name         string     `json:"name"`
	Reference    string     `json:"reference,omitempty"`
	Version      string     `json:"version,omitempty"`
	Project      string     `json:"project,omitempty"`
	Producer     string     `json:"producer,omitempty"`
	RunID        string     `json:"run_id,omitempty"`
	LastExecuted *time.Time `json:"last_executed,omitempty"`
	Inputs       []PlaneURI `json:"inputs,omitempty"`
	Keywords     []string   `json:"keywords,omitempty"`
}

// AddInput inserts a provenance input, keeping the set sorted and unique.
func (p *Provenance) AddInput(uri PlaneURI) {
	for _, in := range p.Inputs {
		if in == uri {
			return
		}
	}
	p.Inputs = append(p.Inputs, uri)
	sort.Slice(p.Inputs, func(i, j int) bool { return p.Inputs[i].String() < p.Inputs[j].String() })
}

// Plane is one data product within an observation, identified by product ID.
type Plane struct {
	ProductID       string               `json:"product_id"`
	Calibration     CalibrationLevel     `json:"calibration"`
	DataProductType DataProductType      `json:"data_product_type,omitempty"`
	MetaRelease     *time.Time           `json:"meta_release,omitempty"`
	DataRelease     *time.Time           `json:"data_release,omitempty"`
	Provenance      *Provenance          `json:"provenance,omitempty"`
	Metrics         *Metrics             `json:"metrics,omitempty"`
	Artifacts       map[string]*Artifact `json:"artifacts"`
}

// Metrics summarizes the derived science content of a plane.
type Metrics struct {
	SourceNumberDensity *float64 `json:"source_number_density,omitempty"`
}

// EnsureProvenance returns the plane's provenance record, creating it when
// absent.
func (p *Plane) EnsureProvenance() *Provenance {
	if p.Provenance == nil {
		p.Provenance = &Provenance{}
	}
	return p.Provenance
}

// Artifact returns the artifact with the given URI, creating it when absent.
func (p *Plane) Artifact(uri string) *Artifact {
	if p.Artifacts == nil {
		p.Artifacts = map[string]*Artifact{}
	}
	a, ok := p.Artifacts[uri]
	if !ok {
		a = &Artifact{URI: uri, Parts: map[string]*Part{}}
		p.Artifacts[uri] = a
	}
	return a
}

// ArtifactURIs returns the artifact keys in sorted order.
func (p *Plane) ArtifactURIs() []string {
	uris := make([]string, 0, len(p.Artifacts))
	for uri := range p.Artifacts {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// Artifact is one stored file belonging to a plane.
type Artifact struct {
	URI           string           `json:"uri"`
	ProductType   ProductType      `json:"product_type,omitempty"`
	ReleaseType   ReleaseType      `json:"release_type,omitempty"`
	ContentType   string           `json:"content_type,omitempty"`
	ContentLength int64            `json:"content_length,omitempty"`
	Parts         map[string]*Part `json:"parts"`
	// Custom carries per-artifact derived metrics, such as the covered
	// area and source count of a catalogue product.
	Custom map[string]any `json:"custom,omitempty"`
}

// Part returns the named part, creating it when absent.
func (a *Artifact) Part(name string) *Part {
	if a.Parts == nil {
		a.Parts = map[string]*Part{}
	}
	p, ok := a.Parts[name]
	if !ok {
		p = &Part{Name: name}
		a.Parts[name] = p
	}
	return p
}

// Part is one addressable section of an artifact, such as a FITS extension.
type Part struct {
	Name        string      `json:"name"`
	ProductType ProductType `json:"product_type,omitempty"`
	Chunks      []*Chunk    `json:"chunks,omitempty"`
}

// Chunk carries the coordinate-system summaries for a contiguous data block.
type Chunk struct {
	Position *SpatialWCS  `json:"position,omitempty"`
	Energy   *SpectralWCS `json:"energy,omitempty"`
	Time     *TemporalWCS `json:"time,omitempty"`
}
