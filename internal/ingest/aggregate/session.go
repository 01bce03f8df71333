package aggregate

import (
	"fmt"
	"sort"
	"time"

	"obsingest/internal/ingest/wcsbuild"
	"obsingest/internal/logging"
	"obsingest/pkg/caom"
)

// Session accumulates one ingestion run's file contributions. It is rebuilt
// from scratch on every run and is not safe for concurrent use.
type Session struct {
	log          logging.Logger
	observations map[string]*obsState
	order        []string
}

type obsState struct {
	collection    string
	observationID string
	algorithm     caom.Algorithm
	facts         ObservationFacts
	members       map[caom.ObservationURI]Member
	planes        map[string]*planeState
	planeOrder    []string
}

type planeState struct {
	productID string
	facts     PlaneFacts
	inputset  map[caom.PlaneURI]struct{}
	fileset   map[string]struct{}
	uriDict   map[string]string
	uriOrder  []string
	custom    map[string]any
	sections  map[string]*sectionState
}

type sectionState struct {
	fact   ArtifactFact
	custom map[string]any
}

// NewSession builds an empty aggregation session.
func NewSession(log logging.Logger) *Session {
	return &Session{
		log:          logging.OrNoop(log),
		observations: map[string]*obsState{},
	}
}

// Ingest folds one file's contribution into the session. Observation and
// plane entries are created on first reference and mutated by every
// subsequent file naming them.
func (s *Session) Ingest(rec FileRecord) error {
	if rec.ObservationID == "" || rec.ProductID == "" {
		return fmt.Errorf("file %s: record lacks observation or product id", rec.File)
	}
	obs, ok := s.observations[rec.ObservationID]
	if !ok {
		obs = &obsState{
			collection:    rec.Collection,
			observationID: rec.ObservationID,
			algorithm:     rec.Algorithm,
			members:       map[caom.ObservationURI]Member{},
			planes:        map[string]*planeState{},
		}
		s.observations[rec.ObservationID] = obs
		s.order = append(s.order, rec.ObservationID)
	} else {
		if obs.collection != rec.Collection {
			return fmt.Errorf("file %s: observation %s claimed by collections %s and %s",
				rec.File, rec.ObservationID, obs.collection, rec.Collection)
		}
		if rec.Algorithm != "" && obs.algorithm != rec.Algorithm {
			return fmt.Errorf("file %s: observation %s claimed by algorithms %s and %s",
				rec.File, rec.ObservationID, obs.algorithm, rec.Algorithm)
		}
	}
	mergeObservationFacts(&obs.facts, rec.Observation)
	for _, m := range rec.Members {
		obs.members[m.URI] = m
	}

	plane := obs.plane(rec.ProductID)
	mergePlaneFacts(&plane.facts, rec.Plane)
	for _, in := range rec.Inputs {
		plane.inputset[in] = struct{}{}
	}
	for _, fileID := range rec.Deferred {
		plane.fileset[fileID] = struct{}{}
	}
	for k, v := range rec.Custom {
		plane.custom[k] = v
	}
	for _, art := range rec.Artifacts {
		plane.mergeArtifact(art)
	}
	return nil
}

func (o *obsState) plane(productID string) *planeState {
	p, ok := o.planes[productID]
	if !ok {
		p = &planeState{
			productID: productID,
			inputset:  map[caom.PlaneURI]struct{}{},
			fileset:   map[string]struct{}{},
			uriDict:   map[string]string{},
			custom:    map[string]any{},
			sections:  map[string]*sectionState{},
		}
		o.planes[productID] = p
		o.planeOrder = append(o.planeOrder, productID)
	}
	return p
}

// mergeArtifact lazily creates the artifact's section and merges the new
// contribution into it, last writer wins per field.
func (p *planeState) mergeArtifact(art ArtifactFact) {
	if art.URI == "" {
		return
	}
	if _, seen := p.uriDict[art.URI]; !seen {
		p.uriOrder = append(p.uriOrder, art.URI)
	}
	if art.LocalPath != "" || p.uriDict[art.URI] == "" {
		p.uriDict[art.URI] = art.LocalPath
	}
	sec, ok := p.sections[art.URI]
	if !ok {
		sec = &sectionState{fact: ArtifactFact{URI: art.URI}, custom: map[string]any{}}
		p.sections[art.URI] = sec
	}
	if art.ProductType != "" {
		sec.fact.ProductType = art.ProductType
	}
	if art.ReleaseType != "" {
		sec.fact.ReleaseType = art.ReleaseType
	}
	mergeString(&sec.fact.ContentType, art.ContentType)
	if art.ContentLength > 0 {
		sec.fact.ContentLength = art.ContentLength
	}
	for _, part := range art.Parts {
		sec.mergePart(part)
	}
	for k, v := range art.Custom {
		sec.custom[k] = v
	}
}

func (s *sectionState) mergePart(part PartFact) {
	for i := range s.fact.Parts {
		if s.fact.Parts[i].Name == part.Name {
			if part.ProductType != "" {
				s.fact.Parts[i].ProductType = part.ProductType
			}
			if len(part.Chunks) > 0 {
				s.fact.Parts[i].Chunks = part.Chunks
			}
			return
		}
	}
	s.fact.Parts = append(s.fact.Parts, part)
}

func mergeObservationFacts(dst *ObservationFacts, src ObservationFacts) {
	mergeString(&dst.Type, src.Type)
	if src.Intent != "" {
		dst.Intent = src.Intent
	}
	if src.Proposal != nil {
		p := *src.Proposal
		dst.Proposal = &p
	}
	if src.Target != nil {
		t := *src.Target
		dst.Target = &t
	}
	if src.Telescope != nil {
		t := *src.Telescope
		dst.Telescope = &t
	}
	if src.Instrument != nil {
		i := *src.Instrument
		i.Keywords = append([]string(nil), src.Instrument.Keywords...)
		dst.Instrument = &i
	}
	if src.Environment != nil {
		e := *src.Environment
		dst.Environment = &e
	}
	mergeLater(&dst.MetaRelease, src.MetaRelease)
}

func mergePlaneFacts(dst *PlaneFacts, src PlaneFacts) {
	if src.DataProductType != "" {
		dst.DataProductType = src.DataProductType
	}
	if src.Calibration != nil {
		c := *src.Calibration
		dst.Calibration = &c
	}
	mergeLater(&dst.MetaRelease, src.MetaRelease)
	mergeLater(&dst.DataRelease, src.DataRelease)
	mergeString(&dst.Provenance.Name, src.Provenance.Name)
	mergeString(&dst.Provenance.Reference, src.Provenance.Reference)
	mergeString(&dst.Provenance.Version, src.Provenance.Version)
	mergeString(&dst.Provenance.Project, src.Provenance.Project)
	mergeString(&dst.Provenance.Producer, src.Provenance.Producer)
	mergeString(&dst.Provenance.RunID, src.Provenance.RunID)
	mergeTime(&dst.Provenance.LastExecuted, src.Provenance.LastExecuted)
	if len(src.Provenance.Keywords) > 0 {
		dst.Provenance.Keywords = append([]string(nil), src.Provenance.Keywords...)
	}
	mergeNonZero(&dst.SourceDensity, src.SourceDensity)
}

// ObservationIDs returns the identifiers of every observation touched, in
// first-seen order.
func (s *Session) ObservationIDs() []string {
	return append([]string(nil), s.order...)
}

// PendingInputs returns every deferred input file identifier still awaiting
// second-pass resolution, keyed by plane.
func (s *Session) PendingInputs() map[caom.PlaneURI][]string {
	pending := map[caom.PlaneURI][]string{}
	for _, obsID := range s.order {
		obs := s.observations[obsID]
		for _, productID := range obs.planeOrder {
			plane := obs.planes[productID]
			if len(plane.fileset) == 0 {
				continue
			}
			uri := caom.PlaneURI{Collection: obs.collection, ObservationID: obsID, ProductID: productID}
			files := make([]string, 0, len(plane.fileset))
			for f := range plane.fileset {
				files = append(files, f)
			}
			sort.Strings(files)
			pending[uri] = files
		}
	}
	return pending
}

// ResolveInput moves one deferred file identifier into the plane's resolved
// input set. The identifier is consumed even when resolution failed so a
// second pass never repeats work.
func (s *Session) ResolveInput(plane caom.PlaneURI, fileID string, input caom.PlaneURI) {
	obs, ok := s.observations[plane.ObservationID]
	if !ok {
		return
	}
	p, ok := obs.planes[plane.ProductID]
	if !ok {
		return
	}
	delete(p.fileset, fileID)
	if input != (caom.PlaneURI{}) {
		if input == plane {
			s.log.Warn("plane lists itself as its own input", "plane", plane.String(), "file", fileID)
			return
		}
		p.inputset[input] = struct{}{}
	}
}

// Custom returns a plane's accumulated derived metrics.
func (s *Session) Custom(observationID, productID string) map[string]any {
	obs, ok := s.observations[observationID]
	if !ok {
		return nil
	}
	plane, ok := obs.planes[productID]
	if !ok {
		return nil
	}
	return plane.custom
}

// Finalize validates every plane's synchronization eligibility and renders
// the accumulated state into archive records, one per observation, in
// first-seen order. Member and provenance-input scalar attributes are
// rewritten from the resolved sets, sorted for determinism; empty sets
// remove the attribute rather than writing it empty.
func (s *Session) Finalize() ([]*caom.Observation, error) {
	results := make([]*caom.Observation, 0, len(s.order))
	for _, obsID := range s.order {
		state := s.observations[obsID]
		obs, err := state.render(s.log)
		if err != nil {
			return nil, err
		}
		results = append(results, obs)
	}
	return results, nil
}

func (o *obsState) render(log logging.Logger) (*caom.Observation, error) {
	if o.algorithm == "" {
		return nil, fmt.Errorf("observation %s: no grouping algorithm was recorded", o.observationID)
	}
	obs := caom.NewObservation(o.collection, o.observationID, o.algorithm)
	obs.Type = o.facts.Type
	obs.Intent = o.facts.Intent
	obs.Proposal = o.facts.Proposal
	obs.Target = o.facts.Target
	obs.Telescope = o.facts.Telescope
	obs.Instrument = o.facts.Instrument
	obs.Environment = o.facts.Environment
	obs.MetaRelease = o.facts.MetaRelease

	memberURIs := make([]caom.ObservationURI, 0, len(o.members))
	samples := make([]caom.Interval, 0, len(o.members))
	var latestRelease *time.Time
	for uri, m := range o.members {
		memberURIs = append(memberURIs, uri)
		if m.TimeBounds != (caom.Interval{}) {
			samples = append(samples, m.TimeBounds)
		}
		if !m.ReleaseDate.IsZero() {
			mergeLater(&latestRelease, &m.ReleaseDate)
		}
	}
	sort.Slice(memberURIs, func(i, j int) bool { return memberURIs[i].String() < memberURIs[j].String() })
	sort.Slice(samples, func(i, j int) bool { return samples[i].Lower < samples[j].Lower })
	if o.algorithm.Composite() {
		obs.Members = memberURIs
		mergeLater(&obs.MetaRelease, latestRelease)
	} else if len(memberURIs) > 0 {
		log.Warn("simple observation carries member references, dropping them",
			"observation", o.observationID, "members", len(memberURIs))
	}

	for _, productID := range o.planeOrder {
		state := o.planes[productID]
		plane, err := state.render(o, latestRelease)
		if err != nil {
			return nil, err
		}
		obs.Planes[productID] = plane
	}

	if o.algorithm.Composite() && len(samples) > 0 {
		wcsbuild.AttachCompositeTime(obs, samples)
	}
	return obs, nil
}

func (p *planeState) render(o *obsState, memberRelease *time.Time) (*caom.Plane, error) {
	if p.facts.Calibration == nil {
		return nil, fmt.Errorf("observation %s plane %s: no calibration level was recorded", o.observationID, p.productID)
	}
	if p.facts.Provenance.RunID == "" {
		return nil, fmt.Errorf("observation %s plane %s: no provenance run id was recorded", o.observationID, p.productID)
	}
	if len(p.fileset) > 0 {
		return nil, fmt.Errorf("observation %s plane %s: %d provenance inputs are still unresolved", o.observationID, p.productID, len(p.fileset))
	}
	plane := &caom.Plane{
		ProductID:       p.productID,
		Calibration:     *p.facts.Calibration,
		DataProductType: p.facts.DataProductType,
		MetaRelease:     p.facts.MetaRelease,
		DataRelease:     p.facts.DataRelease,
		Artifacts:       map[string]*caom.Artifact{},
	}
	mergeLater(&plane.MetaRelease, memberRelease)
	mergeLater(&plane.DataRelease, memberRelease)
	if p.facts.SourceDensity != nil {
		density := *p.facts.SourceDensity
		plane.Metrics = &caom.Metrics{SourceNumberDensity: &density}
	}

	prov := &caom.Provenance{
		Name:         p.facts.Provenance.Name,
		Reference:    p.facts.Provenance.Reference,
		Version:      p.facts.Provenance.Version,
		Project:      p.facts.Provenance.Project,
		Producer:     p.facts.Provenance.Producer,
		RunID:        p.facts.Provenance.RunID,
		LastExecuted: p.facts.Provenance.LastExecuted,
		Keywords:     p.facts.Provenance.Keywords,
	}
	for in := range p.inputset {
		prov.AddInput(in)
	}
	plane.Provenance = prov

	for _, uri := range p.uriOrder {
		sec := p.sections[uri]
		artifact := &caom.Artifact{
			URI:           uri,
			ProductType:   sec.fact.ProductType,
			ReleaseType:   sec.fact.ReleaseType,
			ContentType:   sec.fact.ContentType,
			ContentLength: sec.fact.ContentLength,
			Parts:         map[string]*caom.Part{},
		}
		for _, part := range sec.fact.Parts {
			artifact.Parts[part.Name] = &caom.Part{
				Name:        part.Name,
				ProductType: part.ProductType,
				Chunks:      part.Chunks,
			}
		}
		if len(sec.custom) > 0 {
			artifact.Custom = make(map[string]any, len(sec.custom))
			for k, v := range sec.custom {
				artifact.Custom[k] = v
			}
		}
		plane.Artifacts[uri] = artifact
	}
	return plane, nil
}
