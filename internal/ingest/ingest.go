// Package ingest drives the per-file pipeline: header extraction, identity
// resolution, coordinate-system construction and reference resolution, then
// folds each file's contribution into the shared aggregation session.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"obsingest/internal/ingest/aggregate"
	"obsingest/internal/ingest/header"
	"obsingest/internal/ingest/identity"
	"obsingest/internal/ingest/resolve"
	"obsingest/internal/ingest/wcsbuild"
	"obsingest/internal/logging"
	"obsingest/pkg/caom"
)

// Telescope is the facility name written into every observation record.
const Telescope = "JCMT"

// File is one data product handed to the pipeline: its archive file name
// and the raw headers read from it.
type File struct {
	Name    string
	Primary header.Raw
	// Extension is the first-extension header, consulted for products
	// whose primary header is a bare container.
	Extension header.Raw
	// Coverage is the pre-extracted multi-order coverage summary shipped
	// alongside catalogue products, when one exists.
	Coverage *Coverage

	ContentType   string
	ContentLength int64
}

// Coverage summarizes the sky footprint of a catalogue product: the area
// its coverage map spans and the number of sources detected inside it.
type Coverage struct {
	AreaSqDeg float64
	Sources   int
}

// Builder runs the first pass of an ingestion batch. Files are added one at
// a time; Finish runs the deferred second pass and renders the finalized
// observations.
type Builder struct {
	resolver *resolve.Session
	session  *aggregate.Session
	log      logging.Logger
}

// NewBuilder wires a builder over a reference resolver and an aggregation
// session.
func NewBuilder(resolver *resolve.Session, session *aggregate.Session, log logging.Logger) *Builder {
	return &Builder{
		resolver: resolver,
		session:  session,
		log:      logging.OrNoop(log),
	}
}

// Add runs the per-file pipeline and folds the result into the session.
func (b *Builder) Add(ctx context.Context, file File) error {
	f, err := header.Extract(file.Name, file.Primary, file.Extension)
	if err != nil {
		return err
	}
	id, err := identity.Resolve(f)
	if err != nil {
		return err
	}

	strict := identity.StrictPipeline
	if f.Collection != identity.JCMT {
		strict = identity.StrictExternal
	}
	keywords, rejected, err := identity.InstrumentKeywords(strict, f)
	if err != nil {
		return err
	}
	for _, value := range rejected {
		b.log.Warn("dropping unrecognised instrument keyword",
			"file", file.Name, "value", value)
	}

	members, err := b.resolver.Members(ctx, f)
	if err != nil {
		return err
	}
	self, err := caom.NewPlaneURI(f.Collection, id.ObservationID, id.ProductID)
	if err != nil {
		return err
	}
	inputs, deferred, err := b.resolver.Inputs(ctx, f, self)
	if err != nil {
		return err
	}

	chunks, err := buildChunks(f, id)
	if err != nil {
		return err
	}
	artifact := artifactFact(file, f, id, chunks)

	rec := aggregate.FileRecord{
		File:          file.Name,
		Collection:    f.Collection,
		ObservationID: id.ObservationID,
		ProductID:     id.ProductID,
		Algorithm:     id.Algorithm,
		Observation:   observationFacts(f, keywords),
		Plane:         planeFacts(f, id),
		Members:       members,
		Inputs:        inputs,
		Deferred:      deferred,
		Artifacts:     []aggregate.ArtifactFact{artifact},
	}
	applyCoverage(&rec, file.Coverage)
	b.resolver.RecordOutput(file.Name, self)
	return b.session.Ingest(rec)
}

// applyCoverage folds a file's coverage summary into its contribution: the
// covered area and source count accumulate as derived metrics on the plane
// and on the artifact's section, and a non-empty footprint yields the
// plane's source density.
func applyCoverage(rec *aggregate.FileRecord, cov *Coverage) {
	if cov == nil {
		return
	}
	metrics := map[string]any{
		"area_sq_deg":  cov.AreaSqDeg,
		"source_count": cov.Sources,
	}
	rec.Custom = metrics
	for i := range rec.Artifacts {
		rec.Artifacts[i].Custom = metrics
	}
	if cov.AreaSqDeg > 0 {
		density := float64(cov.Sources) / cov.AreaSqDeg
		rec.Plane.SourceDensity = &density
	}
}

// Finish resolves the references deferred during the first pass and renders
// one finalized observation per observation identifier.
func (b *Builder) Finish(ctx context.Context) ([]*caom.Observation, error) {
	if err := b.resolver.SecondPass(ctx, b.session); err != nil {
		return nil, err
	}
	return b.session.Finalize()
}

func observationFacts(f *header.Fields, keywords []string) aggregate.ObservationFacts {
	facts := aggregate.ObservationFacts{
		Type:      f.ObsType,
		Intent:    identity.IntentFor(f.ObsType, f.Backend),
		Telescope: &caom.Telescope{Name: Telescope},
		Instrument: &caom.Instrument{
			Name:     identity.InstrumentName(f.Frontend, f.Backend, f.InBeam),
			Keywords: keywords,
		},
	}
	if f.ProposalID != "" {
		facts.Proposal = &caom.Proposal{
			ID:      f.ProposalID,
			PI:      f.ProposalPI,
			Title:   f.ProposalTitle,
			Project: f.Survey,
		}
	}
	if f.Object != "" {
		facts.Target = &caom.Target{
			Name:     identity.TargetName(f.Object),
			Standard: f.Standard,
			Moving:   f.Moving,
		}
	}
	if f.Humidity != nil || f.Elevation != nil || f.Tau225 != nil ||
		f.WVMTau != nil || f.Seeing != nil || f.AmbientTemp != nil {
		facts.Environment = &caom.Environment{
			Tau:           f.Tau225,
			WavelengthTau: f.WVMTau,
			Elevation:     f.Elevation,
			Humidity:      f.Humidity,
			Seeing:        f.Seeing,
			AmbientTemp:   f.AmbientTemp,
		}
	}
	if !f.ReleaseDate.IsZero() {
		release := f.ReleaseDate
		facts.MetaRelease = &release
	}
	return facts
}

func planeFacts(f *header.Fields, id identity.Identity) aggregate.PlaneFacts {
	calibration := id.Calibration
	facts := aggregate.PlaneFacts{
		DataProductType: id.DataProductType,
		Calibration:     &calibration,
		Provenance: aggregate.ProvenanceFacts{
			Name:         f.Recipe,
			Reference:    f.Reference,
			Version:      f.ProcVersion,
			Project:      f.Survey,
			Producer:     f.Producer,
			RunID:        identity.NormalizeRunID(f.RunID),
			LastExecuted: f.ProcDate,
		},
	}
	if !f.ReleaseDate.IsZero() {
		release := f.ReleaseDate
		facts.MetaRelease = &release
		facts.DataRelease = &release
	}
	return facts
}

// buildChunks renders the file's coordinate summaries: energy from the
// spectral configuration, position from the repaired corner footprint, and
// for simple observations a single time interval. Composite observations
// get their time axis attached at finalization, one sample per member.
func buildChunks(f *header.Fields, id identity.Identity) ([]*caom.Chunk, error) {
	chunk := &caom.Chunk{}

	if f.Heterodyne() {
		if f.RestFreqHz != nil && f.FreqSignal != nil {
			sub := wcsbuild.Subsystem{
				RestFreqHz: *f.RestFreqHz,
				Signal:     caom.Interval{Lower: f.FreqSignal.Lower, Upper: f.FreqSignal.Upper},
			}
			if f.SubsysNr != nil {
				sub.Number = *f.SubsysNr
			}
			if f.IFFreqHz != nil {
				sub.IFFreqHz = *f.IFFreqHz
			}
			if f.IFChanSpHz != nil {
				sub.IFChanSpHz = *f.IFChanSpHz
			}
			if doubleSideband(f) && f.FreqImage != nil {
				sub.Image = &caom.Interval{Lower: f.FreqImage.Lower, Upper: f.FreqImage.Upper}
			}
			hybrid := wcsbuild.MergeHybrids([]wcsbuild.Subsystem{sub})[0]
			chunk.Energy = hybrid.SpectralWCS(f.BWMode)
		}
	} else if f.FilterMicrons != nil {
		var bandwidth float64
		if f.BandwidthUm != nil {
			bandwidth = *f.BandwidthUm
		}
		energy, err := wcsbuild.ContinuumSpectralWCS(*f.FilterMicrons, bandwidth,
			fmt.Sprintf("%.0fum", *f.FilterMicrons))
		if err != nil {
			return nil, err
		}
		chunk.Energy = energy
	}

	if corners, ok := footprintCorners(f); ok {
		beam, err := beamFor(f)
		if err != nil {
			return nil, err
		}
		bounds, err := wcsbuild.RepairFootprint(corners, beam)
		if err != nil {
			return nil, err
		}
		chunk.Position = &caom.SpatialWCS{Bounds: bounds}
	}

	if !id.Algorithm.Composite() {
		bounds, err := wcsbuild.TimeBounds(f.DateObs, f.DateEnd)
		if err != nil {
			return nil, err
		}
		chunk.Time = &caom.TemporalWCS{Bounds: bounds}
	}

	if chunk.Energy == nil && chunk.Position == nil && chunk.Time == nil {
		return nil, nil
	}
	return []*caom.Chunk{chunk}, nil
}

func doubleSideband(f *header.Fields) bool {
	mode := strings.ToUpper(f.SidebandMode)
	return mode == "DSB" || mode == "2SB"
}

// footprintCorners returns the corner positions to repair into a footprint.
// Without explicit corners a fixed pointing collapses to four coincident
// corners, which the repair expands into a beam-sized box.
func footprintCorners(f *header.Fields) (wcsbuild.Corners, bool) {
	if f.Corners != nil {
		var corners wcsbuild.Corners
		for i, c := range f.Corners {
			corners[i] = caom.Point{RA: c[0], Dec: c[1]}
		}
		return corners, true
	}
	if f.RA != nil && f.Dec != nil {
		at := caom.Point{RA: *f.RA, Dec: *f.Dec}
		return wcsbuild.Corners{at, at, at, at}, true
	}
	return wcsbuild.Corners{}, false
}

func beamFor(f *header.Fields) (float64, error) {
	if f.Heterodyne() {
		if f.RestFreqHz == nil {
			return 0, &identity.IdentifierError{File: f.File, Reason: "heterodyne footprint needs a rest frequency for the beam size"}
		}
		return wcsbuild.BeamHeterodyne(*f.RestFreqHz / 1e9)
	}
	if f.FilterMicrons == nil {
		return 0, &identity.IdentifierError{File: f.File, Reason: "continuum footprint needs a filter wavelength for the beam size"}
	}
	return wcsbuild.BeamContinuum(*f.FilterMicrons)
}

func artifactFact(file File, f *header.Fields, id identity.Identity, chunks []*caom.Chunk) aggregate.ArtifactFact {
	fact := aggregate.ArtifactFact{
		URI:           "cadc:" + f.Collection + "/" + file.Name,
		LocalPath:     file.Name,
		ProductType:   artifactProductType(f, id),
		ReleaseType:   caom.ReleaseData,
		ContentType:   contentType(file),
		ContentLength: file.ContentLength,
	}
	if len(chunks) > 0 {
		fact.Parts = []aggregate.PartFact{{
			Name:        "0",
			ProductType: fact.ProductType,
			Chunks:      chunks,
		}}
	}
	return fact
}

// artifactProductType classifies the file within its plane: the science
// product itself, a part type declared in the header, or auxiliary.
func artifactProductType(f *header.Fields, id identity.Identity) caom.ProductType {
	if f.Product == id.ScienceProduct || strings.HasSuffix(f.Product, "-cat") {
		return caom.ProductScience
	}
	if t, ok := declaredProductTypes[strings.ToLower(f.ProdType)]; ok {
		return t
	}
	return caom.ProductAuxiliary
}

var declaredProductTypes = map[string]caom.ProductType{
	"science":     caom.ProductScience,
	"calibration": caom.ProductCalibration,
	"auxiliary":   caom.ProductAuxiliary,
	"noise":       caom.ProductNoise,
	"weight":      caom.ProductWeight,
	"preview":     caom.ProductPreview,
	"thumbnail":   caom.ProductThumbnail,
	"info":        caom.ProductInfo,
}

func contentType(file File) string {
	if file.ContentType != "" {
		return file.ContentType
	}
	switch {
	case strings.HasSuffix(file.Name, ".fits"), strings.HasSuffix(file.Name, ".fit"):
		return "application/fits"
	case strings.HasSuffix(file.Name, ".png"):
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
