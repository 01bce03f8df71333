package ingest

import (
	"context"
	"math"
	"testing"

	"obsingest/internal/ingest/aggregate"
	"obsingest/internal/ingest/header"
	"obsingest/internal/ingest/resolve"
	"obsingest/pkg/caom"
)

type emptySource struct{}

func (emptySource) RawObservation(context.Context, string, string) (resolve.RawObservation, bool, error) {
	return resolve.RawObservation{}, false, nil
}

func (emptySource) PlaneForFile(context.Context, string) (caom.PlaneURI, bool, error) {
	return caom.PlaneURI{}, false, nil
}

func newBuilder() *Builder {
	return NewBuilder(resolve.NewSession(emptySource{}, nil), aggregate.NewSession(nil), nil)
}

func continuumHeader(obsid string, filter float64) header.Raw {
	return header.Raw{
		header.KeyInstream: "JCMT",
		header.KeyObsID:    obsid,
		header.KeyBackend:  "SCUBA-2",
		header.KeyObsType:  "science",
		header.KeyDateObs:  "2010-03-11T06:00:00",
		header.KeyDateEnd:  "2010-03-11T06:30:00",
		header.KeyRelease:  "2011-05-01",
		header.KeyObject:   "orion  kl",
		header.KeyProduct:  "reduced",
		header.KeyRunID:    "12345",
		header.KeyFilter:   filter,
		header.KeyObsRA:    10.0,
		header.KeyObsDec:   20.0,
	}
}

func TestAddContinuumFile(t *testing.T) {
	b := newBuilder()
	hdr := continuumHeader("scuba2_00022_20100311T055528", 850.0)
	hdr[header.KeyBandwidth] = 85.0
	if err := b.Add(context.Background(), File{Name: "jcmts_reduced_850.fits", Primary: hdr}); err != nil {
		t.Fatalf("add: %v", err)
	}
	observations, err := b.Finish(context.Background())
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if len(observations) != 1 {
		t.Fatalf("expected one observation, got %d", len(observations))
	}
	obs := observations[0]
	if obs.ObservationID != "scuba2_00022_20100311T055528" || obs.Algorithm != caom.AlgorithmExposure {
		t.Fatalf("unexpected identity %s %s", obs.ObservationID, obs.Algorithm)
	}
	if obs.Target == nil || obs.Target.Name != "ORION KL" {
		t.Fatalf("unexpected target %+v", obs.Target)
	}
	if obs.Intent != caom.IntentScience {
		t.Fatalf("unexpected intent %s", obs.Intent)
	}

	plane, ok := obs.Planes["reduced-850um"]
	if !ok {
		t.Fatalf("derived plane missing, have %v", obs.ProductIDs())
	}
	if plane.Calibration != caom.CalibrationCalibrated {
		t.Fatalf("unexpected calibration %d", plane.Calibration)
	}
	if plane.Provenance == nil || plane.Provenance.RunID != "jac-000012345" {
		t.Fatalf("unexpected provenance %+v", plane.Provenance)
	}

	artifact := plane.Artifacts["cadc:JCMT/jcmts_reduced_850.fits"]
	if artifact == nil {
		t.Fatalf("artifact missing, have %v", plane.ArtifactURIs())
	}
	chunks := artifact.Parts["0"].Chunks
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
	chunk := chunks[0]

	if chunk.Energy == nil || len(chunk.Energy.Ranges) != 1 {
		t.Fatalf("unexpected energy %+v", chunk.Energy)
	}
	r := chunk.Energy.Ranges[0]
	if math.Abs(r.Lower-(850-42.5)*1e-6) > 1e-12 || math.Abs(r.Upper-(850+42.5)*1e-6) > 1e-12 {
		t.Fatalf("unexpected filter range %+v", r)
	}

	if chunk.Position == nil || len(chunk.Position.Bounds.Points) != 4 {
		t.Fatalf("unexpected position %+v", chunk.Position)
	}
	var sumRA, sumDec float64
	for _, p := range chunk.Position.Bounds.Points {
		sumRA += p.RA
		sumDec += p.Dec
	}
	if math.Abs(sumRA/4-10) > 0.01 || math.Abs(sumDec/4-20) > 0.01 {
		t.Fatalf("footprint not centred on the pointing: %+v", chunk.Position.Bounds)
	}

	if chunk.Time == nil || chunk.Time.Bounds.Lower >= chunk.Time.Bounds.Upper {
		t.Fatalf("unexpected time axis %+v", chunk.Time)
	}
}

func TestCoverageSummaryYieldsPlaneMetrics(t *testing.T) {
	b := newBuilder()
	hdr := continuumHeader("scuba2_00022_20100311T055528", 850.0)
	first := File{
		Name:     "jcmts_extent_850.fits",
		Primary:  hdr,
		Coverage: &Coverage{AreaSqDeg: 2.0, Sources: 10},
	}
	if err := b.Add(context.Background(), first); err != nil {
		t.Fatalf("add: %v", err)
	}
	// An empty catalogue for the same plane reports a zero density, which
	// must not blank out the value already computed.
	second := File{
		Name:     "jcmts_extent_850_empty.fits",
		Primary:  continuumHeader("scuba2_00022_20100311T055528", 850.0),
		Coverage: &Coverage{AreaSqDeg: 3.0, Sources: 0},
	}
	if err := b.Add(context.Background(), second); err != nil {
		t.Fatalf("add: %v", err)
	}

	observations, err := b.Finish(context.Background())
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	plane := observations[0].Planes["reduced-850um"]
	if plane == nil {
		t.Fatal("plane missing")
	}
	if plane.Metrics == nil || plane.Metrics.SourceNumberDensity == nil {
		t.Fatal("no source density on finalized plane")
	}
	if got := *plane.Metrics.SourceNumberDensity; got != 5.0 {
		t.Fatalf("unexpected source density %v", got)
	}

	var withSources *caom.Artifact
	for _, artifact := range plane.Artifacts {
		if artifact.Custom["source_count"] == 10 {
			withSources = artifact
		}
	}
	if withSources == nil {
		t.Fatalf("no artifact carries the catalogue metrics: %v", plane.Artifacts)
	}
	if withSources.Custom["area_sq_deg"] != 2.0 {
		t.Fatalf("unexpected artifact metrics %v", withSources.Custom)
	}
}

func TestAddHeterodyneFile(t *testing.T) {
	b := newBuilder()
	hdr := header.Raw{
		header.KeyInstream:   "JCMT",
		header.KeyObsID:      "acsis_00033_20100311T063000",
		header.KeyBackend:    "ACSIS",
		header.KeyInstrument: "HARP",
		header.KeyObsType:    "science",
		header.KeyDateObs:    "2010-03-11T06:30:00",
		header.KeyDateEnd:    "2010-03-11T07:00:00",
		header.KeyProduct:    "reduced",
		header.KeyRunID:      "67890",
		header.KeyRestFreq:   345.796e9,
		header.KeyBWMode:     "1000MHzx2048",
		header.KeySubsysNr:   1,
		header.KeySideband:   "LSB",
		header.KeySBMode:     "DSB",
		header.KeyFreqLow:    340.0e9,
		header.KeyFreqHigh:   341.0e9,
		header.KeyImageLow:   350.0e9,
		header.KeyImageHigh:  351.0e9,
	}
	if err := b.Add(context.Background(), File{Name: "a20100311_00033_01_reduced001.sdf", Primary: hdr}); err != nil {
		t.Fatalf("add: %v", err)
	}
	observations, err := b.Finish(context.Background())
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	obs := observations[0]
	plane, ok := obs.Planes["reduced-345796MHz-1000MHzx2048-1"]
	if !ok {
		t.Fatalf("derived plane missing, have %v", obs.ProductIDs())
	}
	if obs.Instrument == nil || obs.Instrument.Name != "HARP-ACSIS" {
		t.Fatalf("unexpected instrument %+v", obs.Instrument)
	}
	artifact := plane.Artifacts["cadc:JCMT/a20100311_00033_01_reduced001.sdf"]
	chunk := artifact.Parts["0"].Chunks[0]
	if chunk.Energy == nil || len(chunk.Energy.Ranges) != 2 {
		t.Fatalf("double sideband should carry two ranges: %+v", chunk.Energy)
	}
	if chunk.Energy.RestFrequencyHz != 345.796e9 {
		t.Fatalf("unexpected rest frequency %v", chunk.Energy.RestFrequencyHz)
	}
}

func TestDeferredInputResolvedOnFinish(t *testing.T) {
	b := newBuilder()

	consumer := continuumHeader("scuba2_00022_20100311T055528", 850.0)
	consumer[header.KeyPrevCount] = 1
	consumer[header.PrefixPrev+"1"] = "jcmts_reduced_450.fits"
	if err := b.Add(context.Background(), File{Name: "jcmts_reduced_850.fits", Primary: consumer}); err != nil {
		t.Fatalf("add consumer: %v", err)
	}

	producer := continuumHeader("scuba2_00021_20100311T045528", 450.0)
	if err := b.Add(context.Background(), File{Name: "jcmts_reduced_450.fits", Primary: producer}); err != nil {
		t.Fatalf("add producer: %v", err)
	}

	observations, err := b.Finish(context.Background())
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	var consumerPlane *caom.Plane
	for _, obs := range observations {
		if p, ok := obs.Planes["reduced-850um"]; ok && obs.ObservationID == "scuba2_00022_20100311T055528" {
			consumerPlane = p
		}
	}
	if consumerPlane == nil {
		t.Fatal("consumer plane missing")
	}
	want := caom.PlaneURI{Collection: "JCMT", ObservationID: "scuba2_00021_20100311T045528", ProductID: "reduced-450um"}
	inputs := consumerPlane.Provenance.Inputs
	if len(inputs) != 1 || inputs[0] != want {
		t.Fatalf("deferred input not resolved: %v", inputs)
	}
}
