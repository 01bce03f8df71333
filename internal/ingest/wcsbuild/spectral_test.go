package wcsbuild

import (
	"math"
	"testing"
	"time"

	"obsingest/pkg/caom"
)

func TestMergeHybridsUnionsBounds(t *testing.T) {
	subsystems := []Subsystem{
		{Number: 1, RestFreqHz: 230e9, IFFreqHz: 2e9, IFChanSpHz: 1e6, Signal: caom.Interval{Lower: 100, Upper: 200}},
		{Number: 2, RestFreqHz: 230e9, IFFreqHz: 2e9, IFChanSpHz: 1e6, Signal: caom.Interval{Lower: 150, Upper: 250}},
	}
	merged := MergeHybrids(subsystems)
	if len(merged) != 1 {
		t.Fatalf("expected one hybrid group, got %d", len(merged))
	}
	h := merged[0]
	if h.Signal.Lower != 100 || h.Signal.Upper != 250 {
		t.Fatalf("unexpected bounds %+v", h.Signal)
	}
	if len(h.Members) != 2 || h.Members[0] != 1 || h.Members[1] != 2 {
		t.Fatalf("unexpected members %v", h.Members)
	}
}

func TestMergeHybridsKeepsDistinctTuningsApart(t *testing.T) {
	subsystems := []Subsystem{
		{Number: 2, RestFreqHz: 230e9, IFFreqHz: 2e9, IFChanSpHz: 1e6, Signal: caom.Interval{Lower: 100, Upper: 200}},
		{Number: 1, RestFreqHz: 345e9, IFFreqHz: 2e9, IFChanSpHz: 1e6, Signal: caom.Interval{Lower: 300, Upper: 400}},
	}
	merged := MergeHybrids(subsystems)
	if len(merged) != 2 {
		t.Fatalf("expected two groups, got %d", len(merged))
	}
	if merged[0].Members[0] != 1 {
		t.Fatalf("groups not ordered by lowest member: %v", merged)
	}
}

func TestHybridSpectralWCSDoubleSideband(t *testing.T) {
	image := caom.Interval{Lower: 300e9, Upper: 301e9}
	h := Hybrid{
		Key:    HybridKey{RestFreqHz: 230.538e9, IFChanSpHz: 1e6},
		Signal: caom.Interval{Lower: 230e9, Upper: 231e9},
		Image:  &image,
	}
	wcs := h.SpectralWCS("CO 2-1")
	if len(wcs.Ranges) != 2 {
		t.Fatalf("double sideband should keep two disjoint ranges, got %v", wcs.Ranges)
	}
	if wcs.Ranges[0].Upper > wcs.Ranges[1].Lower {
		t.Fatalf("sideband ranges overlap: %v", wcs.Ranges)
	}
	wantRP := math.Abs(230.5e9 / 1e6)
	if math.Abs(wcs.ResolvingPower-wantRP) > 1e-6*wantRP {
		t.Fatalf("resolving power %v, want %v", wcs.ResolvingPower, wantRP)
	}
	if wcs.BandpassName != "CO 2-1" {
		t.Fatalf("unexpected bandpass %q", wcs.BandpassName)
	}
}

func TestHybridSpectralWCSOverlappingSidebandsCollapse(t *testing.T) {
	image := caom.Interval{Lower: 230.5e9, Upper: 232e9}
	h := Hybrid{
		Signal: caom.Interval{Lower: 230e9, Upper: 231e9},
		Image:  &image,
	}
	wcs := h.SpectralWCS("")
	if len(wcs.Ranges) != 1 {
		t.Fatalf("overlapping sidebands should collapse, got %v", wcs.Ranges)
	}
	if wcs.Ranges[0].Lower != 230e9 || wcs.Ranges[0].Upper != 232e9 {
		t.Fatalf("unexpected collapsed range %+v", wcs.Ranges[0])
	}
}

func TestContinuumSpectralWCS(t *testing.T) {
	wcs, err := ContinuumSpectralWCS(850, 100, "850um")
	if err != nil {
		t.Fatalf("continuum: %v", err)
	}
	if math.Abs(wcs.Ranges[0].Lower-800e-6) > 1e-15 || math.Abs(wcs.Ranges[0].Upper-900e-6) > 1e-15 {
		t.Fatalf("unexpected range %+v", wcs.Ranges[0])
	}
	if _, err := ContinuumSpectralWCS(0, 100, ""); err == nil {
		t.Fatal("zero wavelength should fail")
	}
}

func TestTimeBounds(t *testing.T) {
	start := time.Date(2010, 3, 11, 5, 55, 28, 0, time.UTC)
	end := time.Date(2010, 3, 11, 6, 24, 59, 0, time.UTC)
	bounds, err := TimeBounds(start, end)
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if bounds.Upper <= bounds.Lower {
		t.Fatalf("bounds not increasing: %+v", bounds)
	}
	wantSpan := end.Sub(start).Seconds() / 86400.0
	if math.Abs((bounds.Upper-bounds.Lower)-wantSpan) > 1e-9 {
		t.Fatalf("span %v, want %v", bounds.Upper-bounds.Lower, wantSpan)
	}
	if _, err := TimeBounds(end, start); err == nil {
		t.Fatal("reversed bounds should fail")
	}
}

func TestAttachCompositeTimeSkipsChunksWithoutPosition(t *testing.T) {
	obs := caom.NewObservation("JCMT", "assoc1", caom.AlgorithmCustom)
	plane := obs.Plane("reduced-850um")
	art := plane.Artifact("cadc:JCMT/f1_reduced_001.fits")
	withPos := &caom.Chunk{Position: &caom.SpatialWCS{}}
	withoutPos := &caom.Chunk{}
	art.Part("0").Chunks = []*caom.Chunk{withPos, withoutPos}

	samples := []caom.Interval{{Lower: 55266.24, Upper: 55266.26}, {Lower: 55267.10, Upper: 55267.12}}
	if updated := AttachCompositeTime(obs, samples); updated != 1 {
		t.Fatalf("expected 1 updated chunk, got %d", updated)
	}
	if withPos.Time == nil || len(withPos.Time.Samples) != 2 {
		t.Fatalf("spatial chunk missing time axis: %+v", withPos.Time)
	}
	if withPos.Time.Bounds.Lower != 55266.24 || withPos.Time.Bounds.Upper != 55267.12 {
		t.Fatalf("unexpected composite bounds %+v", withPos.Time.Bounds)
	}
	if withoutPos.Time != nil {
		t.Fatal("chunk without spatial coverage must not receive a time axis")
	}
}
