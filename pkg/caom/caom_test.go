package caom

import (
	"testing"
	"time"
)

func TestParseObservationURI(t *testing.T) {
	uri, err := ParseObservationURI("caom:JCMT/scuba2_00022_20100311T055528")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if uri.Collection != "JCMT" || uri.ObservationID != "scuba2_00022_20100311T055528" {
		t.Fatalf("unexpected parts: %+v", uri)
	}
	if got := uri.String(); got != "caom:JCMT/scuba2_00022_20100311T055528" {
		t.Fatalf("round trip mismatch: %s", got)
	}
	for _, raw := range []string{"", "JCMT/obs", "caom:JCMT", "caom:JCMT/obs/extra", "caom:/obs"} {
		if _, err := ParseObservationURI(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestParsePlaneURI(t *testing.T) {
	uri, err := ParsePlaneURI("caom:JCMT/obs1/reduced-850um")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if uri.ProductID != "reduced-850um" {
		t.Fatalf("unexpected product id %q", uri.ProductID)
	}
	if got := uri.Observation(); got.ObservationID != "obs1" {
		t.Fatalf("unexpected parent %+v", got)
	}
	if _, err := ParsePlaneURI("caom:JCMT/obs1"); err == nil {
		t.Fatal("expected error for missing product id")
	}
}

func TestAddMemberDeduplicatesAndSorts(t *testing.T) {
	obs := NewObservation("JCMT", "assoc1", AlgorithmCustom)
	b := ObservationURI{Collection: "JCMT", ObservationID: "obsB"}
	a := ObservationURI{Collection: "JCMT", ObservationID: "obsA"}
	obs.AddMember(b)
	obs.AddMember(a)
	obs.AddMember(b)
	if len(obs.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(obs.Members))
	}
	if obs.Members[0] != a || obs.Members[1] != b {
		t.Fatalf("members not sorted: %+v", obs.Members)
	}
}

func TestProvenanceAddInput(t *testing.T) {
	prov := &Provenance{}
	u1, _ := NewPlaneURI("JCMT", "obs1", "raw-850um")
	u2, _ := NewPlaneURI("JCMT", "obs1", "raw-450um")
	prov.AddInput(u1)
	prov.AddInput(u2)
	prov.AddInput(u1)
	if len(prov.Inputs) != 2 {
		t.Fatalf("expected 2 inputs, got %d", len(prov.Inputs))
	}
	if prov.Inputs[0].ProductID != "raw-450um" {
		t.Fatalf("inputs not sorted: %+v", prov.Inputs)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	release := time.Date(2010, 3, 12, 0, 0, 0, 0, time.UTC)
	obs := NewObservation("JCMT", "obs1", AlgorithmExposure)
	obs.MetaRelease = &release
	plane := obs.Plane("reduced-850um")
	plane.DataRelease = &release
	plane.EnsureProvenance().RunID = "run-1"
	art := plane.Artifact("cadc:JCMT/f1_reduced_001.fits")
	art.Part("0").Chunks = []*Chunk{{Energy: &SpectralWCS{Ranges: []Interval{{Lower: 1, Upper: 2}}}}}

	cp := obs.Clone()
	cp.Plane("reduced-850um").Provenance.RunID = "run-2"
	*cp.MetaRelease = release.AddDate(1, 0, 0)
	cp.Plane("reduced-850um").Artifact("cadc:JCMT/f1_reduced_001.fits").Part("0").Chunks[0].Energy.Ranges[0].Upper = 99

	if obs.Planes["reduced-850um"].Provenance.RunID != "run-1" {
		t.Fatal("clone shares provenance")
	}
	if !obs.MetaRelease.Equal(release) {
		t.Fatal("clone shares release pointer")
	}
	if got := obs.Planes["reduced-850um"].Artifacts["cadc:JCMT/f1_reduced_001.fits"].Parts["0"].Chunks[0].Energy.Ranges[0].Upper; got != 2 {
		t.Fatalf("clone shares chunk ranges, got %v", got)
	}
}

func TestIntervalUnion(t *testing.T) {
	got := Interval{Lower: 100, Upper: 200}.Union(Interval{Lower: 150, Upper: 250})
	if got.Lower != 100 || got.Upper != 250 {
		t.Fatalf("unexpected union %+v", got)
	}
	if !got.Contains(100) || got.Contains(251) {
		t.Fatal("contains mismatch")
	}
}
