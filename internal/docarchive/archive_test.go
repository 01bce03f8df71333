package docarchive

import (
	"context"
	"testing"
	"time"

	"obsingest/internal/infra/docstore/core"
	"obsingest/internal/infra/docstore/memory"
	"obsingest/pkg/caom"
)

func testObservation() *caom.Observation {
	obs := caom.NewObservation("JCMT", "scuba2_00022_20100311T055528", caom.AlgorithmExposure)
	plane := obs.Plane("reduced-850um")
	plane.Calibration = caom.CalibrationCalibrated
	plane.EnsureProvenance().RunID = "jac-000012345"
	plane.Artifact("cadc:JCMT/f1_reduced_001.fits")
	return obs
}

func TestRecordHistoryFetch(t *testing.T) {
	a := New(memory.New(), nil)
	ctx := context.Background()
	obs := testObservation()

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := a.Record(ctx, obs, first); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := a.Record(ctx, obs, first.Add(time.Hour)); err != nil {
		t.Fatalf("second record: %v", err)
	}

	history, err := a.History(ctx, obs.URI())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].Key >= history[1].Key {
		t.Fatalf("unexpected history %v", history)
	}

	restored, err := a.Fetch(ctx, history[0].Key)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if restored.URI() != obs.URI() {
		t.Fatalf("unexpected observation %s", restored.URI())
	}
	plane, ok := restored.Planes["reduced-850um"]
	if !ok || plane.Provenance.RunID != "jac-000012345" {
		t.Fatalf("plane data lost in round trip: %+v", restored.Planes)
	}
}

func TestRecordIsImmutable(t *testing.T) {
	a := New(memory.New(), nil)
	ctx := context.Background()
	obs := testObservation()
	stamp := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := a.Record(ctx, obs, stamp); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := a.Record(ctx, obs, stamp); err == nil {
		t.Fatal("re-recording the same run stamp must fail")
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	t.Setenv(EnvDriver, "memory")
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", store.Driver())
	}

	t.Setenv(EnvDriver, "bogus")
	if _, err := Open(context.Background()); err == nil {
		t.Fatal("unknown driver must fail")
	}
}
