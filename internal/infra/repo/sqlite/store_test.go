package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"obsingest/internal/infra/repo"
	"obsingest/pkg/caom"
)

func testObservation(observationID string) *caom.Observation {
	obs := caom.NewObservation("JCMT", observationID, caom.AlgorithmExposure)
	plane := obs.Plane("reduced-850um")
	plane.Calibration = caom.CalibrationCalibrated
	plane.EnsureProvenance().RunID = "R"
	return obs
}

func TestStateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repo.db")
	ctx := context.Background()

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	obs := testObservation("obs1")
	if err := s.Put(ctx, obs.URI(), obs); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	got, err := reopened.Get(ctx, obs.URI())
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Planes["reduced-850um"].Provenance.RunID != "R" {
		t.Fatalf("snapshot lost plane state: %+v", got)
	}
}

func TestProcessPersistsAndDryRunDoesNot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repo.db")
	ctx := context.Background()
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	uri := caom.ObservationURI{Collection: "JCMT", ObservationID: "obs1"}
	err = s.Process(ctx, uri, repo.ProcessOptions{DryRun: true}, func(*caom.Observation) (*caom.Observation, error) {
		return testObservation("obs1"), nil
	})
	if err != nil {
		t.Fatalf("dry-run process: %v", err)
	}
	if _, err := s.Get(ctx, uri); !errors.Is(err, repo.ErrNotFound) {
		t.Fatal("dry run must not write")
	}

	err = s.Process(ctx, uri, repo.ProcessOptions{}, func(*caom.Observation) (*caom.Observation, error) {
		return testObservation("obs1"), nil
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	var count int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one snapshot row, got %d", count)
	}
}

func TestRemoveAllowedPersistsEmptyState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repo.db")
	ctx := context.Background()
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	obs := testObservation("obs1")
	if err := s.Put(ctx, obs.URI(), obs); err != nil {
		t.Fatalf("put: %v", err)
	}
	err = s.Process(ctx, obs.URI(), repo.ProcessOptions{AllowRemove: true}, func(*caom.Observation) (*caom.Observation, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if _, err := reopened.Get(ctx, obs.URI()); !errors.Is(err, repo.ErrNotFound) {
		t.Fatal("removed observation resurfaced after reopen")
	}
}
