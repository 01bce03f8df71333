package integration

import (
	"context"
	"testing"
	"time"

	"obsingest/internal/docarchive"
	docmemory "obsingest/internal/infra/docstore/memory"
	"obsingest/internal/infra/repo"
	"obsingest/internal/infra/repo/memory"
	"obsingest/internal/ingest"
	"obsingest/internal/ingest/aggregate"
	"obsingest/internal/ingest/header"
	"obsingest/internal/ingest/reconcile"
	"obsingest/internal/ingest/resolve"
	"obsingest/internal/ingest/syncer"
	"obsingest/internal/observability"
)

func rawHeader(obsid, product string, filter float64) header.Raw {
	return header.Raw{
		header.KeyInstream: "JCMT",
		header.KeyObsID:    obsid,
		header.KeyBackend:  "SCUBA-2",
		header.KeyObsType:  "science",
		header.KeyDateObs:  "2010-03-11T06:00:00",
		header.KeyDateEnd:  "2010-03-11T06:30:00",
		header.KeyRelease:  "2011-05-01",
		header.KeyObject:   "orion kl",
		header.KeyProduct:  product,
		header.KeyRunID:    "77001",
		header.KeyFilter:   filter,
		header.KeyObsRA:    10.0,
		header.KeyObsDec:   20.0,
	}
}

func ingestBatch(t *testing.T, store repo.Store, files map[string]header.Raw, opts syncer.Options, metrics observability.MetricsRecorder) *syncer.Result {
	t.Helper()
	ctx := context.Background()

	resolver := resolve.NewSession(syncer.StoreSource{Store: store}, nil)
	builder := ingest.NewBuilder(resolver, aggregate.NewSession(nil), nil)
	for name, hdr := range files {
		if err := builder.Add(ctx, ingest.File{Name: name, Primary: hdr}); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	observations, err := builder.Finish(ctx)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}

	reconciler := reconcile.New(syncer.RunRegistry{Store: store}, nil, nil)
	sync := syncer.New(store, reconciler, opts, nil, syncer.WithMetricsRecorder(metrics))
	result, err := sync.Run(ctx, observations)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for uri, ferr := range result.Failed {
		t.Fatalf("observation %s failed: %v", uri, ferr)
	}
	return result
}

func TestPipelineEndToEnd(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	metrics := observability.NewExpvarMetricsRecorder("")
	const obsid = "scuba2_00042_20100311T060000"

	result := ingestBatch(t, store, map[string]header.Raw{
		"jcmts20100311_00042_850_reduced_001.fits": rawHeader(obsid, "reduced", 850.0),
		"jcmts20100311_00042_450_reduced_001.fits": rawHeader(obsid, "reduced", 450.0),
	}, syncer.Options{}, metrics)

	if len(result.Written) != 1 {
		t.Fatalf("written = %v, want one observation", result.Written)
	}
	uri := result.Written[0]
	if uri.ObservationID != obsid {
		t.Fatalf("unexpected observation %s", uri)
	}

	obs, err := store.Get(ctx, uri)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for _, productID := range []string{"reduced-850um", "reduced-450um"} {
		if _, ok := obs.Planes[productID]; !ok {
			t.Fatalf("missing plane %s in %v", productID, obs.ProductIDs())
		}
	}

	// The archive keeps an immutable snapshot per synchronization.
	arch := docarchive.New(docmemory.New(), nil)
	if _, err := arch.Record(ctx, obs, time.Date(2010, 3, 12, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("record: %v", err)
	}
	history, err := arch.History(ctx, uri)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history = %d entries, want 1", len(history))
	}
	snapshot, err := arch.Fetch(ctx, history[0].Key)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if snapshot.ObservationID != obsid {
		t.Fatalf("snapshot observation %s", snapshot.ObservationID)
	}

	snap := metrics.Snapshot()
	if snap.Results["sync_observation"]["success"] != 1 {
		t.Fatalf("metrics missing sync_observation: %+v", snap.Results)
	}
}

func TestPipelineRerunDropsStalePlane(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	const obsid = "scuba2_00042_20100311T060000"

	ingestBatch(t, store, map[string]header.Raw{
		"jcmts20100311_00042_850_reduced_001.fits": rawHeader(obsid, "reduced", 850.0),
		"jcmts20100311_00042_450_reduced_001.fits": rawHeader(obsid, "reduced", 450.0),
	}, syncer.Options{}, nil)

	// The same processing job reruns producing only the 850um product; the
	// stored 450um plane is stale and goes away.
	result := ingestBatch(t, store, map[string]header.Raw{
		"jcmts20100311_00042_850_reduced_002.fits": rawHeader(obsid, "reduced", 850.0),
	}, syncer.Options{AllowRemove: true}, nil)

	if result.StalePlanes != 1 {
		t.Fatalf("stale planes = %d, want 1", result.StalePlanes)
	}
	obs, err := store.Get(ctx, result.Written[0])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := obs.Planes["reduced-450um"]; ok {
		t.Fatal("stale 450um plane survived the rerun")
	}
	plane := obs.Planes["reduced-850um"]
	if plane == nil {
		t.Fatal("850um plane missing after rerun")
	}
	if _, ok := plane.Artifacts["cadc:JCMT/jcmts20100311_00042_850_reduced_002.fits"]; !ok {
		t.Fatalf("rerun artifact missing, have %v", plane.ArtifactURIs())
	}
	if _, ok := plane.Artifacts["cadc:JCMT/jcmts20100311_00042_850_reduced_001.fits"]; ok {
		t.Fatal("superseded artifact version survived the rerun")
	}
}
