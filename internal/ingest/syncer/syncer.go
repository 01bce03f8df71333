// Package syncer writes the observations one processing run produced into
// the archive record store. Each observation is merged under an exclusive
// per-record cycle, stale planes and superseded artifact versions are
// reconciled away, and planes orphaned by records moving between
// observations are removed at the end of the run.
package syncer

import (
	"context"
	"sort"

	"obsingest/internal/infra/repo"
	"obsingest/internal/ingest/reconcile"
	"obsingest/internal/logging"
	"obsingest/internal/observability"
	"obsingest/pkg/caom"
)

// Options carry the run-wide synchronization flags.
type Options struct {
	// DryRun performs every fetch, merge and consistency check but
	// discards all write-backs.
	DryRun bool
	// AllowRemove permits plane and observation removal. Without it a
	// merge that would empty or delete a record fails instead.
	AllowRemove bool
}

// Result summarizes one run's synchronization outcome.
type Result struct {
	// Written lists the observations merged and written back, in input
	// order. Dry runs report the records that would have been written.
	Written []caom.ObservationURI
	// Removed lists the observations deleted because no planes remained.
	Removed []caom.ObservationURI
	// StalePlanes counts planes dropped because a prior run produced them
	// and the current run did not.
	StalePlanes int
	// SupersededArtifacts counts stored artifacts replaced by a higher
	// embedded version.
	SupersededArtifacts int
	// OrphanPlanes counts planes removed from observations the run never
	// regenerated.
	OrphanPlanes int
	// Failed records the observations whose cycle was aborted, keyed by
	// URI; failures never interrupt the remaining observations.
	Failed map[caom.ObservationURI]error
}

// Synchronizer drives the per-observation merge cycles for one run.
type Synchronizer struct {
	store      repo.Store
	reconciler *reconcile.Reconciler
	opts       Options
	log        logging.Logger
	metrics    observability.MetricsRecorder
	tracer     observability.Tracer
}

// Option customizes a synchronizer beyond the run flags.
type Option func(*Synchronizer)

// WithMetricsRecorder reports per-observation merge outcomes and run
// counters through the recorder.
func WithMetricsRecorder(rec observability.MetricsRecorder) Option {
	return func(s *Synchronizer) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithTracer opens a span around each observation's merge cycle.
func WithTracer(tracer observability.Tracer) Option {
	return func(s *Synchronizer) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// New builds a synchronizer over a record store and a run reconciler.
func New(store repo.Store, reconciler *reconcile.Reconciler, opts Options, log logging.Logger, options ...Option) *Synchronizer {
	s := &Synchronizer{
		store:      store,
		reconciler: reconciler,
		opts:       opts,
		log:        logging.OrNoop(log),
		metrics:    observability.NoopMetrics{},
		tracer:     observability.NoopTracer{},
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Run registers every observation's provenance run ids with the
// reconciler, merges the finalized observations into the store one at a
// time, and then removes the orphaned planes the reconciler still holds.
// Run ids are collected up front so a run id first carried by a later
// observation still marks stale planes in observations merged before it.
// A failing observation is recorded in the result and skipped; the error
// return is reserved for failures outside any single observation's cycle.
func (s *Synchronizer) Run(ctx context.Context, observations []*caom.Observation) (*Result, error) {
	result := &Result{Failed: map[caom.ObservationURI]error{}}
	for _, obs := range observations {
		uri := obs.URI()
		if err := s.observeRuns(ctx, obs); err != nil {
			result.Failed[uri] = err
			s.log.Error("collecting prior planes failed",
				"observation", uri.String(), "error", err)
		}
	}
	for _, obs := range observations {
		uri := obs.URI()
		if _, failed := result.Failed[uri]; failed {
			continue
		}
		err := observability.Timed(ctx, s.metrics, s.tracer, "sync_observation", func(ctx context.Context) error {
			return s.syncObservation(ctx, obs, result)
		})
		if err != nil {
			result.Failed[uri] = err
			s.log.Error("observation synchronization failed",
				"observation", uri.String(), "error", err)
			continue
		}
		s.log.Info("observation synchronized",
			"observation", uri.String(), "planes", len(obs.Planes), "dry_run", s.opts.DryRun)
	}
	err := observability.Timed(ctx, s.metrics, s.tracer, "remove_orphans", func(ctx context.Context) error {
		return s.removeOrphans(ctx, result)
	})
	observability.AddCounter(s.metrics, "stale_planes", int64(result.StalePlanes))
	observability.AddCounter(s.metrics, "superseded_artifacts", int64(result.SupersededArtifacts))
	observability.AddCounter(s.metrics, "orphan_planes", int64(result.OrphanPlanes))
	if err != nil {
		return result, err
	}
	return result, nil
}

// observeRuns registers one observation's provenance run ids with the
// reconciler.
func (s *Synchronizer) observeRuns(ctx context.Context, obs *caom.Observation) error {
	uri := obs.URI()
	for _, productID := range obs.ProductIDs() {
		plane := obs.Planes[productID]
		if plane.Provenance == nil {
			continue
		}
		if err := s.reconciler.Observe(ctx, uri.Collection, plane.Provenance.RunID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synchronizer) syncObservation(ctx context.Context, obs *caom.Observation, result *Result) error {
	uri := obs.URI()
	current := map[string]bool{}
	for productID := range obs.Planes {
		current[productID] = true
	}
	stale := map[string]bool{}
	for _, productID := range s.reconciler.StaleFor(uri, current) {
		stale[productID] = true
	}

	removed := false
	err := s.store.Process(ctx, uri, repo.ProcessOptions(s.opts), func(existing *caom.Observation) (*caom.Observation, error) {
		merged := obs.Clone()
		if existing != nil {
			if err := s.mergePrior(existing, merged, stale, result); err != nil {
				return nil, err
			}
		}
		if len(merged.Planes) == 0 {
			removed = true
			return nil, nil
		}
		return merged, nil
	})
	if err != nil {
		return err
	}
	if removed {
		result.Removed = append(result.Removed, uri)
	} else {
		result.Written = append(result.Written, uri)
	}
	return nil
}

// mergePrior folds the stored record into the freshly produced one. Planes
// the run regenerated replace their stored counterparts, inheriting any
// stored artifacts a lower embedded version does not supersede; stale
// planes are dropped; everything else is carried over unchanged.
func (s *Synchronizer) mergePrior(existing, merged *caom.Observation, stale map[string]bool, result *Result) error {
	for _, productID := range existing.ProductIDs() {
		prior := existing.Planes[productID]
		incoming, regenerated := merged.Planes[productID]
		if !regenerated {
			if stale[productID] {
				result.StalePlanes++
				s.log.Info("removing stale plane",
					"observation", existing.URI().String(), "product_id", productID)
				continue
			}
			merged.Planes[productID] = prior.Clone()
			continue
		}
		superseded, err := reconcile.ReplaceVersions(prior.ArtifactURIs(), incoming.ArtifactURIs())
		if err != nil {
			return err
		}
		drop := map[string]bool{}
		for _, artifactURI := range superseded {
			drop[artifactURI] = true
		}
		for _, artifactURI := range prior.ArtifactURIs() {
			if _, ok := incoming.Artifacts[artifactURI]; ok {
				continue
			}
			if drop[artifactURI] {
				result.SupersededArtifacts++
				s.log.Info("superseding artifact version",
					"observation", existing.URI().String(), "artifact", artifactURI)
				continue
			}
			incoming.Artifacts[artifactURI] = prior.Artifacts[artifactURI].Clone()
		}
	}
	return nil
}

// removeOrphans deletes the reconciled planes of observations the run never
// touched. These planes migrated to another observation entirely, so their
// removal may empty the record; that still requires the allow-remove flag.
func (s *Synchronizer) removeOrphans(ctx context.Context, result *Result) error {
	orphans := s.reconciler.Orphans()
	uris := make([]caom.ObservationURI, 0, len(orphans))
	for uri := range orphans {
		uris = append(uris, uri)
	}
	sort.Slice(uris, func(i, j int) bool { return uris[i].String() < uris[j].String() })

	for _, uri := range uris {
		products := orphans[uri]
		err := s.store.Process(ctx, uri, repo.ProcessOptions(s.opts), func(existing *caom.Observation) (*caom.Observation, error) {
			if existing == nil {
				return nil, nil
			}
			for _, productID := range products {
				if _, ok := existing.Planes[productID]; !ok {
					continue
				}
				delete(existing.Planes, productID)
				result.OrphanPlanes++
				s.log.Info("removing orphaned plane",
					"observation", uri.String(), "product_id", productID)
			}
			if len(existing.Planes) == 0 {
				return nil, nil
			}
			return existing, nil
		})
		if err != nil {
			result.Failed[uri] = err
			s.log.Error("orphan removal failed", "observation", uri.String(), "error", err)
		}
	}
	return nil
}
