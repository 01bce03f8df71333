// Package reconcile compares the planes produced by the current processing
// run against what the archive holds for the same provenance run ids,
// computing the removal and version-replacement sets that keep the archive
// consistent without destroying records the run still produces.
package reconcile

import (
	"context"
	"fmt"
	"sort"

	"obsingest/internal/logging"
	"obsingest/pkg/caom"
)

// ReconciliationError reports an inconsistency that must abort the affected
// observation's synchronization, such as a version regression.
type ReconciliationError struct {
	Subject string
	Reason  string
}

// Error implements the error interface.
func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile %s: %s", e.Subject, e.Reason)
}

// PlaneRef is one (observation, plane) pair the archive reports as tagged
// with a provenance run id.
type PlaneRef struct {
	Collection    string
	ObservationID string
	ProductID     string
	RunID         string
}

// Registry is the archive query surface the reconciler consumes.
type Registry interface {
	// PlanesWithRunID returns every plane tagged with any of the run ids.
	PlanesWithRunID(ctx context.Context, collection string, runIDs []string) ([]PlaneRef, error)
}

// Reconciler tracks, per provenance run id, the planes the archive held
// before the run and which of them the current run regenerated. Each run id
// is queried exactly once.
type Reconciler struct {
	registry Registry
	log      logging.Logger
	// aliases maps a run id to alternate ids the same job is known by.
	aliases   map[string][]string
	collected map[string]bool
	// stale maps each observation to the product ids still awaiting either
	// regeneration or removal.
	stale   map[caom.ObservationURI]map[string]bool
	touched map[caom.ObservationURI]bool
}

// New builds a reconciler. aliases may be nil.
func New(registry Registry, aliases map[string][]string, log logging.Logger) *Reconciler {
	return &Reconciler{
		registry:  registry,
		log:       logging.OrNoop(log),
		aliases:   aliases,
		collected: map[string]bool{},
		stale:     map[caom.ObservationURI]map[string]bool{},
		touched:   map[caom.ObservationURI]bool{},
	}
}

// Observe records that the current run produced planes under the given run
// id. On the first encounter of each run id the archive is queried for
// every plane currently tagged with it or with one of its aliases.
func (r *Reconciler) Observe(ctx context.Context, collection, runID string) error {
	if runID == "" || r.collected[runID] {
		return nil
	}
	r.collected[runID] = true
	ids := append([]string{runID}, r.aliases[runID]...)
	refs, err := r.registry.PlanesWithRunID(ctx, collection, ids)
	if err != nil {
		return fmt.Errorf("querying planes for run %s: %w", runID, err)
	}
	for _, ref := range refs {
		uri := caom.ObservationURI{Collection: ref.Collection, ObservationID: ref.ObservationID}
		planes, ok := r.stale[uri]
		if !ok {
			planes = map[string]bool{}
			r.stale[uri] = planes
		}
		planes[ref.ProductID] = true
	}
	r.log.Debug("collected prior planes for run", "run_id", runID, "planes", len(refs))
	return nil
}

// StaleFor returns the planes previously tagged with one of the observed
// run ids in the given observation that the current run did not regenerate,
// sorted for determinism. The observation is marked as touched; its entry
// is consumed.
func (r *Reconciler) StaleFor(observation caom.ObservationURI, currentProducts map[string]bool) []string {
	r.touched[observation] = true
	planes, ok := r.stale[observation]
	if !ok {
		return nil
	}
	delete(r.stale, observation)
	var gone []string
	for productID := range planes {
		if !currentProducts[productID] {
			gone = append(gone, productID)
		}
	}
	sort.Strings(gone)
	return gone
}

// Orphans returns, per observation the current run never touched, the
// planes that still carry an observed run id. These planes moved out of
// their observation entirely and must be removed directly, even when that
// empties the observation.
func (r *Reconciler) Orphans() map[caom.ObservationURI][]string {
	orphans := map[caom.ObservationURI][]string{}
	for observation, planes := range r.stale {
		if r.touched[observation] {
			continue
		}
		ids := make([]string, 0, len(planes))
		for productID := range planes {
			ids = append(ids, productID)
		}
		sort.Strings(ids)
		orphans[observation] = ids
	}
	return orphans
}
