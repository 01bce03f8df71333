// Package memory implements the record store contract in process memory.
// It is the transactional source of truth the persistent drivers embed,
// handing out deep copies so callers can never mutate stored state in
// place.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"obsingest/internal/infra/repo"
	"obsingest/pkg/caom"
)

var _ repo.Store = (*Store)(nil)

// Store holds observations keyed by URI behind a mutex, with a per-URI
// lock granting Process its exclusive hold.
type Store struct {
	mu           sync.Mutex
	observations map[string]*caom.Observation
	locks        map[string]*sync.Mutex
}

// NewStore builds an empty in-memory store.
func NewStore() *Store {
	return &Store{
		observations: map[string]*caom.Observation{},
		locks:        map[string]*sync.Mutex{},
	}
}

// Get returns a deep copy of the stored observation, or repo.ErrNotFound.
func (s *Store) Get(_ context.Context, uri caom.ObservationURI) (*caom.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obs, ok := s.observations[uri.String()]
	if !ok {
		return nil, fmt.Errorf("%s: %w", uri, repo.ErrNotFound)
	}
	return obs.Clone(), nil
}

// Put stores a deep copy of the observation under its URI.
func (s *Store) Put(_ context.Context, uri caom.ObservationURI, obs *caom.Observation) error {
	if obs == nil {
		return fmt.Errorf("put %s: nil observation", uri)
	}
	if obs.URI() != uri {
		return fmt.Errorf("put %s: observation identifies itself as %s", uri, obs.URI())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observations[uri.String()] = obs.Clone()
	return nil
}

func (s *Store) lockFor(uri caom.ObservationURI) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[uri.String()]
	if !ok {
		l = &sync.Mutex{}
		s.locks[uri.String()] = l
	}
	return l
}

// Process runs fn while holding the observation exclusively. fn receives
// the stored record or nil; its non-nil result is written back, a nil
// result deletes the record. Dry runs discard the outcome and removals
// require the allow-remove opt-in.
func (s *Store) Process(ctx context.Context, uri caom.ObservationURI, opts repo.ProcessOptions, fn func(obs *caom.Observation) (*caom.Observation, error)) error {
	lock := s.lockFor(uri)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	var current *caom.Observation
	if stored, ok := s.observations[uri.String()]; ok {
		current = stored.Clone()
	}
	s.mu.Unlock()

	result, err := fn(current)
	if err != nil {
		return err
	}
	if result == nil {
		if current == nil {
			return nil
		}
		if !opts.AllowRemove {
			return fmt.Errorf("process %s: %w", uri, repo.ErrRemoveNotAllowed)
		}
		if opts.DryRun {
			return nil
		}
		s.mu.Lock()
		delete(s.observations, uri.String())
		s.mu.Unlock()
		return nil
	}
	if result.URI() != uri {
		return fmt.Errorf("process %s: observation identifies itself as %s", uri, result.URI())
	}
	if opts.DryRun {
		return nil
	}
	s.mu.Lock()
	s.observations[uri.String()] = result.Clone()
	s.mu.Unlock()
	return nil
}

// PlanesWithRunID scans the collection for planes tagged with any of the
// run ids, sorted by observation then product id.
func (s *Store) PlanesWithRunID(_ context.Context, collection string, runIDs []string) ([]repo.PlaneInfo, error) {
	wanted := map[string]bool{}
	for _, id := range runIDs {
		if id != "" {
			wanted[id] = true
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var infos []repo.PlaneInfo
	for _, obs := range s.observations {
		if obs.Collection != collection {
			continue
		}
		for productID, plane := range obs.Planes {
			if plane.Provenance == nil || !wanted[plane.Provenance.RunID] {
				continue
			}
			infos = append(infos, repo.PlaneInfo{
				Collection:    obs.Collection,
				ObservationID: obs.ObservationID,
				ProductID:     productID,
				RunID:         plane.Provenance.RunID,
			})
		}
	}
	sortPlaneInfos(infos)
	return infos, nil
}

// PlanesWithFileID scans every collection for planes holding an artifact
// that normalises to the file identifier.
func (s *Store) PlanesWithFileID(_ context.Context, fileID string) ([]repo.PlaneInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var infos []repo.PlaneInfo
	for _, obs := range s.observations {
		for productID, plane := range obs.Planes {
			if !holdsFile(plane, fileID) {
				continue
			}
			info := repo.PlaneInfo{
				Collection:    obs.Collection,
				ObservationID: obs.ObservationID,
				ProductID:     productID,
			}
			if plane.Provenance != nil {
				info.RunID = plane.Provenance.RunID
			}
			infos = append(infos, info)
		}
	}
	sortPlaneInfos(infos)
	return infos, nil
}

func holdsFile(plane *caom.Plane, fileID string) bool {
	for uri := range plane.Artifacts {
		if caom.FileID(uri) == fileID {
			return true
		}
	}
	return false
}

func sortPlaneInfos(infos []repo.PlaneInfo) {
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].ObservationID != infos[j].ObservationID {
			return infos[i].ObservationID < infos[j].ObservationID
		}
		return infos[i].ProductID < infos[j].ProductID
	})
}

// Close satisfies the store contract; memory holds no external resources.
func (s *Store) Close() error { return nil }

// Snapshot is the serializable form of the store's state.
type Snapshot struct {
	Observations []*caom.Observation `json:"observations"`
}

// ExportState returns a deep copy of the full state, observations sorted
// by URI for deterministic serialization.
func (s *Store) ExportState() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	uris := make([]string, 0, len(s.observations))
	for uri := range s.observations {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	snapshot := Snapshot{Observations: make([]*caom.Observation, 0, len(uris))}
	for _, uri := range uris {
		snapshot.Observations = append(snapshot.Observations, s.observations[uri].Clone())
	}
	return snapshot
}

// ImportState replaces the store's state with the snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observations = make(map[string]*caom.Observation, len(snapshot.Observations))
	for _, obs := range snapshot.Observations {
		if obs == nil {
			continue
		}
		s.observations[obs.URI().String()] = obs.Clone()
	}
}
