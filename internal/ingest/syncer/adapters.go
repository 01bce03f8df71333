package syncer

import (
	"context"
	"errors"

	"obsingest/internal/infra/repo"
	"obsingest/internal/ingest/reconcile"
	"obsingest/internal/ingest/resolve"
	"obsingest/internal/ingest/wcsbuild"
	"obsingest/pkg/caom"
)

// RunRegistry adapts the record store's run-id query to the reconciler.
type RunRegistry struct {
	Store repo.Store
}

var _ reconcile.Registry = RunRegistry{}

// PlanesWithRunID implements reconcile.Registry.
func (r RunRegistry) PlanesWithRunID(ctx context.Context, collection string, runIDs []string) ([]reconcile.PlaneRef, error) {
	infos, err := r.Store.PlanesWithRunID(ctx, collection, runIDs)
	if err != nil {
		return nil, err
	}
	refs := make([]reconcile.PlaneRef, len(infos))
	for i, info := range infos {
		refs[i] = reconcile.PlaneRef{
			Collection:    info.Collection,
			ObservationID: info.ObservationID,
			ProductID:     info.ProductID,
			RunID:         info.RunID,
		}
	}
	return refs, nil
}

// StoreSource adapts the record store to the resolver's metadata lookup, so
// membership and provenance references resolve against previously archived
// records.
type StoreSource struct {
	Store repo.Store
}

var _ resolve.MetadataSource = StoreSource{}

// RawObservation implements resolve.MetadataSource. Timing is recovered
// from the stored time axes and the release date from the observation's
// metadata release.
func (s StoreSource) RawObservation(ctx context.Context, collection, observationID string) (resolve.RawObservation, bool, error) {
	uri := caom.ObservationURI{Collection: collection, ObservationID: observationID}
	obs, err := s.Store.Get(ctx, uri)
	if errors.Is(err, repo.ErrNotFound) {
		return resolve.RawObservation{}, false, nil
	}
	if err != nil {
		return resolve.RawObservation{}, false, err
	}

	raw := resolve.RawObservation{URI: uri, Files: map[string]caom.PlaneURI{}}
	if obs.MetaRelease != nil {
		raw.ReleaseDate = *obs.MetaRelease
	}
	var bounds caom.Interval
	seen := false
	for _, productID := range obs.ProductIDs() {
		plane := obs.Planes[productID]
		planeURI := caom.PlaneURI{Collection: collection, ObservationID: observationID, ProductID: productID}
		for _, artifactURI := range plane.ArtifactURIs() {
			raw.Files[caom.FileID(artifactURI)] = planeURI
			for _, part := range plane.Artifacts[artifactURI].Parts {
				for _, chunk := range part.Chunks {
					if chunk.Time == nil {
						continue
					}
					if !seen {
						bounds = chunk.Time.Bounds
						seen = true
					} else {
						bounds = bounds.Union(chunk.Time.Bounds)
					}
				}
			}
		}
	}
	if seen {
		raw.DateObs = wcsbuild.FromMJD(bounds.Lower)
		raw.DateEnd = wcsbuild.FromMJD(bounds.Upper)
	}
	return raw, true, nil
}

// PlaneForFile implements resolve.MetadataSource by file-identifier lookup.
func (s StoreSource) PlaneForFile(ctx context.Context, fileID string) (caom.PlaneURI, bool, error) {
	infos, err := s.Store.PlanesWithFileID(ctx, fileID)
	if err != nil {
		return caom.PlaneURI{}, false, err
	}
	if len(infos) == 0 {
		return caom.PlaneURI{}, false, nil
	}
	info := infos[0]
	return caom.PlaneURI{
		Collection:    info.Collection,
		ObservationID: info.ObservationID,
		ProductID:     info.ProductID,
	}, true, nil
}
