// Package resolve turns membership and provenance references into archive
// URIs. Both resolution paths share session-scoped caches so that repeated
// references cost one metadata lookup, and provenance references that
// cannot be satisfied locally are deferred to a second pass run once the
// whole batch has been seen.
package resolve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"obsingest/internal/ingest/aggregate"
	"obsingest/internal/ingest/header"
	"obsingest/internal/ingest/identity"
	"obsingest/internal/ingest/wcsbuild"
	"obsingest/internal/logging"
	"obsingest/pkg/caom"
)

// ProvenanceError reports a membership or provenance reference that points
// to a record the archive does not know.
type ProvenanceError struct {
	Reference string
	Reason    string
}

// Error implements the error interface.
func (e *ProvenanceError) Error() string {
	return fmt.Sprintf("reference %s: %s", e.Reference, e.Reason)
}

// RawObservation is the metadata returned for one raw observation while
// resolving a membership reference. Files maps raw file identifiers to
// their planes; the resolver uses it to seed the provenance cache cheaply.
type RawObservation struct {
	URI         caom.ObservationURI
	DateObs     time.Time
	DateEnd     time.Time
	ReleaseDate time.Time
	Files       map[string]caom.PlaneURI
}

// MetadataSource is the external lookup consulted during resolution. Both
// methods report absence with found=false rather than an error.
type MetadataSource interface {
	// RawObservation returns timing and release metadata for a raw
	// observation named by a membership reference.
	RawObservation(ctx context.Context, collection, observationID string) (RawObservation, bool, error)
	// PlaneForFile returns the plane holding a previously archived file.
	PlaneForFile(ctx context.Context, fileID string) (caom.PlaneURI, bool, error)
}

// Session carries the run-scoped caches. Cached entries live for exactly
// one ingestion run.
type Session struct {
	source MetadataSource
	log    logging.Logger

	// memberCache is keyed by the raw reference token, so two files naming
	// the same member in either convention reuse one lookup.
	memberCache map[string]aggregate.Member
	// inputCache maps file identifiers to planes: raw files discovered
	// while resolving members, plus every output of the current batch.
	inputCache map[string]caom.PlaneURI
}

// NewSession builds a resolver around a metadata source.
func NewSession(source MetadataSource, log logging.Logger) *Session {
	return &Session{
		source:      source,
		log:         logging.OrNoop(log),
		memberCache: map[string]aggregate.Member{},
		inputCache:  map[string]caom.PlaneURI{},
	}
}

// FileID normalises a provenance file reference into a cache key: base
// name, extension stripped, lower case.
func FileID(name string) string { return caom.FileID(name) }

// RecordOutput registers one of the current batch's own files so the second
// pass can resolve references to it.
func (s *Session) RecordOutput(fileName string, plane caom.PlaneURI) {
	s.inputCache[FileID(fileName)] = plane
}

// Members resolves a file's membership list into member references with
// timing metadata. Explicit URI lists (MBRn) and subsystem identifier lists
// (OBSn) populate the same cache keyed by the raw token.
func (s *Session) Members(ctx context.Context, f *header.Fields) ([]aggregate.Member, error) {
	if f.MemberRef == header.RefNone {
		return nil, nil
	}
	members := make([]aggregate.Member, 0, len(f.Members))
	for _, token := range f.Members {
		m, ok := s.memberCache[token]
		if !ok {
			var err error
			if m, err = s.resolveMember(ctx, token, f); err != nil {
				return nil, err
			}
			s.memberCache[token] = m
		}
		members = append(members, m)
	}
	return members, nil
}

func (s *Session) resolveMember(ctx context.Context, token string, f *header.Fields) (aggregate.Member, error) {
	var collection, observationID string
	switch f.MemberRef {
	case header.RefURIList:
		uri, err := caom.ParseObservationURI(token)
		if err != nil {
			return aggregate.Member{}, &ProvenanceError{Reference: token, Reason: err.Error()}
		}
		collection, observationID = uri.Collection, uri.ObservationID
	case header.RefNameList:
		obsID, err := identity.ObservationIDFromSubsystem(token)
		if err != nil {
			return aggregate.Member{}, &ProvenanceError{Reference: token, Reason: err.Error()}
		}
		collection, observationID = f.Collection, obsID
	default:
		return aggregate.Member{}, &ProvenanceError{Reference: token, Reason: "unknown membership convention"}
	}

	raw, found, err := s.source.RawObservation(ctx, collection, observationID)
	if err != nil {
		return aggregate.Member{}, fmt.Errorf("resolving member %s: %w", token, err)
	}
	if !found {
		return aggregate.Member{}, &ProvenanceError{Reference: token, Reason: "membership reference points to a non-existent observation"}
	}
	for fileID, plane := range raw.Files {
		key := FileID(fileID)
		if _, seen := s.inputCache[key]; !seen {
			s.inputCache[key] = plane
		}
	}
	bounds, err := memberBounds(raw)
	if err != nil {
		return aggregate.Member{}, &ProvenanceError{Reference: token, Reason: err.Error()}
	}
	return aggregate.Member{URI: raw.URI, TimeBounds: bounds, ReleaseDate: raw.ReleaseDate}, nil
}

func memberBounds(raw RawObservation) (caom.Interval, error) {
	if raw.DateObs.IsZero() || raw.DateEnd.IsZero() {
		return caom.Interval{}, nil
	}
	return wcsbuild.TimeBounds(raw.DateObs, raw.DateEnd)
}

// Inputs resolves a file's provenance list. Explicit plane URIs (INPn)
// resolve immediately; bare file names (PRVn) resolve through the input
// cache when possible and are otherwise deferred for the second pass.
// Pipeline scratch files and self references are skipped with a warning.
func (s *Session) Inputs(ctx context.Context, f *header.Fields, self caom.PlaneURI) (inputs []caom.PlaneURI, deferred []string, err error) {
	if f.ProvenanceRef == header.RefNone {
		return nil, nil, nil
	}
	selfID := FileID(f.File)
	for _, token := range f.Inputs {
		switch f.ProvenanceRef {
		case header.RefURIList:
			uri, perr := caom.ParsePlaneURI(token)
			if perr != nil {
				return nil, nil, &ProvenanceError{Reference: token, Reason: perr.Error()}
			}
			if uri == self {
				s.log.Warn("file lists itself as its own input", "file", f.File, "input", token)
				continue
			}
			inputs = append(inputs, uri)
		case header.RefNameList:
			fileID := FileID(token)
			if strings.HasPrefix(fileID, "oractemp") {
				s.log.Warn("skipping pipeline scratch file in provenance", "file", f.File, "input", token)
				continue
			}
			if fileID == selfID {
				s.log.Warn("file lists itself as its own input", "file", f.File, "input", token)
				continue
			}
			if uri, ok := s.inputCache[fileID]; ok {
				if uri == self {
					s.log.Warn("file lists itself as its own input", "file", f.File, "input", token)
					continue
				}
				inputs = append(inputs, uri)
			} else {
				deferred = append(deferred, fileID)
			}
		}
	}
	return inputs, deferred, nil
}

// SecondPass resolves every deferred input left in the aggregation session
// after all files have been read. By now the input cache holds the whole
// batch's own outputs; anything still unknown is looked up in the archive.
// An input found in neither place is logged and omitted from the plane's
// provenance rather than failing the batch.
func (s *Session) SecondPass(ctx context.Context, session *aggregate.Session) error {
	for plane, files := range session.PendingInputs() {
		for _, fileID := range files {
			uri, ok := s.inputCache[fileID]
			if !ok {
				var found bool
				var err error
				uri, found, err = s.source.PlaneForFile(ctx, fileID)
				if err != nil {
					return fmt.Errorf("resolving input %s: %w", fileID, err)
				}
				if !found {
					s.log.Warn("provenance input is neither in the archive nor in the current batch, omitting it",
						"plane", plane.String(), "input", fileID)
					session.ResolveInput(plane, fileID, caom.PlaneURI{})
					continue
				}
				s.inputCache[fileID] = uri
			}
			session.ResolveInput(plane, fileID, uri)
		}
	}
	return nil
}
