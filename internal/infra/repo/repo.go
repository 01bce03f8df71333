// Package repo defines the archive record store contract the ingestion
// engine synchronizes against, and the factory that selects a driver from
// the environment.
package repo

import (
	"context"
	"errors"
	"fmt"
	"os"

	"obsingest/pkg/caom"
)

// ErrNotFound reports an observation the store does not hold.
var ErrNotFound = errors.New("observation not found")

// ErrRemoveNotAllowed reports a removal attempted without the explicit
// allow-remove opt-in.
var ErrRemoveNotAllowed = errors.New("removal requires the allow-remove flag")

// ProcessOptions carry the synchronization flags for one exclusive
// fetch-modify-write cycle.
type ProcessOptions struct {
	// DryRun performs the fetch and the caller's modifications but
	// discards the write-back.
	DryRun bool
	// AllowRemove permits the cycle to delete the observation, or the
	// caller to remove its last plane.
	AllowRemove bool
}

// PlaneInfo is one plane matched by a store query.
type PlaneInfo struct {
	Collection    string
	ObservationID string
	ProductID     string
	RunID         string
}

// Store is the remote record store contract. Get returns ErrNotFound for
// absent observations. Process holds the observation exclusively for the
// duration of fn: fn receives the stored record or nil, and returns the
// record to write back, or nil to delete the observation.
type Store interface {
	Get(ctx context.Context, uri caom.ObservationURI) (*caom.Observation, error)
	Put(ctx context.Context, uri caom.ObservationURI, obs *caom.Observation) error
	Process(ctx context.Context, uri caom.ObservationURI, opts ProcessOptions, fn func(obs *caom.Observation) (*caom.Observation, error)) error

	// PlanesWithRunID returns every plane in the collection whose
	// provenance carries one of the run ids.
	PlanesWithRunID(ctx context.Context, collection string, runIDs []string) ([]PlaneInfo, error)
	// PlanesWithFileID returns every plane holding an artifact whose URI
	// normalises to the given file identifier (caom.FileID).
	PlanesWithFileID(ctx context.Context, fileID string) ([]PlaneInfo, error)

	Close() error
}

// Environment variables consulted by Open.
const (
	EnvDriver      = "OBSINGEST_REPO_DRIVER"
	EnvSQLitePath  = "OBSINGEST_SQLITE_PATH"
	EnvPostgresDSN = "OBSINGEST_POSTGRES_DSN"
)

// DriverConstructors wires the factory to the concrete drivers without an
// import cycle; cmd/obsingest fills it in.
type DriverConstructors struct {
	Memory   func() Store
	SQLite   func(path string) (Store, error)
	Postgres func(dsn string) (Store, error)
}

// Open selects a store driver from the environment: memory (the default),
// sqlite, or postgres.
func Open(ctors DriverConstructors) (Store, error) {
	driver := os.Getenv(EnvDriver)
	switch driver {
	case "", "memory":
		return ctors.Memory(), nil
	case "sqlite":
		return ctors.SQLite(os.Getenv(EnvSQLitePath))
	case "postgres":
		return ctors.Postgres(os.Getenv(EnvPostgresDSN))
	default:
		return nil, fmt.Errorf("unknown repo driver %q", driver)
	}
}
