// Package docarchive persists one JSON document per observation per
// ingestion run, giving every synchronized record an immutable audit trail
// outside the live record store.
package docarchive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"obsingest/internal/infra/docstore/core"
	fsstore "obsingest/internal/infra/docstore/fs"
	memorystore "obsingest/internal/infra/docstore/memory"
	s3store "obsingest/internal/infra/docstore/s3"
	"obsingest/internal/logging"
	"obsingest/pkg/caom"
)

// Environment variables consulted by Open.
const (
	EnvDriver = "OBSINGEST_DOC_DRIVER"
	EnvFSRoot = "OBSINGEST_DOC_FS_ROOT"
)

// Open selects a document store driver from the environment: fs (the
// default), s3, or memory.
func Open(ctx context.Context) (core.Store, error) {
	driver := os.Getenv(EnvDriver)
	if driver == "" {
		driver = string(core.DriverFilesystem)
	}
	switch core.Driver(driver) {
	case core.DriverFilesystem:
		return fsstore.New(os.Getenv(EnvFSRoot))
	case core.DriverS3:
		return s3store.OpenFromEnv(ctx)
	case core.DriverMemory:
		return memorystore.New(), nil
	default:
		return nil, fmt.Errorf("unknown document store driver %q", driver)
	}
}

// stampLayout renders a run stamp that sorts chronologically as a key.
const stampLayout = "20060102T150405Z"

// Archive writes observation documents keyed
// <collection>/<observationID>/<stamp>.json.
type Archive struct {
	store core.Store
	log   logging.Logger
}

// New wraps a document store.
func New(store core.Store, log logging.Logger) *Archive {
	return &Archive{store: store, log: logging.OrNoop(log)}
}

// Record archives one finalized observation under the run stamp.
func (a *Archive) Record(ctx context.Context, obs *caom.Observation, stamp time.Time) (core.Info, error) {
	body, err := json.MarshalIndent(obs, "", "  ")
	if err != nil {
		return core.Info{}, fmt.Errorf("encoding observation %s: %w", obs.URI(), err)
	}
	key := fmt.Sprintf("%s/%s/%s.json",
		obs.Collection, obs.ObservationID, stamp.UTC().Format(stampLayout))
	info, err := a.store.Put(ctx, key, bytes.NewReader(body), core.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"algorithm": string(obs.Algorithm),
			"planes":    strconv.Itoa(len(obs.Planes)),
		},
	})
	if err != nil {
		return core.Info{}, err
	}
	a.log.Debug("archived observation document", "key", key, "bytes", info.Size)
	return info, nil
}

// History lists the archived documents of one observation, oldest first.
func (a *Archive) History(ctx context.Context, uri caom.ObservationURI) ([]core.Info, error) {
	return a.store.List(ctx, uri.Collection+"/"+uri.ObservationID+"/")
}

// Fetch decodes one archived document by key.
func (a *Archive) Fetch(ctx context.Context, key string) (*caom.Observation, error) {
	_, body, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	var obs caom.Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", key, err)
	}
	return &obs, nil
}
