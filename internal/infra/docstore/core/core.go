// Package core defines the document store contract the ingestion engine
// archives its run outputs through. The surface mirrors a minimal subset of
// S3 so the object-store driver maps 1:1 while the filesystem driver can
// emulate the same semantics for development.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete document store backend.
type Driver string

// Available backends.
const (
	// DriverFilesystem stores documents under a local directory root.
	DriverFilesystem Driver = "fs"
	// DriverS3 stores documents in an S3-compatible bucket.
	DriverS3 Driver = "s3"
	// DriverMemory keeps documents in process memory, for tests.
	DriverMemory Driver = "memory"
)

// PutOptions carries the optional attributes of a document write.
type PutOptions struct {
	ContentType string
	// Metadata is a small flat key-value set stored alongside the document.
	Metadata map[string]string
}

// SignedURLOptions configures URL pre-signing.
type SignedURLOptions struct {
	Method string
	// Expiry defaults to 15 minutes.
	Expiry  time.Duration
	Headers map[string]string
}

// Info describes a stored document.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	URL          string            `json:"url,omitempty"`
}

// Store is the backend contract. Writes are create-only: Put fails when the
// key already exists, so an archived run document is never overwritten.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	// Delete removes a document, reporting false when it did not exist.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns the documents under a key prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	// PresignURL returns a time-limited GET URL, or ErrUnsupported.
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

// ErrUnsupported is returned for capabilities a driver does not offer.
var ErrUnsupported = errors.New("docstore: unsupported operation")
