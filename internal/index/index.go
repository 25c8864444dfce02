// Package index implements the similarity-searchable document index for the
// help-desk knowledge base: bootstrap (open an existing collection or seed a
// new one), upsert-by-id, and k-nearest-neighbour search over embedded
// documents. Two backends satisfy the Index interface: a chromem-go
// collection persisted at a filesystem path (default) and a Qdrant server.
package index

import (
	"context"
	"fmt"
)

// Document is one indexable unit: the rendered text that is embedded plus the
// structured metadata carried alongside it for traceability.
type Document struct {
	// ID is the stable unique identifier. Re-upserting an existing ID
	// replaces the prior entry (last write wins, no history).
	ID string

	// Text is the deterministic rendering of the underlying QA record.
	// It is the only input to the embedding computation.
	Text string

	// Metadata is a copy of the record's structured fields. It never
	// influences ranking; it travels with the document so callers can
	// trace and filter results.
	Metadata map[string]string
}

// Result is a single search hit.
type Result struct {
	// Document is the stored document.
	Document Document

	// Score is the cosine similarity between the query embedding and the
	// document embedding, in [0, 1] for normalized vectors.
	Score float32
}

// Embedder converts text into dense vector embeddings. Implementations must
// be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is the durable similarity-searchable store of documents. Embedding
// happens implicitly on write and on query via the Embedder injected at
// bootstrap. Implementations must support concurrent reads; concurrent
// upserts to distinct ids must not corrupt unrelated entries.
type Index interface {
	// Upsert stores doc under doc.ID, replacing any prior entry with the
	// same id. Deleting a non-existent prior entry is not an error.
	//
	// Upsert is delete-then-insert with no transaction around the pair: a
	// concurrent reader may transiently observe neither version, and
	// concurrent upserts to the same id race (last committed pair wins).
	// Ids are generated per submission, so same-id races do not occur in
	// normal operation.
	Upsert(ctx context.Context, doc Document) error

	// Search returns the k stored documents most similar to query, ranked
	// by descending cosine similarity. It returns fewer than k results if
	// the index holds fewer documents, and an empty slice (not an error)
	// on an empty index.
	Search(ctx context.Context, query string, k int) ([]Result, error)

	// Count returns the number of live documents in the index.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the index.
	Close() error
}

// bootstrapState tracks the open-or-create state machine. The probe outcome
// is an explicit branch, not a swallowed error: a collection that exists but
// cannot be read is AbsentOrBroken and falls through to re-creation.
type bootstrapState int

const (
	// stateProbing is the initial state while the storage location is examined.
	stateProbing bootstrapState = iota
	// stateFound means a non-empty collection exists; seed documents are ignored.
	stateFound
	// stateAbsentOrBroken means no usable collection exists at the location.
	stateAbsentOrBroken
	// stateSeeding means seed documents are being embedded and persisted.
	stateSeeding
	// stateReady is the terminal state of a successful bootstrap.
	stateReady
)

// String returns the lowercase state name for structured logs.
func (s bootstrapState) String() string {
	switch s {
	case stateProbing:
		return "probing"
	case stateFound:
		return "found"
	case stateAbsentOrBroken:
		return "absent_or_broken"
	case stateSeeding:
		return "seeding"
	case stateReady:
		return "ready"
	default:
		return fmt.Sprintf("bootstrapState(%d)", int(s))
	}
}

// ConfigurationError reports that the index could not be bootstrapped: no
// existing non-empty collection was found and no seed documents were
// supplied. It is fatal at startup and never retried.
type ConfigurationError struct {
	// Reason describes what was missing.
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "index: " + e.Reason
}

// StoreError wraps an underlying storage failure during upsert, search, or
// count after a successful bootstrap. The core does not retry; callers may.
type StoreError struct {
	// Op is the operation that failed ("upsert", "search", "count", "seed").
	Op string
	// Err is the underlying backend error.
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("index: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying backend error.
func (e *StoreError) Unwrap() error {
	return e.Err
}
