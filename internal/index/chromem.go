package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/philippgille/chromem-go"
)

// DefaultCollection is the collection name used inside the persisted store.
const DefaultCollection = "helpdesk-qa"

// ChromemIndex is an Index backed by a chromem-go collection persisted at a
// filesystem path. chromem-go stores one gob file per document under the
// path, so writes are durable immediately and no explicit flush is needed.
type ChromemIndex struct {
	// collection is the underlying chromem collection.
	collection *chromem.Collection

	// embedder computes vectors for documents on upsert and queries on search.
	embedder Embedder

	// seeded records whether bootstrap created and seeded the collection.
	seeded bool
}

// OpenOrCreate opens the collection persisted at path, or creates and seeds
// it when no usable non-empty collection exists there.
//
// Precedence: an existing non-empty collection wins and seeds are ignored
// (already-indexed content is never re-embedded). Otherwise seeds, when
// provided, are embedded and persisted. With neither, the bootstrap fails
// with a ConfigurationError.
//
// A probe failure (corrupt files, permission problems, schema drift) is
// treated as "does not exist": the broken directory is moved aside so the
// index can be rebuilt from seeds instead of refusing to start.
func OpenOrCreate(ctx context.Context, path string, embedder Embedder, seeds []Document, log *slog.Logger) (*ChromemIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("index: embedder must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	state := stateProbing
	log.Debug("index bootstrap", slog.String("state", state.String()), slog.String("path", path))

	collection, count, probeErr := probe(path, embedder)
	switch {
	case probeErr == nil && count > 0:
		state = stateFound
	default:
		state = stateAbsentOrBroken
		if probeErr != nil {
			// Move the unreadable store aside and rebuild from seeds.
			aside := fmt.Sprintf("%s.broken-%d", path, time.Now().Unix())
			log.Warn("index probe failed, treating as absent",
				slog.Any("error", probeErr),
				slog.String("moved_to", aside),
			)
			if renameErr := os.Rename(path, aside); renameErr != nil && !os.IsNotExist(renameErr) {
				return nil, &StoreError{Op: "probe", Err: renameErr}
			}
			collection = nil
		}
	}

	if state == stateFound {
		state = stateReady
		log.Info("index opened",
			slog.String("state", state.String()),
			slog.String("path", path),
			slog.Int("documents", count),
		)
		return &ChromemIndex{collection: collection, embedder: embedder}, nil
	}

	// AbsentOrBroken: only seeds can get us to Ready.
	if len(seeds) == 0 {
		return nil, &ConfigurationError{Reason: "no content to initialize index"}
	}

	state = stateSeeding
	log.Info("index bootstrap",
		slog.String("state", state.String()),
		slog.String("path", path),
		slog.Int("seed_documents", len(seeds)),
	)

	if collection == nil {
		var err error
		collection, _, err = probe(path, embedder)
		if err != nil {
			return nil, &StoreError{Op: "seed", Err: err}
		}
	}

	idx := &ChromemIndex{collection: collection, embedder: embedder, seeded: true}
	if err := idx.addAll(ctx, seeds); err != nil {
		return nil, err
	}

	state = stateReady
	log.Info("index seeded",
		slog.String("state", state.String()),
		slog.String("path", path),
		slog.Int("documents", collection.Count()),
	)
	return idx, nil
}

// probe opens (creating if absent) the persistent DB at path and returns the
// collection plus its current document count. Any error means the store at
// path is unreadable.
func probe(path string, embedder Embedder) (*chromem.Collection, int, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, 0, err
	}

	// cosine space on normalized vectors, mirroring the embedding contract.
	metadata := map[string]string{"hnsw:space": "cosine"}
	collection, err := db.GetOrCreateCollection(DefaultCollection, metadata, embeddingFunc(embedder))
	if err != nil {
		return nil, 0, err
	}

	return collection, collection.Count(), nil
}

// embeddingFunc adapts our batch Embedder to chromem's per-text function.
// It is only consulted by chromem when a document or query arrives without a
// pre-computed vector.
func embeddingFunc(e Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vectors, err := e.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vectors) == 0 {
			return nil, fmt.Errorf("embedder returned no vectors")
		}
		return vectors[0], nil
	}
}

// Upsert replaces any existing entry under doc.ID, then inserts the freshly
// embedded document. The delete of a non-existent prior id is a no-op.
func (x *ChromemIndex) Upsert(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return &StoreError{Op: "upsert", Err: fmt.Errorf("document id is empty")}
	}

	if err := x.collection.Delete(ctx, nil, nil, doc.ID); err != nil {
		return &StoreError{Op: "upsert", Err: err}
	}

	return x.addAll(ctx, []Document{doc})
}

// addAll embeds and inserts the given documents in one batch.
func (x *ChromemIndex) addAll(ctx context.Context, docs []Document) error {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}

	vectors, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return &StoreError{Op: "embed", Err: err}
	}
	if len(vectors) != len(docs) {
		return &StoreError{Op: "embed", Err: fmt.Errorf("expected %d vectors, got %d", len(docs), len(vectors))}
	}

	ids := make([]string, len(docs))
	metadatas := make([]map[string]string, len(docs))
	contents := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
		metadatas[i] = doc.Metadata
		contents[i] = doc.Text
	}

	if err := x.collection.Add(ctx, ids, vectors, metadatas, contents); err != nil {
		return &StoreError{Op: "upsert", Err: err}
	}
	return nil
}

// Search embeds query and returns up to k documents ranked by descending
// cosine similarity. k is clamped to the collection size; an empty index
// yields an empty result, not an error.
func (x *ChromemIndex) Search(ctx context.Context, query string, k int) ([]Result, error) {
	count := x.collection.Count()
	if count == 0 {
		return []Result{}, nil
	}
	if k > count {
		k = count
	}
	if k <= 0 {
		return []Result{}, nil
	}

	vectors, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, &StoreError{Op: "search", Err: err}
	}
	if len(vectors) == 0 {
		return nil, &StoreError{Op: "search", Err: fmt.Errorf("embedder returned no vectors")}
	}

	hits, err := x.collection.QueryEmbedding(ctx, vectors[0], k, nil, nil)
	if err != nil {
		return nil, &StoreError{Op: "search", Err: err}
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			Document: Document{
				ID:       hit.ID,
				Text:     hit.Content,
				Metadata: hit.Metadata,
			},
			Score: hit.Similarity,
		})
	}
	return results, nil
}

// Count returns the number of live documents in the collection.
func (x *ChromemIndex) Count(_ context.Context) (int, error) {
	return x.collection.Count(), nil
}

// Seeded reports whether bootstrap created the collection and embedded the
// seed documents, as opposed to opening one with existing content. Callers
// that just supplied the seeds can skip re-upserting them.
func (x *ChromemIndex) Seeded() bool { return x.seeded }

// Close is a no-op: chromem persists each write immediately.
func (x *ChromemIndex) Close() error {
	return nil
}

var _ Index = (*ChromemIndex)(nil)
