package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payloadTextKey is the reserved payload field holding the document text.
// All other payload fields are document metadata.
const payloadTextKey = "text"

// QdrantConfig holds connection parameters for a Qdrant-backed index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this
	// collection. Must match the embedder's output dimension.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex is an Index backed by a Qdrant collection. It is the
// server-hosted alternative to the default file-persisted backend.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig

	// embedder computes vectors for documents on upsert and queries on search.
	embedder Embedder

	// seeded records whether bootstrap created and seeded the collection.
	seeded bool
}

// OpenOrCreateQdrant connects to Qdrant and applies the same bootstrap
// precedence as the file-backed index: a non-empty existing collection wins
// and seeds are ignored; otherwise seeds are embedded and persisted; with
// neither, bootstrap fails with a ConfigurationError. A probe failure is
// treated as "collection does not exist" and falls through to re-creation.
func OpenOrCreateQdrant(ctx context.Context, cfg *QdrantConfig, embedder Embedder, seeds []Document, log *slog.Logger) (*QdrantIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("index: embedder must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, &StoreError{Op: "probe", Err: err}
	}

	idx := &QdrantIndex{client: client, cfg: cfg, embedder: embedder}

	state := stateProbing
	log.Debug("index bootstrap", slog.String("state", state.String()), slog.String("collection", cfg.Collection))

	count, probeErr := idx.probe(ctx)
	if probeErr == nil && count > 0 {
		state = stateReady
		log.Info("index opened",
			slog.String("state", state.String()),
			slog.String("collection", cfg.Collection),
			slog.Int("documents", count),
		)
		return idx, nil
	}

	state = stateAbsentOrBroken
	if probeErr != nil {
		log.Warn("index probe failed, treating as absent", slog.Any("error", probeErr))
		// Drop whatever is there so the collection can be recreated cleanly.
		_ = client.DeleteCollection(ctx, cfg.Collection)
	}

	if len(seeds) == 0 {
		return nil, &ConfigurationError{Reason: "no content to initialize index"}
	}

	state = stateSeeding
	log.Info("index bootstrap",
		slog.String("state", state.String()),
		slog.String("collection", cfg.Collection),
		slog.Int("seed_documents", len(seeds)),
	)

	if err := idx.ensureCollection(ctx); err != nil {
		return nil, &StoreError{Op: "seed", Err: err}
	}
	if err := idx.insert(ctx, seeds); err != nil {
		return nil, err
	}
	idx.seeded = true

	state = stateReady
	log.Info("index seeded",
		slog.String("state", state.String()),
		slog.String("collection", cfg.Collection),
		slog.Int("documents", len(seeds)),
	)
	return idx, nil
}

// probe reports the document count of the collection, or an error when the
// collection is absent or unreadable.
func (x *QdrantIndex) probe(ctx context.Context) (int, error) {
	exists, err := x.client.CollectionExists(ctx, x.cfg.Collection)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	count, err := x.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: x.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// ensureCollection creates the collection if it does not already exist.
func (x *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := x.client.CollectionExists(ctx, x.cfg.Collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: x.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     x.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

// Upsert deletes any prior point under doc.ID, then inserts the freshly
// embedded document. Qdrant replaces points by id natively, but the explicit
// delete keeps the contract identical across backends.
func (x *QdrantIndex) Upsert(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return &StoreError{Op: "upsert", Err: fmt.Errorf("document id is empty")}
	}

	_, err := x.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: x.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointID(doc.ID)),
	})
	if err != nil {
		return &StoreError{Op: "upsert", Err: err}
	}

	return x.insert(ctx, []Document{doc})
}

// insert embeds and upserts the given documents in one batch.
func (x *QdrantIndex) insert(ctx context.Context, docs []Document) error {
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

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		payload := map[string]any{payloadTextKey: doc.Text}
		for k, v := range doc.Metadata {
			if k == payloadTextKey {
				continue
			}
			payload[k] = v
		}
		// The point id may be a derived UUID, so the original document id
		// must survive in the payload.
		if _, ok := payload["id"]; !ok {
			payload["id"] = doc.ID
		}

		points = append(points, &qdrant.PointStruct{
			Id:      pointID(doc.ID),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	if _, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.cfg.Collection,
		Points:         points,
	}); err != nil {
		return &StoreError{Op: "upsert", Err: err}
	}
	return nil
}

// pointID maps a document id onto a valid Qdrant point id. Qdrant accepts
// only unsigned integers and UUIDs, while record ids are arbitrary strings
// (the bulk export uses numeric strings like "4521"), so any non-UUID id is
// replaced by a deterministic UUIDv5 derived from it. The same input always
// yields the same point id, which keeps upsert-by-id semantics intact.
func pointID(id string) *qdrant.PointId {
	if _, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(id)
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String())
}

// Search embeds query and returns up to k documents ranked by descending
// cosine similarity. Qdrant returns fewer than k hits when the collection is
// smaller; an empty collection yields an empty result.
func (x *QdrantIndex) Search(ctx context.Context, query string, k int) ([]Result, error) {
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

	limit := uint64(k)
	hits, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.cfg.Collection,
		Query:          qdrant.NewQuery(vectors[0]...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &StoreError{Op: "search", Err: err}
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		doc := Document{
			ID:       hit.GetId().GetUuid(),
			Metadata: make(map[string]string),
		}
		for k, v := range hit.GetPayload() {
			if k == payloadTextKey {
				doc.Text = v.GetStringValue()
				continue
			}
			doc.Metadata[k] = v.GetStringValue()
		}
		results = append(results, Result{Document: doc, Score: hit.GetScore()})
	}
	return results, nil
}

// Count returns the exact number of points in the collection.
func (x *QdrantIndex) Count(ctx context.Context) (int, error) {
	count, err := x.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: x.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, &StoreError{Op: "count", Err: err}
	}
	return int(count), nil
}

// Seeded reports whether bootstrap created the collection and embedded the
// seed documents, as opposed to connecting to one with existing content.
func (x *QdrantIndex) Seeded() bool { return x.seeded }

// Close closes the underlying gRPC connection.
func (x *QdrantIndex) Close() error {
	return x.client.Close()
}

var _ Index = (*QdrantIndex)(nil)
