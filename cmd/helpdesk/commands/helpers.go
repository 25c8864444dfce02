package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/catalog"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/embedder"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/index"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/llm"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/qa"
)

// defaultModelID is the watsonx foundation model used when WATSONX_MODEL_ID
// is not set.
const defaultModelID = "meta-llama/llama-3-3-70b-instruct"

// openCatalog opens the QA record catalog at CATALOG_DB, falling back to
// the default path under ~/.helpdesk.
func openCatalog() (*catalog.SQLiteStore, error) {
	path := os.Getenv("CATALOG_DB")
	if path == "" {
		var err error
		path, err = catalog.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return catalog.Open(path)
}

// defaultIndexPath resolves the on-disk location for the chromem index,
// creating the parent directory if needed.
func defaultIndexPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".helpdesk")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "index"), nil
}

// buildIndex opens the configured vector index backend, seeding it from the
// catalog when the underlying store is absent or broken. The bool return
// reports whether the index was freshly seeded from the catalog during this
// call, in which case the caller must not re-upsert the same records.
func buildIndex(ctx context.Context, emb index.Embedder, cat catalog.Store, log *slog.Logger) (index.Index, bool, error) {
	var seeds []index.Document
	if cat != nil {
		recs, err := cat.All(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("loading seed records: %w", err)
		}
		seeds = seedRecords(recs)
	}

	switch backend := getEnvOrDefault("INDEX_BACKEND", "chromem"); backend {
	case "chromem":
		path := os.Getenv("INDEX_PATH")
		if path == "" {
			var err error
			path, err = defaultIndexPath()
			if err != nil {
				return nil, false, err
			}
		}
		idx, err := index.OpenOrCreate(ctx, path, emb, seeds, log)
		if err != nil {
			return nil, false, err
		}
		return idx, idx.Seeded(), nil

	case "qdrant":
		embProvider := getEnvOrDefault("EMBEDDING_PROVIDER", embedder.ProviderOllama)
		vectorSize := uint64(getEnvInt("EMBEDDING_DIMENSIONS", embedder.DefaultDimensions(embProvider)))
		idx, err := index.OpenOrCreateQdrant(ctx, &index.QdrantConfig{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("INDEX_COLLECTION", index.DefaultCollection),
			VectorSize: vectorSize,
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		}, emb, seeds, log)
		if err != nil {
			return nil, false, err
		}
		return idx, idx.Seeded(), nil

	default:
		return nil, false, fmt.Errorf("unknown INDEX_BACKEND %q (want chromem or qdrant)", backend)
	}
}

// buildGenerator constructs the watsonx chat client from the environment.
func buildGenerator() (*llm.WatsonxClient, error) {
	return llm.NewWatsonxClient(llm.WatsonxOptions{
		URL:         os.Getenv("WATSONX_URL"),
		APIKey:      os.Getenv("WATSONX_API_KEY"),
		ProjectID:   os.Getenv("WATSONX_PROJECT_ID"),
		ModelID:     getEnvOrDefault("WATSONX_MODEL_ID", defaultModelID),
		IAMEndpoint: os.Getenv("WATSONX_IAM_URL"),
	})
}

// seedRecords converts catalog records into index documents.
func seedRecords(recs []qa.Record) []index.Document {
	docs := make([]index.Document, 0, len(recs))
	for _, rec := range recs {
		docs = append(docs, rec.Document())
	}
	return docs
}

// getEnvOrDefault returns the env var value or def when unset.
func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the env var parsed as int, or def when unset or invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
