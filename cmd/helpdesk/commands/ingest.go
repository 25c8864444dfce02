package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/embedder"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/ingestion"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/logging"
)

// NewIngestCmd constructs the `helpdesk ingest` command, which bulk-imports
// a QA export file into the catalog and the vector index.
func NewIngestCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Bulk-import a QA export file into the knowledge base",
		Long: `Import question/answer records from a JSON export file.

Each record is written to the catalog and embedded into the vector index.
Records that already exist (same id) are replaced, so re-running an import
is safe.

Examples:
  helpdesk ingest --file QA.json
  INDEX_BACKEND=qdrant helpdesk ingest --file QA.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if file == "" {
				return fmt.Errorf("ingest: --file is required")
			}

			recs, err := ingestion.LoadRecords(file)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			log.Info("export loaded", slog.String("file", file), slog.Int("records", len(recs)))

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}

			cat, err := openCatalog()
			if err != nil {
				return fmt.Errorf("ingest: failed to open catalog: %w", err)
			}
			defer func() { _ = cat.Close() }()

			for _, rec := range recs {
				if err := cat.Save(ctx, rec); err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
			}

			// The index seeds itself from the catalog when its store is new.
			// The records just saved are part of those seeds, so upserting
			// them again would embed every document twice.
			idx, seeded, err := buildIndex(ctx, emb, cat, log)
			if err != nil {
				return fmt.Errorf("ingest: failed to open index: %w", err)
			}
			defer func() { _ = idx.Close() }()

			if seeded {
				log.Info("index seeded from catalog, skipping upsert", slog.Int("records", len(recs)))
			} else {
				for _, rec := range recs {
					if err := idx.Upsert(ctx, rec.Document()); err != nil {
						return fmt.Errorf("ingest: record %s: %w", rec.ID, err)
					}
				}
			}

			count, err := idx.Count(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			log.Info("ingestion complete", slog.Int("imported", len(recs)), slog.Int("indexed_total", count))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the JSON export file")

	return cmd
}
