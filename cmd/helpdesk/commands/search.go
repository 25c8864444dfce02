package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/embedder"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/logging"
)

// NewSearchCmd constructs the `helpdesk search` command, which prints the
// records closest to a query without generating an answer.
func NewSearchCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the knowledge base without generating an answer",
		Long: `Run a direct similarity search against the vector index and print the
matching records with their scores. Useful for checking what the model
would see as context for a given question.

Examples:
  helpdesk search "certificat de scolarité"
  helpdesk search -k 6 "frais de scolarité"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("search: failed to initialise embedder: %w", err)
			}

			cat, err := openCatalog()
			if err != nil {
				return fmt.Errorf("search: failed to open catalog: %w", err)
			}
			defer func() { _ = cat.Close() }()

			idx, _, err := buildIndex(ctx, emb, cat, log)
			if err != nil {
				return fmt.Errorf("search: failed to open index: %w", err)
			}
			defer func() { _ = idx.Close() }()

			results, err := idx.Search(ctx, args[0], k)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if len(results) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for i, res := range results {
				id := res.Document.Metadata["id"]
				if id == "" {
					id = res.Document.ID
				}
				fmt.Printf("%d. [%.3f] %s\n%s\n\n", i+1, res.Score, id, res.Document.Text)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "top", "k", 3, "Number of results to return")

	return cmd
}
