package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/embedder"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/logging"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/rag"
)

// NewAskCmd constructs the `helpdesk ask` command, which answers a single
// question from the knowledge base and prints the reply to stdout.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the support desk a single question",
		Long: `Ask a one-shot question against the knowledge base.

The question is matched against indexed records and the best matches are
handed to the watsonx model, which writes the answer. No conversation
history is involved.

Examples:
  helpdesk ask "Comment obtenir un certificat de scolarité ?"
  helpdesk ask "Quand ont lieu les rattrapages ?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ask: failed to initialise embedder: %w", err)
			}

			cat, err := openCatalog()
			if err != nil {
				return fmt.Errorf("ask: failed to open catalog: %w", err)
			}
			defer func() { _ = cat.Close() }()

			idx, _, err := buildIndex(ctx, emb, cat, log)
			if err != nil {
				return fmt.Errorf("ask: failed to open index: %w", err)
			}
			defer func() { _ = idx.Close() }()

			gen, err := buildGenerator()
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			engine, err := rag.New(idx, gen, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			answer, err := engine.AnswerQuestion(ctx, args[0])
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(answer)
			return nil
		},
	}

	return cmd
}
