package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/embedder"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/logging"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/rag"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/server"
)

// NewServeCmd constructs the `helpdesk serve` command, which starts the
// HTTP API server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the helpdesk HTTP API server",
		Long: `Start the helpdesk HTTP server.

The server exposes the question-answering API:

  POST /api/v1/ask        answer the latest user question in a conversation
  POST /api/v1/questions  add a validated question/answer record
  GET  /api/v1/questions  list recently added records
  GET  /api/v1/search     direct similarity search
  GET  /api/health        liveness
  GET  /api/ready         readiness (index + catalog probes)
  GET  /metrics           Prometheus metrics

Examples:
  helpdesk serve
  helpdesk serve --port 9090
  INDEX_BACKEND=qdrant helpdesk serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Flags win over env, which wins over YAML (applied as env).
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("HELPDESK_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("HELPDESK_PORT", port)
			}

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting",
				slog.String("index_backend", getEnvOrDefault("INDEX_BACKEND", "chromem")),
				slog.String("embedding_provider", getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")),
			)

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("serve: failed to initialise embedder: %w", err)
			}

			cat, err := openCatalog()
			if err != nil {
				return fmt.Errorf("serve: failed to open catalog: %w", err)
			}
			defer func() { _ = cat.Close() }()

			idx, _, err := buildIndex(ctx, emb, cat, log)
			if err != nil {
				return fmt.Errorf("serve: failed to open index: %w", err)
			}
			defer func() { _ = idx.Close() }()

			gen, err := buildGenerator()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			engine, err := rag.New(idx, gen, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			var origins []string
			if raw := os.Getenv("HELPDESK_ALLOWED_ORIGINS"); raw != "" {
				origins = strings.Split(raw, ",")
			}

			srv, err := server.New(engine, idx, cat, &server.Config{
				Host:   host,
				Port:   port,
				Logger: log,
				Pingers: []server.Pinger{
					server.NewIndexPinger(idx),
					server.NewCatalogPinger(cat),
				},
				RateLimit:      float64(getEnvInt("HELPDESK_RATE_LIMIT", 0)),
				RateBurst:      getEnvInt("HELPDESK_RATE_BURST", 0),
				APIKey:         os.Getenv("HELPDESK_API_KEY"),
				AllowedOrigins: origins,
			}, prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
