package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/luxweb/luxrag-go/internal/config"
	"github.com/luxweb/luxrag-go/internal/logging"
	"github.com/luxweb/luxrag-go/internal/server"
	"github.com/luxweb/luxrag-go/internal/tracing"
)

// NewServeCmd constructs the `luxrag serve` command, which starts the HTTP
// API server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the LuxRAG HTTP API server",
		Long: `Start the LuxRAG HTTP server on localhost.

The server exposes the query API (JSON, or SSE streaming when the client
sends Accept: text/event-stream), corpus and history inspection endpoints,
health and readiness probes, and Prometheus metrics. Set LUXRAG_API_KEY to
require bearer-token authentication on the data routes.

Examples:
  luxrag serve
  luxrag serve --port 9090
  MODEL_PROVIDER=openai luxrag serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			st := config.FromEnv()
			if host == "" {
				host = st.Server.Host
			}
			if port == 0 {
				port = st.Server.Port
			}

			log.Info("serve starting", slog.String("provider", string(st.Provider.Backend)))

			// Setup Langfuse tracing. Opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			idx, err := openIndex(ctx, st, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = idx.Close() }()

			historyStore, closeHistory := openHistory(st, log)
			defer closeHistory()

			luxAgent, chatModel, emb, err := buildAgent(ctx, st, idx, historyStore, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers := []server.Pinger{
				server.NewEmbeddingPinger(emb, "embedding"),
				server.NewGenerationPinger(chatModel, "generation"),
				server.NewIndexPinger(idx.ping, "index"),
			}

			srv, err := server.New(luxAgent, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  st.Server.APIKey,
				Catalog: idx.catalog,
				History: historyStore,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default from config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default from config)")

	return cmd
}
