package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxweb/luxrag-go/internal/config"
	"github.com/luxweb/luxrag-go/internal/embedder"
	"github.com/luxweb/luxrag-go/internal/logging"
	"github.com/luxweb/luxrag-go/internal/provider"
	"github.com/luxweb/luxrag-go/internal/server"
)

// statusProbeTimeout bounds each dependency probe so a hung backend cannot
// stall the command.
const statusProbeTimeout = 5 * time.Second

// NewStatusCmd constructs the `luxrag status` command, which reports the
// index contents and probes each backend dependency.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index contents and backend health",
		Long: `Show the vector index identity and contents, then probe each dependency.

The index section reports the embedding model the index was built with and
its document and chunk counts. The probe section sends a tiny request to the
index, the embedding service, and the generation model; the generation probe
consumes a few tokens.

Examples:
  luxrag status
  LUXRAG_INDEX_BACKEND=qdrant luxrag status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			st := config.FromEnv()

			idx, err := openIndex(ctx, st, log)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			defer func() { _ = idx.Close() }()

			fmt.Printf("Index backend:   %s\n", idx.name)
			if idx.stats != nil {
				stats, err := idx.stats(ctx)
				if err != nil {
					return fmt.Errorf("status: read index stats: %w", err)
				}
				fmt.Printf("Embedding model: %s (%d dimensions, %s)\n",
					stats.EmbeddingModel, stats.Dimensions, stats.Metric)
				fmt.Printf("Documents:       %d\n", stats.Documents)
				fmt.Printf("Chunks:          %d\n", stats.Chunks)
			} else {
				fmt.Printf("Collection:      %s\n", st.Index.Qdrant.Collection)
				fmt.Println("Document counts are only tracked by the sqlite backend.")
			}

			emb, err := embedder.New(&st.Embedding)
			if err != nil {
				return fmt.Errorf("status: initialise embedder: %w", err)
			}
			chatModel, err := provider.New(ctx, &st.Provider)
			if err != nil {
				return fmt.Errorf("status: initialise model provider: %w", err)
			}

			probes := []server.Pinger{
				server.NewIndexPinger(idx.ping, "index ("+idx.name+")"),
				server.NewEmbeddingPinger(emb, "embedding ("+embedder.Identity(&st.Embedding)+")"),
				server.NewGenerationPinger(chatModel, "generation ("+provider.Identity(&st.Provider)+")"),
			}

			fmt.Println("\nProbes:")
			failing := 0
			for _, p := range probes {
				pctx, cancel := context.WithTimeout(ctx, statusProbeTimeout)
				perr := p.Ping(pctx)
				cancel()
				if perr != nil {
					failing++
					fmt.Printf("  %-42s failed: %v\n", p.Name(), perr)
				} else {
					fmt.Printf("  %-42s ok\n", p.Name())
				}
			}
			if failing > 0 {
				return fmt.Errorf("status: %d of %d probes failing", failing, len(probes))
			}
			return nil
		},
	}
}
