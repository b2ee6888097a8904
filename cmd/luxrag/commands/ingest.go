package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxweb/luxrag-go/internal/config"
	"github.com/luxweb/luxrag-go/internal/corpus"
	"github.com/luxweb/luxrag-go/internal/embedder"
	"github.com/luxweb/luxrag-go/internal/ingestion"
	"github.com/luxweb/luxrag-go/internal/logging"
)

// NewIngestCmd constructs the `luxrag ingest` command, which syncs the corpus
// directory into the vector index.
func NewIngestCmd() *cobra.Command {
	var dir string
	var watch bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Sync the corpus directory into the vector index",
		Long: `Discover, chunk, and embed the documents under the corpus directory and
upsert them into the vector index.

The sync is incremental: unchanged documents are skipped by checksum, changed
documents are re-embedded, and documents whose source file no longer exists
are removed. With --watch the command keeps running after the initial sync
and re-syncs as files change, until interrupted.

Supported formats: PDF, HTML, Markdown, plain text.

Examples:
  luxrag ingest
  luxrag ingest --dir ./papers
  luxrag ingest --watch
  LUXRAG_INDEX_BACKEND=qdrant luxrag ingest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			st := config.FromEnv()
			if dir != "" {
				st.CorpusDir = dir
			}

			loader, err := corpus.NewLoader(st.CorpusDir)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			if err := embedder.Validate(&st.Embedding, log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, err := embedder.New(&st.Embedding)
			if err != nil {
				return fmt.Errorf("ingest: initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("identity", embedder.Identity(&st.Embedding)))

			idx, err := openIndex(ctx, st, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = idx.Close() }()

			pipeline, err := ingestion.NewPipeline(loader, emb, idx.store, ingestion.Config{
				ChunkSize:    st.Chunking.Size,
				ChunkOverlap: st.Chunking.Overlap,
				Workers:      st.IngestWorkers,
				BatchSize:    st.EmbeddingBatch,
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			summary, err := pipeline.SyncAll(ctx)
			if err != nil {
				return fmt.Errorf("ingest: sync failed: %w", err)
			}
			fmt.Printf("Synced %s: %d ingested, %d unchanged, %d skipped, %d removed (%d chunks, %s)\n",
				st.CorpusDir, summary.Ingested, summary.Unchanged, summary.Skipped, summary.Removed,
				summary.Chunks, summary.Duration.Round(time.Millisecond))

			if !watch {
				return nil
			}

			// Zero debounce picks the watcher's default window. Returns nil
			// once ctx is cancelled by SIGINT/SIGTERM.
			return pipeline.Watch(ctx, 0)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Corpus directory to sync (default from config)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep running and re-sync as corpus files change")

	return cmd
}
