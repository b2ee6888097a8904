package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"

	"github.com/luxweb/luxrag-go/internal/agent"
	"github.com/luxweb/luxrag-go/internal/config"
	"github.com/luxweb/luxrag-go/internal/embedder"
	"github.com/luxweb/luxrag-go/internal/provider"
	"github.com/luxweb/luxrag-go/internal/rag"
	"github.com/luxweb/luxrag-go/internal/store"
)

// indexHandle bundles an open vector index with the backend-dependent
// capabilities the commands care about. Only the sqlite backend carries the
// document catalog and stats; on qdrant those fields stay nil and callers
// must tolerate that.
type indexHandle struct {
	store   rag.VectorStore
	catalog rag.Catalog
	ping    func(ctx context.Context) error
	stats   func(ctx context.Context) (rag.IndexStats, error)
	name    string
}

// Close releases the underlying store.
func (h *indexHandle) Close() error {
	return h.store.Close() //nolint:wrapcheck // deferred cleanup, callers ignore the error
}

// openIndex opens the vector index backend selected by the configuration.
// The sqlite index is created on first open and pinned to the configured
// embedding identity; the qdrant collection is ensured on connect.
func openIndex(ctx context.Context, st *config.Settings, log *slog.Logger) (*indexHandle, error) {
	switch st.Index.Backend {
	case "", "sqlite":
		idx, err := rag.OpenSQLiteStore(&rag.SQLiteConfig{
			Path:           st.Index.Path,
			EmbeddingModel: embedder.Identity(&st.Embedding),
			Dimensions:     embedder.Dimensions(&st.Embedding),
		})
		if err != nil {
			return nil, fmt.Errorf("open sqlite index: %w", err)
		}
		log.Info("index ready",
			slog.String("backend", "sqlite"),
			slog.String("path", st.Index.Path))
		return &indexHandle{store: idx, catalog: idx, ping: idx.Ping, stats: idx.Stats, name: "sqlite"}, nil

	case "qdrant":
		q := st.Index.Qdrant
		idx, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
			Host:       q.Host,
			Port:       q.Port,
			Collection: q.Collection,
			VectorSize: uint64(embedder.Dimensions(&st.Embedding)), //nolint:gosec // dimensions are bounded
			APIKey:     q.APIKey,
			UseTLS:     q.TLS,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to qdrant at %s:%d: %w", q.Host, q.Port, err)
		}
		log.Info("index ready",
			slog.String("backend", "qdrant"),
			slog.String("host", q.Host),
			slog.Int("port", q.Port),
			slog.String("collection", q.Collection))
		return &indexHandle{store: idx, ping: idx.Ping, name: "qdrant"}, nil

	default:
		return nil, fmt.Errorf("unknown index backend %q (valid values: sqlite, qdrant)", st.Index.Backend)
	}
}

// openHistory opens the answer history store unless it is disabled. Failures
// disable history with a warning rather than aborting the command.
func openHistory(st *config.Settings, log *slog.Logger) (store.HistoryStore, func()) {
	if st.HistoryDisabled() {
		log.Info("history: disabled via LUXRAG_HISTORY_DB=disabled")
		return nil, func() {}
	}

	dbPath := st.HistoryDB
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, func() {}
		}
	}

	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil, func() {}
	}
	log.Info("history: store opened", slog.String("path", dbPath))
	return hs, func() { _ = hs.Close() }
}

// buildAgent wires the answer pipeline: embedder, chat model, retriever over
// the index, and the agent itself. The chat model and embedder are returned
// alongside the agent so serve and status can probe them directly.
func buildAgent(ctx context.Context, st *config.Settings, idx *indexHandle, history store.HistoryStore, log *slog.Logger) (*agent.LuxAgent, model.BaseChatModel, rag.Embedder, error) {
	emb, err := embedder.New(&st.Embedding)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialise embedder: %w", err)
	}
	log.Info("embedder initialised", slog.String("identity", embedder.Identity(&st.Embedding)))

	chatModel, err := provider.New(ctx, &st.Provider)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialise model provider: %w", err)
	}
	log.Info("provider initialised", slog.String("identity", provider.Identity(&st.Provider)))

	retriever, err := rag.NewRetriever(emb, idx.store, rag.RetrieverConfig{
		DefaultTopK:   st.Retrieval.TopK,
		MinSimilarity: st.Retrieval.MinSimilarity,
		Rerank:        st.Retrieval.Rerank,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialise retriever: %w", err)
	}

	luxAgent, err := agent.New(&agent.Config{
		ChatModel:        chatModel,
		Embedder:         emb,
		Retriever:        retriever,
		History:          history,
		ModelIdentity:    provider.Identity(&st.Provider),
		MaxContextTokens: st.MaxContextTokens,
		GenerateTimeout:  st.GenerateTimeout,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialise agent: %w", err)
	}

	return luxAgent, chatModel, emb, nil
}
