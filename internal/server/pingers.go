package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/luxweb/luxrag-go/internal/rag"
)

// EmbeddingPinger probes the embedding backend with a minimal one-text batch.
// It satisfies the Pinger interface and is used by GET /api/ready.
type EmbeddingPinger struct {
	// embedder is the embedding client to probe.
	embedder rag.Embedder
	// name identifies the backend in readiness responses
	// (e.g. "ollama/nomic-embed-text").
	name string
}

// NewEmbeddingPinger constructs an EmbeddingPinger for the given embedder and
// backend name.
func NewEmbeddingPinger(e rag.Embedder, name string) *EmbeddingPinger {
	return &EmbeddingPinger{embedder: e, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *EmbeddingPinger) Name() string { return p.name }

// Ping embeds a single short text and checks that a vector came back.
func (p *EmbeddingPinger) Ping(ctx context.Context) error {
	vecs, err := p.embedder.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embed failed: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return fmt.Errorf("embed returned no vector")
	}
	return nil
}

// GenerationPinger probes the generation backend by sending a minimal
// generate request. Each probe consumes a few tokens, so /api/ready should
// not be polled on a tight schedule.
type GenerationPinger struct {
	// model is the chat model to probe.
	model model.BaseChatModel
	// name identifies the backend in readiness responses (e.g. "ollama/gemma3").
	name string
}

// NewGenerationPinger constructs a GenerationPinger for the given model and
// backend name.
func NewGenerationPinger(m model.BaseChatModel, name string) *GenerationPinger {
	return &GenerationPinger{model: m, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *GenerationPinger) Name() string { return p.name }

// Ping sends a one-word generate request to the backend.
func (p *GenerationPinger) Ping(ctx context.Context) error {
	resp, err := p.model.Generate(ctx, []*schema.Message{schema.UserMessage("ping")})
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}

// IndexPinger probes the vector index through the store's own reachability
// check: the SQLite backend pings its database handle, the Qdrant backend
// calls the native HealthCheck RPC.
type IndexPinger struct {
	// ping is the wrapped store check.
	ping func(ctx context.Context) error
	// name is the backend label (e.g. "sqlite", "qdrant").
	name string
}

// NewIndexPinger wraps a store's Ping method as a readiness probe. Both
// *rag.SQLiteStore and *rag.QdrantStore provide a compatible Ping.
func NewIndexPinger(ping func(ctx context.Context) error, name string) *IndexPinger {
	return &IndexPinger{ping: ping, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *IndexPinger) Name() string { return p.name }

// Ping delegates to the wrapped store check.
func (p *IndexPinger) Ping(ctx context.Context) error {
	return p.ping(ctx)
}
