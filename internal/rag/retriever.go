package rag

import (
	"context"
	"fmt"
)

// RetrieverConfig tunes the retrieval stage.
type RetrieverConfig struct {
	// DefaultTopK is the number of results when the query does not set TopK
	// (default: 3).
	DefaultTopK int

	// MinSimilarity drops results scoring strictly below this cosine
	// similarity. Zero keeps everything the store returns.
	MinSimilarity float32

	// Rerank enables the deterministic reciprocal-rank-fusion re-rank over an
	// enlarged candidate set before truncating to top-k.
	Rerank bool
}

// DefaultRetriever implements the Retriever interface by combining an Embedder
// and a VectorStore. It embeds the query at retrieval time and delegates
// similarity search to the store.
type DefaultRetriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// cfg holds the retrieval tuning knobs.
	cfg RetrieverConfig
}

// NewRetriever constructs a DefaultRetriever from the given Embedder and
// VectorStore.
func NewRetriever(embedder Embedder, store VectorStore, cfg RetrieverConfig) (*DefaultRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 3
	}
	if cfg.MinSimilarity < 0 {
		cfg.MinSimilarity = 0
	}
	return &DefaultRetriever{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
	}, nil
}

// Retrieve embeds the query and returns the top-k most relevant chunks,
// highest similarity first. An empty result is not an error; the caller
// decides how to answer without context.
func (r *DefaultRetriever) Retrieve(ctx context.Context, q Query) ([]ScoredChunk, error) {
	embeddings, err := r.embedder.Embed(ctx, []string{q.Text})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}
	return r.RetrieveVector(ctx, q, embeddings[0])
}

// RetrieveVector is Retrieve with the query vector supplied by the caller,
// for pipelines that embed the query themselves and track that stage
// separately.
func (r *DefaultRetriever) RetrieveVector(ctx context.Context, q Query, embedding []float32) ([]ScoredChunk, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = r.cfg.DefaultTopK
	}

	// With re-ranking on, pull a wider candidate set so the fused ordering
	// has something to work with before truncation.
	fetchK := topK
	if r.cfg.Rerank {
		fetchK = candidateCount(topK)
	}

	scored, err := r.store.Search(ctx, embedding, fetchK, q.Filters)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	if r.cfg.MinSimilarity > 0 {
		kept := scored[:0]
		for _, sc := range scored {
			if sc.Similarity >= r.cfg.MinSimilarity {
				kept = append(kept, sc)
			}
		}
		scored = kept
	}

	if r.cfg.Rerank {
		scored = fuseRanks(q.Text, scored)
	}
	if len(scored) > topK {
		scored = scored[:topK]
	}

	return scored, nil
}
