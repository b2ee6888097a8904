// Package rag defines the data model and interfaces for the retrieval
// pipeline: vector storage, query retrieval, and embedding. Concrete index
// backends (SQLite, Qdrant) satisfy these interfaces so the agent layer never
// depends on a specific store.
package rag

import (
	"context"
	"time"
)

// Document is a source-level unit of the corpus: one ingested file. It is
// immutable after ingestion; re-ingesting a changed source supersedes the
// document (old chunks deleted, new chunks inserted) rather than mutating it.
type Document struct {
	// ID is the stable document identifier, derived from the source path.
	ID string

	// Source is the origin file path or URI of the document.
	Source string

	// Title is the human-readable document title (filename stem by default).
	Title string

	// Checksum is the sha256 hex digest of the raw file content, used to
	// detect changed sources on re-ingestion.
	Checksum string

	// Tags holds domain labels inferred from the source path (e.g. a
	// fabrication-process tag) plus any caller-supplied labels.
	Tags []string

	// ChunkCount is the number of chunks this document produced.
	// Populated when listing the catalog, not during ingestion.
	ChunkCount int

	// IngestedAt is when this document version entered the index.
	IngestedAt time.Time
}

// Chunk is a contiguous passage of a document's text, the unit of embedding
// and retrieval. Chunk IDs are deterministic (derived from the document ID
// and ordinal) so re-ingesting unchanged content is idempotent.
type Chunk struct {
	// ID is the unique chunk identifier.
	ID string

	// DocumentID is the owning document's ID.
	DocumentID string

	// Ordinal is the zero-based position of this chunk within its document.
	Ordinal int

	// Text is the chunk's passage text.
	Text string

	// Start and End are the rune offsets of the passage within the
	// normalized document text. Consecutive chunks overlap by the configured
	// amount, so chunk N's Start precedes chunk N-1's End.
	Start int
	End   int

	// Embedding is the chunk's dense vector. Nil until computed.
	Embedding []float32

	// Source is the origin path of the owning document, denormalized for
	// retrieval-time display and citation.
	Source string

	// Title is the owning document's title, denormalized like Source.
	Title string

	// Metadata holds the document's metadata snapshot (tags, etc.) as
	// key-value pairs usable in search filters.
	Metadata map[string]string
}

// ScoredChunk pairs a retrieved chunk with its similarity to the query.
type ScoredChunk struct {
	Chunk

	// Similarity is the cosine similarity between the query vector and the
	// chunk vector, in [-1, 1].
	Similarity float32
}

// Query is a single retrieval request. Ephemeral — one per question.
type Query struct {
	// Text is the raw question text.
	Text string

	// Filters restricts retrieval to chunks whose metadata matches every
	// key-value pair (e.g. {"tag": "cpo"}). Empty means no restriction.
	Filters map[string]string

	// TopK overrides the configured result count when > 0.
	TopK int
}

// VectorStore is the interface for persisting and searching chunk embeddings.
// Implementations must be safe to call from multiple goroutines; each upsert
// is atomic at the entry level, so concurrent readers never observe a
// half-written chunk.
type VectorStore interface {
	// Upsert stores or replaces a batch of chunks. Every chunk must carry an
	// embedding of the store's configured dimensionality; chunks with a
	// mismatched dimensionality are rejected (the whole batch fails).
	Upsert(ctx context.Context, chunks []Chunk) error

	// Search returns the top-k chunks most similar to the query embedding,
	// highest similarity first. Chunks whose metadata does not match every
	// filter pair are excluded before ranking. Equal similarities are
	// returned in insertion order (earlier-ingested first).
	Search(ctx context.Context, queryEmbedding []float32, topK int, filters map[string]string) ([]ScoredChunk, error)

	// Delete removes chunks by their IDs. Missing IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// DeleteBySource removes every chunk belonging to the given document,
	// used when a changed source supersedes its previous version.
	DeleteBySource(ctx context.Context, documentID string) error

	// Close releases any resources held by the store.
	Close() error
}

// Catalog is the optional document-catalog capability of a VectorStore.
// The local SQLite backend implements it; ingestion uses it for checksum
// based change detection, and the server uses it to list the corpus.
type Catalog interface {
	// PutDocument records (or replaces) a document's catalog entry.
	PutDocument(ctx context.Context, doc Document) error

	// GetDocument returns the catalog entry for the given document ID.
	// The second return value is false when the document is unknown.
	GetDocument(ctx context.Context, id string) (Document, bool, error)

	// ListDocuments returns all catalog entries ordered by source path,
	// each with its ChunkCount populated.
	ListDocuments(ctx context.Context) ([]Document, error)

	// DeleteDocument removes a document's catalog entry and its chunks.
	DeleteDocument(ctx context.Context, id string) error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is the high-level interface used by the agent to fetch grounding
// context for a query. It combines query embedding, vector search, filtering,
// and optional re-ranking. Implementations must be deterministic: identical
// query against identical index state yields an identical ordered result.
type Retriever interface {
	// Retrieve returns the ranked chunks for the query, or an empty slice
	// (not an error) when nothing meets the minimum similarity threshold.
	Retrieve(ctx context.Context, q Query) ([]ScoredChunk, error)
}

// VectorRetriever is the two-phase variant of Retriever: the caller embeds
// the query itself and passes the vector in. The query pipeline uses it to
// attribute the embedding and retrieval stages separately.
type VectorRetriever interface {
	Retriever

	// RetrieveVector behaves like Retrieve for a pre-embedded query.
	RetrieveVector(ctx context.Context, q Query, embedding []float32) ([]ScoredChunk, error)
}
