package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use. Run one collection per
	// embedding model; vectors from different models must never share one.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a remote Qdrant instance. It
// offers no document catalog; incremental re-ingestion against Qdrant always
// replaces a document's chunks via DeleteBySource.
//
// Qdrant orders equal-similarity results by internal point ID, so the
// insertion-order tie-break of the local index is only approximated here.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// known payload keys; everything else round-trips as chunk metadata.
const (
	payloadChunkID = "chunk_id"
	payloadDocID   = "doc_id"
	payloadOrdinal = "ordinal"
	payloadContent = "content"
	payloadStart   = "start"
	payloadEnd     = "end"
	payloadSource  = "source"
	payloadTitle   = "title"
)

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary) and that its vector size matches the
// configured dimensionality.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	clientCfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	}

	client, err := qdrant.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already
// exist. An existing collection whose vector size differs from the
// configuration means its points live in a different embedding space, so the
// store refuses to serve it.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.cfg.Collection)
		if err != nil {
			return fmt.Errorf("qdrant: failed to inspect collection %q: %w", s.cfg.Collection, err)
		}
		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size != s.cfg.VectorSize {
			return &IndexCorruptError{
				Path: s.cfg.Collection,
				Reason: fmt.Sprintf("collection vector size %d, configured dimensionality %d; changing embedding models requires a new collection",
					size, s.cfg.VectorSize),
			}
		}
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// pointID derives a stable Qdrant point UUID from a chunk ID, so re-upserting
// the same chunk replaces its point instead of duplicating it.
func pointID(chunkID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String())
}

// Upsert stores or updates a batch of chunks with their embeddings.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		if c.ID == "" {
			return fmt.Errorf("qdrant: upsert: chunk with empty ID")
		}
		if uint64(len(c.Embedding)) != s.cfg.VectorSize {
			return fmt.Errorf("qdrant: upsert: chunk %s has dimensionality %d, collection requires %d",
				c.ID, len(c.Embedding), s.cfg.VectorSize)
		}

		payload := map[string]interface{}{
			payloadChunkID: c.ID,
			payloadDocID:   c.DocumentID,
			payloadOrdinal: int64(c.Ordinal),
			payloadContent: c.Text,
			payloadStart:   int64(c.Start),
			payloadEnd:     int64(c.End),
			payloadSource:  c.Source,
			payloadTitle:   c.Title,
		}
		for k, v := range c.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      pointID(c.ID),
			Vectors: qdrant.NewVectors(c.Embedding...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Search performs a cosine similarity search and returns the top-k chunks.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, topK int, filters map[string]string) ([]ScoredChunk, error) {
	if uint64(len(queryEmbedding)) != s.cfg.VectorSize {
		return nil, fmt.Errorf("qdrant: search: query dimensionality %d, collection requires %d",
			len(queryEmbedding), s.cfg.VectorSize)
	}
	if topK <= 0 {
		return nil, nil
	}

	var filter *qdrant.Filter
	if len(filters) > 0 {
		conditions := make([]*qdrant.Condition, 0, len(filters))
		for k, v := range filters {
			conditions = append(conditions, qdrant.NewMatch(k, v))
		}
		filter = &qdrant.Filter{Must: conditions}
	}

	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Filter:         filter,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	scored := make([]ScoredChunk, 0, len(results))
	for _, r := range results {
		c := Chunk{Metadata: make(map[string]string)}
		if p := r.Payload; p != nil {
			for k, v := range p {
				switch k {
				case payloadChunkID:
					c.ID = v.GetStringValue()
				case payloadDocID:
					c.DocumentID = v.GetStringValue()
				case payloadOrdinal:
					c.Ordinal = int(v.GetIntegerValue())
				case payloadContent:
					c.Text = v.GetStringValue()
				case payloadStart:
					c.Start = int(v.GetIntegerValue())
				case payloadEnd:
					c.End = int(v.GetIntegerValue())
				case payloadSource:
					c.Source = v.GetStringValue()
				case payloadTitle:
					c.Title = v.GetStringValue()
				default:
					c.Metadata[k] = v.GetStringValue()
				}
			}
		}
		if len(c.Metadata) == 0 {
			c.Metadata = nil
		}
		scored = append(scored, ScoredChunk{Chunk: c, Similarity: r.Score})
	}

	return scored, nil
}

// Delete removes chunks from the collection by their IDs.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, pointID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}

	return nil
}

// DeleteBySource removes every chunk belonging to the given document.
func (s *QdrantStore) DeleteBySource(ctx context.Context, documentID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(payloadDocID, documentID)},
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete by document %s failed: %w", documentID, err)
	}

	return nil
}

// Ping reports whether the Qdrant instance is reachable.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
