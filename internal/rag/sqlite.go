package rag

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// indexSchemaVersion is bumped whenever the on-disk layout changes in a way
// that requires re-ingestion. A stored version that differs from this value
// fails the load rather than guessing.
const indexSchemaVersion = "1"

// metricCosine is the only similarity metric the index supports. It is
// recorded in the header so a future metric change invalidates old indexes
// instead of silently mixing score spaces.
const metricCosine = "cosine"

// SQLiteConfig holds the settings for opening a local SQLite-backed index.
type SQLiteConfig struct {
	// Path is the index database file. Use ":memory:" in tests.
	Path string

	// EmbeddingModel is the identity of the embedding model whose vectors
	// this index holds (e.g. "ollama/nomic-embed-text"). Recorded in the
	// header on first open; later opens refuse to load on mismatch.
	EmbeddingModel string

	// Dimensions is the fixed vector dimensionality of the index.
	Dimensions int
}

// SQLiteStore implements VectorStore and Catalog backed by a single local
// SQLite database file. Vectors are stored as little-endian float32 BLOBs;
// similarity search runs over an in-memory copy of the entries guarded by a
// read/write lock, so many queries can search concurrently while ingestion
// writes.
type SQLiteStore struct {
	// db is the underlying database handle, limited to one connection so
	// writes are serialized.
	db *sql.DB

	// cfg holds the resolved open configuration.
	cfg *SQLiteConfig

	// mu guards entries, byID, and nextSeq.
	mu sync.RWMutex

	// entries holds every index entry in insertion order. The slice order is
	// the tie-break order for equal similarities.
	entries []*indexEntry

	// byID maps chunk ID to its entry for in-place replacement on upsert.
	byID map[string]*indexEntry

	// nextSeq is the next insertion sequence number to assign.
	nextSeq int64
}

// indexEntry is the in-memory form of one persisted chunk.
type indexEntry struct {
	// chunk holds the chunk fields without the embedding.
	chunk Chunk
	// vec is the decoded embedding vector.
	vec []float32
	// norm is the precomputed Euclidean norm of vec.
	norm float64
	// seq is the insertion sequence number (stable across replacement).
	seq int64
}

// OpenSQLiteStore opens (or creates) the index at cfg.Path, validates the
// header against the configured embedding model and dimensionality, and loads
// the entry snapshot. A header or payload that fails validation returns an
// *IndexCorruptError and the store refuses to serve.
//
// When cfg.EmbeddingModel is empty and cfg.Dimensions is zero the stored
// header is adopted as-is, which allows inspecting an existing index without
// an embedder configured.
func OpenSQLiteStore(cfg *SQLiteConfig) (*SQLiteStore, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("rag: sqlite index path must not be empty")
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("rag: create index directory: %w", err)
		}
	}

	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := cfg.Path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("rag: open index %s: %w", cfg.Path, err)
	}
	// Limit to a single connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:   db,
		cfg:  cfg,
		byID: make(map[string]*indexEntry),
	}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.checkHeader(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.loadSnapshot(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS index_meta (
    key    TEXT PRIMARY KEY,
    value  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS documents (
    id           TEXT PRIMARY KEY,
    source       TEXT    NOT NULL,
    title        TEXT    NOT NULL,
    checksum     TEXT    NOT NULL,
    tags         TEXT    NOT NULL DEFAULT '',
    ingested_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS chunks (
    id         TEXT PRIMARY KEY,
    doc_id     TEXT    NOT NULL,
    ordinal    INTEGER NOT NULL,
    content    TEXT    NOT NULL,
    start_off  INTEGER NOT NULL,
    end_off    INTEGER NOT NULL,
    vector     BLOB    NOT NULL,
    source     TEXT    NOT NULL,
    title      TEXT    NOT NULL,
    meta       TEXT    NOT NULL DEFAULT '{}',
    seq        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks (doc_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_chunks_seq ON chunks (seq);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("rag: index migrate: %w", err)
	}
	return nil
}

// checkHeader validates the stored header against the configured embedding
// model and dimensionality, writing a fresh header when the index is new.
// A mismatched header means the on-disk vectors live in a different space
// than the configured runtime would produce, so the store refuses to load.
func (s *SQLiteStore) checkHeader() error {
	stored, err := s.readHeader()
	if err != nil {
		return err
	}

	if len(stored) == 0 {
		// Fresh index. In adopt mode there is nothing to record yet.
		if s.cfg.EmbeddingModel == "" && s.cfg.Dimensions == 0 {
			return nil
		}
		return s.writeHeader()
	}

	if v := stored["schema_version"]; v != indexSchemaVersion {
		return &IndexCorruptError{
			Path:   s.cfg.Path,
			Reason: fmt.Sprintf("schema version %q, expected %q; re-ingest the corpus", v, indexSchemaVersion),
		}
	}
	if v := stored["metric"]; v != metricCosine {
		return &IndexCorruptError{
			Path:   s.cfg.Path,
			Reason: fmt.Sprintf("similarity metric %q, expected %q", v, metricCosine),
		}
	}

	// Adopt mode: take the stored identity without verification.
	if s.cfg.EmbeddingModel == "" && s.cfg.Dimensions == 0 {
		dims, err := strconv.Atoi(stored["dimensions"])
		if err != nil || dims <= 0 {
			return &IndexCorruptError{Path: s.cfg.Path, Reason: fmt.Sprintf("invalid stored dimensionality %q", stored["dimensions"])}
		}
		s.cfg.EmbeddingModel = stored["embedding_model"]
		s.cfg.Dimensions = dims
		return nil
	}

	if stored["embedding_model"] != s.cfg.EmbeddingModel || stored["dimensions"] != fmt.Sprintf("%d", s.cfg.Dimensions) {
		return &IndexCorruptError{
			Path: s.cfg.Path,
			Reason: fmt.Sprintf("built with model %s (dim %s), configured model %s (dim %d); changing embedding models requires a full re-ingest",
				stored["embedding_model"], stored["dimensions"], s.cfg.EmbeddingModel, s.cfg.Dimensions),
		}
	}

	return nil
}

// readHeader returns all index_meta key-value pairs.
func (s *SQLiteStore) readHeader() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM index_meta`)
	if err != nil {
		return nil, fmt.Errorf("rag: read index header: %w", err)
	}
	defer rows.Close()

	header := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("rag: scan index header: %w", err)
		}
		header[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rag: read index header rows: %w", err)
	}
	return header, nil
}

// writeHeader records the index identity for a freshly created index.
func (s *SQLiteStore) writeHeader() error {
	pairs := map[string]string{
		"schema_version":  indexSchemaVersion,
		"embedding_model": s.cfg.EmbeddingModel,
		"dimensions":      fmt.Sprintf("%d", s.cfg.Dimensions),
		"metric":          metricCosine,
		"created_at":      fmt.Sprintf("%d", time.Now().Unix()),
	}
	for k, v := range pairs {
		if _, err := s.db.Exec(`INSERT INTO index_meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("rag: write index header: %w", err)
		}
	}
	return nil
}

// loadSnapshot reads every chunk row into the in-memory entry set, validating
// each vector payload against the configured dimensionality. A payload that
// does not decode to exactly the header's dimensionality means the file has
// been damaged or tampered with, so the load fails.
func (s *SQLiteStore) loadSnapshot() error {
	rows, err := s.db.Query(`
SELECT id, doc_id, ordinal, content, start_off, end_off, vector, source, title, meta, seq
FROM   chunks ORDER BY seq ASC`)
	if err != nil {
		return fmt.Errorf("rag: load index snapshot: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c       Chunk
			blob    []byte
			metaRaw string
			seq     int64
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Text, &c.Start, &c.End, &blob, &c.Source, &c.Title, &metaRaw, &seq); err != nil {
			return &IndexCorruptError{Path: s.cfg.Path, Reason: "unreadable chunk row", Err: err}
		}

		vec, err := bytesToFloat32Slice(blob)
		if err != nil {
			return &IndexCorruptError{Path: s.cfg.Path, Reason: fmt.Sprintf("chunk %s: malformed vector payload", c.ID), Err: err}
		}
		if s.cfg.Dimensions > 0 && len(vec) != s.cfg.Dimensions {
			return &IndexCorruptError{
				Path:   s.cfg.Path,
				Reason: fmt.Sprintf("chunk %s: vector dimensionality %d, header says %d", c.ID, len(vec), s.cfg.Dimensions),
			}
		}

		if metaRaw != "" && metaRaw != "{}" {
			if err := json.Unmarshal([]byte(metaRaw), &c.Metadata); err != nil {
				return &IndexCorruptError{Path: s.cfg.Path, Reason: fmt.Sprintf("chunk %s: malformed metadata", c.ID), Err: err}
			}
		}

		entry := &indexEntry{chunk: c, vec: vec, norm: vectorNorm(vec), seq: seq}
		s.entries = append(s.entries, entry)
		s.byID[c.ID] = entry
		if seq >= s.nextSeq {
			s.nextSeq = seq + 1
		}
	}
	if err := rows.Err(); err != nil {
		return &IndexCorruptError{Path: s.cfg.Path, Reason: "snapshot scan failed", Err: err}
	}

	return nil
}

// Upsert stores or replaces a batch of chunks. The batch is written in a
// single transaction; the in-memory snapshot is updated only after the commit
// succeeds, so concurrent readers never observe a partially applied batch.
// Replaced chunks keep their original insertion sequence so tie-break order
// is stable across re-ingestion.
func (s *SQLiteStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for _, c := range chunks {
		if c.ID == "" {
			return fmt.Errorf("rag: upsert: chunk with empty ID")
		}
		if len(c.Embedding) != s.cfg.Dimensions {
			return fmt.Errorf("rag: upsert: chunk %s has dimensionality %d, index requires %d",
				c.ID, len(c.Embedding), s.cfg.Dimensions)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rag: upsert begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const q = `
INSERT INTO chunks (id, doc_id, ordinal, content, start_off, end_off, vector, source, title, meta, seq)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    doc_id = excluded.doc_id, ordinal = excluded.ordinal, content = excluded.content,
    start_off = excluded.start_off, end_off = excluded.end_off, vector = excluded.vector,
    source = excluded.source, title = excluded.title, meta = excluded.meta`

	type staged struct {
		chunk Chunk
		vec   []float32
		seq   int64
	}
	batch := make([]staged, 0, len(chunks))
	seq := s.nextSeq

	for _, c := range chunks {
		entrySeq := seq
		if existing, ok := s.byID[c.ID]; ok {
			entrySeq = existing.seq
		} else {
			seq++
		}

		metaRaw := "{}"
		if len(c.Metadata) > 0 {
			b, err := json.Marshal(c.Metadata)
			if err != nil {
				return fmt.Errorf("rag: upsert: marshal metadata for chunk %s: %w", c.ID, err)
			}
			metaRaw = string(b)
		}

		if _, err := tx.ExecContext(ctx, q,
			c.ID, c.DocumentID, c.Ordinal, c.Text, c.Start, c.End,
			float32SliceToBytes(c.Embedding), c.Source, c.Title, metaRaw, entrySeq,
		); err != nil {
			return fmt.Errorf("rag: upsert chunk %s: %w", c.ID, err)
		}

		vec := make([]float32, len(c.Embedding))
		copy(vec, c.Embedding)
		stored := c
		stored.Embedding = nil
		batch = append(batch, staged{chunk: stored, vec: vec, seq: entrySeq})
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rag: upsert commit: %w", err)
	}

	for _, st := range batch {
		if existing, ok := s.byID[st.chunk.ID]; ok {
			existing.chunk = st.chunk
			existing.vec = st.vec
			existing.norm = vectorNorm(st.vec)
			continue
		}
		entry := &indexEntry{chunk: st.chunk, vec: st.vec, norm: vectorNorm(st.vec), seq: st.seq}
		s.entries = append(s.entries, entry)
		s.byID[st.chunk.ID] = entry
	}
	s.nextSeq = seq

	return nil
}

// Search scans the in-memory entry set and returns the top-k chunks by
// cosine similarity, highest first. Entries with equal similarity keep their
// insertion order. Returned chunks carry no embedding vector.
func (s *SQLiteStore) Search(ctx context.Context, queryEmbedding []float32, topK int, filters map[string]string) ([]ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}
	if len(queryEmbedding) != s.cfg.Dimensions {
		return nil, fmt.Errorf("rag: search: query dimensionality %d, index requires %d",
			len(queryEmbedding), s.cfg.Dimensions)
	}
	if topK <= 0 {
		return nil, nil
	}

	queryNorm := vectorNorm(queryEmbedding)

	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]ScoredChunk, 0, len(s.entries))
	for _, e := range s.entries {
		if !metadataMatches(e.chunk.Metadata, filters) {
			continue
		}
		scored = append(scored, ScoredChunk{
			Chunk:      e.chunk,
			Similarity: cosineSimilarity(queryEmbedding, queryNorm, e.vec, e.norm),
		})
	}

	// Stable sort keeps insertion order for equal similarities, which makes
	// repeated identical queries return identical orderings.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Delete removes chunks by their IDs. Unknown IDs are ignored.
func (s *SQLiteStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rag: delete begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE id = ?`, id); err != nil {
			return fmt.Errorf("rag: delete chunk %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rag: delete commit: %w", err)
	}

	removed := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.byID[id]; ok {
			removed[id] = true
			delete(s.byID, id)
		}
	}
	s.dropEntries(removed)
	return nil
}

// DeleteBySource removes every chunk belonging to the given document.
func (s *SQLiteStore) DeleteBySource(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteBySourceLocked(ctx, documentID)
}

// deleteBySourceLocked is DeleteBySource with s.mu already held.
func (s *SQLiteStore) deleteBySourceLocked(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, documentID); err != nil {
		return fmt.Errorf("rag: delete chunks for document %s: %w", documentID, err)
	}

	removed := make(map[string]bool)
	for id, e := range s.byID {
		if e.chunk.DocumentID == documentID {
			removed[id] = true
			delete(s.byID, id)
		}
	}
	s.dropEntries(removed)
	return nil
}

// dropEntries rebuilds the ordered entry slice without the removed IDs.
// Caller must hold s.mu.
func (s *SQLiteStore) dropEntries(removed map[string]bool) {
	if len(removed) == 0 {
		return
	}
	kept := s.entries[:0]
	for _, e := range s.entries {
		if !removed[e.chunk.ID] {
			kept = append(kept, e)
		}
	}
	// Zero the tail so dropped entries can be collected.
	for i := len(kept); i < len(s.entries); i++ {
		s.entries[i] = nil
	}
	s.entries = kept
}

// PutDocument records (or replaces) a document's catalog entry.
func (s *SQLiteStore) PutDocument(ctx context.Context, doc Document) error {
	const q = `
INSERT INTO documents (id, source, title, checksum, tags, ingested_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    source = excluded.source, title = excluded.title, checksum = excluded.checksum,
    tags = excluded.tags, ingested_at = excluded.ingested_at`

	ingested := doc.IngestedAt
	if ingested.IsZero() {
		ingested = time.Now()
	}
	if _, err := s.db.ExecContext(ctx, q,
		doc.ID, doc.Source, doc.Title, doc.Checksum, strings.Join(doc.Tags, ","), ingested.Unix(),
	); err != nil {
		return fmt.Errorf("rag: put document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument returns the catalog entry for the given document ID.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (Document, bool, error) {
	const q = `SELECT id, source, title, checksum, tags, ingested_at FROM documents WHERE id = ?`

	var (
		doc  Document
		tags string
		ts   int64
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(&doc.ID, &doc.Source, &doc.Title, &doc.Checksum, &tags, &ts)
	if err == sql.ErrNoRows {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, fmt.Errorf("rag: get document %s: %w", id, err)
	}
	if tags != "" {
		doc.Tags = strings.Split(tags, ",")
	}
	doc.IngestedAt = time.Unix(ts, 0)
	return doc, true, nil
}

// ListDocuments returns all catalog entries ordered by source path, each with
// its chunk count populated.
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]Document, error) {
	const q = `
SELECT d.id, d.source, d.title, d.checksum, d.tags, d.ingested_at,
       (SELECT COUNT(*) FROM chunks c WHERE c.doc_id = d.id)
FROM   documents d ORDER BY d.source ASC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("rag: list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			doc  Document
			tags string
			ts   int64
		)
		if err := rows.Scan(&doc.ID, &doc.Source, &doc.Title, &doc.Checksum, &tags, &ts, &doc.ChunkCount); err != nil {
			return nil, fmt.Errorf("rag: list documents scan: %w", err)
		}
		if tags != "" {
			doc.Tags = strings.Split(tags, ",")
		}
		doc.IngestedAt = time.Unix(ts, 0)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rag: list documents rows: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document's catalog entry and all of its chunks.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deleteBySourceLocked(ctx, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("rag: delete document %s: %w", id, err)
	}
	return nil
}

// IndexStats summarizes the index for status reporting.
type IndexStats struct {
	// EmbeddingModel is the model identity recorded in the header.
	EmbeddingModel string
	// Dimensions is the vector dimensionality recorded in the header.
	Dimensions int
	// Metric is the similarity metric recorded in the header.
	Metric string
	// Documents is the number of cataloged documents.
	Documents int
	// Chunks is the number of index entries.
	Chunks int
}

// Stats returns the index header identity plus document and chunk counts.
func (s *SQLiteStore) Stats(ctx context.Context) (IndexStats, error) {
	stats := IndexStats{
		EmbeddingModel: s.cfg.EmbeddingModel,
		Dimensions:     s.cfg.Dimensions,
		Metric:         metricCosine,
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.Documents); err != nil {
		return IndexStats{}, fmt.Errorf("rag: stats documents: %w", err)
	}

	s.mu.RLock()
	stats.Chunks = len(s.entries)
	s.mu.RUnlock()

	return stats, nil
}

// Ping reports whether the index database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("rag: index ping: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("rag: index close: %w", err)
	}
	return nil
}

// metadataMatches reports whether meta contains every key-value pair in
// filters. An empty filter set matches everything.
func metadataMatches(meta, filters map[string]string) bool {
	for k, v := range filters {
		if meta[k] != v {
			return false
		}
	}
	return true
}

// cosineSimilarity computes the cosine of the angle between a and b using
// their precomputed norms. Returns 0 when either vector has zero magnitude.
func cosineSimilarity(a []float32, aNorm float64, b []float32, bNorm float64) float32 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (aNorm * bNorm))
}

// vectorNorm returns the Euclidean norm of v.
func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// float32SliceToBytes encodes v as a little-endian float32 byte sequence for
// BLOB storage.
func float32SliceToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice decodes a little-endian float32 byte sequence.
func bytesToFloat32Slice(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("payload length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
