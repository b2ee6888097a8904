// Package ingestion implements the corpus ingestion pipeline. It discovers
// documents under the corpus root, converts and chunks them, embeds the
// chunks, and upserts the results into the vector index. The pipeline is
// invoked by the `luxrag ingest` CLI command and by the watch loop.
package ingestion

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/luxweb/luxrag-go/internal/chunker"
	"github.com/luxweb/luxrag-go/internal/corpus"
	"github.com/luxweb/luxrag-go/internal/logging"
	"github.com/luxweb/luxrag-go/internal/rag"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared between consecutive
	// chunks. Defaults to 100 if zero.
	ChunkOverlap int

	// Workers is the number of documents processed concurrently.
	// Defaults to 4 if zero.
	Workers int

	// BatchSize is the number of chunks sent per embedding request.
	// Defaults to 32 if zero.
	BatchSize int
}

// Summary reports what one sync pass did.
type Summary struct {
	// Scanned is the number of supported files discovered.
	Scanned int
	// Ingested is the number of documents indexed or re-indexed.
	Ingested int
	// Unchanged is the number skipped because their checksum matched the
	// catalog entry.
	Unchanged int
	// Skipped is the number of unreadable sources that were skipped.
	Skipped int
	// Chunks is the total number of chunks upserted.
	Chunks int
	// Removed is the number of documents dropped because their source file
	// no longer exists.
	Removed int
	// Duration is the wall time of the pass.
	Duration time.Duration
}

// Pipeline orchestrates the load → chunk → embed → upsert flow over the
// corpus directory.
type Pipeline struct {
	// loader reads and converts corpus files.
	loader *corpus.Loader

	// embedder converts chunk text into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// catalog is the store's document-catalog capability, nil when the
	// backend does not provide one. Without it every sync re-embeds
	// everything and vanished sources are not reaped.
	catalog rag.Catalog

	// splitter cuts document text into overlapping passages.
	splitter *chunker.Chunker

	// cfg holds the resolved pipeline configuration.
	cfg Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(loader *corpus.Loader, embedder rag.Embedder, store rag.VectorStore, cfg Config) (*Pipeline, error) {
	if loader == nil {
		return nil, fmt.Errorf("ingestion: loader must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunker.DefaultSize
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = chunker.DefaultOverlap
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}

	splitter, err := chunker.New(chunker.Config{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap})
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}

	catalog, _ := store.(rag.Catalog)

	return &Pipeline{
		loader:   loader,
		embedder: embedder,
		store:    store,
		catalog:  catalog,
		splitter: splitter,
		cfg:      cfg,
	}, nil
}

// SyncAll brings the index in line with the corpus directory: new and
// changed documents are (re-)ingested, unchanged ones are skipped by
// checksum, and documents whose source file vanished are removed. Unreadable
// sources are logged and skipped; they never abort the pass.
func (p *Pipeline) SyncAll(ctx context.Context) (*Summary, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	paths, err := p.loader.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}

	var (
		mu  sync.Mutex
		sum = Summary{Scanned: len(paths)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, path := range paths {
		g.Go(func() error {
			res, err := p.ingestFile(gctx, path)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			switch res.outcome {
			case outcomeIngested:
				sum.Ingested++
				sum.Chunks += res.chunks
			case outcomeUnchanged:
				sum.Unchanged++
			case outcomeSkipped:
				sum.Skipped++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	removed, err := p.removeVanished(ctx, paths)
	if err != nil {
		return nil, err
	}
	sum.Removed = removed
	sum.Duration = time.Since(start)

	log.Info("corpus sync complete",
		slog.Int("scanned", sum.Scanned),
		slog.Int("ingested", sum.Ingested),
		slog.Int("unchanged", sum.Unchanged),
		slog.Int("skipped", sum.Skipped),
		slog.Int("chunks", sum.Chunks),
		slog.Int("removed", sum.Removed),
		slog.Duration("duration", sum.Duration),
	)
	return &sum, nil
}

type fileOutcome int

const (
	outcomeIngested fileOutcome = iota
	outcomeUnchanged
	outcomeSkipped
)

type fileResult struct {
	outcome fileOutcome
	chunks  int
}

// ingestFile loads one source file and brings its index entries up to date.
// Unreadable sources are tolerated; every other failure aborts, since it
// points at the embedder or the store rather than the file.
func (p *Pipeline) ingestFile(ctx context.Context, path string) (fileResult, error) {
	log := logging.FromContext(ctx)

	doc, err := p.loader.Load(ctx, path)
	if err != nil {
		var unreadable *rag.UnreadableSourceError
		if errors.As(err, &unreadable) {
			log.Warn("skipping unreadable source",
				slog.String("path", path),
				slog.Any("error", err),
			)
			return fileResult{outcome: outcomeSkipped}, nil
		}
		return fileResult{}, fmt.Errorf("ingestion: load %s: %w", path, err)
	}

	id := docID(doc.Rel)
	if p.catalog != nil {
		prev, ok, err := p.catalog.GetDocument(ctx, id)
		if err != nil {
			return fileResult{}, fmt.Errorf("ingestion: catalog lookup %s: %w", doc.Rel, err)
		}
		if ok && prev.Checksum == doc.Checksum {
			return fileResult{outcome: outcomeUnchanged}, nil
		}
	}

	chunks := p.buildChunks(id, doc)
	if err := p.embedChunks(ctx, chunks); err != nil {
		return fileResult{}, err
	}

	// Supersede: drop the previous version's chunks before inserting the new
	// ones so a shrinking document leaves no stale tail behind.
	if err := p.store.DeleteBySource(ctx, id); err != nil {
		return fileResult{}, fmt.Errorf("ingestion: supersede %s: %w", doc.Rel, err)
	}
	if len(chunks) > 0 {
		if err := p.store.Upsert(ctx, chunks); err != nil {
			return fileResult{}, fmt.Errorf("ingestion: upsert %s: %w", doc.Rel, err)
		}
	}
	if p.catalog != nil {
		entry := rag.Document{
			ID:         id,
			Source:     doc.Rel,
			Title:      doc.Title,
			Checksum:   doc.Checksum,
			Tags:       doc.Tags,
			IngestedAt: time.Now(),
		}
		if err := p.catalog.PutDocument(ctx, entry); err != nil {
			return fileResult{}, fmt.Errorf("ingestion: catalog update %s: %w", doc.Rel, err)
		}
	}

	log.Debug("ingested document",
		slog.String("source", doc.Rel),
		slog.Int("chunks", len(chunks)),
	)
	return fileResult{outcome: outcomeIngested, chunks: len(chunks)}, nil
}

// buildChunks cuts the document into passages and shapes them as index
// chunks with deterministic IDs and the document's metadata snapshot.
func (p *Pipeline) buildChunks(id string, doc *corpus.Document) []rag.Chunk {
	pieces := p.splitter.Split(doc.Text)
	if len(pieces) == 0 {
		return nil
	}

	meta := make(map[string]string, len(doc.Metadata)+1)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	if len(doc.Tags) > 0 {
		meta["tag"] = doc.Tags[0]
	}

	chunks := make([]rag.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, rag.Chunk{
			ID:         chunkID(id, i),
			DocumentID: id,
			Ordinal:    i,
			Text:       piece.Text,
			Start:      piece.Start,
			End:        piece.End,
			Source:     doc.Rel,
			Title:      doc.Title,
			Metadata:   meta,
		})
	}
	return chunks
}

// embedChunks fills in the chunk embeddings, batching requests to the
// embedding service.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []rag.Chunk) error {
	for start := 0; start < len(chunks); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		vecs, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("ingestion: embed batch: %w", err)
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("ingestion: embedder returned %d vectors for %d texts", len(vecs), len(texts))
		}
		for i := range vecs {
			chunks[start+i].Embedding = vecs[i]
		}
	}
	return nil
}

// Remove deletes every document whose source equals rel or lives under it;
// rel may name a directory that was removed. Returns the number of
// documents dropped.
func (p *Pipeline) Remove(ctx context.Context, rel string) (int, error) {
	if p.catalog == nil {
		// Without a catalog, treat rel as a single document source.
		if err := p.store.DeleteBySource(ctx, docID(rel)); err != nil {
			return 0, fmt.Errorf("ingestion: remove %s: %w", rel, err)
		}
		return 1, nil
	}

	docs, err := p.catalog.ListDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("ingestion: remove %s: %w", rel, err)
	}
	removed := 0
	prefix := rel + "/"
	for _, d := range docs {
		if d.Source != rel && !strings.HasPrefix(d.Source, prefix) {
			continue
		}
		if err := p.catalog.DeleteDocument(ctx, d.ID); err != nil {
			return removed, fmt.Errorf("ingestion: remove %s: %w", d.Source, err)
		}
		removed++
	}
	return removed, nil
}

// ApplyEvents applies a debounced batch of watch events to the index.
// Per-event failures are logged; the watch loop must keep running.
func (p *Pipeline) ApplyEvents(ctx context.Context, events []corpus.WatchEvent) {
	log := logging.FromContext(ctx)
	for _, ev := range events {
		rel, err := p.relPath(ev.Path)
		if err != nil {
			log.Warn("ignoring event outside corpus root", slog.String("path", ev.Path))
			continue
		}
		switch ev.Op {
		case corpus.WatchUpsert:
			if _, err := p.ingestFile(ctx, ev.Path); err != nil {
				log.Error("watch: ingest failed",
					slog.String("path", rel),
					slog.Any("error", err),
				)
			}
		case corpus.WatchDelete:
			n, err := p.Remove(ctx, rel)
			if err != nil {
				log.Error("watch: remove failed",
					slog.String("path", rel),
					slog.Any("error", err),
				)
				continue
			}
			if n > 0 {
				log.Info("removed from index",
					slog.String("path", rel),
					slog.Int("documents", n),
				)
			}
		}
	}
}

// Watch follows the corpus directory and applies changes to the index until
// ctx is cancelled.
func (p *Pipeline) Watch(ctx context.Context, debounce time.Duration) error {
	w := corpus.NewWatcher(p.loader, debounce)
	return w.Run(ctx, p.ApplyEvents)
}

// removeVanished drops catalog entries whose source file no longer exists on
// disk. No-op without a catalog.
func (p *Pipeline) removeVanished(ctx context.Context, paths []string) (int, error) {
	if p.catalog == nil {
		return 0, nil
	}

	live := make(map[string]bool, len(paths))
	for _, path := range paths {
		rel, err := p.relPath(path)
		if err != nil {
			continue
		}
		live[rel] = true
	}

	docs, err := p.catalog.ListDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("ingestion: list documents: %w", err)
	}
	removed := 0
	for _, d := range docs {
		if live[d.Source] {
			continue
		}
		if err := p.catalog.DeleteDocument(ctx, d.ID); err != nil {
			return removed, fmt.Errorf("ingestion: remove vanished %s: %w", d.Source, err)
		}
		removed++
	}
	return removed, nil
}

// relPath converts an absolute path into the slash-separated corpus-relative
// form used as document identity.
func (p *Pipeline) relPath(path string) (string, error) {
	rel, err := filepath.Rel(p.loader.Root(), path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("ingestion: %s is outside the corpus root", path)
	}
	return filepath.ToSlash(rel), nil
}

// docID generates the deterministic document ID for a corpus-relative path.
func docID(rel string) string {
	h := sha256.Sum256([]byte(rel))
	return fmt.Sprintf("%x", h[:16])
}

// chunkID generates a deterministic ID for a chunk from its document ID and
// ordinal.
func chunkID(id string, ordinal int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", id, ordinal)))
	return fmt.Sprintf("%x", h[:16])
}
