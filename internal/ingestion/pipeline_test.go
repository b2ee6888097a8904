package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/luxweb/luxrag-go/internal/corpus"
	"github.com/luxweb/luxrag-go/internal/embedder"
	"github.com/luxweb/luxrag-go/internal/rag"
)

// stubEmbedder returns deterministic 3-dimensional vectors derived from the
// text length, so identical corpora embed identically across runs.
type stubEmbedder struct {
	mu    sync.Mutex
	calls int
	texts []string
	err   error
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.mu.Lock()
	e.calls++
	e.texts = append(e.texts, texts...)
	e.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)%7 + 1), float32(len(t)%3 + 1), 1}
	}
	return out, nil
}

func newTestPipeline(t *testing.T, root string, cfg Config) (*Pipeline, *rag.SQLiteStore, *stubEmbedder) {
	t.Helper()

	loader, err := corpus.NewLoader(root)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	store, err := rag.OpenSQLiteStore(&rag.SQLiteConfig{
		Path:           ":memory:",
		EmbeddingModel: "test/model",
		Dimensions:     3,
	})
	if err != nil {
		t.Fatalf("OpenSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	emb := &stubEmbedder{}
	p, err := NewPipeline(loader, emb, store, cfg)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	return p, store, emb
}

func writeCorpusFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func allChunks(t *testing.T, store *rag.SQLiteStore) []rag.ScoredChunk {
	t.Helper()
	got, err := store.Search(context.Background(), []float32{1, 0, 0}, 100, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	return got
}

func Test_Pipeline_SyncAllIngestsCorpus(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeCorpusFile(t, root, "papers/cpo-overview.md", "# CPO Overview\n\nCo-packaged optics moves the optical engine next to the switch ASIC.")
	writeCorpusFile(t, root, "papers/thermal.md", "# Thermal Limits\n\nHeat dissipation constrains co-packaged designs.")
	writeCorpusFile(t, root, "notes.txt", "Standalone note about waveguide loss budgets.")

	p, store, emb := newTestPipeline(t, root, Config{Workers: 2})
	sum, err := p.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}

	if sum.Scanned != 3 || sum.Ingested != 3 {
		t.Errorf("Summary = %+v, want Scanned=3 Ingested=3", sum)
	}
	if sum.Unchanged != 0 || sum.Skipped != 0 || sum.Removed != 0 {
		t.Errorf("Summary = %+v, want no unchanged/skipped/removed", sum)
	}
	if sum.Chunks < 3 {
		t.Errorf("Summary.Chunks = %d, want at least one per document", sum.Chunks)
	}
	if emb.calls == 0 {
		t.Error("embedder was never called")
	}

	docs, err := store.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("ListDocuments() returned %d documents, want 3", len(docs))
	}
	for _, d := range docs {
		if d.ChunkCount == 0 {
			t.Errorf("document %s has no chunks", d.Source)
		}
	}
	// Lexical order puts notes.txt first.
	if docs[0].Source != "notes.txt" {
		t.Errorf("docs[0].Source = %q, want %q", docs[0].Source, "notes.txt")
	}
	if docs[1].Source != "papers/cpo-overview.md" {
		t.Errorf("docs[1].Source = %q, want %q", docs[1].Source, "papers/cpo-overview.md")
	}
	if docs[1].Title != "CPO Overview" {
		t.Errorf("docs[1].Title = %q, want heading", docs[1].Title)
	}
	if len(docs[1].Tags) != 1 || docs[1].Tags[0] != "papers" {
		t.Errorf("docs[1].Tags = %v, want [papers]", docs[1].Tags)
	}
}

func Test_Pipeline_QueryMatchingDocumentRanksFirst(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	// One short document each. The stub derives vectors from text length, so
	// querying with a document's exact text embeds to its chunk's vector.
	writeCorpusFile(t, root, "a.md", "alpha waveguide.")
	writeCorpusFile(t, root, "b.md", "thermal budget rules.")
	writeCorpusFile(t, root, "c.md", "fiber attach and alignment notes.")

	p, store, emb := newTestPipeline(t, root, Config{})
	if _, err := p.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}
	if got := allChunks(t, store); len(got) != 3 {
		t.Fatalf("index holds %d chunks, want exactly one per document", len(got))
	}

	ret, err := rag.NewRetriever(emb, store, rag.RetrieverConfig{})
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}
	got, err := ret.Retrieve(context.Background(), rag.Query{Text: "thermal budget rules."})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) == 0 {
		t.Fatal("Retrieve() returned no results")
	}
	if got[0].Source != "b.md" {
		t.Errorf("top result source = %q, want b.md", got[0].Source)
	}
}

func Test_Pipeline_SyncAllIsIdempotent(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeCorpusFile(t, root, "a.md", "# A\n\nFirst document body.")
	writeCorpusFile(t, root, "b.md", "# B\n\nSecond document body.")

	p, _, emb := newTestPipeline(t, root, Config{})
	if _, err := p.SyncAll(context.Background()); err != nil {
		t.Fatalf("first SyncAll() error = %v", err)
	}
	callsAfterFirst := emb.calls

	sum, err := p.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("second SyncAll() error = %v", err)
	}
	if sum.Ingested != 0 || sum.Unchanged != 2 || sum.Chunks != 0 {
		t.Errorf("second Summary = %+v, want Ingested=0 Unchanged=2 Chunks=0", sum)
	}
	if emb.calls != callsAfterFirst {
		t.Errorf("embedder called %d more times on unchanged corpus", emb.calls-callsAfterFirst)
	}
}

func Test_Pipeline_ResyncSupersedesChangedDocument(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	var long string
	for range 8 {
		long += "This sentence pads the growing document out to several chunks. "
	}
	writeCorpusFile(t, root, "big.md", "# Big\n\n"+long)
	writeCorpusFile(t, root, "other.md", "# Other\n\nUnrelated and stable.")

	p, store, _ := newTestPipeline(t, root, Config{ChunkSize: 120, ChunkOverlap: 20})
	if _, err := p.SyncAll(context.Background()); err != nil {
		t.Fatalf("first SyncAll() error = %v", err)
	}
	before := len(allChunks(t, store))
	if before < 4 {
		t.Fatalf("expected the long document to split into several chunks, got %d total", before)
	}

	writeCorpusFile(t, root, "big.md", "# Big\n\nNow tiny.")
	sum, err := p.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("second SyncAll() error = %v", err)
	}
	if sum.Ingested != 1 || sum.Unchanged != 1 {
		t.Errorf("second Summary = %+v, want Ingested=1 Unchanged=1", sum)
	}

	after := allChunks(t, store)
	if len(after) >= before {
		t.Errorf("chunk count after shrink = %d, want fewer than %d (stale tail left behind)", len(after), before)
	}
	for _, c := range after {
		if c.Source == "big.md" && c.Ordinal > 0 {
			t.Errorf("stale chunk %s ordinal %d survived the rewrite", c.ID, c.Ordinal)
		}
	}
}

func Test_Pipeline_SkipsUnreadableSource(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeCorpusFile(t, root, "good.md", "# Good\n\nReadable content.")
	// Binary bytes behind a text extension fail content sniffing.
	if err := os.WriteFile(filepath.Join(root, "broken.md"), []byte{0x00, 0x01, 0x02, 0x03, 0xfa}, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	p, store, _ := newTestPipeline(t, root, Config{})
	sum, err := p.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}
	if sum.Scanned != 2 || sum.Ingested != 1 || sum.Skipped != 1 {
		t.Errorf("Summary = %+v, want Scanned=2 Ingested=1 Skipped=1", sum)
	}

	docs, err := store.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 1 || docs[0].Source != "good.md" {
		t.Errorf("catalog = %+v, want only good.md", docs)
	}
}

func Test_Pipeline_SyncAllRemovesVanishedDocuments(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeCorpusFile(t, root, "keep.md", "# Keep\n\nStays on disk.")
	writeCorpusFile(t, root, "gone.md", "# Gone\n\nDeleted between syncs.")

	p, store, _ := newTestPipeline(t, root, Config{})
	if _, err := p.SyncAll(context.Background()); err != nil {
		t.Fatalf("first SyncAll() error = %v", err)
	}
	if err := os.Remove(filepath.Join(root, "gone.md")); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	sum, err := p.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("second SyncAll() error = %v", err)
	}
	if sum.Removed != 1 {
		t.Errorf("Summary.Removed = %d, want 1", sum.Removed)
	}

	docs, err := store.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 1 || docs[0].Source != "keep.md" {
		t.Errorf("catalog = %+v, want only keep.md", docs)
	}
	for _, c := range allChunks(t, store) {
		if c.Source == "gone.md" {
			t.Errorf("chunk %s still present for a vanished document", c.ID)
		}
	}
}

func Test_Pipeline_RemoveDirectoryPrefix(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeCorpusFile(t, root, "papers/a.md", "# A\n\nOne.")
	writeCorpusFile(t, root, "papers/sub/b.md", "# B\n\nTwo.")
	writeCorpusFile(t, root, "notes.md", "# Notes\n\nThree.")

	p, store, _ := newTestPipeline(t, root, Config{})
	if _, err := p.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}

	n, err := p.Remove(context.Background(), "papers")
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Remove() = %d, want 2", n)
	}

	docs, err := store.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 1 || docs[0].Source != "notes.md" {
		t.Errorf("catalog = %+v, want only notes.md", docs)
	}
}

func Test_Pipeline_ApplyEvents(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	p, store, _ := newTestPipeline(t, root, Config{})
	ctx := context.Background()

	path := filepath.Join(root, "new.md")
	writeCorpusFile(t, root, "new.md", "# New\n\nArrived while watching.")
	p.ApplyEvents(ctx, []corpus.WatchEvent{{Path: path, Op: corpus.WatchUpsert}})

	docs, err := store.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 1 || docs[0].Source != "new.md" {
		t.Fatalf("catalog after upsert = %+v, want new.md", docs)
	}

	// Events outside the corpus root are ignored, not applied.
	p.ApplyEvents(ctx, []corpus.WatchEvent{{Path: filepath.Join(os.TempDir(), "elsewhere.md"), Op: corpus.WatchDelete}})
	docs, err = store.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("catalog changed after out-of-root event: %+v", docs)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	p.ApplyEvents(ctx, []corpus.WatchEvent{{Path: path, Op: corpus.WatchDelete}})

	docs, err = store.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("catalog after delete = %+v, want empty", docs)
	}
}

func Test_Pipeline_DeterministicIDs(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeCorpusFile(t, root, "papers/stable.md", "# Stable\n\nSame path, same bytes, same identifiers.")

	ids := func() []string {
		p, store, _ := newTestPipeline(t, root, Config{})
		if _, err := p.SyncAll(context.Background()); err != nil {
			t.Fatalf("SyncAll() error = %v", err)
		}
		var out []string
		for _, c := range allChunks(t, store) {
			out = append(out, c.ID)
		}
		sort.Strings(out)
		return out
	}

	first, second := ids(), ids()
	if len(first) == 0 {
		t.Fatal("no chunks ingested")
	}
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk ID %d differs across fresh indexes: %q vs %q", i, first[i], second[i])
		}
	}
}

func Test_Pipeline_EmbedderFailureAborts(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeCorpusFile(t, root, "doc.md", "# Doc\n\nBody text.")

	p, store, emb := newTestPipeline(t, root, Config{})
	emb.err = errors.New("service unavailable")

	if _, err := p.SyncAll(context.Background()); err == nil {
		t.Fatal("SyncAll() error = nil, want embedding failure")
	}
	docs, err := store.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("catalog = %+v, want empty after aborted sync", docs)
	}
}

// flakyEmbedder fails its first failLeft calls with a transient service error,
// then behaves like stubEmbedder.
type flakyEmbedder struct {
	stubEmbedder
	mu       sync.Mutex
	failLeft int
	calls    int
}

func (f *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	fail := f.failLeft > 0
	if fail {
		f.failLeft--
	}
	f.mu.Unlock()
	if fail {
		return nil, &rag.EmbeddingServiceError{Transient: true, Err: errors.New("embedding service warming up")}
	}
	return f.stubEmbedder.Embed(ctx, texts)
}

func Test_Pipeline_RecoversFromTransientEmbedderFailures(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeCorpusFile(t, root, "doc.md", "co-packaged optics basics.")

	loader, err := corpus.NewLoader(root)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	store, err := rag.OpenSQLiteStore(&rag.SQLiteConfig{Path: ":memory:", EmbeddingModel: "test/model", Dimensions: 3})
	if err != nil {
		t.Fatalf("OpenSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	flaky := &flakyEmbedder{failLeft: 2}
	retried := embedder.WithRetry(flaky, embedder.RetryConfig{Attempts: 3, BaseDelay: time.Millisecond})
	p, err := NewPipeline(loader, retried, store, Config{})
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}

	sum, err := p.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll() error = %v, want recovery on the third attempt", err)
	}
	if sum.Ingested != 1 || sum.Chunks != 1 {
		t.Errorf("Summary = %+v, want Ingested=1 Chunks=1", sum)
	}
	if flaky.calls != 3 {
		t.Errorf("embedder called %d times, want 3", flaky.calls)
	}
	if got := allChunks(t, store); len(got) != 1 {
		t.Errorf("index holds %d chunks, want exactly 1 (no duplicates)", len(got))
	}
}

func Test_NewPipeline_Validates(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	loader, err := corpus.NewLoader(root)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	store, err := rag.OpenSQLiteStore(&rag.SQLiteConfig{Path: ":memory:", EmbeddingModel: "m", Dimensions: 3})
	if err != nil {
		t.Fatalf("OpenSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if _, err := NewPipeline(nil, &stubEmbedder{}, store, Config{}); err == nil {
		t.Error("NewPipeline(nil loader) error = nil, want error")
	}
	if _, err := NewPipeline(loader, nil, store, Config{}); err == nil {
		t.Error("NewPipeline(nil embedder) error = nil, want error")
	}
	if _, err := NewPipeline(loader, &stubEmbedder{}, nil, Config{}); err == nil {
		t.Error("NewPipeline(nil store) error = nil, want error")
	}
}
