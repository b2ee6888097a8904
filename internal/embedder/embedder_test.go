package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luxweb/luxrag-go/internal/rag"
)

func Test_OllamaEmbedder_Embed(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %q, want /api/embed", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := ollamaEmbedResponse{Embeddings: make([][]float32, len(req.Input))}
		for i := range req.Input {
			resp.Embeddings[i] = []float32{float32(i), 1}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
	got, err := emb.Embed(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Embed() returned %d vectors, want 2", len(got))
	}
	if got[1][0] != 1 {
		t.Errorf("vectors not parallel to input: %v", got)
	}
}

func Test_OllamaEmbedder_ClassifiesFailures(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name          string
		status        int
		body          string
		wantTransient bool
	}{
		{"server overloaded", http.StatusServiceUnavailable, `{"error":"overloaded"}`, true},
		{"rate limited", http.StatusTooManyRequests, `{"error":"slow down"}`, true},
		{"unknown model", http.StatusNotFound, `{"error":"model not found"}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "m"})
			_, err := emb.Embed(context.Background(), []string{"x"})

			var svcErr *rag.EmbeddingServiceError
			if !errors.As(err, &svcErr) {
				t.Fatalf("Embed() error = %v, want *EmbeddingServiceError", err)
			}
			if svcErr.Transient != tc.wantTransient {
				t.Errorf("Transient = %v, want %v", svcErr.Transient, tc.wantTransient)
			}
		})
	}
}

func Test_OllamaEmbedder_ConnectionRefusedIsTransient(t *testing.T) {
	t.Parallel()
	// Point at a server that is not there.
	emb := NewOllamaEmbedder(&OllamaConfig{Host: "http://127.0.0.1:1", Model: "m"})
	_, err := emb.Embed(context.Background(), []string{"x"})
	if !rag.IsTransient(err) {
		t.Errorf("connection failure classified as persistent: %v", err)
	}
}

func Test_OpenAIEmbedder_SortsByIndex(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q, want Bearer sk-test", got)
		}
		// Deliberately out of order.
		_, _ = w.Write([]byte(`{"data":[
			{"index":1,"embedding":[2,2]},
			{"index":0,"embedding":[1,1]}
		]}`))
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "text-embedding-3-small"})
	got, err := emb.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if got[0][0] != 1 || got[1][0] != 2 {
		t.Errorf("embeddings not re-ordered by index: %v", got)
	}
}

func Test_OpenAIEmbedder_AzureMode(t *testing.T) {
	t.Parallel()
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		gotKey = r.Header.Get("api-key")
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL:    srv.URL,
		APIKey:     "azure-key",
		Model:      "embed-deploy",
		Azure:      true,
		APIVersion: "2025-04-01-preview",
	})
	if _, err := emb.Embed(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if gotKey != "azure-key" {
		t.Errorf("api-key header = %q, want azure-key", gotKey)
	}
	if want := "/deployments/embed-deploy/embeddings?api-version=2025-04-01-preview"; gotPath != want {
		t.Errorf("request path = %q, want %q", gotPath, want)
	}
}

// flakyEmbedder fails with the scripted errors before succeeding.
type flakyEmbedder struct {
	calls    atomic.Int32
	failures []error
}

func (f *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	n := int(f.calls.Add(1))
	if n <= len(f.failures) {
		return nil, f.failures[n-1]
	}
	return [][]float32{{1, 2}}, nil
}

func transientErr() error {
	return &rag.EmbeddingServiceError{Transient: true, Err: errors.New("timeout")}
}

func persistentErr() error {
	return &rag.EmbeddingServiceError{Transient: false, Err: errors.New("bad model")}
}

func Test_WithRetry_RecoversFromTransientFailures(t *testing.T) {
	t.Parallel()
	inner := &flakyEmbedder{failures: []error{transientErr(), transientErr()}}
	emb := WithRetry(inner, RetryConfig{Attempts: 3, BaseDelay: time.Millisecond})

	got, err := emb.Embed(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("Embed() error = %v, want success on third attempt", err)
	}
	if len(got) != 1 {
		t.Fatalf("Embed() returned %d vectors, want 1", len(got))
	}
	if calls := inner.calls.Load(); calls != 3 {
		t.Errorf("inner called %d times, want 3", calls)
	}
}

func Test_WithRetry_DoesNotRetryPersistentFailures(t *testing.T) {
	t.Parallel()
	inner := &flakyEmbedder{failures: []error{persistentErr()}}
	emb := WithRetry(inner, RetryConfig{Attempts: 3, BaseDelay: time.Millisecond})

	_, err := emb.Embed(context.Background(), []string{"x"})
	if err == nil {
		t.Fatal("Embed() succeeded, want persistent failure")
	}
	if rag.IsTransient(err) {
		t.Errorf("error reported transient: %v", err)
	}
	if calls := inner.calls.Load(); calls != 1 {
		t.Errorf("inner called %d times, want 1", calls)
	}
}

func Test_WithRetry_GivesUpAfterAttempts(t *testing.T) {
	t.Parallel()
	inner := &flakyEmbedder{failures: []error{transientErr(), transientErr(), transientErr(), transientErr()}}
	emb := WithRetry(inner, RetryConfig{Attempts: 3, BaseDelay: time.Millisecond})

	_, err := emb.Embed(context.Background(), []string{"x"})
	var svcErr *rag.EmbeddingServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("Embed() error = %v, want the underlying *EmbeddingServiceError", err)
	}
	if calls := inner.calls.Load(); calls != 3 {
		t.Errorf("inner called %d times, want 3", calls)
	}
}

func Test_New_UnknownBackend(t *testing.T) {
	t.Parallel()
	if _, err := New(&Config{Provider: "bedrock"}); err == nil {
		t.Error("New() with unknown backend succeeded, want error")
	}
}

func Test_New_OpenAIRequiresKey(t *testing.T) {
	t.Parallel()
	if _, err := New(&Config{Provider: "openai"}); err == nil {
		t.Error("New() without API key succeeded, want error")
	}
}

func Test_Identity_And_Dimensions_Defaults(t *testing.T) {
	t.Parallel()
	cfg := &Config{}
	if got := Identity(cfg); got != "ollama/nomic-embed-text" {
		t.Errorf("Identity() = %q, want ollama/nomic-embed-text", got)
	}
	if got := Dimensions(cfg); got != 768 {
		t.Errorf("Dimensions() = %d, want 768", got)
	}

	cfg = &Config{Provider: "openai", APIKey: "sk"}
	if got := Identity(cfg); got != "openai/text-embedding-3-small" {
		t.Errorf("Identity() = %q, want openai/text-embedding-3-small", got)
	}
	if got := Dimensions(cfg); got != 1536 {
		t.Errorf("Dimensions() = %d, want 1536", got)
	}
}

func Test_Validate_WarnsOnChatModel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	if err := Validate(&Config{Provider: "ollama", Model: "gemma3"}, log); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("chat model")) {
		t.Error("Validate() did not warn about a chat model used for embedding")
	}
}

func Test_Validate_RejectsMissingCredentials(t *testing.T) {
	t.Parallel()
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	if err := Validate(&Config{Provider: "openai"}, log); err == nil {
		t.Error("Validate() openai without key succeeded, want error")
	}
	if err := Validate(&Config{Provider: "azure", APIKey: "k"}, log); err == nil {
		t.Error("Validate() azure without endpoint succeeded, want error")
	}
}
