package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxweb/luxrag-go/internal/agent"
	"github.com/luxweb/luxrag-go/internal/rag"
	"github.com/luxweb/luxrag-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on the query
	// route (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on the query, corpus, and history
	// routes. If empty, authentication is disabled (development mode).
	APIKey string
	// Catalog backs GET /api/corpus. Optional: when nil (the qdrant backend
	// keeps no document catalog) the endpoint returns 404.
	Catalog rag.Catalog
	// History backs GET /api/history. Optional: when nil (history disabled)
	// the endpoint returns 404.
	History store.HistoryStore
	// Metrics is the Prometheus registry that receives the server's metrics
	// and backs GET /metrics. If nil, a private registry is created.
	Metrics *prometheus.Registry
}

// querier is the interface handleQuery calls to answer a question.
// *agent.LuxAgent satisfies it; tests inject a fake.
type querier interface {
	// Ask answers the query and returns the completed answer.
	Ask(ctx context.Context, q rag.Query) (*agent.Answer, error)
	// AskStream behaves like Ask but writes answer tokens to w as they
	// arrive from the model.
	AskStream(ctx context.Context, q rag.Query, w io.Writer) (*agent.Answer, error)
}

// Server is the HTTP server that exposes the LuxAgent query pipeline.
type Server struct {
	// querier answers /api/query requests; the LuxAgent in production,
	// overridden by a fake in tests.
	querier querier
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
	// Filters restricts retrieval to chunks whose metadata matches every
	// key-value pair (e.g. {"tag": "cpo"}).
	Filters map[string]string `json:"filters,omitempty"`
	// TopK overrides the configured passage count when > 0.
	TopK int `json:"topK,omitempty"`
}

// citationPayload is the JSON form of one answer citation.
type citationPayload struct {
	// Number is the bracketed marker in the answer text, 1-based.
	Number int `json:"number"`
	// Source is the origin path of the cited document.
	Source string `json:"source"`
	// Title is the cited document's title, empty when unknown.
	Title string `json:"title,omitempty"`
	// Similarity is the cosine similarity of the cited passage to the query.
	Similarity float32 `json:"similarity"`
}

// queryResponse is the JSON body returned by POST /api/query, and the
// payload of the final SSE "done" event in streaming mode.
type queryResponse struct {
	// ID is the query's unique identifier.
	ID string `json:"id"`
	// Answer is the generated answer text. Empty in the SSE done event,
	// where the text already arrived as data frames.
	Answer string `json:"answer,omitempty"`
	// Citations are the sources the answer is grounded on.
	Citations []citationPayload `json:"citations"`
	// State is the terminal lifecycle state, "completed" on success.
	State string `json:"state"`
	// Timings maps pipeline stage names to their duration in milliseconds.
	Timings map[string]int64 `json:"timings"`
	// Model is the "backend/model" identity that produced the answer.
	Model string `json:"model,omitempty"`
}

// errorResponse is the JSON body for failed requests, and the payload of the
// SSE "error" event in streaming mode.
type errorResponse struct {
	// Error is the human-readable failure description.
	Error string `json:"error"`
	// Component is the pipeline component that failed, when known.
	Component string `json:"component,omitempty"`
	// Kind is the error classification (e.g. "generation_service").
	Kind string `json:"kind,omitempty"`
}

// corpusDocument is the JSON form of one catalog entry in GET /api/corpus.
type corpusDocument struct {
	// ID is the stable document identifier.
	ID string `json:"id"`
	// Source is the origin file path relative to the corpus root.
	Source string `json:"source"`
	// Title is the document's human-readable title.
	Title string `json:"title"`
	// Tags holds the domain labels inferred at ingestion.
	Tags []string `json:"tags,omitempty"`
	// ChunkCount is the number of indexed chunks the document produced.
	ChunkCount int `json:"chunkCount"`
	// IngestedAt is when this document version entered the index.
	IngestedAt time.Time `json:"ingestedAt"`
}

// corpusResponse is the JSON body returned by GET /api/corpus.
type corpusResponse struct {
	// Documents lists the indexed documents ordered by source path.
	Documents []corpusDocument `json:"documents"`
	// Chunks is the total chunk count across all documents.
	Chunks int `json:"chunks"`
}

// historyEntry is the JSON form of one recorded answer in GET /api/history.
type historyEntry struct {
	// ID is the query's UUID.
	ID string `json:"id"`
	// Question is the user's question as asked.
	Question string `json:"question"`
	// Answer is the generated answer text.
	Answer string `json:"answer"`
	// Model is the "backend/model" identity that produced the answer.
	Model string `json:"model,omitempty"`
	// Citations are the sources the answer referenced.
	Citations []store.CitationRecord `json:"citations,omitempty"`
	// Timings maps pipeline stage names to their duration in milliseconds.
	Timings map[string]int64 `json:"timings,omitempty"`
	// CreatedAt is when the answer was recorded.
	CreatedAt time.Time `json:"createdAt"`
}

// historyResponse is the JSON body returned by GET /api/history.
type historyResponse struct {
	// Entries lists the recorded answers, newest first.
	Entries []historyEntry `json:"entries"`
}
