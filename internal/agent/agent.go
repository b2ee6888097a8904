// Package agent orchestrates the LuxRAG query pipeline: embed the question,
// retrieve grounding passages, assemble a bounded cited prompt, and generate
// the answer. Each query walks an explicit state machine so failures carry
// the component and error kind that caused them.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/luxweb/luxrag-go/internal/logging"
	"github.com/luxweb/luxrag-go/internal/prompt"
	"github.com/luxweb/luxrag-go/internal/rag"
	"github.com/luxweb/luxrag-go/internal/store"
)

// DefaultGenerateTimeout bounds a single generation call. Local models on
// modest hardware can take a while on long prompts; two minutes keeps slow
// answers alive without letting a wedged runtime hold the query forever.
const DefaultGenerateTimeout = 120 * time.Second

// Config holds the dependencies required to construct a LuxAgent.
type Config struct {
	// ChatModel is the generation backend constructed by the provider factory.
	ChatModel model.BaseChatModel

	// Embedder converts the question into a query vector.
	Embedder rag.Embedder

	// Retriever fetches grounding passages for the embedded question.
	Retriever rag.VectorRetriever

	// History is the optional answer store. Recording failures are logged,
	// never surfaced. May be nil.
	History store.HistoryStore

	// ModelIdentity is the "backend/model" string recorded on answers.
	ModelIdentity string

	// Instructions overrides the persona system message. Empty uses the
	// LuxAgent default.
	Instructions string

	// MaxContextTokens is the estimated token budget for the assembled
	// prompt. Zero uses the package default.
	MaxContextTokens int

	// GenerateTimeout bounds the generation stage. Zero uses
	// DefaultGenerateTimeout.
	GenerateTimeout time.Duration
}

// LuxAgent answers questions about the corpus by grounding a language model
// on retrieved passages. Safe for concurrent use.
type LuxAgent struct {
	chat             model.BaseChatModel
	embedder         rag.Embedder
	retriever        rag.VectorRetriever
	history          store.HistoryStore
	modelIdentity    string
	instructions     string
	maxContextTokens int
	generateTimeout  time.Duration
}

// New constructs a LuxAgent from the provided Config.
func New(cfg *Config) (*LuxAgent, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("agent: Embedder must not be nil")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("agent: Retriever must not be nil")
	}

	timeout := cfg.GenerateTimeout
	if timeout <= 0 {
		timeout = DefaultGenerateTimeout
	}

	return &LuxAgent{
		chat:             cfg.ChatModel,
		embedder:         cfg.Embedder,
		retriever:        cfg.Retriever,
		history:          cfg.History,
		modelIdentity:    cfg.ModelIdentity,
		instructions:     cfg.Instructions,
		maxContextTokens: cfg.MaxContextTokens,
		generateTimeout:  timeout,
	}, nil
}

// Ask runs the full query pipeline and returns the completed answer.
func (a *LuxAgent) Ask(ctx context.Context, q rag.Query) (*Answer, error) {
	return a.run(ctx, q, nil)
}

// AskStream behaves like Ask but forwards answer text to w as the model
// produces it. The returned Answer carries the full accumulated text.
func (a *LuxAgent) AskStream(ctx context.Context, q rag.Query, w io.Writer) (*Answer, error) {
	return a.run(ctx, q, w)
}

func (a *LuxAgent) run(ctx context.Context, q rag.Query, stream io.Writer) (*Answer, error) {
	log := logging.FromContext(ctx)

	question := strings.TrimSpace(q.Text)
	if question == "" {
		return nil, fmt.Errorf("agent: question must not be empty")
	}
	q.Text = question

	qt := newTracker()

	qt.advance(StateEmbedding)
	embeddings, err := a.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, qt.fail("embedder", err)
	}
	if len(embeddings) == 0 {
		return nil, qt.fail("embedder", fmt.Errorf("agent: embedder returned no vector for query"))
	}

	qt.advance(StateRetrieving)
	passages, err := a.retriever.RetrieveVector(ctx, q, embeddings[0])
	if err != nil {
		return nil, qt.fail("retriever", err)
	}

	// An empty retrieval is still answerable: the prompt tells the model
	// nothing relevant was found and it answers accordingly.
	qt.advance(StateAssembling)
	p := prompt.Assemble(question, passages, prompt.Options{
		Instructions:     a.instructions,
		MaxContextTokens: a.maxContextTokens,
	})
	if p.Dropped > 0 {
		log.Warn("dropped passages to fit context budget",
			slog.Int("dropped", p.Dropped),
			slog.Int("included", len(p.Included)),
		)
	}
	log.Debug("assembled prompt",
		slog.Int("passages", len(p.Included)),
		slog.Int("estimated_tokens", p.EstimatedTokens()),
	)

	// Generation is never retried; a failed or timed-out call surfaces as-is
	// with no partial answer.
	qt.advance(StateGenerating)
	genCtx, cancel := context.WithTimeout(ctx, a.generateTimeout)
	defer cancel()
	text, err := a.generate(genCtx, p.Messages(), stream)
	if err != nil {
		return nil, qt.fail("generation", err)
	}

	qt.advance(StateCompleted)

	answer := &Answer{
		ID:        uuid.NewString(),
		Question:  question,
		Text:      text,
		Citations: extractCitations(text, p.Included),
		Model:     a.modelIdentity,
		Stages:    qt.timings,
		CreatedAt: time.Now(),
	}

	log.Info("query completed",
		slog.String("query_id", answer.ID),
		slog.Int("passages", len(p.Included)),
		slog.Int("citations", len(answer.Citations)),
		slog.Duration("total", qt.total()),
	)

	a.recordHistory(ctx, answer)
	return answer, nil
}

// generate runs the model on the assembled messages. With a stream writer,
// chunks are forwarded as they arrive and the accumulated text is returned.
// Model-side failures are classified as generation service errors; writer
// failures are not.
func (a *LuxAgent) generate(ctx context.Context, msgs []*schema.Message, stream io.Writer) (string, error) {
	if stream == nil {
		out, err := a.chat.Generate(ctx, msgs)
		if err != nil {
			return "", &rag.GenerationServiceError{Err: err}
		}
		return out.Content, nil
	}

	sr, err := a.chat.Stream(ctx, msgs)
	if err != nil {
		return "", &rag.GenerationServiceError{Err: err}
	}
	defer sr.Close()

	var buf strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", &rag.GenerationServiceError{Err: err}
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		buf.WriteString(msg.Content)
		if _, err := io.WriteString(stream, msg.Content); err != nil {
			return "", fmt.Errorf("agent: stream write: %w", err)
		}
	}
	return buf.String(), nil
}

// recordHistory persists the completed answer. Failures are logged and
// swallowed: history is advisory, the answer has already been delivered.
func (a *LuxAgent) recordHistory(ctx context.Context, ans *Answer) {
	if a.history == nil {
		return
	}

	citations := make([]store.CitationRecord, 0, len(ans.Citations))
	for _, c := range ans.Citations {
		citations = append(citations, store.CitationRecord{
			Number: c.Number,
			Source: c.Source,
			Title:  c.Title,
		})
	}
	timings := make(map[string]int64, len(ans.Stages))
	for _, st := range ans.Stages {
		timings[string(st.State)] = st.Duration.Milliseconds()
	}

	entry := store.Entry{
		ID:        ans.ID,
		Question:  ans.Question,
		Answer:    ans.Text,
		Model:     ans.Model,
		Citations: citations,
		Timings:   timings,
		CreatedAt: ans.CreatedAt,
	}
	if err := a.history.Record(ctx, entry); err != nil {
		logging.FromContext(ctx).Warn("history: failed to record answer",
			slog.String("query_id", ans.ID),
			slog.Any("error", err),
		)
	}
}

// tracker walks a query through its lifecycle, recording how long it spent
// in each stage. The duration of a stage is captured when it is left.
type tracker struct {
	state   State
	since   time.Time
	started time.Time
	timings []StageTiming
}

func newTracker() *tracker {
	now := time.Now()
	return &tracker{state: StateReceived, since: now, started: now}
}

func (t *tracker) advance(next State) {
	if !t.state.CanTransitionTo(next) {
		// Unreachable for the linear pipeline above.
		panic(fmt.Sprintf("agent: illegal transition %s -> %s", t.state, next))
	}
	t.timings = append(t.timings, StageTiming{State: t.state, Duration: time.Since(t.since)})
	t.state = next
	t.since = time.Now()
}

// fail moves the query to the errored terminal state and wraps the cause
// with the failing component and its error kind.
func (t *tracker) fail(component string, err error) error {
	t.advance(StateErrored)
	return &QueryError{Component: component, Kind: rag.ErrorKind(err), Err: err}
}

func (t *tracker) total() time.Duration {
	return time.Since(t.started)
}
