package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/luxweb/luxrag-go/internal/agent"
	"github.com/luxweb/luxrag-go/internal/logging"
	"github.com/luxweb/luxrag-go/internal/rag"
)

// handleQuery handles POST /api/query. The default response is one JSON
// document carrying the answer, citations, and per-stage timings. When the
// client sends "Accept: text/event-stream" the answer is streamed as SSE data
// frames instead, with citations and timings riding on a final "done" event.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSONError(w, "question is required", http.StatusBadRequest)
		return
	}

	q := rag.Query{Text: req.Question, Filters: req.Filters, TopK: req.TopK}

	if wantsSSE(r) {
		s.queryStream(w, r, q)
		return
	}
	s.queryJSON(w, r, q)
}

// queryJSON runs the query to completion and writes the answer as one JSON body.
func (s *Server) queryJSON(w http.ResponseWriter, r *http.Request, q rag.Query) {
	start := time.Now()
	ans, err := s.querier.Ask(r.Context(), q)
	s.observeQuery(err, time.Since(start))

	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(answerPayload(ans, true)); err != nil {
		logging.FromContext(r.Context()).Error("query encode error", slog.Any("error", err))
	}
}

// queryStream runs the query with token streaming over SSE. Failures after
// the stream has started are delivered in-band as an "error" event; the HTTP
// status is already committed at that point.
func (s *Server) queryStream(w http.ResponseWriter, r *http.Request, q rag.Query) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers so the client receives a streaming response.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sw := &sseWriter{w: w, flusher: flusher}

	s.metrics.queryActiveStreams.Inc()
	defer s.metrics.queryActiveStreams.Dec()

	start := time.Now()
	ans, err := s.querier.AskStream(r.Context(), q, sw)
	s.observeQuery(err, time.Since(start))

	if err != nil {
		logging.FromContext(r.Context()).Error("query failed", slog.Any("error", err))
		payload, _ := json.Marshal(errorPayload(err))
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
		flusher.Flush()
		return
	}

	// Signal stream completion. Citations and timings ride on the done event;
	// the answer text itself already went out as data frames.
	payload, _ := json.Marshal(answerPayload(ans, false))
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", payload)
	flusher.Flush()
}

// observeQuery records the outcome and duration of one query request.
func (s *Server) observeQuery(err error, elapsed time.Duration) {
	outcome := outcomeLabel(err)
	s.metrics.queryRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.queryDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// writeQueryError maps a failed query to an HTTP status and JSON error body.
// Timeouts map to 504, upstream service failures (embedding, generation) to
// 502, and everything else to 500.
func (s *Server) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context()).Error("query failed", slog.Any("error", err))

	status := http.StatusInternalServerError
	var qerr *agent.QueryError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.As(err, &qerr):
		switch qerr.Kind {
		case "embedding_service", "generation_service":
			status = http.StatusBadGateway
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorPayload(err))
}

// answerPayload converts a completed answer to its JSON response form.
// includeText is false in streaming mode, where the text already went out.
func answerPayload(ans *agent.Answer, includeText bool) queryResponse {
	resp := queryResponse{
		ID:        ans.ID,
		Citations: make([]citationPayload, 0, len(ans.Citations)),
		State:     string(agent.StateCompleted),
		Timings:   make(map[string]int64, len(ans.Stages)),
		Model:     ans.Model,
	}
	if includeText {
		resp.Answer = ans.Text
	}
	for _, c := range ans.Citations {
		resp.Citations = append(resp.Citations, citationPayload{
			Number:     c.Number,
			Source:     c.Source,
			Title:      c.Title,
			Similarity: c.Similarity,
		})
	}
	for _, st := range ans.Stages {
		resp.Timings[string(st.State)] = st.Duration.Milliseconds()
	}
	return resp
}

// errorPayload converts a failed query to its JSON error form, pulling the
// component and kind out of the agent's typed error when present.
func errorPayload(err error) errorResponse {
	resp := errorResponse{Error: err.Error()}
	var qerr *agent.QueryError
	if errors.As(err, &qerr) {
		resp.Component = qerr.Component
		resp.Kind = qerr.Kind
	}
	return resp
}

// outcomeLabel classifies a query result for the outcome metric label.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// wantsSSE reports whether the client asked for a streaming response.
func wantsSSE(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}
