// Package server implements the HTTP server for LuxRAG.
// This file contains the read-only inspection endpoints: the indexed-document
// listing and the answer history.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/luxweb/luxrag-go/internal/logging"
)

// defaultHistoryLimit bounds GET /api/history when no limit param is given.
const defaultHistoryLimit = 20

// maxHistoryLimit caps the limit param so one request cannot page the whole
// history table.
const maxHistoryLimit = 200

// handleCorpus handles GET /api/corpus. It lists the indexed documents with
// their chunk counts and tags, ordered by source path. Returns 404 when the
// active index backend keeps no document catalog (qdrant).
func (s *Server) handleCorpus(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Catalog == nil {
		writeJSONError(w, "document catalog not available for this index backend", http.StatusNotFound)
		return
	}

	docs, err := s.cfg.Catalog.ListDocuments(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("corpus list failed", slog.Any("error", err))
		writeJSONError(w, "failed to list corpus", http.StatusInternalServerError)
		return
	}

	resp := corpusResponse{Documents: make([]corpusDocument, 0, len(docs))}
	for _, d := range docs {
		resp.Documents = append(resp.Documents, corpusDocument{
			ID:         d.ID,
			Source:     d.Source,
			Title:      d.Title,
			Tags:       d.Tags,
			ChunkCount: d.ChunkCount,
			IngestedAt: d.IngestedAt,
		})
		resp.Chunks += d.ChunkCount
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.FromContext(r.Context()).Error("corpus encode error", slog.Any("error", err))
	}
}

// handleHistory handles GET /api/history?limit=N. It returns the most recent
// recorded answers, newest first. Returns 404 when the history store is
// disabled.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		writeJSONError(w, "answer history is disabled", http.StatusNotFound)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.cfg.History.Recent(r.Context(), limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("history list failed", slog.Any("error", err))
		writeJSONError(w, "failed to list history", http.StatusInternalServerError)
		return
	}

	resp := historyResponse{Entries: make([]historyEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, historyEntry{
			ID:        e.ID,
			Question:  e.Question,
			Answer:    e.Answer,
			Model:     e.Model,
			Citations: e.Citations,
			Timings:   e.Timings,
			CreatedAt: e.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.FromContext(r.Context()).Error("history encode error", slog.Any("error", err))
	}
}
