package rag

import (
	"errors"
	"fmt"
)

// UnreadableSourceError reports a corpus file that could not be decoded as
// text. Ingestion skips the document, logs it, and continues with the rest of
// the batch.
type UnreadableSourceError struct {
	// Path is the source file that failed to decode.
	Path string
	// Err is the underlying decode failure.
	Err error
}

func (e *UnreadableSourceError) Error() string {
	return fmt.Sprintf("rag: unreadable source %s: %v", e.Path, e.Err)
}

func (e *UnreadableSourceError) Unwrap() error { return e.Err }

// EmbeddingServiceError reports a failed call to the external embedding
// service. Transient failures (timeouts, connection errors, 429/5xx) are
// retried with bounded backoff by the embedder; persistent failures abort the
// ingestion batch or fail the query immediately.
type EmbeddingServiceError struct {
	// Transient marks failures worth retrying.
	Transient bool
	// Err is the underlying transport or API failure.
	Err error
}

func (e *EmbeddingServiceError) Error() string {
	if e.Transient {
		return fmt.Sprintf("rag: embedding service (transient): %v", e.Err)
	}
	return fmt.Sprintf("rag: embedding service: %v", e.Err)
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

// IndexCorruptError reports an index that cannot be trusted: a damaged file,
// a missing or inconsistent header, or entries whose vectors do not match the
// recorded dimensionality. The store refuses to serve until the corpus is
// re-ingested into a fresh index.
type IndexCorruptError struct {
	// Path is the index location.
	Path string
	// Reason describes what failed validation.
	Reason string
	// Err is the underlying error, if any.
	Err error
}

func (e *IndexCorruptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rag: index corrupt at %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("rag: index corrupt at %s: %s", e.Path, e.Reason)
}

func (e *IndexCorruptError) Unwrap() error { return e.Err }

// GenerationServiceError reports a failed call to the external inference
// service. It is fatal for the query: the error is surfaced to the caller
// with no partial answer, and the call is never retried automatically, since
// regenerating after a grounded failure could silently answer without the
// intended context.
type GenerationServiceError struct {
	// Err is the underlying transport or model failure.
	Err error
}

func (e *GenerationServiceError) Error() string {
	return fmt.Sprintf("rag: generation service: %v", e.Err)
}

func (e *GenerationServiceError) Unwrap() error { return e.Err }

// ErrorKind classifies err into one of the pipeline error kinds, for error
// reporting and metrics labels. Unclassified errors return "internal".
func ErrorKind(err error) string {
	var (
		unreadable *UnreadableSourceError
		embedding  *EmbeddingServiceError
		corrupt    *IndexCorruptError
		generation *GenerationServiceError
	)
	switch {
	case errors.As(err, &unreadable):
		return "unreadable_source"
	case errors.As(err, &embedding):
		return "embedding_service"
	case errors.As(err, &corrupt):
		return "index_corrupt"
	case errors.As(err, &generation):
		return "generation_service"
	default:
		return "internal"
	}
}

// IsTransient reports whether err is a transient embedding-service failure
// that a bounded retry may recover from.
func IsTransient(err error) bool {
	var embedding *EmbeddingServiceError
	return errors.As(err, &embedding) && embedding.Transient
}
