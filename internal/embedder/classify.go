package embedder

import (
	"fmt"
	"net/http"

	"github.com/luxweb/luxrag-go/internal/rag"
)

// transportFailure marks a network-level failure (timeout, refused
// connection, reset) as transient: the service may simply be restarting.
func transportFailure(backend string, err error) error {
	return &rag.EmbeddingServiceError{
		Transient: true,
		Err:       fmt.Errorf("%s: request failed: %w", backend, err),
	}
}

// statusFailure classifies an HTTP error status: 429 and 5xx are transient,
// everything else (bad request, auth, missing model) is persistent and
// retrying would not help.
func statusFailure(backend string, status int, msg string) error {
	return &rag.EmbeddingServiceError{
		Transient: status == http.StatusTooManyRequests || status >= 500,
		Err:       fmt.Errorf("%s: %s", backend, msg),
	}
}

// protocolFailure marks a malformed or inconsistent response as persistent.
func protocolFailure(backend string, err error) error {
	return &rag.EmbeddingServiceError{
		Transient: false,
		Err:       fmt.Errorf("%s: %w", backend, err),
	}
}
