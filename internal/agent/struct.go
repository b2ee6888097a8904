package agent

import (
	"fmt"
	"time"
)

// State is a phase of the query lifecycle. Queries advance through the fixed
// sequence received, embedding, retrieving, assembling, generating, completed;
// errored is terminal and reachable from any non-terminal state.
type State string

const (
	// StateReceived is the initial state: the question has been accepted.
	StateReceived State = "received"
	// StateEmbedding is converting the question into a query vector.
	StateEmbedding State = "embedding"
	// StateRetrieving is searching the index for grounding passages.
	StateRetrieving State = "retrieving"
	// StateAssembling is building the bounded, cited prompt.
	StateAssembling State = "assembling"
	// StateGenerating is waiting on the language model.
	StateGenerating State = "generating"
	// StateCompleted is the successful terminal state.
	StateCompleted State = "completed"
	// StateErrored is the failure terminal state.
	StateErrored State = "errored"
)

// stateSuccessor maps each state to the one that legally follows it.
var stateSuccessor = map[State]State{
	StateReceived:   StateEmbedding,
	StateEmbedding:  StateRetrieving,
	StateRetrieving: StateAssembling,
	StateAssembling: StateGenerating,
	StateGenerating: StateCompleted,
}

// Terminal reports whether s ends the query lifecycle.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateErrored
}

// CanTransitionTo reports whether moving from s to next is legal. The
// pipeline advances one stage at a time and never leaves a terminal state.
func (s State) CanTransitionTo(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateErrored {
		return true
	}
	return stateSuccessor[s] == next
}

// StageTiming records how long a query spent in one stage.
type StageTiming struct {
	State    State
	Duration time.Duration
}

// Citation attributes part of an answer to an included passage. Number is
// the bracketed marker in the answer text, 1-based.
type Citation struct {
	Number     int
	Source     string
	Title      string
	Similarity float32
}

// Answer is the completed result of one query.
type Answer struct {
	// ID uniquely identifies the query.
	ID string

	// Question is the user's question as asked.
	Question string

	// Text is the generated answer.
	Text string

	// Citations are the sources the answer is grounded on, in order of first
	// reference.
	Citations []Citation

	// Model is the "backend/model" identity that produced the answer.
	Model string

	// Stages holds the per-stage durations in pipeline order.
	Stages []StageTiming

	// CreatedAt is when the answer was completed.
	CreatedAt time.Time
}

// QueryError is the errored terminal outcome of a query. It names the
// component that failed and the error kind so callers can build a status
// payload without re-classifying the cause.
type QueryError struct {
	// Component is the pipeline component that failed: "embedder",
	// "retriever", "prompt", or "generation".
	Component string

	// Kind is the error classification (see rag.ErrorKind).
	Kind string

	// Err is the underlying cause.
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("agent: %s failed (%s): %v", e.Component, e.Kind, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
