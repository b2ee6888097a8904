// Package prompt assembles grounded generation prompts from retrieved
// passages. Assembly is deterministic: the same question and passages always
// produce the same prompt, and when passages exceed the context budget the
// lowest-ranked ones are dropped whole, never truncated mid-text.
package prompt

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/luxweb/luxrag-go/internal/budget"
	"github.com/luxweb/luxrag-go/internal/rag"
)

// DefaultInstructions is the LuxAgent persona injected as the system message
// for every query. It establishes the domain expertise, constrains answers to
// the retrieved snippets, and requires an explicit admission when the corpus
// does not cover the question.
const DefaultInstructions = `You are LuxAgent, a technical expert in Silicon Photonics and Co-Packaged Optics (CPO).
Use the provided industrial paper snippets to answer the user's question.
Snippets are numbered; cite the ones you rely on with bracketed markers like [1].
If the answer isn't in the context, say you don't know based on current data.`

// noContextNotice replaces the snippet list when retrieval found nothing, so
// the model has explicit grounds to say it doesn't know.
const noContextNotice = "No relevant snippets were found in the knowledge base for this question."

// Options tunes assembly. The zero value uses the LuxAgent persona and the
// default context budget.
type Options struct {
	// Instructions overrides the system message. Empty means
	// DefaultInstructions.
	Instructions string

	// MaxContextTokens is the estimated token budget for the full prompt
	// (instructions, snippets, question). Zero means
	// budget.DefaultMaxContextTokens.
	MaxContextTokens int
}

// Prompt is an assembled, budget-bounded generation prompt.
type Prompt struct {
	// System is the persona and grounding instructions.
	System string

	// User is the context block plus the question.
	User string

	// Included holds the passages that survived the budget, in rank order.
	// The citation marker [n] in User refers to Included[n-1].
	Included []rag.ScoredChunk

	// Dropped is the number of passages removed to fit the budget.
	Dropped int
}

// Messages returns the prompt as a chat message pair for the generation model.
func (p Prompt) Messages() []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(p.System),
		schema.UserMessage(p.User),
	}
}

// EstimatedTokens returns the estimated token count of the full prompt.
func (p Prompt) EstimatedTokens() int {
	return budget.EstimateMessages(p.Messages())
}

// Assemble builds the generation prompt for a question from ranked passages.
// Passages must be ordered best-first; when the rendered prompt would exceed
// the context budget, the lowest-ranked passages are dropped whole. Citation
// numbering is stable under dropping because only the tail is removed.
func Assemble(question string, passages []rag.ScoredChunk, opts Options) Prompt {
	instructions := opts.Instructions
	if instructions == "" {
		instructions = DefaultInstructions
	}
	maxTokens := opts.MaxContextTokens
	if maxTokens <= 0 {
		maxTokens = budget.DefaultMaxContextTokens
	}

	blocks := make([]string, len(passages))
	for i, p := range passages {
		blocks[i] = renderPassage(i+1, p)
	}

	tail := fmt.Sprintf("Question: %s\n\nAnswer:", question)
	fixed := []string{instructions, "Context:", tail}
	kept := budget.FitPassages(fixed, blocks, maxTokens)

	var sb strings.Builder
	sb.WriteString("Context:\n")
	if len(kept) == 0 {
		sb.WriteString(noContextNotice)
	} else {
		sb.WriteString(strings.Join(kept, "\n\n"))
	}
	sb.WriteString("\n\n")
	sb.WriteString(tail)

	return Prompt{
		System:   instructions,
		User:     sb.String(),
		Included: passages[:len(kept)],
		Dropped:  len(passages) - len(kept),
	}
}

// renderPassage formats one retrieved chunk as a numbered, attributed snippet.
func renderPassage(n int, p rag.ScoredChunk) string {
	label := p.Title
	if label == "" {
		label = p.Source
	}
	return fmt.Sprintf("[%d] (source: %s)\n%s", n, label, strings.TrimSpace(p.Text))
}
