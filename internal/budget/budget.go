// Package budget provides token budget estimation for prompt assembly. Because
// LuxRAG supports multiple LLM backends with different tokenizers, this package
// uses a conservative character-based heuristic: 1 token ≈ 4 characters
// (English prose and technical text). This deliberately under-estimates token
// counts to leave headroom for model-specific overhead.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models (Llama 3 8B, GPT-3.5)
	// while leaving room for the output. Override via prompt.max_context_tokens.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// FitPassages returns the longest prefix of passages whose estimated token
// count, together with the fixed strings, stays within maxTokens. passages
// must be ordered best-first; excess passages are dropped whole from the end,
// never truncated mid-text.
//
// fixed contains text that must always be included (instructions, the
// question). If fixed alone exceeds the budget, an empty slice is returned.
// Callers should warn separately in that case.
func FitPassages(fixed, passages []string, maxTokens int) []string {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}

	total := 0
	for _, s := range fixed {
		total += Estimate(s)
	}
	for i, p := range passages {
		// One extra token per passage covers the joiner between blocks.
		cost := Estimate(p) + 1
		if total+cost > maxTokens {
			return passages[:i]
		}
		total += cost
	}
	return passages
}
