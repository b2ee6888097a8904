package agent

import (
	"regexp"
	"strconv"

	"github.com/luxweb/luxrag-go/internal/rag"
)

// citationPattern matches bracketed citation markers like [1] or [12].
var citationPattern = regexp.MustCompile(`\[(\d{1,3})\]`)

// extractCitations resolves the citation markers in the answer text against
// the passages that were included in the prompt. Markers outside the included
// range are ignored; models occasionally invent them. Order follows first
// appearance in the text, duplicates collapse.
//
// When the text carries no usable markers at all, every included passage is
// cited so the answer still discloses its grounding.
func extractCitations(text string, included []rag.ScoredChunk) []Citation {
	if len(included) == 0 {
		return nil
	}

	seen := make(map[int]bool)
	var out []Citation
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(included) || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, toCitation(n, included[n-1]))
	}

	if len(out) == 0 {
		for i, sc := range included {
			out = append(out, toCitation(i+1, sc))
		}
	}
	return out
}

func toCitation(n int, sc rag.ScoredChunk) Citation {
	return Citation{
		Number:     n,
		Source:     sc.Source,
		Title:      sc.Title,
		Similarity: sc.Similarity,
	}
}
