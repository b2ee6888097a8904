package rag

import (
	"sort"
	"strings"
	"unicode"
)

// rrfK is the reciprocal rank fusion constant. 60 is the standard choice and
// keeps lower-ranked entries from being drowned out entirely.
const rrfK = 60

// candidateCount returns the candidate pool size for re-ranking a top-k
// request: four times k, with a floor so small k still gets a useful pool.
func candidateCount(topK int) int {
	n := topK * 4
	if n < 20 {
		n = 20
	}
	return n
}

// fuseRanks re-orders vector search results by fusing two rankings with
// reciprocal rank fusion: the vector similarity ranking the candidates arrive
// in, and a lexical ranking by query term overlap. The fusion is a pure
// function of its inputs, so the same query against the same index always
// produces the same order.
func fuseRanks(query string, candidates []ScoredChunk) []ScoredChunk {
	if len(candidates) < 2 {
		return candidates
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return candidates
	}

	// Lexical ranking: candidates ordered by distinct query terms present,
	// with the incoming (vector) order breaking ties.
	overlap := make([]int, len(candidates))
	for i, c := range candidates {
		overlap[i] = termOverlap(terms, c.Text)
	}
	lexOrder := make([]int, len(candidates))
	for i := range lexOrder {
		lexOrder[i] = i
	}
	sort.SliceStable(lexOrder, func(a, b int) bool {
		return overlap[lexOrder[a]] > overlap[lexOrder[b]]
	})
	lexRank := make([]int, len(candidates))
	for rank, idx := range lexOrder {
		lexRank[idx] = rank + 1
	}

	scores := make([]float64, len(candidates))
	for i := range candidates {
		vecRank := i + 1
		scores[i] = 1.0/float64(rrfK+vecRank) + 1.0/float64(rrfK+lexRank[i])
	}

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	// Stable sort keeps vector order for equal fused scores.
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	fused := make([]ScoredChunk, len(candidates))
	for i, idx := range order {
		fused[i] = candidates[idx]
	}
	return fused
}

// tokenize lowercases the text and splits it into distinct terms on
// non-alphanumeric boundaries, dropping single-character fragments.
func tokenize(text string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			terms[f] = true
		}
	}
	return terms
}

// termOverlap counts how many of the query terms occur in the text.
func termOverlap(queryTerms map[string]bool, text string) int {
	textTerms := tokenize(text)
	n := 0
	for t := range queryTerms {
		if textTerms[t] {
			n++
		}
	}
	return n
}
