package rag

import (
	"math"
	"strings"

	"github.com/spectralhq/spectral/internal/memory"
)

// BM25 parameters. The average document length is assumed rather than
// computed so scores stay stable as the corpus grows.
const (
	bm25K1    = 1.5
	bm25B     = 0.75
	bm25AvgDL = 200.0
)

// scoreBM25 ranks documents against query tokens. docs are pre-tokenized
// token slices; the return value is a score per document (zero when no query
// term appears).
func scoreBM25(queryTokens []string, docs [][]string) []float64 {
	n := len(docs)
	scores := make([]float64, n)
	if n == 0 || len(queryTokens) == 0 {
		return scores
	}

	// Document frequency per query term.
	df := make(map[string]int, len(queryTokens))
	termFreqs := make([]map[string]int, n)
	for i, doc := range docs {
		tf := make(map[string]int, len(doc))
		for _, tok := range doc {
			tf[tok]++
		}
		termFreqs[i] = tf
	}
	for _, term := range uniqueTokens(queryTokens) {
		for i := range docs {
			if termFreqs[i][term] > 0 {
				df[term]++
			}
		}
	}

	for i, doc := range docs {
		dl := float64(len(doc))
		var score float64
		for _, term := range uniqueTokens(queryTokens) {
			tf := float64(termFreqs[i][term])
			if tf == 0 {
				continue
			}
			idf := math.Log((float64(n)-float64(df[term])+0.5)/(float64(df[term])+0.5) + 1)
			denom := tf + bm25K1*(1-bm25B+bm25B*dl/bm25AvgDL)
			score += idf * tf * (bm25K1 + 1) / denom
		}
		scores[i] = score
	}
	return scores
}

func uniqueTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// makeSnippet windows the content around the first occurrence of any query
// token, adding ellipses on truncation. Falls back to the document head when
// no term occurs.
func makeSnippet(content string, queryTokens []string, snippetLen int) string {
	if snippetLen <= 0 || len(content) <= snippetLen {
		return content
	}
	half := snippetLen / 2

	hit := -1
	lower := strings.ToLower(content)
	for _, tok := range queryTokens {
		if idx := strings.Index(lower, tok); idx >= 0 && (hit < 0 || idx < hit) {
			hit = idx
		}
	}
	if hit < 0 {
		return content[:snippetLen] + "..."
	}

	start := hit - half
	if start < 0 {
		start = 0
	}
	end := hit + half
	if end > len(content) {
		end = len(content)
	}
	snippet := content[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet += "..."
	}
	return snippet
}

// tokenize delegates to the memory package so retrieval and reference
// resolution share word boundaries.
func tokenize(text string) []string {
	return memory.Tokenize(text)
}
