package memory

import (
	"sort"
	"strings"
	"unicode"

	"github.com/spectralhq/spectral/pkg/models"
)

// Resolver maps a free-form reference ("delete that file") to the prior
// executions it most plausibly refers to. The scoring is deliberately
// pluggable; the default ranks by word overlap against description, request
// and tags.
type Resolver interface {
	Resolve(query string, candidates []*models.ExecutionMemory, limit int) []*models.ExecutionMemory
}

// OverlapResolver is the default token-overlap resolver.
type OverlapResolver struct{}

// Resolve ranks candidates by shared-word count, highest first. Candidates
// with no overlap are dropped.
func (OverlapResolver) Resolve(query string, candidates []*models.ExecutionMemory, limit int) []*models.ExecutionMemory {
	return rankExecutions(candidates, query, limit)
}

func rankExecutions(execs []*models.ExecutionMemory, query string, limit int) []*models.ExecutionMemory {
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}
	querySet := make(map[string]bool, len(queryTokens))
	for _, tok := range queryTokens {
		querySet[tok] = true
	}

	type scored struct {
		exec  *models.ExecutionMemory
		score int
	}
	var ranked []scored
	for _, exec := range execs {
		haystack := exec.Description + " " + exec.UserRequest + " " + strings.Join(exec.Tags, " ")
		score := 0
		seen := map[string]bool{}
		for _, tok := range Tokenize(haystack) {
			if querySet[tok] && !seen[tok] {
				score++
				seen[tok] = true
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{exec, score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].exec.Timestamp.After(ranked[j].exec.Timestamp)
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]*models.ExecutionMemory, len(ranked))
	for i, s := range ranked {
		out[i] = s.exec
	}
	return out
}

// Tokenize lowercases and splits on non-alphanumeric runs. Shared with the
// retrieval scorer so reference resolution and search agree on word
// boundaries.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
