package answer

import (
	"sort"

	"github.com/kailas-cloud/bookqa/internal/domain"
)

// Rank scores every entry by inner product with the query embedding and
// returns them most relevant first. Equal scores keep corpus order.
//
// The score is a plain dot product, not cosine similarity: the embedding
// models return vectors of roughly unit length, so magnitude is left in.
func Rank(query []float32, entries []domain.CorpusEntry) ([]domain.RankedEntry, error) {
	ranked := make([]domain.RankedEntry, len(entries))
	for i, e := range entries {
		if len(e.Embedding) != len(query) {
			return nil, &domain.DimensionMismatchError{ID: e.ID, Want: len(query), Got: len(e.Embedding)}
		}
		ranked[i] = domain.RankedEntry{Entry: e, Score: dot(e.Embedding, query)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
