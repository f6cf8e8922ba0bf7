package answer

import "github.com/kailas-cloud/bookqa/internal/domain"

// Corpus provides read-only access to the loaded pages.
type Corpus interface {
	All() []domain.CorpusEntry
}
