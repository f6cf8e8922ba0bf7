package bookqa

import "github.com/kailas-cloud/bookqa/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound          = domain.ErrNotFound
	ErrCorpusLoad        = domain.ErrCorpusLoad
	ErrDimensionMismatch = domain.ErrDimensionMismatch
	ErrProviderError     = domain.ErrProviderError
	ErrQuotaExceeded     = domain.ErrQuotaExceeded
	ErrInvalidQuestion   = domain.ErrInvalidQuestion
)
