package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing corpus entry or cached question.
	ErrNotFound = errors.New("not found")
	// ErrCorpusLoad signals that the static corpus could not be loaded.
	ErrCorpusLoad = errors.New("corpus load failed")
	// ErrDimensionMismatch signals that query and corpus embeddings differ in length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrProviderError signals an embedding or completion provider failure.
	ErrProviderError = errors.New("provider error")
	// ErrQuotaExceeded signals an exhausted provider token budget. It is a
	// provider failure: errors.Is(err, ErrProviderError) holds for it too.
	ErrQuotaExceeded = fmt.Errorf("token quota exceeded: %w", ErrProviderError)
	// ErrInvalidQuestion signals an empty or oversized question.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrInvalidPeriod signals an unknown usage report period.
	ErrInvalidPeriod = errors.New("invalid period")
)

// CorpusLoadError describes why a corpus source was rejected.
// Line is 1-based; zero means the problem is not tied to a row.
type CorpusLoadError struct {
	Source string
	Line   int
	Reason string
}

func (e *CorpusLoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s line %d: %s", ErrCorpusLoad.Error(), e.Source, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrCorpusLoad.Error(), e.Source, e.Reason)
}

func (e *CorpusLoadError) Unwrap() error { return ErrCorpusLoad }

// DimensionMismatchError wraps ErrDimensionMismatch with the offending entry.
type DimensionMismatchError struct {
	ID   string
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: entry %q has %d dimensions, query has %d",
		ErrDimensionMismatch.Error(), e.ID, e.Got, e.Want)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }
