// Package corpus loads the book's pages and their precomputed embeddings.
//
// A Store is built once at startup and never mutated afterwards, so it can be
// shared by concurrent requests without locking.
package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kailas-cloud/bookqa/internal/domain"
)

// Source names used in load errors.
const (
	SourcePages      = "pages"
	SourceEmbeddings = "embeddings"
)

// Store holds the corpus entries in pages-source order.
type Store struct {
	entries []domain.CorpusEntry
	index   map[string]int
	dim     int
}

// LoadFiles opens both CSV sources and loads them.
func LoadFiles(pagesPath, embeddingsPath string) (*Store, error) {
	pages, err := os.Open(filepath.Clean(pagesPath))
	if err != nil {
		return nil, &domain.CorpusLoadError{Source: pagesPath, Reason: err.Error()}
	}
	defer pages.Close()

	embeddings, err := os.Open(filepath.Clean(embeddingsPath))
	if err != nil {
		return nil, &domain.CorpusLoadError{Source: embeddingsPath, Reason: err.Error()}
	}
	defer embeddings.Close()

	return Load(pages, embeddings)
}

// Load reads a pages CSV (id,text) and an embeddings CSV (id,f0..fN-1).
// Both sources must carry a header row and the same set of ids.
func Load(pages, embeddings io.Reader) (*Store, error) {
	texts, order, err := readPages(pages)
	if err != nil {
		return nil, err
	}
	vectors, dim, err := readEmbeddings(embeddings)
	if err != nil {
		return nil, err
	}

	if len(texts) != len(vectors) {
		return nil, &domain.CorpusLoadError{
			Source: SourceEmbeddings,
			Reason: fmt.Sprintf("id sets differ: %d pages, %d embeddings", len(texts), len(vectors)),
		}
	}

	s := &Store{
		entries: make([]domain.CorpusEntry, 0, len(order)),
		index:   make(map[string]int, len(order)),
		dim:     dim,
	}
	for _, id := range order {
		vec, ok := vectors[id]
		if !ok {
			return nil, &domain.CorpusLoadError{
				Source: SourceEmbeddings,
				Reason: fmt.Sprintf("id sets differ: no embedding for %q", id),
			}
		}
		s.index[id] = len(s.entries)
		s.entries = append(s.entries, domain.CorpusEntry{ID: id, Text: texts[id], Embedding: vec})
	}

	return s, nil
}

// Get returns the entry with the given id.
func (s *Store) Get(id string) (domain.CorpusEntry, error) {
	i, ok := s.index[id]
	if !ok {
		return domain.CorpusEntry{}, fmt.Errorf("corpus entry %q: %w", id, domain.ErrNotFound)
	}
	return s.entries[i], nil
}

// All returns every entry in load order. The slice must not be modified.
func (s *Store) All() []domain.CorpusEntry {
	return s.entries
}

// Len returns the number of entries.
func (s *Store) Len() int { return len(s.entries) }

// Dimension returns the embedding width shared by all entries.
func (s *Store) Dimension() int { return s.dim }

// ReadPages reads a pages source on its own, preserving row order.
func ReadPages(r io.Reader) ([]Page, error) {
	texts, order, err := readPages(r)
	if err != nil {
		return nil, err
	}
	pages := make([]Page, len(order))
	for i, id := range order {
		pages[i] = Page{ID: id, Text: texts[id]}
	}
	return pages, nil
}

func readPages(r io.Reader) (map[string]string, []string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2

	if _, err := cr.Read(); err != nil {
		return nil, nil, csvError(SourcePages, err, "missing header")
	}

	texts := make(map[string]string)
	var order []string
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, csvError(SourcePages, err, "")
		}

		id := strings.TrimSpace(rec[0])
		if id == "" {
			return nil, nil, &domain.CorpusLoadError{Source: SourcePages, Line: line, Reason: "empty id"}
		}
		if _, dup := texts[id]; dup {
			return nil, nil, &domain.CorpusLoadError{Source: SourcePages, Line: line, Reason: fmt.Sprintf("duplicate id %q", id)}
		}
		texts[id] = rec[1]
		order = append(order, id)
	}

	if len(order) == 0 {
		return nil, nil, &domain.CorpusLoadError{Source: SourcePages, Reason: "no rows"}
	}
	return texts, order, nil
}

func readEmbeddings(r io.Reader) (map[string][]float32, int, error) {
	cr := csv.NewReader(r)
	// Zero pins every row to the header's width.
	cr.FieldsPerRecord = 0
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, csvError(SourceEmbeddings, err, "missing header")
	}
	dim := len(header) - 1
	if dim < 1 {
		return nil, 0, &domain.CorpusLoadError{Source: SourceEmbeddings, Line: 1, Reason: "header has no vector columns"}
	}

	vectors := make(map[string][]float32)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, csvError(SourceEmbeddings, err, "")
		}

		id := strings.TrimSpace(rec[0])
		if id == "" {
			return nil, 0, &domain.CorpusLoadError{Source: SourceEmbeddings, Line: line, Reason: "empty id"}
		}
		if _, dup := vectors[id]; dup {
			return nil, 0, &domain.CorpusLoadError{Source: SourceEmbeddings, Line: line, Reason: fmt.Sprintf("duplicate id %q", id)}
		}

		vec := make([]float32, dim)
		for i, raw := range rec[1:] {
			f, err := strconv.ParseFloat(strings.TrimSpace(raw), 32)
			if err != nil {
				return nil, 0, &domain.CorpusLoadError{
					Source: SourceEmbeddings,
					Line:   line,
					Reason: fmt.Sprintf("column %d: %v", i+1, err),
				}
			}
			vec[i] = float32(f)
		}
		vectors[id] = vec
	}

	if len(vectors) == 0 {
		return nil, 0, &domain.CorpusLoadError{Source: SourceEmbeddings, Reason: "no rows"}
	}
	return vectors, dim, nil
}

// csvError converts encoding/csv failures into CorpusLoadError with the row number.
func csvError(source string, err error, fallback string) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &domain.CorpusLoadError{Source: source, Line: pe.StartLine, Reason: pe.Err.Error()}
	}
	if errors.Is(err, io.EOF) && fallback != "" {
		return &domain.CorpusLoadError{Source: source, Reason: fallback}
	}
	return &domain.CorpusLoadError{Source: source, Reason: err.Error()}
}
