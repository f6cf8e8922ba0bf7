// Package ingest turns a book PDF into the pages and embeddings sources
// the corpus loads at startup.
package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kailas-cloud/bookqa/internal/corpus"
)

// ExtractPages reads every page of the PDF at path as plain text.
func ExtractPages(path string) ([]corpus.Page, error) {
	f, r, err := pdf.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	texts := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		texts = append(texts, text)
	}

	return LabelPages(texts), nil
}

// LabelPages collapses whitespace runs to one space, drops pages left empty
// and labels the rest "Page N", counting only the kept pages.
func LabelPages(texts []string) []corpus.Page {
	pages := make([]corpus.Page, 0, len(texts))
	for _, t := range texts {
		text := strings.Join(strings.Fields(t), " ")
		if text == "" {
			continue
		}
		pages = append(pages, corpus.Page{
			ID:   fmt.Sprintf("Page %d", len(pages)+1),
			Text: text,
		})
	}
	return pages
}

// PagesPath and EmbeddingsPath name the outputs derived from the PDF path.
func PagesPath(pdfPath string) string { return pdfPath + ".pages.csv" }

// EmbeddingsPath is the embeddings source next to the PDF.
func EmbeddingsPath(pdfPath string) string { return pdfPath + ".embeddings.csv" }
