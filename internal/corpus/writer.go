package corpus

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Page is a labelled page of extracted book text.
type Page struct {
	ID   string
	Text string
}

// WritePages writes the pages source in the format Load expects.
func WritePages(w io.Writer, pages []Page) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"title", "content"}); err != nil {
		return fmt.Errorf("write pages header: %w", err)
	}
	for _, p := range pages {
		if err := cw.Write([]string{p.ID, p.Text}); err != nil {
			return fmt.Errorf("write page %q: %w", p.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush pages: %w", err)
	}
	return nil
}

// WriteEmbeddings writes the embeddings source: a header of title plus the
// column indexes, then one row per id. All vectors must share one width.
func WriteEmbeddings(w io.Writer, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	if len(vectors) == 0 {
		return fmt.Errorf("no embeddings to write")
	}

	dim := len(vectors[0])
	cw := csv.NewWriter(w)

	header := make([]string, dim+1)
	header[0] = "title"
	for i := 0; i < dim; i++ {
		header[i+1] = strconv.Itoa(i)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write embeddings header: %w", err)
	}

	row := make([]string, dim+1)
	for i, vec := range vectors {
		if len(vec) != dim {
			return fmt.Errorf("embedding for %q has %d dimensions, expected %d", ids[i], len(vec), dim)
		}
		row[0] = ids[i]
		for j, f := range vec {
			row[j+1] = strconv.FormatFloat(float64(f), 'g', -1, 32)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write embedding %q: %w", ids[i], err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush embeddings: %w", err)
	}
	return nil
}
