package ingest

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/bookqa/internal/corpus"
	"github.com/kailas-cloud/bookqa/internal/domain"
)

// Embed vectorizes the page texts with the document embedding model.
// The embedder is expected to split large inputs into API-sized batches.
func Embed(ctx context.Context, embedder domain.BatchEmbedder, pages []corpus.Page) ([]string, [][]float32, error) {
	if len(pages) == 0 {
		return nil, nil, fmt.Errorf("no pages to embed")
	}

	ids := make([]string, len(pages))
	texts := make([]string, len(pages))
	for i, p := range pages {
		ids[i] = p.ID
		texts[i] = p.Text
	}

	res, err := embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, nil, fmt.Errorf("embed pages: %w", err)
	}
	if len(res.Embeddings) != len(pages) {
		return nil, nil, fmt.Errorf("%w: got %d embeddings for %d pages",
			domain.ErrProviderError, len(res.Embeddings), len(pages))
	}
	for i, vec := range res.Embeddings {
		if len(vec) == 0 {
			return nil, nil, fmt.Errorf("%w: empty embedding for %q", domain.ErrProviderError, ids[i])
		}
	}

	return ids, res.Embeddings, nil
}
