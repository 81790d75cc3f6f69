// Package embeddings generates text embeddings for stored justifications, so
// similar judge reasoning can be found across commits.
package embeddings

import "context"

// Embedder generates embeddings for one or more texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the identifier of the embedding model.
	Name() string
}
