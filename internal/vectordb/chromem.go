package vectordb

import (
	"context"
	"fmt"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"

	"github.com/refjudge/refjudge/internal/classify"
	"github.com/refjudge/refjudge/internal/embeddings"
)

const storeFile = "justifications.gob.gz"

// ChromemStore implements Store using chromem-go. Each judge model gets its
// own collection so similarity queries never mix models.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	name       string
	embedFunc  chromem.EmbeddingFunc
}

// NewChromemStore creates an in-memory store for the given collection name
// (conventionally "justifications_<model-slug>").
func NewChromemStore(embedder embeddings.Embedder, name string) (*ChromemStore, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(name, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{
		db:         db,
		collection: col,
		name:       name,
		embedFunc:  ef,
	}, nil
}

func (s *ChromemStore) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	chromDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromDocs[i] = chromem.Document{
			ID:      doc.ID,
			Content: doc.Content,
			Metadata: map[string]string{
				"repository": doc.Metadata.Repository,
				"hash":       doc.Metadata.Hash,
				"verdict":    string(doc.Metadata.Verdict),
				"source":     string(doc.Metadata.Source),
				"model":      doc.Metadata.Model,
			},
		}
	}

	return s.collection.AddDocuments(ctx, chromDocs, 1)
}

func (s *ChromemStore) Search(ctx context.Context, query string, limit int, filter *Filter) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	var where map[string]string
	if filter != nil {
		where = make(map[string]string)
		if filter.Verdict != "" {
			where["verdict"] = string(filter.Verdict)
		}
		if filter.Source != "" {
			where["source"] = string(filter.Source)
		}
		if len(where) == 0 {
			where = nil
		}
	}

	results, err := s.collection.Query(ctx, query, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			Document: Document{
				ID:      r.ID,
				Content: r.Content,
				Metadata: Metadata{
					Repository: r.Metadata["repository"],
					Hash:       r.Metadata["hash"],
					Verdict:    classify.Verdict(r.Metadata["verdict"]),
					Source:     classify.Source(r.Metadata["source"]),
					Model:      r.Metadata["model"],
				},
			},
			Similarity: r.Similarity,
		}
	}
	return out, nil
}

func (s *ChromemStore) Persist(ctx context.Context, dir string) error {
	return s.db.ExportToFile(filepath.Join(dir, storeFile), true, "")
}

func (s *ChromemStore) Load(ctx context.Context, dir string) error {
	if err := s.db.ImportFromFile(filepath.Join(dir, storeFile), ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire the collection reference after import.
	col := s.db.GetCollection(s.name, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", s.name)
	}
	s.collection = col
	return nil
}

func (s *ChromemStore) Count() int {
	return s.collection.Count()
}
