// Package vectordb stores justification embeddings so the reasoning behind
// stored verdicts can be searched by similarity.
package vectordb

import (
	"context"

	"github.com/refjudge/refjudge/internal/classify"
)

// Document is one stored justification.
type Document struct {
	ID       string
	Content  string
	Metadata Metadata
}

// Metadata identifies the verdict a justification belongs to.
type Metadata struct {
	Repository string
	Hash       string
	Verdict    classify.Verdict
	Source     classify.Source
	Model      string
}

// SearchResult is one similarity hit.
type SearchResult struct {
	Document   Document
	Similarity float32
}

// Filter restricts a similarity search.
type Filter struct {
	Verdict classify.Verdict
	Source  classify.Source
}

// Store indexes justifications and finds the nearest ones to a query.
type Store interface {
	Add(ctx context.Context, docs []Document) error
	Search(ctx context.Context, query string, limit int, filter *Filter) ([]SearchResult, error)

	// Persist saves the index under dir; Load restores it.
	Persist(ctx context.Context, dir string) error
	Load(ctx context.Context, dir string) error

	Count() int
}

// DocumentsFrom converts stored verdicts into indexable documents. Verdicts
// with an empty or sentinel-only justification are skipped: a synthesized
// default carries no searchable reasoning.
func DocumentsFrom(verdicts []classify.Classification) []Document {
	docs := make([]Document, 0, len(verdicts))
	for _, v := range verdicts {
		if v.Justification == "" || v.Justification == classify.MissingJustification {
			continue
		}
		docs = append(docs, Document{
			ID:      string(v.Source) + ":" + v.Key.Hash,
			Content: v.Justification,
			Metadata: Metadata{
				Repository: v.Key.Repository,
				Hash:       v.Key.Hash,
				Verdict:    v.Verdict,
				Source:     v.Source,
				Model:      v.Model,
			},
		})
	}
	return docs
}
