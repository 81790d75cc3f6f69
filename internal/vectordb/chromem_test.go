package vectordb

import (
	"context"
	"testing"

	"github.com/refjudge/refjudge/internal/classify"
)

// fakeEmbedder maps texts to deterministic vectors: documents sharing words
// with the query land closer than unrelated ones.
type fakeEmbedder struct{}

func (fakeEmbedder) Name() string    { return "fake" }
func (fakeEmbedder) Dimensions() int { return 8 }

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 8)
		for j, r := range text {
			v[j%8] += float32(r%13) / 13
		}
		out[i] = v
	}
	return out, nil
}

func setupStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(fakeEmbedder{}, "justifications_test")
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	return store
}

func sampleDocs() []Document {
	return []Document{
		{
			ID:      "llm_judge:aaaaaaaa",
			Content: "Pure rename of internal helper methods with no behavioral change",
			Metadata: Metadata{
				Hash:    "aaaaaaaa",
				Verdict: classify.VerdictPure,
				Source:  classify.SourceJudge,
				Model:   "test-model",
			},
		},
		{
			ID:      "llm_judge:bbbbbbbb",
			Content: "Extracted method but also added a null check changing behavior",
			Metadata: Metadata{
				Hash:    "bbbbbbbb",
				Verdict: classify.VerdictFloss,
				Source:  classify.SourceJudge,
				Model:   "test-model",
			},
		},
	}
}

func TestAddAndSearch(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Add(ctx, sampleDocs()); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if store.Count() != 2 {
		t.Fatalf("count: got %d, want 2", store.Count())
	}

	results, err := store.Search(ctx, "rename helper methods", 5, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results: got %d, want 2", len(results))
	}
	if results[0].Document.Metadata.Hash == "" {
		t.Error("metadata lost in round trip")
	}
}

func TestSearchVerdictFilter(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Add(ctx, sampleDocs()); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := store.Search(ctx, "behavior", 5, &Filter{Verdict: classify.VerdictFloss})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("filtered results: got %d, want 1", len(results))
	}
	if results[0].Document.Metadata.Verdict != classify.VerdictFloss {
		t.Errorf("filter leaked verdict %q", results[0].Document.Metadata.Verdict)
	}
}

func TestSearchEmptyStore(t *testing.T) {
	store := setupStore(t)
	results, err := store.Search(context.Background(), "anything", 5, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results from empty store, got %d", len(results))
	}
}

func TestPersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store := setupStore(t)
	if err := store.Add(ctx, sampleDocs()); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := store.Persist(ctx, dir); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	restored := setupStore(t)
	if err := restored.Load(ctx, dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if restored.Count() != 2 {
		t.Errorf("restored count: got %d, want 2", restored.Count())
	}
}

func TestDocumentsFromSkipsSentinels(t *testing.T) {
	verdicts := []classify.Classification{
		{
			Key:           classify.CommitKey{Hash: "aaaaaaaa"},
			Verdict:       classify.VerdictPure,
			Source:        classify.SourceJudge,
			Justification: "Only import reordering",
		},
		{
			Key:           classify.CommitKey{Hash: "bbbbbbbb"},
			Verdict:       classify.VerdictFloss,
			Source:        classify.SourceJudge,
			Justification: classify.MissingJustification,
		},
		{
			Key:     classify.CommitKey{Hash: "cccccccc"},
			Verdict: classify.VerdictUnknown,
			Source:  classify.SourceReference,
		},
	}

	docs := DocumentsFrom(verdicts)
	if len(docs) != 1 {
		t.Fatalf("docs: got %d, want 1", len(docs))
	}
	if docs[0].ID != "llm_judge:aaaaaaaa" {
		t.Errorf("unexpected doc ID %q", docs[0].ID)
	}
}
