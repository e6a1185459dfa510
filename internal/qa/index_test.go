package qa

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/gdg-ntpu/welcomebot/internal/models"
)

// mockEmbedder returns canned vectors per input text.
type mockEmbedder struct {
	vectors map[string][]float64
	err     error
	calls   int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return []float64{0, 0, 1}, nil
}

func testVectors() []models.AnswerVector {
	return []models.AnswerVector{
		{Label: "學習內容", Text: "學習內容", Answer: "社課涵蓋各式技術主題", Embedding: []float64{1, 0, 0}},
		{Label: "學習內容", Text: "社課都教些什麼", Answer: "社課涵蓋各式技術主題", Embedding: []float64{0.9, 0.1, 0}},
		{Label: "職涯發展", Text: "職涯發展", Answer: "社團提供職涯講座與企業參訪", Embedding: []float64{0, 1, 0}},
	}
}

func TestNewIndexGroupsByLabel(t *testing.T) {
	idx := NewIndex(&mockEmbedder{}, testVectors())
	if idx.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", idx.Len())
	}
	e := idx.entries[0]
	if e.Label != "學習內容" {
		t.Errorf("expected first entry 學習內容, got %q", e.Label)
	}
	if len(e.Paraphrases) != 1 || e.Paraphrases[0] != "社課都教些什麼" {
		t.Errorf("unexpected paraphrases: %v", e.Paraphrases)
	}
	if len(e.Vectors) != 2 {
		t.Errorf("expected 2 vectors for entry, got %d", len(e.Vectors))
	}
}

func TestSearchReturnsBestMatch(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float64{
		"社課內容是什麼": {1, 0, 0},
	}}
	idx := NewIndex(emb, testVectors())

	hits := idx.Search(context.Background(), "社課內容是什麼", 1, 0.7)
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Entry.Label != "學習內容" {
		t.Errorf("expected 學習內容, got %q", hits[0].Entry.Label)
	}
	if math.Abs(hits[0].Score-1.0) > 1e-9 {
		t.Errorf("expected score 1.0, got %f", hits[0].Score)
	}
}

func TestSearchThresholdFiltersWeakMatches(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float64{
		"今晚吃什麼": {0, 0, 1},
	}}
	idx := NewIndex(emb, testVectors())

	hits := idx.Search(context.Background(), "今晚吃什麼", 1, 0.7)
	if len(hits) != 0 {
		t.Errorf("expected no hits below threshold, got %+v", hits)
	}
}

func TestSearchTopKOrdering(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float64{
		"q": {0.7, 0.7, 0},
	}}
	idx := NewIndex(emb, testVectors())

	hits := idx.Search(context.Background(), "q", 2, 0.5)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Score < hits[1].Score {
		t.Errorf("hits not sorted by descending score: %f then %f", hits[0].Score, hits[1].Score)
	}
}

func TestSearchEmbeddingFailureReturnsEmpty(t *testing.T) {
	emb := &mockEmbedder{err: errors.New("provider down")}
	idx := NewIndex(emb, testVectors())

	hits := idx.Search(context.Background(), "任何問題", 1, 0.7)
	if hits != nil {
		t.Errorf("expected nil hits on embedding failure, got %+v", hits)
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		a, b []float64
		want float64
	}{
		{[]float64{1, 0}, []float64{1, 0}, 1},
		{[]float64{1, 0}, []float64{0, 1}, 0},
		{[]float64{1, 0}, []float64{-1, 0}, -1},
		{[]float64{1, 0}, []float64{1, 0, 0}, 0}, // dimension mismatch
		{[]float64{0, 0}, []float64{1, 0}, 0},    // zero vector
		{nil, nil, 0},
	}
	for _, c := range cases {
		if got := cosineSimilarity(c.a, c.b); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("cosineSimilarity(%v, %v) = %f, want %f", c.a, c.b, got, c.want)
		}
	}
}
