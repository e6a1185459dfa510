package qa

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gdg-ntpu/welcomebot/internal/models"
)

// mockCompleter records prompts and returns canned replies in order.
type mockCompleter struct {
	replies []string
	err     error
	prompts []string
}

func (m *mockCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.prompts = append(m.prompts, userPrompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.prompts) <= len(m.replies) {
		return m.replies[len(m.prompts)-1], nil
	}
	return "", errors.New("no more canned replies")
}

func pipelineIndex(emb Embedder) *Index {
	return NewIndex(emb, []models.AnswerVector{
		{Label: "學習內容", Text: "學習內容", Answer: "社課涵蓋各式技術主題", Embedding: []float64{1, 0, 0}},
	})
}

func TestAnswerDirectHit(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float64{
		"社課教什麼": {1, 0, 0},
	}}
	comp := &mockCompleter{replies: []string{"同學您好:\n\n社課涵蓋各式技術主題！"}}
	p := NewPipeline(pipelineIndex(emb), comp)

	got := p.Answer(context.Background(), "社課教什麼")
	if got != "同學您好:\n\n社課涵蓋各式技術主題！" {
		t.Errorf("unexpected reply: %q", got)
	}
	if len(comp.prompts) != 1 {
		t.Fatalf("expected exactly one completion call, got %d", len(comp.prompts))
	}
	if !strings.Contains(comp.prompts[0], "社課涵蓋各式技術主題") {
		t.Error("generation prompt missing matched answer")
	}
	if !strings.Contains(comp.prompts[0], "同學您好") {
		t.Error("generation prompt missing persona greeting rule")
	}
}

func TestAnswerRewriteThenHit(t *testing.T) {
	// The raw query misses; the rewritten query hits.
	emb := &mockEmbedder{vectors: map[string][]float64{
		"我是大一新生要怎麼辦":          {0, 0, 1},
		"學習內容 + 我是大一新生要怎麼辦": {1, 0, 0},
	}}
	comp := &mockCompleter{replies: []string{
		"學習內容 + 我是大一新生要怎麼辦",
		"同學您好:\n\n歡迎加入我們！",
	}}
	p := NewPipeline(pipelineIndex(emb), comp)

	got := p.Answer(context.Background(), "我是大一新生要怎麼辦")
	if got != "同學您好:\n\n歡迎加入我們！" {
		t.Errorf("unexpected reply: %q", got)
	}
	if len(comp.prompts) != 2 {
		t.Fatalf("expected rewrite + generation calls, got %d", len(comp.prompts))
	}
	if !strings.Contains(comp.prompts[0], "社員能力要求") {
		t.Error("rewrite prompt missing fixed label set")
	}
	if emb.calls != 2 {
		t.Errorf("expected exactly 2 retrieval embeddings, got %d", emb.calls)
	}
}

func TestAnswerDoubleMissReturnsFallbackVerbatim(t *testing.T) {
	// Nothing scores above threshold, even after the rewrite.
	emb := &mockEmbedder{vectors: map[string][]float64{}}
	comp := &mockCompleter{replies: []string{"職涯發展 + 我是大一新生要怎麼辦"}}
	p := NewPipeline(pipelineIndex(emb), comp)

	got := p.Answer(context.Background(), "我是大一新生要怎麼辦")
	if got != FallbackNoAnswer {
		t.Errorf("expected fallback %q, got %q", FallbackNoAnswer, got)
	}
	// Exactly one rewrite, exactly two retrievals, no generation call.
	if len(comp.prompts) != 1 {
		t.Errorf("expected only the rewrite completion, got %d calls", len(comp.prompts))
	}
	if emb.calls != 2 {
		t.Errorf("expected exactly 2 retrieval attempts, got %d", emb.calls)
	}
}

func TestAnswerRewriteFailureStillRetriesOnce(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float64{}}
	comp := &mockCompleter{err: errors.New("provider down")}
	p := NewPipeline(pipelineIndex(emb), comp)

	got := p.Answer(context.Background(), "問題")
	if got != FallbackNoAnswer {
		t.Errorf("expected fallback, got %q", got)
	}
	if emb.calls != 2 {
		t.Errorf("expected 2 retrieval attempts despite rewrite failure, got %d", emb.calls)
	}
}

func TestAnswerGenerationFailureReturnsApology(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float64{
		"社課教什麼": {1, 0, 0},
	}}
	comp := &mockCompleter{err: errors.New("rate limited")}
	p := NewPipeline(pipelineIndex(emb), comp)

	got := p.Answer(context.Background(), "社課教什麼")
	if got != FallbackProviderError {
		t.Errorf("expected apology %q, got %q", FallbackProviderError, got)
	}
	// Generation is not retried.
	if len(comp.prompts) != 1 {
		t.Errorf("expected a single generation attempt, got %d", len(comp.prompts))
	}
}
