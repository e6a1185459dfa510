// Package qa implements the retrieval-augmented answering flow: a
// cosine-similarity answer index over precomputed vectors, and the
// pipeline that turns a free-text question into a user-facing reply.
package qa

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/gdg-ntpu/welcomebot/internal/models"
)

// Embedder converts text to a fixed-length vector. genai.Client satisfies
// this.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Hit is one retrieval result with its similarity score.
type Hit struct {
	Entry models.AnswerEntry
	Score float64
}

// Index holds the vetted answer entries in memory and serves
// nearest-neighbor lookups. Entries are immutable after construction, so
// the index is safe for concurrent use.
type Index struct {
	embedder Embedder
	entries  []models.AnswerEntry
}

// NewIndex groups the stored vector rows by label into answer entries.
// Rows whose text equals the label are the canonical question; the rest
// are paraphrases. Entry order follows first appearance.
func NewIndex(embedder Embedder, vectors []models.AnswerVector) *Index {
	byLabel := make(map[string]int)
	var entries []models.AnswerEntry
	for _, v := range vectors {
		i, ok := byLabel[v.Label]
		if !ok {
			i = len(entries)
			byLabel[v.Label] = i
			entries = append(entries, models.AnswerEntry{Label: v.Label, Answer: v.Answer})
		}
		if v.Text != v.Label {
			entries[i].Paraphrases = append(entries[i].Paraphrases, v.Text)
		}
		entries[i].Vectors = append(entries[i].Vectors, v.Embedding)
	}
	slog.Debug("answer index built", "entries", len(entries), "vectors", len(vectors))
	return &Index{embedder: embedder, entries: entries}
}

// Len returns the number of distinct answer entries.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Search embeds the query and returns up to topK entries scoring at least
// minScore, best first. An entry scores as the maximum similarity over all
// of its vectors. An embedding failure or no entry clearing the threshold
// returns an empty result; both are normal outcomes, not errors.
func (idx *Index) Search(ctx context.Context, query string, topK int, minScore float64) []Hit {
	queryVec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("query embedding failed, returning no hits", "error", err)
		return nil
	}

	var hits []Hit
	for _, entry := range idx.entries {
		best := 0.0
		for _, vec := range entry.Vectors {
			if score := cosineSimilarity(queryVec, vec); score > best {
				best = score
			}
		}
		if best >= minScore {
			hits = append(hits, Hit{Entry: entry, Score: best})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	slog.Debug("answer index search", "hits", len(hits), "top_k", topK, "min_score", minScore)
	return hits
}

// cosineSimilarity returns the cosine of the angle between a and b, or 0
// for mismatched dimensions or zero vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
