// Package index stores utterance embeddings per meeting and answers
// similarity queries against them. Backends differ only in where vectors
// live; ranking is shared and done in process.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/maastricht-university/meeting-intelligence/transcript"
)

// ErrNoIndex is returned by Query and Stats for a meeting that was never
// embedded. It matches transcript.ErrNotFound.
var ErrNoIndex = fmt.Errorf("no vector index: %w", transcript.ErrNotFound)

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Index interface {
	// Upsert replaces the meeting's index with embeddings of utts. When
	// embedding fails the previous index is left untouched.
	Upsert(ctx context.Context, meetingID string, utts []transcript.Utterance) error
	// Query returns at most topK results best-first. A non-empty speaker
	// restricts results to utterances stored with exactly that speaker.
	Query(ctx context.Context, meetingID, text string, topK int, speaker string) ([]transcript.SearchResult, error)
	Stats(ctx context.Context, meetingID string) (Stats, error)
	// Delete drops the meeting's index. Deleting a missing index is not an
	// error.
	Delete(ctx context.Context, meetingID string) error
}

type Stats struct {
	MeetingID  string `json:"meeting_id"`
	Entries    int    `json:"total_embeddings"`
	Dimensions int    `json:"dimensions"`
	Model      string `json:"model,omitempty"`
}

type entry struct {
	Utterance transcript.Utterance `json:"utterance"`
	Vector    []float32            `json:"vector"`
}

const emptyText = "(no speech)"

func embedAll(ctx context.Context, emb Embedder, utts []transcript.Utterance) ([]entry, error) {
	if len(utts) == 0 {
		return []entry{}, nil
	}
	texts := make([]string, len(utts))
	for i, u := range utts {
		texts[i] = u.Text
		if strings.TrimSpace(texts[i]) == "" {
			texts[i] = emptyText
		}
	}
	vecs, err := emb.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed utterances: %w", err)
	}
	if len(vecs) != len(utts) {
		return nil, fmt.Errorf("embed utterances: got %d vectors for %d texts", len(vecs), len(utts))
	}
	out := make([]entry, len(utts))
	for i, u := range utts {
		out[i] = entry{Utterance: u, Vector: vecs[i]}
	}
	return out, nil
}

func embedQuery(ctx context.Context, emb Embedder, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("index: empty query")
	}
	vecs, err := emb.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	return vecs[0], nil
}

// rank scores entries against query and returns the topK best. Entries are
// expected in storage order; equal scores keep that order.
func rank(entries []entry, query []float32, topK int, speaker string) []transcript.SearchResult {
	type scored struct {
		u     transcript.Utterance
		score float64
	}
	hits := make([]scored, 0, len(entries))
	for _, e := range entries {
		if speaker != "" && e.Utterance.Speaker != speaker {
			continue
		}
		s, err := cosineSimilarity(query, e.Vector)
		if err != nil {
			continue
		}
		hits = append(hits, scored{u: e.Utterance, score: s})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]transcript.SearchResult, len(hits))
	for i, h := range hits {
		out[i] = transcript.ScoredResult(h.u, h.score)
	}
	return out
}

func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, errors.New("cosine similarity requires non-empty vectors")
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine similarity requires vectors with equal dimensions, got %d and %d", len(a), len(b))
	}
	var dot, aNorm, bNorm float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		aNorm += x * x
		bNorm += y * y
	}
	if aNorm == 0 || bNorm == 0 {
		return 0, errors.New("cosine similarity is undefined for zero vectors")
	}
	return dot / (math.Sqrt(aNorm) * math.Sqrt(bNorm)), nil
}

func dimensions(entries []entry) int {
	if len(entries) == 0 {
		return 0
	}
	return len(entries[0].Vector)
}
