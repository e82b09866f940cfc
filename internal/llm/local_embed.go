package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"unicode"
)

// LocalEmbedder is a deterministic, offline embedder based on feature
// hashing. Each token is hashed into one of Dimension buckets with a
// signed weight and the result is L2-normalized. Runs of CJK characters
// are split into overlapping bigrams since they carry no spaces.
//
// It needs no corpus preparation, so vectors built at ingest time and
// vectors computed for queries later always live in the same space.
type LocalEmbedder struct {
	dimension int
	pattern   *regexp.Regexp
	stopwords map[string]struct{}
}

// NewLocalEmbedder creates a LocalEmbedder with the given vector size.
func NewLocalEmbedder(dimension int) *LocalEmbedder {
	if dimension <= 0 {
		dimension = 512
	}
	return &LocalEmbedder{
		dimension: dimension,
		pattern:   regexp.MustCompile(`[\p{L}\p{N}]+`),
		stopwords: defaultStopwords(),
	}
}

// ModelID reports the hashing scheme and dimension.
func (e *LocalEmbedder) ModelID() string {
	return fmt.Sprintf("local-hash-%d", e.dimension)
}

// Embed never fails unless the context is done.
func (e *LocalEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embedOne(t)
	}
	return out, nil
}

func (e *LocalEmbedder) embedOne(text string) []float32 {
	vec := make([]float64, e.dimension)
	for _, tok := range e.tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimension))
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, e.dimension)
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func (e *LocalEmbedder) tokenize(text string) []string {
	raw := e.pattern.FindAllString(strings.ToLower(text), -1)
	var out []string
	for _, t := range raw {
		if _, stop := e.stopwords[t]; stop {
			continue
		}
		if !hasCJK(t) {
			out = append(out, t)
			continue
		}
		runes := []rune(t)
		if len(runes) == 1 {
			out = append(out, t)
			continue
		}
		for i := 0; i+1 < len(runes); i++ {
			out = append(out, string(runes[i:i+2]))
		}
	}
	return out
}

func hasCJK(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			return true
		}
	}
	return false
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "into", "about", "than", "so", "such", "can", "will", "just", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
