// Package semantic implements the embedding-based retrieval pipeline: a
// deterministic hashed embedder, a place index built from a seed dataset,
// per-field retrieval, calibrated scoring, event-type classification and
// geo-type decisions.
package semantic

import (
	"crypto/sha1"
	"encoding/hex"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultDim is the embedding width used when none is configured
const DefaultDim = 384

const (
	unigramWeight = 1.0
	bigramWeight  = 0.7
)

var (
	nonAlnumRe = regexp.MustCompile(`[^a-z0-9\s]`)
	abbrevs    = strings.NewReplacer("u.s.a.", " usa ", "u.s.", " us ")
)

// Vector is an L2-normalized embedding
type Vector []float32

// Embedder hashes tokens and token bigrams into a fixed-width vector.
// It needs no model files and is safe for concurrent use.
type Embedder struct {
	dim int
}

// NewEmbedder returns an embedder of width dim, or DefaultDim when dim <= 0
func NewEmbedder(dim int) *Embedder {
	if dim <= 0 {
		dim = DefaultDim
	}
	return &Embedder{dim: dim}
}

// Dim returns the vector width
func (e *Embedder) Dim() int { return e.dim }

// Embed returns the normalized embedding of text. Empty text yields a zero vector.
func (e *Embedder) Embed(text string) Vector {
	vec := make(Vector, e.dim)
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return vec
	}

	for _, tok := range tokens {
		vec[e.bucket(tok)] += unigramWeight
	}
	for i := 0; i+1 < len(tokens); i++ {
		vec[e.bucket(tokens[i]+"_"+tokens[i+1])] += bigramWeight
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if norm := math.Sqrt(sum); norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

// EmbedAll embeds each text in order
func (e *Embedder) EmbedAll(texts []string) []Vector {
	out := make([]Vector, len(texts))
	for i, t := range texts {
		out[i] = e.Embed(t)
	}
	return out
}

func (e *Embedder) bucket(token string) int {
	sum := sha1.Sum([]byte(token))
	h, _ := strconv.ParseUint(hex.EncodeToString(sum[:])[:12], 16, 64)
	return int(h % uint64(e.dim))
}

// Tokenize lowercases text, folds "u.s."-style abbreviations, strips
// punctuation and emits a stem variant ahead of each token that has one.
func Tokenize(text string) []string {
	folded := abbrevs.Replace(strings.ToLower(text))
	folded = nonAlnumRe.ReplaceAllString(folded, " ")

	fields := strings.Fields(folded)
	out := make([]string, 0, len(fields)*2)
	for _, t := range fields {
		switch {
		case strings.HasSuffix(t, "ation") && len(t) > 5:
			out = append(out, t[:len(t)-5])
		case strings.HasSuffix(t, "ing") && len(t) > 5:
			out = append(out, t[:len(t)-3])
		case strings.HasSuffix(t, "s") && len(t) > 4:
			out = append(out, t[:len(t)-1])
		}
		out = append(out, t)
	}
	return out
}

// Cosine returns the dot product of two vectors, clamped to [-1,1].
// Both are expected to be normalized already.
func Cosine(a, b Vector) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return math.Max(-1, math.Min(1, dot))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
