// Package score merges location candidates from every signal generator and
// ranks them.
package score

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ppiankov/geoinfer/internal/model"
)

// Arbitration limits
const (
	MaxCombinedConfidence = 0.99
	PenaltyFloor          = 0.05
)

// Trailing qualifiers stripped by MergeKey. Only one is removed.
var mergeSuffixes = []string{", usa", ", united states", ", us", ", uk", ", united kingdom", ", canada"}

// Arbiter runs merge, ambiguity penalty and truncation in sequence
type Arbiter struct {
	minConfidence float64
	maxCandidates int
}

// NewArbiter creates an arbiter with the given floor and list bound
func NewArbiter(minConfidence float64, maxCandidates int) *Arbiter {
	return &Arbiter{minConfidence: minConfidence, maxCandidates: maxCandidates}
}

// Arbitrate merges, discounts and truncates cands
func (a *Arbiter) Arbitrate(cands []model.Candidate) []model.Candidate {
	merged := Merge(cands)
	penalized := ApplyAmbiguityPenalty(merged)
	return Finalize(penalized, a.minConfidence, a.maxCandidates)
}

// MergeKey normalizes a location name so equivalent surface forms collide:
// "Atlanta, GA" and "Atlanta, GA, USA" both become "atlanta, ga".
func MergeKey(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, suffix := range mergeSuffixes {
		if strings.HasSuffix(key, suffix) {
			return strings.TrimSpace(strings.TrimSuffix(key, suffix))
		}
	}
	return key
}

// Combine is the probabilistic union of two independent confidences,
// a + b - ab, rounded to two decimals and capped at 0.99
func Combine(a, b float64) float64 {
	a, b = model.Clamp01(a), model.Clamp01(b)
	return math.Min(model.Round2(a+b-a*b), MaxCombinedConfidence)
}

// Merge collapses candidates sharing a merge key. The first candidate's name
// and method are kept; the more specific kind wins; coordinates, place id and
// country are taken from the first candidate that has them.
func Merge(cands []model.Candidate) []model.Candidate {
	index := make(map[string]int)
	var out []model.Candidate

	for _, c := range cands {
		c.Confidence = model.Clamp01(c.Confidence)
		key := MergeKey(c.Name)
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			c.Evidence = append([]model.EvidenceItem(nil), c.Evidence...)
			out = append(out, c)
			continue
		}

		existing := &out[i]
		existing.Confidence = Combine(existing.Confidence, c.Confidence)
		if c.Reason != "" && !strings.Contains(existing.Reason, c.Reason) {
			if existing.Reason == "" {
				existing.Reason = c.Reason
			} else {
				existing.Reason = existing.Reason + "; " + c.Reason
			}
		}
		if c.Kind.Specificity() > existing.Kind.Specificity() {
			existing.Kind = c.Kind
		}
		if existing.Coords == nil && c.Coords != nil {
			existing.Coords = c.Coords
		}
		if existing.PlaceID == "" {
			existing.PlaceID = c.PlaceID
		}
		if existing.Country == "" {
			existing.Country = c.Country
		}
		existing.TitleScore = math.Max(existing.TitleScore, c.TitleScore)
		existing.Evidence = append(existing.Evidence, c.Evidence...)
	}

	return out
}

// ApplyAmbiguityPenalty discounts every candidate when several survive:
// none for one, 5 points for two, 10 points for three or more, floored at 0.05.
func ApplyAmbiguityPenalty(cands []model.Candidate) []model.Candidate {
	n := len(cands)
	if n <= 1 {
		return cands
	}

	penalty := 0.05
	if n > 2 {
		penalty = 0.10
	}

	out := make([]model.Candidate, n)
	for i, c := range cands {
		c.Confidence = math.Max(model.Round2(c.Confidence-penalty), PenaltyFloor)
		c.Reason = fmt.Sprintf("%s [ambiguity penalty: -%.0f%%, %d candidates]", c.Reason, penalty*100, n)
		out[i] = c
	}
	return out
}

// Finalize sorts by confidence descending (name breaks ties), drops
// candidates below minConfidence and keeps at most max
func Finalize(cands []model.Candidate, minConfidence float64, max int) []model.Candidate {
	out := make([]model.Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Confidence >= minConfidence {
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Name < out[j].Name
	})

	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
