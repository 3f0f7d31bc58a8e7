// Package jurisdiction assigns a seat of government to policy and
// legislation prompts.
package jurisdiction

import (
	_ "embed"
	"fmt"
	"io"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/geoinfer/internal/model"
	"github.com/ppiankov/geoinfer/internal/score"
	"github.com/ppiankov/geoinfer/internal/util"
)

//go:embed data/jurisdiction.yaml
var defaultTables []byte

const (
	capitalConfidence  = 0.62
	usCueConfidence    = 0.60
	fallbackConfidence = 0.45
)

// Tables holds policy vocabulary and capital defaults
type Tables struct {
	PolicyKeywords []string          `yaml:"policy_keywords"`
	Capitals       map[string]string `yaml:"capitals"`
	USCues         []string          `yaml:"us_cues"`
	DefaultSeat    string            `yaml:"default_seat"`
}

// LoadTables decodes YAML tables
func LoadTables(r io.Reader) (*Tables, error) {
	var t Tables
	if err := yaml.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode jurisdiction tables: %w", err)
	}
	return &t, nil
}

// DefaultTables returns the embedded tables
func DefaultTables() *Tables {
	var t Tables
	if err := yaml.Unmarshal(defaultTables, &t); err != nil {
		panic(fmt.Sprintf("embedded jurisdiction tables are invalid: %v", err))
	}
	return &t
}

// Heuristic maps policy prompts to capitals
type Heuristic struct {
	policy   []term
	usCues   []term
	capitals map[string]string
	seat     string
}

// New compiles t
func New(t *Tables) *Heuristic {
	h := &Heuristic{capitals: make(map[string]string)}
	if t == nil {
		return h
	}
	h.policy = compile(t.PolicyKeywords)
	h.usCues = compile(t.USCues)
	for country, capital := range t.Capitals {
		h.capitals[util.Fold(country)] = capital
	}
	h.seat = t.DefaultSeat
	return h
}

// IsPolicy reports whether text contains governance vocabulary
func (h *Heuristic) IsPolicy(text string) bool {
	_, ok := firstMatch(h.policy, util.Fold(text))
	return ok
}

// Apply emits seat-of-government candidates for policy prompts. countries are
// canonical names of countries found in the text; capitals already present in
// existing are skipped.
func (h *Heuristic) Apply(text string, countries []string, existing []model.Candidate) []model.Candidate {
	folded := util.Fold(text)
	keyword, ok := firstMatch(h.policy, folded)
	if !ok {
		return nil
	}

	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[score.MergeKey(c.Name)] = true
	}

	var out []model.Candidate
	seen := make(map[string]bool)
	sorted := append([]string(nil), countries...)
	sort.Strings(sorted)
	for _, country := range sorted {
		key := util.Fold(country)
		if seen[key] {
			continue
		}
		seen[key] = true

		capital, ok := h.capitals[key]
		if !ok || have[score.MergeKey(capital)] {
			continue
		}
		out = append(out, seat(capital, capitalConfidence, key,
			fmt.Sprintf("Policy jurisdiction heuristic: country '%s' -> capital '%s'", key, capital)))
	}

	// The federal-seat defaults only apply when no country was named
	if len(seen) > 0 || h.seat == "" || have[score.MergeKey(h.seat)] {
		return out
	}
	if cue, ok := firstMatch(h.usCues, folded); ok {
		return append(out, seat(h.seat, usCueConfidence, cue,
			fmt.Sprintf("Policy jurisdiction heuristic: US federal legislation/regulation -> %s", h.seat)))
	}
	return append(out, seat(h.seat, fallbackConfidence, keyword,
		"Policy fallback: unresolved jurisdiction defaults to likely federal seat"))
}

type term struct {
	text string
	re   *regexp.Regexp
}

func compile(terms []string) []term {
	out := make([]term, 0, len(terms))
	for _, t := range terms {
		folded := util.Fold(t)
		out = append(out, term{text: folded, re: util.WordPattern(folded)})
	}
	return out
}

func firstMatch(terms []term, text string) (string, bool) {
	for _, t := range terms {
		if t.re.MatchString(text) {
			return t.text, true
		}
	}
	return "", false
}

func seat(name string, conf float64, hit, reason string) model.Candidate {
	return model.Candidate{
		Name:       name,
		Kind:       model.KindCity,
		Confidence: conf,
		Reason:     reason,
		Method:     model.MethodPolicy,
		Evidence: []model.EvidenceItem{{
			Field:        model.FieldCombined,
			Snippet:      hit,
			RetrievalHit: hit,
			Score:        conf,
		}},
	}
}
