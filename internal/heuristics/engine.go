package heuristics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/ppiankov/geoinfer/internal/gazetteer"
	"github.com/ppiankov/geoinfer/internal/model"
	"github.com/ppiankov/geoinfer/internal/util"
)

// Confidence levels per rule family
const (
	landmarkConfidence     = 0.90
	institutionConfidence  = 0.65
	matchupPrefixedConf    = 0.80
	matchupNicknameConf    = 0.70
	prefixedTeamConfidence = 0.75
	nicknameConfidence     = 0.65
)

// matchupRe splits "A vs B", "A at B", "A @ B". The right side runs to the
// first punctuation or end of text.
var matchupRe = regexp.MustCompile(`(?i)(.+?)\s+(?:vs\.?|versus|at|@)\s+(.+?)\s*(?:[,?!]|$)`)

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

type compiledFigure struct {
	Figure
	re *regexp.Regexp
}

// Engine applies the rule tables to text. Read-only after NewEngine.
type Engine struct {
	landmarks     []compiledRule
	institutions  []compiledRule
	prefixedTeams []compiledRule
	teams         []compiledRule
	figures       []compiledFigure
	global        []*regexp.Regexp
	globalKeys    []string

	keys []string
	ac   *ahocorasick.Matcher
}

// NewEngine compiles t
func NewEngine(t *Tables) *Engine {
	e := &Engine{}
	if t == nil {
		return e
	}

	e.landmarks = e.compile(t.Landmarks)
	e.institutions = e.compile(t.Institutions)
	e.prefixedTeams = e.compile(t.PrefixedTeams)
	e.teams = e.compile(t.Teams)
	for _, f := range t.Figures {
		key := util.Fold(f.Key)
		e.keys = append(e.keys, key)
		e.figures = append(e.figures, compiledFigure{Figure: f, re: util.WordPattern(key)})
	}
	for _, kw := range t.GlobalKeywords {
		key := util.Fold(kw)
		e.globalKeys = append(e.globalKeys, key)
		e.global = append(e.global, util.WordPattern(key))
	}
	if len(e.keys) > 0 {
		e.ac = ahocorasick.NewStringMatcher(e.keys)
	}
	return e
}

func (e *Engine) compile(rules []Rule) []compiledRule {
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		key := util.Fold(r.Key)
		e.keys = append(e.keys, key)
		r.Key = key
		out = append(out, compiledRule{Rule: r, re: util.WordPattern(key)})
	}
	return out
}

// scan folds text and returns the set of rule keys that occur anywhere in it
func (e *Engine) scan(text string) (string, map[string]bool) {
	folded := util.Fold(text)
	present := make(map[string]bool)
	if e.ac == nil {
		return folded, present
	}
	for _, idx := range e.ac.Match([]byte(folded)) {
		present[e.keys[idx]] = true
	}
	return folded, present
}

func matches(r *regexp.Regexp, key, folded string, present map[string]bool) bool {
	return present[key] && r.MatchString(folded)
}

// Apply emits one candidate per matched rule. Candidates are not deduplicated;
// arbitration merges them by location.
func (e *Engine) Apply(text string) []model.Candidate {
	folded, present := e.scan(text)
	var out []model.Candidate

	for _, r := range e.landmarks {
		if matches(r.re, r.Key, folded, present) {
			c := candidate(r.Location, model.KindBuilding, landmarkConfidence, r.Key,
				fmt.Sprintf("Landmark heuristic: '%s' -> %s", r.Key, r.Location))
			if r.Lat != nil && r.Lon != nil {
				c.Coords = &model.Coordinates{Lat: *r.Lat, Lon: *r.Lon}
			}
			out = append(out, c)
		}
	}

	for _, r := range e.institutions {
		if matches(r.re, r.Key, folded, present) {
			out = append(out, candidate(r.Location, model.KindBuilding, institutionConfidence, r.Key,
				fmt.Sprintf("Institution heuristic: '%s' HQ -> %s", r.Key, r.Location)))
		}
	}

	if m := matchupRe.FindStringSubmatch(folded); m != nil {
		for _, side := range m[1:] {
			if c, ok := e.resolveSide(strings.TrimSpace(side)); ok {
				out = append(out, c)
			}
		}
	}

	for _, r := range e.prefixedTeams {
		if matches(r.re, r.Key, folded, present) {
			out = append(out, candidate(r.Location, model.KindCity, prefixedTeamConfidence, r.Key,
				fmt.Sprintf("Sports team heuristic: '%s' -> %s", r.Key, r.Location)))
		}
	}

	found := make(map[string]bool, len(out))
	for _, c := range out {
		found[c.Name] = true
	}
	for _, r := range e.teams {
		if found[r.Location] || !matches(r.re, r.Key, folded, present) {
			continue
		}
		found[r.Location] = true
		out = append(out, candidate(r.Location, model.KindCity, nicknameConfidence, r.Key,
			fmt.Sprintf("Sports team heuristic: '%s' -> %s", r.Key, r.Location)))
	}

	for _, f := range e.figures {
		if !present[util.Fold(f.Key)] || !f.re.MatchString(folded) {
			continue
		}
		for _, loc := range f.Locations {
			out = append(out, candidate(loc.Location, model.KindCity, model.Round2(loc.Confidence), f.Key,
				fmt.Sprintf("Political figure heuristic: '%s' -> %s", f.Key, loc.Location)))
		}
	}

	return out
}

// resolveSide maps one side of a matchup to a team city, preferring full
// franchise names over nicknames
func (e *Engine) resolveSide(side string) (model.Candidate, bool) {
	for _, r := range e.prefixedTeams {
		if r.re.MatchString(side) {
			return candidate(r.Location, model.KindCity, matchupPrefixedConf, r.Key,
				fmt.Sprintf("Sports match: '%s' -> %s", side, r.Location)), true
		}
	}
	for _, r := range e.teams {
		if r.re.MatchString(side) {
			return candidate(r.Location, model.KindCity, matchupNicknameConf, r.Key,
				fmt.Sprintf("Sports match: '%s' contains '%s' -> %s", side, r.Key, r.Location)), true
		}
	}
	return model.Candidate{}, false
}

// HasAnchor reports whether text names an institution, landmark or figure
func (e *Engine) HasAnchor(text string) bool {
	folded, present := e.scan(text)
	for _, group := range [][]compiledRule{e.institutions, e.landmarks} {
		for _, r := range group {
			if matches(r.re, r.Key, folded, present) {
				return true
			}
		}
	}
	for _, f := range e.figures {
		if f.re.MatchString(folded) {
			return true
		}
	}
	return false
}

// GlobalKeyword returns the first global-topic keyword in text
func (e *Engine) GlobalKeyword(text string) (string, bool) {
	folded := util.Fold(text)
	for i, re := range e.global {
		if re.MatchString(folded) {
			return e.globalKeys[i], true
		}
	}
	return "", false
}

// IsGlobalTopic reports whether text is about a topic with no specific
// location: a global keyword is present and nothing in the text anchors it to
// a place (institution, landmark, figure, a city/state/country match, or an
// unrecognized proper noun).
func (e *Engine) IsGlobalTopic(text string, geo *gazetteer.Matcher) bool {
	if _, ok := e.GlobalKeyword(text); !ok {
		return false
	}
	if e.HasAnchor(text) {
		return false
	}
	if geo == nil {
		return true
	}
	for _, m := range geo.FindAll(text) {
		switch m.Entry.Kind {
		case model.KindCity, model.KindState, model.KindCountry:
			return false
		}
	}
	return len(geo.FindUnknownProperNouns(text)) == 0
}

func candidate(name string, kind model.Kind, conf float64, key, reason string) model.Candidate {
	return model.Candidate{
		Name:       name,
		Kind:       kind,
		Confidence: model.Clamp01(conf),
		Reason:     reason,
		Method:     model.MethodHeuristic,
		Evidence: []model.EvidenceItem{{
			Field:        model.FieldCombined,
			Snippet:      key,
			RetrievalHit: key,
			Score:        model.Clamp01(conf),
		}},
	}
}
