package gazetteer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/ppiankov/geoinfer/internal/model"
	"github.com/ppiankov/geoinfer/internal/util"
)

// Match is one accepted occurrence of a surface form
type Match struct {
	Surface string // Folded surface form from the table
	Start   int    // Byte offsets into the folded text
	End     int
	Entry   *Entry
}

type surface struct {
	text  string
	re    *regexp.Regexp
	entry *Entry
}

// Matcher finds gazetteer entries in text. It is read-only after New and safe
// for concurrent use.
type Matcher struct {
	surfaces  []surface // Longest first
	ac        *ahocorasick.Matcher
	byName    map[string]*Entry
	bySurface map[string]*Entry
	stop      map[string]bool
	us        *Entry
}

var properNounRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)

var stateQualifierRe = regexp.MustCompile(`^,\s*([a-z]{2})\b`)

// New builds a matcher over t
func New(t *Table) *Matcher {
	m := &Matcher{
		byName:    make(map[string]*Entry),
		bySurface: make(map[string]*Entry),
		stop:      make(map[string]bool),
	}
	if t == nil {
		return m
	}

	for _, e := range t.Entries {
		m.byName[util.Fold(e.Name)] = e
		for _, s := range e.Surfaces {
			folded := util.Fold(strings.TrimSpace(s))
			if folded == "" {
				continue
			}
			if _, dup := m.bySurface[folded]; dup {
				continue
			}
			m.bySurface[folded] = e
			m.surfaces = append(m.surfaces, surface{text: folded, re: util.WordPattern(folded), entry: e})
		}
		if e.Name == "United States" {
			m.us = e
		}
	}
	for _, w := range t.Stopwords {
		m.stop[strings.ToLower(w)] = true
	}

	sort.SliceStable(m.surfaces, func(i, j int) bool {
		if len(m.surfaces[i].text) != len(m.surfaces[j].text) {
			return len(m.surfaces[i].text) > len(m.surfaces[j].text)
		}
		return m.surfaces[i].text < m.surfaces[j].text
	})

	if len(m.surfaces) > 0 {
		dict := make([]string, len(m.surfaces))
		for i, s := range m.surfaces {
			dict[i] = s.text
		}
		m.ac = ahocorasick.NewStringMatcher(dict)
	}
	return m
}

// FindAll returns every non-overlapping gazetteer match in text, one per
// canonical name, ordered by position. When surfaces overlap the longer one
// claims the span.
func (m *Matcher) FindAll(text string) []Match {
	if m.ac == nil || strings.TrimSpace(text) == "" {
		return m.contextMatches(text, nil)
	}

	folded := util.Fold(text)
	hits := m.ac.Match([]byte(folded))
	sort.Ints(hits) // dict order is longest first

	var claimed [][2]int
	seen := make(map[string]bool)
	var matches []Match
	codes := stateCodes(text)

	for _, idx := range hits {
		s := m.surfaces[idx]
		for _, loc := range s.re.FindAllStringIndex(folded, -1) {
			if overlaps(claimed, loc[0], loc[1]) {
				continue
			}
			// "Paris, TX" names a US town, not the foreign city
			if len(codes) > 0 && m.foreign(s.entry) {
				if q, ok := m.stateQualifier(folded, loc[1], codes); ok {
					claimed = append(claimed, [2]int{loc[0], q.End})
					if q.Entry != nil && !seen[q.Entry.Name] {
						seen[q.Entry.Name] = true
						matches = append(matches, q)
					}
					continue
				}
			}
			claimed = append(claimed, [2]int{loc[0], loc[1]})
			if seen[s.entry.Name] {
				continue
			}
			seen[s.entry.Name] = true
			matches = append(matches, Match{Surface: s.text, Start: loc[0], End: loc[1], Entry: s.entry})
		}
	}

	matches = m.contextMatches(text, matches)
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })
	return matches
}

// foreign reports whether e is a sub-national place outside the US
func (m *Matcher) foreign(e *Entry) bool {
	return e.Kind != model.KindCountry && e.Country != "" && (m.us == nil || e.Country != m.us.Country)
}

// stateQualifier matches ", xx" at end when xx is one of codes. The returned
// match covers the code and carries the state entry when the table has one.
func (m *Matcher) stateQualifier(folded string, end int, codes map[string]bool) (Match, bool) {
	loc := stateQualifierRe.FindStringSubmatchIndex(folded[end:])
	if loc == nil {
		return Match{}, false
	}
	code := folded[end+loc[2] : end+loc[3]]
	if !codes[code] {
		return Match{}, false
	}
	q := Match{Surface: code, Start: end + loc[2], End: end + loc[3]}
	if name, ok := StateName(code); ok {
		q.Entry = m.byName[util.Fold(name+", USA")]
	}
	return q, true
}

func (m *Matcher) contextMatches(text string, matches []Match) []Match {
	if m.us == nil {
		return matches
	}
	for _, mm := range matches {
		if mm.Entry == m.us {
			return matches
		}
	}
	if loc := findUSReference(text); loc != nil {
		matches = append(matches, Match{Surface: "us", Start: loc[0], End: loc[1], Entry: m.us})
	}
	return matches
}

func overlaps(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && s[0] < end {
			return true
		}
	}
	return false
}

// FindUnknownProperNouns returns capitalized spans that look like names but
// are neither stopwords nor covered by a gazetteer match
func (m *Matcher) FindUnknownProperNouns(text string) []string {
	known := make(map[string]bool)
	for _, mm := range m.FindAll(text) {
		known[mm.Surface] = true
		for _, w := range strings.Fields(strings.ReplaceAll(util.Fold(mm.Entry.Name), ",", " ")) {
			known[w] = true
		}
	}

	var unknown []string
	seen := make(map[string]bool)
	for _, loc := range properNounRe.FindAllStringIndex(text, -1) {
		pn := text[loc[0]:loc[1]]
		if len(pn) < 3 {
			continue
		}
		key := util.Fold(util.CollapseSpace(pn))
		words := strings.Fields(key)
		// A lone capitalized word opening a sentence is ordinary capitalization
		if len(words) == 1 && sentenceStart(text, loc[0]) {
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		if m.allStopwords(words) {
			continue
		}
		if _, ok := m.bySurface[key]; ok || known[key] || m.overlapsKnown(words, known) {
			continue
		}
		unknown = append(unknown, util.CollapseSpace(pn))
	}
	return unknown
}

// sentenceStart reports whether offset i begins a sentence: only spaces,
// quotes or brackets separate it from the text start or from . ? ! : ;
func sentenceStart(text string, i int) bool {
	before := strings.TrimRight(text[:i], " \t\n\"'([")
	if before == "" {
		return true
	}
	return strings.ContainsAny(before[len(before)-1:], ".?!:;")
}

func (m *Matcher) allStopwords(words []string) bool {
	for _, w := range words {
		if !m.stop[w] {
			return false
		}
	}
	return true
}

// overlapsKnown reports whether any word of the span, or any multi-word
// known surface, is already accounted for
func (m *Matcher) overlapsKnown(words []string, known map[string]bool) bool {
	joined := " " + strings.Join(words, " ") + " "
	for k := range known {
		if strings.Contains(joined, " "+k+" ") {
			return true
		}
	}
	return false
}

// IsStopword reports whether w is a known non-location capitalized word
func (m *Matcher) IsStopword(w string) bool {
	return m.stop[strings.ToLower(w)]
}

// Lookup resolves a free-form location name ("Atlanta, GA", "London, UK",
// "Paris") to a table entry. A trailing qualifier must agree with the entry's
// country, so "Paris, TX" does not resolve to Paris, France.
func (m *Matcher) Lookup(name string) (*Entry, bool) {
	key := util.Fold(util.CollapseSpace(name))
	if key == "" {
		return nil, false
	}
	if e, ok := m.byName[key]; ok {
		return e, true
	}
	if e, ok := m.byName[key+", usa"]; ok {
		return e, true
	}

	parts := strings.Split(key, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if e, ok := m.byName[strings.Join(parts, ", ")]; ok {
		return e, true
	}

	e, ok := m.bySurface[parts[0]]
	if !ok {
		return nil, false
	}
	if len(parts) == 1 {
		return e, true
	}
	if qualifierMatches(e, parts[len(parts)-1]) {
		return e, true
	}
	return nil, false
}

func qualifierMatches(e *Entry, qual string) bool {
	country := util.Fold(e.Country)
	switch qual {
	case "usa", "us", "u.s.", "united states":
		return country == "united states"
	case "uk", "united kingdom", "england":
		return country == "united kingdom"
	}
	if _, ok := StateName(qual); ok {
		return country == "united states"
	}
	return country != "" && (country == qual || strings.HasPrefix(country, qual+" "))
}
