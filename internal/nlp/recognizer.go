// Package nlp provides the optional entity recognizer stage.
package nlp

import (
	"fmt"
	"regexp"

	"github.com/ppiankov/geoinfer/internal/gazetteer"
	"github.com/ppiankov/geoinfer/internal/model"
)

const properNounConfidence = 0.42

var geoContextRe = regexp.MustCompile(`(?i)\b(?:in|at|from|near|around|outside|inside|within|across)\b`)

// Recognizer extracts location-like entities that the tables do not cover.
// Callers select a variant once at construction and never branch on it.
type Recognizer interface {
	Available() bool
	Locations(text string) []model.Candidate
}

// New returns the proper-noun recognizer when enabled and a gazetteer is
// present, otherwise the unavailable variant
func New(enabled bool, geo *gazetteer.Matcher) Recognizer {
	if !enabled || geo == nil {
		return Unavailable{}
	}
	return &ProperNouns{geo: geo}
}

// Unavailable is the recognizer used when entity extraction is disabled
type Unavailable struct{}

// Available always reports false
func (Unavailable) Available() bool { return false }

// Locations always returns nothing
func (Unavailable) Locations(string) []model.Candidate { return nil }

// ProperNouns treats capitalized spans missing from the gazetteer as
// low-confidence places, but only when the text has a locative preposition
type ProperNouns struct {
	geo *gazetteer.Matcher
}

// Available reports true
func (p *ProperNouns) Available() bool { return true }

// Locations returns one city candidate per unknown proper noun
func (p *ProperNouns) Locations(text string) []model.Candidate {
	if !geoContextRe.MatchString(text) {
		return nil
	}

	var out []model.Candidate
	for _, noun := range p.geo.FindUnknownProperNouns(text) {
		out = append(out, model.Candidate{
			Name:       noun,
			Kind:       model.KindCity,
			Confidence: properNounConfidence,
			Reason:     fmt.Sprintf("Proper-noun location fallback: '%s' (not in gazetteer)", noun),
			Method:     model.MethodGazetteer,
			Evidence: []model.EvidenceItem{{
				Field:        model.FieldCombined,
				Snippet:      noun,
				RetrievalHit: noun,
				Score:        properNounConfidence,
			}},
		})
	}
	return out
}
