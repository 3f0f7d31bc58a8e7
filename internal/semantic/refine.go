package semantic

import (
	"fmt"
	"strings"

	"github.com/ppiankov/geoinfer/internal/model"
)

const (
	governanceThreshold = 0.08
	capitalDiscount     = 0.95
)

// Refine drops a country when one of its cities is also a candidate, then,
// when only countries remain and the prompt reads as policy, swaps each
// country for its capital. cands must carry Country for this to apply.
func Refine(cands []model.Candidate, index *Index, policyLike bool) []model.Candidate {
	out := DropCoveredCountries(cands)

	if !policyLike || len(out) == 0 || index == nil {
		return out
	}
	for _, c := range out {
		if c.Kind != model.KindCountry {
			return out
		}
	}

	seen := make(map[string]bool)
	upgraded := make([]model.Candidate, 0, len(out))
	for _, c := range out {
		capital, ok := index.CapitalOf(countryOf(c))
		if !ok {
			upgraded = append(upgraded, c)
			continue
		}
		if seen[capital.PlaceID] {
			continue
		}
		seen[capital.PlaceID] = true

		up := c
		up.Name = capital.PlaceName
		up.PlaceID = capital.PlaceID
		up.Kind = model.KindCity
		up.Coords = &model.Coordinates{Lat: capital.Lat, Lon: capital.Lon}
		up.Confidence = model.Clamp01(c.Confidence * capitalDiscount)
		up.Reason = fmt.Sprintf("Policy jurisdiction: %s -> capital %s", c.Name, capital.PlaceName)
		upgraded = append(upgraded, up)
	}
	return upgraded
}

// DropCoveredCountries removes each country candidate that also has one of
// its cities or buildings among cands. Only candidates with Country set can
// cover a country.
func DropCoveredCountries(cands []model.Candidate) []model.Candidate {
	withCity := make(map[string]bool)
	for _, c := range cands {
		if c.Kind == model.KindCity || c.Kind == model.KindBuilding {
			if c.Country != "" {
				withCity[strings.ToLower(c.Country)] = true
			}
		}
	}

	out := make([]model.Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Kind == model.KindCountry && withCity[strings.ToLower(countryOf(c))] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// IsPolicyLike reports whether a prompt reads as governance or policy
func (c *Classifier) IsPolicyLike(eventType model.EventType, text string) bool {
	if eventType == model.EventTypeElection || eventType == model.EventTypeGeopolitics {
		return true
	}
	return c.Governance(text) > governanceThreshold
}

func countryOf(c model.Candidate) string {
	if c.Country != "" {
		return c.Country
	}
	return c.Name
}
