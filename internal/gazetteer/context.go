package gazetteer

import (
	"regexp"
	"strings"
)

// Bare "US" collides with the pronoun, so it only counts as the country with
// surrounding cues. Alternatives that would also fire on the pronoun ("with
// us", "us and them") require the uppercase form.
var usContextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:the|a)\s+US\b`),
	regexp.MustCompile(`\bUS[\s-][A-Z]`),
	regexp.MustCompile(`(?i)\bUS\s+(?:military|government|president|congress|senate|forces|troops|economy|` +
		`dollar|election|strike|sanctions|tariffs?|trade|policy|border|citizens?|federal|` +
		`national|supreme|state\s+dept|department|embassy|intelligence|navy|army|` +
		`air\s+force|coast\s+guard|debt|budget|deficit|gdp|inflation|unemployment|` +
		`stocks?|market|bank|treasury|house|officials?|lawmakers?|voters?|` +
		`acquire|annex|invade|attack|bomb|aid|support)\b`),
	regexp.MustCompile(`\b(?i:in|from|to|by|for|with|against|of|and)\s+(?:(?i:the)\s+)?US\b`),
	regexp.MustCompile(`\bUS\s+(?i:and|or|vs\.?|versus)\s`),
}

// findUSReference returns the span of the first country-like "US" in text
func findUSReference(text string) []int {
	var best []int
	for _, re := range usContextPatterns {
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if best == nil || loc[0] < best[0] {
			best = loc
		}
	}
	return best
}

var usStates = map[string]string{
	"al": "Alabama", "ak": "Alaska", "az": "Arizona", "ar": "Arkansas",
	"ca": "California", "co": "Colorado", "ct": "Connecticut", "de": "Delaware",
	"fl": "Florida", "ga": "Georgia", "hi": "Hawaii", "id": "Idaho",
	"il": "Illinois", "in": "Indiana", "ia": "Iowa", "ks": "Kansas",
	"ky": "Kentucky", "la": "Louisiana", "me": "Maine", "md": "Maryland",
	"ma": "Massachusetts", "mi": "Michigan", "mn": "Minnesota", "ms": "Mississippi",
	"mo": "Missouri", "mt": "Montana", "ne": "Nebraska", "nv": "Nevada",
	"nh": "New Hampshire", "nj": "New Jersey", "nm": "New Mexico", "ny": "New York",
	"nc": "North Carolina", "nd": "North Dakota", "oh": "Ohio", "ok": "Oklahoma",
	"or": "Oregon", "pa": "Pennsylvania", "ri": "Rhode Island", "sc": "South Carolina",
	"sd": "South Dakota", "tn": "Tennessee", "tx": "Texas", "ut": "Utah",
	"vt": "Vermont", "va": "Virginia", "wa": "Washington", "wv": "West Virginia",
	"wi": "Wisconsin", "wy": "Wyoming", "dc": "District of Columbia",
}

var upperStateCodeRe = regexp.MustCompile(`,\s*([A-Z]{2})\b`)

// stateCodes returns the lowercased US state codes written in uppercase after
// a comma in text, as in "Paris, TX"
func stateCodes(text string) map[string]bool {
	var codes map[string]bool
	for _, sm := range upperStateCodeRe.FindAllStringSubmatch(text, -1) {
		code := strings.ToLower(sm[1])
		if _, ok := usStates[code]; !ok {
			continue
		}
		if codes == nil {
			codes = make(map[string]bool)
		}
		codes[code] = true
	}
	return codes
}

// StateName expands a two-letter US state code, case-insensitively
func StateName(code string) (string, bool) {
	name, ok := usStates[strings.ToLower(strings.TrimSpace(code))]
	return name, ok
}
