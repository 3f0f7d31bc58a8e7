package event

import (
	"regexp"
	"strings"

	"github.com/ppiankov/geoinfer/internal/util"
)

// Only the head of a reference page is scanned
const venueScanChars = 2000

const (
	venueName = `([A-Z][A-Za-z0-9'&\-.\s]+?)`
	placeName = `([A-Z][A-Za-z\-]+(?:[ \t]+[A-Z][A-Za-z\-]+)*)`
)

// Tried in priority order
var venuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bat\s+the\s+` + venueName + `\s+in\s+` + placeName + `,\s*` + placeName),
	regexp.MustCompile(`\bheld\s+at\s+` + venueName + `\s+in\s+` + placeName + `,\s*` + placeName),
	regexp.MustCompile(`\bin\s+` + placeName + `,\s*` + placeName),
}

// Venue is a place parsed out of reference text
type Venue struct {
	Name    string // Empty when only a city was found
	City    string
	Country string // Country, or the state/region that follows the city
}

// ParseVenue extracts the venue, city and country from the start of text
func ParseVenue(text string) (Venue, bool) {
	head := []rune(text)
	if len(head) > venueScanChars {
		head = head[:venueScanChars]
	}
	snippet := string(head)

	for _, p := range venuePatterns {
		m := p.FindStringSubmatch(snippet)
		if m == nil {
			continue
		}
		switch len(m) {
		case 4:
			return Venue{Name: clean(m[1]), City: clean(m[2]), Country: clean(m[3])}, true
		case 3:
			return Venue{City: clean(m[1]), Country: clean(m[2])}, true
		}
	}
	return Venue{}, false
}

func clean(s string) string {
	return strings.Trim(util.CollapseSpace(s), " .,")
}
