package geocode

import (
	"regexp"
	"strings"

	"github.com/ppiankov/geoinfer/internal/gazetteer"
	"github.com/ppiankov/geoinfer/internal/util"
)

// Preferred query forms for common short names
var cityNormalizations = map[string]string{
	"atlanta":             "Atlanta, GA, USA",
	"atlanta, ga":         "Atlanta, GA, USA",
	"new york":            "New York, NY, USA",
	"new york, ny":        "New York, NY, USA",
	"nyc":                 "New York, NY, USA",
	"los angeles":         "Los Angeles, CA, USA",
	"los angeles, ca":     "Los Angeles, CA, USA",
	"la":                  "Los Angeles, CA, USA",
	"chicago":             "Chicago, IL, USA",
	"chicago, il":         "Chicago, IL, USA",
	"houston":             "Houston, TX, USA",
	"houston, tx":         "Houston, TX, USA",
	"phoenix":             "Phoenix, AZ, USA",
	"philadelphia":        "Philadelphia, PA, USA",
	"san antonio":         "San Antonio, TX, USA",
	"san diego":           "San Diego, CA, USA",
	"dallas":              "Dallas, TX, USA",
	"san francisco":       "San Francisco, CA, USA",
	"sf":                  "San Francisco, CA, USA",
	"seattle":             "Seattle, WA, USA",
	"denver":              "Denver, CO, USA",
	"boston":              "Boston, MA, USA",
	"miami":               "Miami, FL, USA",
	"washington":          "Washington, DC, USA",
	"washington, dc":      "Washington, DC, USA",
	"dc":                  "Washington, DC, USA",
	"london":              "London, United Kingdom",
	"london, uk":          "London, United Kingdom",
	"paris":               "Paris, France",
	"berlin":              "Berlin, Germany",
	"tokyo":               "Tokyo, Japan",
	"beijing":             "Beijing, China",
	"moscow":              "Moscow, Russia",
	"mumbai":              "Mumbai, India",
	"new delhi":           "New Delhi, India",
	"toronto":             "Toronto, ON, Canada",
	"toronto, on, canada": "Toronto, ON, Canada",
	"sydney":              "Sydney, NSW, Australia",
	"palm beach":          "Palm Beach, FL, USA",
	"palm beach, fl":      "Palm Beach, FL, USA",
}

var cityStateRe = regexp.MustCompile(`^(.+?),\s*([A-Z]{2})$`)

// Normalize turns a location name into the stable form used as the cache
// key and geocoder query. Known short names map to a full form, "City, ST"
// expands the state, anything else is lowercased with whitespace collapsed.
func Normalize(name string) string {
	trimmed := util.CollapseSpace(name)
	lower := strings.ToLower(trimmed)

	if full, ok := cityNormalizations[lower]; ok {
		return full
	}

	if m := cityStateRe.FindStringSubmatch(trimmed); m != nil {
		if state, ok := gazetteer.StateName(m[2]); ok {
			return strings.TrimSpace(m[1]) + ", " + state + ", USA"
		}
	}

	return lower
}
