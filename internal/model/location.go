package model

import "math"

// Kind classifies how specific a location is
type Kind string

const (
	KindCity     Kind = "city"
	KindState    Kind = "state"
	KindCountry  Kind = "country"
	KindRegion   Kind = "region"
	KindBuilding Kind = "building" // Landmarks and institution headquarters, reported as city granularity
	KindGlobal   Kind = "global"   // Sentinels only
)

// Specificity ranks kinds from broadest (0) to narrowest.
func (k Kind) Specificity() int {
	switch k {
	case KindBuilding:
		return 5
	case KindCity:
		return 4
	case KindState:
		return 3
	case KindCountry:
		return 2
	case KindRegion:
		return 1
	default:
		return 0
	}
}

// Granularity maps a kind onto the output granularity vocabulary
func (k Kind) Granularity() Granularity {
	switch k {
	case KindCity, KindBuilding:
		return GranularityCity
	case KindState:
		return GranularityState
	case KindCountry:
		return GranularityCountry
	case KindRegion:
		return GranularityRegion
	default:
		return GranularityGlobal
	}
}

// ParseKind converts a loose string into a Kind, defaulting to city
func ParseKind(s string) Kind {
	switch Kind(s) {
	case KindCity, KindState, KindCountry, KindRegion, KindBuilding, KindGlobal:
		return Kind(s)
	case "arena", "venue":
		return KindBuilding
	default:
		return KindCity
	}
}

// Method tags which signal generator produced a candidate
type Method string

const (
	MethodGazetteer Method = "gazetteer"
	MethodHeuristic Method = "heuristic"
	MethodSemantic  Method = "semantic"
	MethodPolicy    Method = "policy"
	MethodEvent     Method = "event"
	MethodLLM       Method = "llm"
)

// Coordinates is a WGS84 point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Candidate is a single location hypothesis produced by a signal generator
type Candidate struct {
	Name       string         `json:"name"`
	Kind       Kind           `json:"kind"`
	Confidence float64        `json:"confidence"`
	Reason     string         `json:"reason"`              // Human-readable provenance
	Method     Method         `json:"method"`
	Coords     *Coordinates   `json:"coords,omitempty"`
	PlaceID    string         `json:"place_id,omitempty"`  // Set when the candidate maps onto an index record
	Country    string         `json:"country,omitempty"`   // Owning country when known
	Evidence   []EvidenceItem `json:"evidence,omitempty"`
	TitleScore float64        `json:"-"`                   // Best title-field retrieval score, semantic only
}

// Sentinel names
const (
	GlobalPlaceID       = "global"
	GlobalName          = "Global / No specific location"
	NotAvailablePlaceID = "not_available"
	NotAvailableName    = "not_available"
)

// IsSentinel reports whether the candidate is a global or not_available marker
func (c Candidate) IsSentinel() bool {
	return c.Kind == KindGlobal
}

// IsNotAvailable reports whether the candidate is the event not_available marker
func (c Candidate) IsNotAvailable() bool {
	return c.Kind == KindGlobal && c.Name == NotAvailableName
}

// Clamp01 bounds v to [0,1]
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// Round2 rounds to two decimals
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
