package model

import "errors"

// ErrEmptyTitle is returned when an inference input has no title
var ErrEmptyTitle = errors.New("title is required")

// Input is a single prompt to run inference on
type Input struct {
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Choices     []string `json:"choices,omitempty"`
}

// Validate checks required fields
func (in Input) Validate() error {
	for _, r := range in.Title {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return nil
		}
	}
	return ErrEmptyTitle
}

// GeoType classifies how explicitly a prompt names a location
type GeoType string

const (
	GeoTypeExplicit  GeoType = "explicit"
	GeoTypeInferred  GeoType = "inferred"
	GeoTypeMulti     GeoType = "multi"
	GeoTypeGlobal    GeoType = "global"
	GeoTypeAmbiguous GeoType = "ambiguous"
	GeoTypeNone      GeoType = "none"
)

// EventType is the topical category of a prompt
type EventType string

const (
	EventTypeWeather       EventType = "weather"
	EventTypeSports        EventType = "sports"
	EventTypeElection      EventType = "election"
	EventTypeGeopolitics   EventType = "geopolitics"
	EventTypeEntertainment EventType = "entertainment"
	EventTypeFinance       EventType = "finance"
	EventTypeGlobal        EventType = "global"
	EventTypeUnknown       EventType = "unknown"
)

// Granularity is the output specificity vocabulary
type Granularity string

const (
	GranularityCity    Granularity = "city"
	GranularityState   Granularity = "state"
	GranularityCountry Granularity = "country"
	GranularityRegion  Granularity = "region"
	GranularityGlobal  Granularity = "global"
)

// Field names a prompt field used for evidence
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldChoices     Field = "choices"
	FieldCombined    Field = "combined"
)

// EvidenceItem links a location to the prompt text that supports it
type EvidenceItem struct {
	Field        Field   `json:"field"`
	Snippet      string  `json:"snippet"`
	RetrievalHit string  `json:"retrieval_hit"` // Matched index text or surface form
	Score        float64 `json:"score"`
}

// Location is one ranked row of an inference result
type Location struct {
	PlaceID     string         `json:"place_id"`
	Name        string         `json:"name"`
	Lat         *float64       `json:"lat"`
	Lon         *float64       `json:"lon"`
	Granularity Granularity    `json:"granularity"`
	Confidence  float64        `json:"confidence"`
	Reason      string         `json:"reason,omitempty"`
	Method      Method         `json:"method,omitempty"`
	Evidence    []EvidenceItem `json:"evidence"`
}

// Result is the full output of one inference call
type Result struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	GeoType     GeoType    `json:"geo_type"`
	EventType   EventType  `json:"event_type"`
	Locations   []Location `json:"locations"`
	HasLocation bool       `json:"has_location"`
	IsGlobal    bool       `json:"is_global"`
}
