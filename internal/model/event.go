package model

import "time"

// VenueStatus is the resolution state of an event venue lookup
type VenueStatus string

const (
	VenueConfirmed    VenueStatus = "confirmed"
	VenueUncertain    VenueStatus = "uncertain"
	VenueNotAvailable VenueStatus = "not_available"
)

// EventIntent is a recurring named event detected in a prompt
type EventIntent struct {
	Key   string `json:"event_key"`            // e.g. "oscars", "super_bowl"
	Year  *int   `json:"event_year,omitempty"` // First 20xx year in the text
	Query string `json:"query"`                // Raw prompt text
}

// EventVenueResult is the outcome of resolving an event venue
type EventVenueResult struct {
	Status     VenueStatus  `json:"status"`
	EventKey   string       `json:"event_key"`
	EventYear  *int         `json:"event_year,omitempty"`
	VenueName  string       `json:"venue_name,omitempty"`
	City       string       `json:"city,omitempty"`
	Country    string       `json:"country,omitempty"`
	Coords     *Coordinates `json:"coords,omitempty"`
	SourceURL  string       `json:"source_url,omitempty"`
	Confidence float64      `json:"confidence"`
	Reason     string       `json:"reason,omitempty"`
	FetchedAt  time.Time    `json:"fetched_at,omitempty"`
	ExpiresAt  time.Time    `json:"expires_at,omitempty"`
}

// IndexRecord is one row of the semantic place index
type IndexRecord struct {
	DocID          string  `json:"doc_id"`
	IndexType      string  `json:"index_type"`
	PlaceID        string  `json:"place_id"`
	PlaceName      string  `json:"place_name"`
	Granularity    string  `json:"granularity"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Importance     float64 `json:"importance"`
	SearchableText string  `json:"searchable_text"`
	Country        string  `json:"country,omitempty"`
	IsCapital      bool    `json:"is_capital,omitempty"`
}
