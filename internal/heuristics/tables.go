// Package heuristics maps domain vocabulary (landmarks, institutions, sports
// franchises, political figures) onto locations.
package heuristics

import (
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

//go:embed data/heuristics.yaml
var defaultTables []byte

// Rule maps a key phrase to a location name
type Rule struct {
	Key      string   `yaml:"key"`
	Location string   `yaml:"location"`
	Lat      *float64 `yaml:"lat,omitempty"`
	Lon      *float64 `yaml:"lon,omitempty"`
}

// WeightedLocation is one location associated with a figure
type WeightedLocation struct {
	Location   string  `yaml:"location"`
	Confidence float64 `yaml:"confidence"`
}

// Figure maps a person to weighted locations
type Figure struct {
	Key       string             `yaml:"key"`
	Locations []WeightedLocation `yaml:"locations"`
}

// Tables holds every rule table. Immutable after load.
type Tables struct {
	Landmarks      []Rule   `yaml:"landmarks"`
	Institutions   []Rule   `yaml:"institutions"`
	PrefixedTeams  []Rule   `yaml:"prefixed_teams"`
	Teams          []Rule   `yaml:"teams"`
	Figures        []Figure `yaml:"figures"`
	GlobalKeywords []string `yaml:"global_keywords"`
}

// LoadTables decodes YAML rule tables
func LoadTables(r io.Reader) (*Tables, error) {
	var t Tables
	if err := yaml.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode heuristic tables: %w", err)
	}
	return &t, nil
}

// DefaultTables returns the embedded tables
func DefaultTables() *Tables {
	var t Tables
	if err := yaml.Unmarshal(defaultTables, &t); err != nil {
		panic(fmt.Sprintf("embedded heuristic tables are invalid: %v", err))
	}
	return &t
}
