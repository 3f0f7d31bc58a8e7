// Package gazetteer matches known place names in free text.
package gazetteer

import (
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/geoinfer/internal/model"
)

//go:embed data/gazetteer.yaml
var defaultTable []byte

// Entry is one canonical location with all of its surface forms
type Entry struct {
	Name     string     `yaml:"name"`
	Kind     model.Kind `yaml:"kind"`
	Lat      *float64   `yaml:"lat,omitempty"`
	Lon      *float64   `yaml:"lon,omitempty"`
	Country  string     `yaml:"country,omitempty"`
	Surfaces []string   `yaml:"surfaces"`
}

// Coords returns the entry's coordinates, or nil when unknown
func (e *Entry) Coords() *model.Coordinates {
	if e.Lat == nil || e.Lon == nil {
		return nil
	}
	return &model.Coordinates{Lat: *e.Lat, Lon: *e.Lon}
}

// Head is the canonical name up to the first comma ("Paris" for "Paris, France")
func (e *Entry) Head() string {
	for i, r := range e.Name {
		if r == ',' {
			return e.Name[:i]
		}
	}
	return e.Name
}

// Table is the immutable gazetteer data
type Table struct {
	Entries   []*Entry `yaml:"entries"`
	Stopwords []string `yaml:"stopwords"`
}

// Load decodes a YAML table
func Load(r io.Reader) (*Table, error) {
	var t Table
	if err := yaml.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode gazetteer: %w", err)
	}
	for i, e := range t.Entries {
		if e.Name == "" || len(e.Surfaces) == 0 {
			return nil, fmt.Errorf("gazetteer entry %d: name and surfaces are required", i)
		}
	}
	return &t, nil
}

// DefaultTable returns the embedded table
func DefaultTable() *Table {
	var t Table
	if err := yaml.Unmarshal(defaultTable, &t); err != nil {
		panic(fmt.Sprintf("embedded gazetteer is invalid: %v", err))
	}
	return &t
}
