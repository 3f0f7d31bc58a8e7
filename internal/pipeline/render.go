package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/geoinfer/internal/model"
	"github.com/ppiankov/geoinfer/internal/util"
)

// Renderer writes inference results for people and machines
type Renderer struct {
	verbose bool
}

// NewRenderer creates a renderer. Verbose text output includes evidence.
func NewRenderer(verbose bool) *Renderer {
	return &Renderer{verbose: verbose}
}

// WriteJSON writes r as indented JSON
func (rd *Renderer) WriteJSON(w io.Writer, r *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// WriteJSONLine writes r as a single JSON line
func (rd *Renderer) WriteJSONLine(w io.Writer, r *model.Result) error {
	if err := json.NewEncoder(w).Encode(r); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// RenderJSON writes r to path atomically
func (rd *Renderer) RenderJSON(r *model.Result, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return util.WriteFileAtomic(path, append(data, '\n'))
}

// WriteText writes a human-readable summary of r
func (rd *Renderer) WriteText(w io.Writer, r *model.Result) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", r.Title)
	fmt.Fprintf(&b, "  geo_type: %s   event_type: %s\n", r.GeoType, r.EventType)
	if len(r.Locations) == 0 {
		b.WriteString("  (no locations)\n")
	}

	for i, loc := range r.Locations {
		coords := "-"
		if loc.Lat != nil && loc.Lon != nil {
			coords = fmt.Sprintf("%.4f, %.4f", *loc.Lat, *loc.Lon)
		}
		fmt.Fprintf(&b, "  %d. %-32s %.2f  %-8s %-10s %s\n",
			i+1, loc.Name, loc.Confidence, loc.Granularity, loc.Method, coords)
		if loc.Reason != "" {
			fmt.Fprintf(&b, "     %s\n", loc.Reason)
		}
		if rd.verbose {
			for _, ev := range loc.Evidence {
				fmt.Fprintf(&b, "     [%s %.2f] %q -> %s\n", ev.Field, ev.Score, ev.Snippet, ev.RetrievalHit)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
