package semantic

import (
	"strings"

	"github.com/ppiankov/geoinfer/internal/model"
	"github.com/ppiankov/geoinfer/internal/util"
)

const snippetChars = 160

// Composed holds the per-field texts retrieval runs over
type Composed struct {
	Title       string
	Description string
	Choices     string // Choices joined by " | "
	Combined    string
}

// Compose builds the retrieval texts for an input
func Compose(in model.Input) Composed {
	title := strings.TrimSpace(in.Title)
	desc := strings.TrimSpace(in.Description)

	var items []string
	for _, c := range in.Choices {
		if c = strings.TrimSpace(c); c != "" {
			items = append(items, c)
		}
	}
	choices := strings.Join(items, " | ")

	parts := []string{"title: " + title}
	if desc != "" {
		parts = append(parts, "description: "+desc)
	}
	if choices != "" {
		parts = append(parts, "choices: "+choices)
	}

	return Composed{
		Title:       title,
		Description: desc,
		Choices:     choices,
		Combined:    strings.Join(parts, "\n"),
	}
}

// Text returns the text for field
func (c Composed) Text(field model.Field) string {
	switch field {
	case model.FieldTitle:
		return c.Title
	case model.FieldDescription:
		return c.Description
	case model.FieldChoices:
		return c.Choices
	case model.FieldCombined:
		return c.Combined
	}
	return ""
}

// Snippet returns the first 160 characters of field. Combined hits are
// reported against the title.
func (c Composed) Snippet(field model.Field) string {
	if field == model.FieldCombined {
		field = model.FieldTitle
	}
	return util.Snippet(c.Text(field), snippetChars)
}
