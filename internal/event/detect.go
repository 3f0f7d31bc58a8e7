// Package event detects recurring named events in prompts and resolves
// where their next edition takes place.
package event

import (
	"regexp"
	"strconv"

	"github.com/ppiankov/geoinfer/internal/model"
	"github.com/ppiankov/geoinfer/internal/util"
)

type alias struct {
	key      string
	patterns []*regexp.Regexp
}

// Checked in order; the first key with a matching alias wins.
var eventAliases = buildAliases([]aliasRow{
	{"oscars", []string{"oscars", "academy awards"}},
	{"grammys", []string{"grammys", "grammy awards", "recording academy"}},
	{"golden_globes", []string{"golden globes", "golden globe awards"}},
	{"emmys", []string{"emmys", "emmy awards", "primetime emmys"}},
	{"tonys", []string{"tonys", "tony awards"}},
	{"cannes", []string{"cannes", "palme d'or", "cannes film festival"}},
	{"met_gala", []string{"met gala", "metropolitan museum costume institute"}},
	{"super_bowl", []string{"super bowl"}},
	{"world_cup", []string{"world cup", "fifa world cup"}},
	{"olympics", []string{"olympics", "olympic games"}},
})

var yearRe = regexp.MustCompile(`\b(20\d{2})\b`)

type aliasRow struct {
	key     string
	aliases []string
}

func buildAliases(rows []aliasRow) []alias {
	out := make([]alias, 0, len(rows))
	for _, row := range rows {
		a := alias{key: row.key}
		for _, s := range row.aliases {
			a.patterns = append(a.patterns, util.WordPattern(s))
		}
		out = append(out, a)
	}
	return out
}

// Detect returns the event named in text, or nil
func Detect(text string) *model.EventIntent {
	for _, a := range eventAliases {
		for _, p := range a.patterns {
			if p.MatchString(text) {
				return &model.EventIntent{Key: a.key, Year: extractYear(text), Query: text}
			}
		}
	}
	return nil
}

// Keys lists the known event keys in detection order
func Keys() []string {
	out := make([]string, len(eventAliases))
	for i, a := range eventAliases {
		out[i] = a.key
	}
	return out
}

func extractYear(text string) *int {
	m := yearRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	y, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &y
}
