package event

import (
	"strconv"
	"strings"

	"github.com/ppiankov/geoinfer/internal/model"
)

// Reference-page title templates per event. {year}, {ord} and {roman} are
// substituted; unknown events fall back to "{year} <key>".
var queryTemplates = map[string][]string{
	"oscars":        {"{year} Academy Awards", "{ord} Academy Awards"},
	"grammys":       {"{year} Grammy Awards", "{ord} Grammy Awards"},
	"golden_globes": {"{year} Golden Globe Awards", "{ord} Golden Globe Awards"},
	"emmys":         {"{year} Primetime Emmy Awards", "{ord} Primetime Emmy Awards"},
	"tonys":         {"{year} Tony Awards", "{ord} Tony Awards"},
	"cannes":        {"{year} Cannes Film Festival"},
	"met_gala":      {"{year} Met Gala"},
	"super_bowl":    {"Super Bowl {roman}", "{year} Super Bowl"},
	"world_cup":     {"{year} FIFA World Cup"},
	"olympics":      {"{year} Summer Olympics", "{year} Winter Olympics"},
}

// Year before the first ceremony, used to estimate the ordinal edition
var ceremonyEpoch = map[string]int{
	"oscars":        1928,
	"grammys":       1958,
	"golden_globes": 1943,
	"emmys":         1948,
	"tonys":         1946,
}

// Super Bowl I was played in January 1967
const superBowlEpoch = 1966

// CandidateQueries expands the templates for intent, appends the raw query
// and removes duplicates while keeping order
func CandidateQueries(intent model.EventIntent, currentYear int) []string {
	year := currentYear
	if intent.Year != nil {
		year = *intent.Year
	}

	templates, ok := queryTemplates[intent.Key]
	if !ok {
		templates = []string{"{year} " + intent.Key}
	}

	epoch, ok := ceremonyEpoch[intent.Key]
	if !ok {
		epoch = 2000
	}
	r := strings.NewReplacer(
		"{year}", strconv.Itoa(year),
		"{ord}", Ordinal(max(1, year-epoch)),
		"{roman}", Roman(max(1, year-superBowlEpoch)),
	)

	seen := make(map[string]bool)
	var out []string
	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			return
		}
		seen[q] = true
		out = append(out, q)
	}
	for _, t := range templates {
		add(r.Replace(t))
	}
	add(intent.Query)
	return out
}

// Ordinal renders n as 1st, 2nd, 3rd, 4th, 11th, 21st, ...
func Ordinal(n int) string {
	suffix := "th"
	if m := n % 100; m < 11 || m > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

var romanNumerals = []struct {
	value  int
	symbol string
}{
	{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"},
	{100, "C"}, {90, "XC"}, {50, "L"}, {40, "XL"},
	{10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

// Roman renders n (minimum 1) as a Roman numeral
func Roman(n int) string {
	n = max(1, n)
	var b strings.Builder
	for _, rn := range romanNumerals {
		for n >= rn.value {
			b.WriteString(rn.symbol)
			n -= rn.value
		}
	}
	return b.String()
}
