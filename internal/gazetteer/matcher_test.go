package gazetteer

import (
	"strings"
	"testing"
)

var testMatcher = New(DefaultTable())

func names(matches []Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Entry.Name
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()
	if len(table.Entries) < 300 {
		t.Errorf("expected at least 300 entries, got %d", len(table.Entries))
	}
	if len(table.Stopwords) == 0 {
		t.Error("expected stopwords")
	}
	for _, e := range table.Entries {
		if e.Kind == "" {
			t.Errorf("entry %q has no kind", e.Name)
		}
	}
}

func TestFindAll(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    []string
		notWant []string
	}{
		{
			name:    "longest surface wins",
			text:    "Will South Korea hold snap elections?",
			want:    []string{"South Korea"},
			notWant: []string{"North Korea"},
		},
		{
			name:    "city beats embedded word",
			text:    "New Orleans flooding this week",
			want:    []string{"New Orleans, LA, USA"},
			notWant: []string{"Orleans"},
		},
		{
			name: "accent folding",
			text: "Protests in Sao Paulo and Bogotá",
			want: []string{"São Paulo, Brazil", "Bogotá, Colombia"},
		},
		{
			name: "demonym maps to country",
			text: "Japanese election turnout",
			want: []string{"Japan"},
		},
		{
			name:    "pronoun us is not a country",
			text:    "Will it rain on us this weekend?",
			notWant: []string{"United States"},
		},
		{
			name: "country us with domain keyword",
			text: "Will the US military strike Iran?",
			want: []string{"United States", "Iran"},
		},
		{
			name: "dotted abbreviation",
			text: "U.S. recession in 2026?",
			want: []string{"United States"},
		},
		{
			name:    "us state qualifier overrides foreign city",
			text:    "Will it snow in Paris, TX?",
			want:    []string{"Texas, USA"},
			notWant: []string{"Paris, France"},
		},
		{
			name: "lowercase words after a comma are not state codes",
			text: "Will it rain in Paris, in the end?",
			want: []string{"Paris, France"},
		},
		{
			name:    "us city keeps its own qualifier",
			text:    "Denver, CO snowfall above 10 inches?",
			want:    []string{"Denver, CO, USA"},
			notWant: []string{"Colorado, USA"},
		},
		{
			name:    "word boundaries",
			text:    "Parisian fashion week",
			notWant: []string{"Paris, France"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(testMatcher.FindAll(tt.text))
			for _, w := range tt.want {
				if !contains(got, w) {
					t.Errorf("FindAll(%q) = %v, missing %q", tt.text, got, w)
				}
			}
			for _, nw := range tt.notWant {
				if contains(got, nw) {
					t.Errorf("FindAll(%q) = %v, should not contain %q", tt.text, got, nw)
				}
			}
		})
	}
}

func TestFindAllDeduplicatesByCanonicalName(t *testing.T) {
	matches := testMatcher.FindAll("France and the French president")
	count := 0
	for _, m := range matches {
		if m.Entry.Name == "France" {
			count++
			if m.Surface != "france" {
				t.Errorf("expected longest surface 'france', got %q", m.Surface)
			}
		}
	}
	if count != 1 {
		t.Errorf("expected one France match, got %d", count)
	}
}

func TestFindAllNonOverlapping(t *testing.T) {
	matches := testMatcher.FindAll("Kansas City Chiefs parade")
	for i := range matches {
		for j := i + 1; j < len(matches); j++ {
			if matches[i].Start < matches[j].End && matches[j].Start < matches[i].End {
				t.Errorf("overlapping matches %v and %v", matches[i], matches[j])
			}
		}
	}
	got := names(matches)
	if !contains(got, "Kansas City, MO, USA") || contains(got, "Kansas, USA") {
		t.Errorf("FindAll() = %v, want Kansas City only", got)
	}
}

func TestFindAllEmptyTable(t *testing.T) {
	m := New(&Table{})
	if got := m.FindAll("Paris and London"); len(got) != 0 {
		t.Errorf("expected no matches from empty table, got %v", got)
	}
}

func TestFindUnknownProperNouns(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"Will the storm hit Springfield on Monday?", []string{"Springfield"}},
		{"Will Trump visit Paris in March?", nil},
		{"Clarity Act signed into law in 2026?", nil},
		{"Will flooding reach Funafuti Atoll?", []string{"Funafuti Atoll"}},
		{"Highest temperature in Tokyo this week?", nil},
		{"Sunrise over Tarawa?", []string{"Tarawa"}},
		{"Storms expected. Sunrise over Tarawa?", []string{"Tarawa"}},
		{"Funafuti Atoll flooding this year?", []string{"Funafuti Atoll"}},
	}

	for _, tt := range tests {
		got := testMatcher.FindUnknownProperNouns(tt.text)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("FindUnknownProperNouns(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"Atlanta, GA", "Atlanta, GA, USA", true},
		{"Washington, DC", "Washington, DC, USA", true},
		{"London, UK", "London, United Kingdom", true},
		{"Toronto, ON, Canada", "Toronto, Canada", true},
		{"paris", "Paris, France", true},
		{"Paris, TX", "", false},
		{"Palm Beach, FL", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		e, ok := testMatcher.Lookup(tt.name)
		if ok != tt.wantOK {
			t.Errorf("Lookup(%q) ok = %v, want %v", tt.name, ok, tt.wantOK)
			continue
		}
		if ok && e.Name != tt.want {
			t.Errorf("Lookup(%q) = %q, want %q", tt.name, e.Name, tt.want)
		}
	}
}

func TestStateName(t *testing.T) {
	if name, ok := StateName("GA"); !ok || name != "Georgia" {
		t.Errorf("StateName(GA) = %q, %v", name, ok)
	}
	if _, ok := StateName("ZZ"); ok {
		t.Error("StateName(ZZ) should not resolve")
	}
}
