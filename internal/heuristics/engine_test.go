package heuristics

import (
	"strings"
	"testing"

	"github.com/ppiankov/geoinfer/internal/gazetteer"
	"github.com/ppiankov/geoinfer/internal/model"
)

var (
	testEngine = NewEngine(DefaultTables())
	testGeo    = gazetteer.New(gazetteer.DefaultTable())
)

func byName(cands []model.Candidate) map[string][]model.Candidate {
	out := make(map[string][]model.Candidate)
	for _, c := range cands {
		out[c.Name] = append(out[c.Name], c)
	}
	return out
}

func TestApplyMatchup(t *testing.T) {
	got := byName(testEngine.Apply("Atlanta Hawks vs Lakers"))

	atl := got["Atlanta, GA"]
	if len(atl) != 2 {
		t.Fatalf("expected matchup and prefixed Atlanta candidates, got %+v", atl)
	}
	if atl[0].Confidence != 0.80 || atl[1].Confidence != 0.75 {
		t.Errorf("Atlanta confidences = %.2f, %.2f; want 0.80, 0.75", atl[0].Confidence, atl[1].Confidence)
	}

	la := got["Los Angeles, CA"]
	if len(la) != 1 || la[0].Confidence != 0.70 {
		t.Errorf("expected single Los Angeles candidate at 0.70, got %+v", la)
	}

	for _, cands := range got {
		for _, c := range cands {
			if c.Method != model.MethodHeuristic {
				t.Errorf("candidate %q method = %s, want heuristic", c.Name, c.Method)
			}
		}
	}
}

func TestApplyNicknameSkipsFoundLocation(t *testing.T) {
	got := byName(testEngine.Apply("Will the Atlanta Hawks win? Hawks fans hope so"))
	if n := len(got["Atlanta, GA"]); n != 1 {
		t.Errorf("expected one Atlanta candidate from the prefixed table, got %d", n)
	}
}

func TestApplyTables(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		location string
		conf     float64
		coords   bool
	}{
		{"institution", "Will the Fed cut rates?", "Washington, DC", 0.65, false},
		{"landmark", "Will Trump host a summit at Mar-a-Lago?", "Palm Beach, FL", 0.90, true},
		{"figure", "Will Macron resign?", "Paris, France", 0.70, false},
		{"nickname", "Will the Celtics win the title?", "Boston, MA", 0.65, false},
		{"multiword institution", "European Central Bank rate decision", "Frankfurt, Germany", 0.65, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := byName(testEngine.Apply(tt.text))[tt.location]
			if len(got) == 0 {
				t.Fatalf("Apply(%q) produced no %s candidate", tt.text, tt.location)
			}
			best := got[0]
			for _, c := range got {
				if c.Confidence > best.Confidence {
					best = c
				}
			}
			if best.Confidence != tt.conf {
				t.Errorf("confidence = %.2f, want %.2f", best.Confidence, tt.conf)
			}
			if tt.coords && best.Coords == nil {
				t.Error("expected landmark coordinates")
			}
		})
	}
}

func TestApplyFigureWeights(t *testing.T) {
	got := byName(testEngine.Apply("Trump approval rating"))
	if c := got["Washington, DC"]; len(c) != 1 || c[0].Confidence != 0.45 {
		t.Errorf("Washington candidate = %+v", c)
	}
	if c := got["Palm Beach, FL"]; len(c) != 1 || c[0].Confidence != 0.35 {
		t.Errorf("Palm Beach candidate = %+v", c)
	}
}

func TestApplyWordBoundaries(t *testing.T) {
	for _, text := range []string{"Federal budget vote", "Wheat harvest forecast", "Unlikely outcome"} {
		for _, c := range testEngine.Apply(text) {
			if strings.Contains(c.Reason, "'fed'") || strings.Contains(c.Reason, "'heat'") || strings.Contains(c.Reason, "'un'") {
				t.Errorf("Apply(%q) matched inside a word: %s", text, c.Reason)
			}
		}
	}
}

func TestIsGlobalTopic(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"BTC price above 100k by Friday?", true},
		{"Will OpenAI release GPT-5 this year?", true},
		{"Will the SEC approve a Bitcoin ETF?", false},
		{"Bitcoin legal tender in Brazil?", false},
		{"Will Bitcoin be adopted in Zanzibarland?", false},
		{"Will the Fed cut rates?", false},
		{"Will it rain in Seattle?", false},
	}

	for _, tt := range tests {
		if got := testEngine.IsGlobalTopic(tt.text, testGeo); got != tt.want {
			t.Errorf("IsGlobalTopic(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestEmptyTables(t *testing.T) {
	e := NewEngine(&Tables{})
	if got := e.Apply("Atlanta Hawks vs Lakers"); len(got) != 0 {
		t.Errorf("expected no candidates from empty tables, got %v", got)
	}
	if e.IsGlobalTopic("bitcoin", nil) {
		t.Error("empty tables have no global keywords")
	}
}
