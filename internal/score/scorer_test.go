package score

import (
	"math"
	"strings"
	"testing"

	"github.com/ppiankov/geoinfer/internal/model"
)

func TestMergeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Atlanta, GA, USA", "atlanta, ga"},
		{"Atlanta, GA", "atlanta, ga"},
		{"  London, UK ", "london"},
		{"Toronto, Canada", "toronto"},
		{"Paris, France", "paris, france"},
		{"Washington, DC, USA", "washington, dc"},
		{"New York, US, USA", "new york, us"},
	}

	for _, tt := range tests {
		if got := MergeKey(tt.in); got != tt.want {
			t.Errorf("MergeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		a, b float64
		want float64
	}{
		{0.8, 0.75, 0.95},
		{0.5, 0.5, 0.75},
		{0.95, 0.85, 0.99},
		{0, 0.4, 0.4},
	}

	for _, tt := range tests {
		got := Combine(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Combine(%.2f, %.2f) = %.4f, want %.2f", tt.a, tt.b, got, tt.want)
		}
	}
}

// Union is monotone: the combined value is never below either input and
// never above the cap.
func TestCombineMonotone(t *testing.T) {
	for a := 0.0; a <= 1.0; a += 0.05 {
		for b := 0.0; b <= 1.0; b += 0.05 {
			got := Combine(a, b)
			if got > MaxCombinedConfidence+1e-9 {
				t.Fatalf("Combine(%.2f, %.2f) = %.4f exceeds cap", a, b, got)
			}
			floor := math.Min(math.Max(a, b), MaxCombinedConfidence)
			if got+0.0051 < floor {
				t.Fatalf("Combine(%.2f, %.2f) = %.4f below input %.2f", a, b, got, floor)
			}
		}
	}
}

func TestMerge(t *testing.T) {
	coords := &model.Coordinates{Lat: 33.75, Lon: -84.39}
	cands := []model.Candidate{
		{Name: "Atlanta, GA", Kind: model.KindCity, Confidence: 0.80, Reason: "matchup", Method: model.MethodHeuristic},
		{Name: "Atlanta, GA, USA", Kind: model.KindCity, Confidence: 0.75, Reason: "gazetteer", Method: model.MethodGazetteer, Coords: coords},
		{Name: "Los Angeles, CA", Kind: model.KindCity, Confidence: 0.70, Reason: "nickname", Method: model.MethodHeuristic},
		{Name: "Atlanta, GA", Kind: model.KindCity, Confidence: 0.75, Reason: "matchup", Method: model.MethodHeuristic},
	}

	got := Merge(cands)
	if len(got) != 2 {
		t.Fatalf("expected 2 merged candidates, got %d", len(got))
	}

	atl := got[0]
	if atl.Name != "Atlanta, GA" || atl.Method != model.MethodHeuristic {
		t.Errorf("first name/method not kept: %+v", atl)
	}
	if atl.Confidence != 0.99 {
		t.Errorf("Atlanta confidence = %.2f, want 0.99", atl.Confidence)
	}
	if atl.Coords != coords {
		t.Error("expected coordinates from the gazetteer candidate")
	}
	if strings.Count(atl.Reason, "matchup") != 1 || !strings.Contains(atl.Reason, "gazetteer") {
		t.Errorf("unexpected reason %q", atl.Reason)
	}
}

func TestMergePrefersSpecificKind(t *testing.T) {
	got := Merge([]model.Candidate{
		{Name: "Washington, DC", Kind: model.KindCity, Confidence: 0.6},
		{Name: "Washington, DC", Kind: model.KindBuilding, Confidence: 0.65},
	})
	if got[0].Kind != model.KindBuilding {
		t.Errorf("kind = %s, want building", got[0].Kind)
	}
}

func TestApplyAmbiguityPenalty(t *testing.T) {
	mk := func(confs ...float64) []model.Candidate {
		out := make([]model.Candidate, len(confs))
		for i, c := range confs {
			out[i] = model.Candidate{Name: string(rune('a' + i)), Confidence: c}
		}
		return out
	}

	tests := []struct {
		name string
		in   []model.Candidate
		want []float64
	}{
		{"single", mk(0.9), []float64{0.9}},
		{"pair", mk(0.99, 0.70), []float64{0.94, 0.65}},
		{"three", mk(0.5, 0.4, 0.3), []float64{0.4, 0.3, 0.2}},
		{"floor", mk(0.08, 0.06), []float64{0.05, 0.05}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyAmbiguityPenalty(tt.in)
			for i, c := range got {
				if math.Abs(c.Confidence-tt.want[i]) > 1e-9 {
					t.Errorf("candidate %d confidence = %.4f, want %.2f", i, c.Confidence, tt.want[i])
				}
			}
		})
	}
}

func TestFinalize(t *testing.T) {
	in := []model.Candidate{
		{Name: "b", Confidence: 0.5},
		{Name: "low", Confidence: 0.1},
		{Name: "a", Confidence: 0.5},
		{Name: "top", Confidence: 0.9},
		{Name: "c", Confidence: 0.3},
	}

	got := Finalize(in, 0.15, 3)
	want := []string{"top", "a", "b"}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(got))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("position %d = %q, want %q", i, got[i].Name, name)
		}
	}
}

func TestArbitrate(t *testing.T) {
	a := NewArbiter(0.15, 5)
	got := a.Arbitrate([]model.Candidate{
		{Name: "Atlanta, GA", Kind: model.KindCity, Confidence: 0.80},
		{Name: "Atlanta, GA", Kind: model.KindCity, Confidence: 0.75},
		{Name: "Atlanta, GA, USA", Kind: model.KindCity, Confidence: 0.85},
		{Name: "Los Angeles, CA", Kind: model.KindCity, Confidence: 0.70},
	})

	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Confidence != 0.94 || got[1].Confidence != 0.65 {
		t.Errorf("confidences = %.2f, %.2f; want 0.94, 0.65", got[0].Confidence, got[1].Confidence)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Confidence > got[i-1].Confidence {
			t.Error("result not sorted by confidence")
		}
	}
}

func TestArbitrateEmpty(t *testing.T) {
	if got := NewArbiter(0.15, 5).Arbitrate(nil); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}
