package util

import "testing"

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"São Paulo", "sao paulo"},
		{"Bogotá", "bogota"},
		{"ZÜRICH", "zurich"},
		{"plain", "plain"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Fold(tt.in); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWordPattern(t *testing.T) {
	tests := []struct {
		name string
		term string
		text string
		want bool
	}{
		{"whole word", "fed", "Will the Fed cut rates?", true},
		{"inside word", "fed", "federal budget", false},
		{"multi word", "federal reserve", "The Federal Reserve meets", true},
		{"dotted term", "u.s.", "the u.s. army", true},
		{"prefix of word", "sol", "solana price", false},
		{"regex metachar", "st. louis", "Cardinals in St. Louis", true},
		{"metachar not wildcard", "st. louis", "stx louis", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WordPattern(tt.term).MatchString(tt.text); got != tt.want {
				t.Errorf("WordPattern(%q).MatchString(%q) = %v, want %v", tt.term, tt.text, got, tt.want)
			}
		})
	}
}

func TestCollapseSpace(t *testing.T) {
	if got := CollapseSpace("  Crypto.com \n  Arena  "); got != "Crypto.com Arena" {
		t.Errorf("CollapseSpace() = %q", got)
	}
}

func TestSnippet(t *testing.T) {
	if got := Snippet("abcdef", 3); got != "abc" {
		t.Errorf("Snippet() = %q, want abc", got)
	}
	if got := Snippet(" short ", 10); got != "short" {
		t.Errorf("Snippet() = %q, want short", got)
	}
}
