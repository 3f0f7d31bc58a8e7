package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var spaceRe = regexp.MustCompile(`\s+`)

// Fold lowercases s and strips diacritical marks, so "São Paulo" and
// "sao paulo" compare equal. The transformer chain is stateful and built per call.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}
	return strings.ToLower(result)
}

// CollapseSpace trims s and replaces whitespace runs with a single space
func CollapseSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// WordPattern compiles a case-insensitive pattern for term that only
// matches on word boundaries. Boundaries are asserted only on edges where
// the term itself starts or ends with a word character, so "u.s." still
// matches before a space.
func WordPattern(term string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`(?i)`)
	if startsWord(term) {
		b.WriteString(`\b`)
	}
	b.WriteString(regexp.QuoteMeta(term))
	if endsWord(term) {
		b.WriteString(`\b`)
	}
	return regexp.MustCompile(b.String())
}

// ContainsWord reports whether term occurs in text on word boundaries
func ContainsWord(text, term string) bool {
	return WordPattern(term).MatchString(text)
}

// Snippet returns at most n runes of s, trimmed
func Snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

func startsWord(term string) bool {
	for _, r := range term {
		return isWordRune(r)
	}
	return false
}

func endsWord(term string) bool {
	r := []rune(term)
	return len(r) > 0 && isWordRune(r[len(r)-1])
}

func isWordRune(r rune) bool {
	return r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
}
