// Package textnorm folds Spanish legislative text into comparable forms.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips diacritics (á → a, ñ → n, ü → u).
func Fold(s string) string {
	// Chains are stateful; build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Normalize folds s and collapses every run of non-alphanumeric characters
// into a single space.
func Normalize(s string) string {
	folded := Fold(s)
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)
	return strings.Join(strings.Fields(mapped), " ")
}

// Tokens splits the normalized form of s on whitespace.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// WordTokens folds s, splits it on whitespace and removes non-alphanumeric
// characters inside each word, so "medio-ambiente" yields "medioambiente".
func WordTokens(s string) []string {
	fields := strings.Fields(Fold(s))
	out := fields[:0]
	for _, f := range fields {
		w := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, f)
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
