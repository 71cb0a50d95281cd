package extract

import "strings"

// SplitReferences tokenizes a free-text list of identifiers on whitespace,
// commas, semicolons and newlines. Tokens are trimmed of wrapping punctuation
// and deduplicated in order of appearance.
func SplitReferences(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '\r', ',', ';':
			return true
		}
		return false
	})
	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, f := range fields {
		f = strings.Trim(f, "()[].")
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
