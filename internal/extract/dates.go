package extract

import (
	"strings"
	"time"
)

var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"02-01-2006",
}

// NormalizeDate converts the date formats found in exports to YYYY-MM-DD.
// Unparseable input is returned trimmed so no information is lost.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}
