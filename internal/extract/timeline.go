package extract

import (
	"regexp"
	"strings"

	"github.com/starford/tramite/internal/models"
)

// UnlabeledEvent names date ranges that appear before any event label.
const UnlabeledEvent = "unlabeled"

// TimelineParser turns a free-text procedural narrative into timeline events.
type TimelineParser interface {
	Parse(narrative string) []models.TimelineEvent
}

// TokenKind classifies a narrative line fragment.
type TokenKind int

const (
	// TokenLabel is a line that names the current event.
	TokenLabel TokenKind = iota
	// TokenRange is a "desde <date> [hasta <date>]" fragment.
	TokenRange
)

// Token is one lexical unit of a procedural narrative.
type Token struct {
	Kind  TokenKind
	Label string
	Start string
	End   string
	Raw   string
}

var (
	rangeRe     = regexp.MustCompile(`(?i)desde\s+(\d{1,2}/\d{1,2}/\d{4})(?:\s+hasta\s+(\d{1,2}/\d{1,2}/\d{4}))?`)
	lineBreakRe = regexp.MustCompile(`(?i)<br\s*/?>`)
)

// LineGrammar is the default TimelineParser: a line tokenizer followed by an
// event builder that carries the last label forward.
type LineGrammar struct{}

// Parse implements TimelineParser.
func (LineGrammar) Parse(narrative string) []models.TimelineEvent {
	return Build(Tokenize(narrative))
}

// Tokenize splits narrative into lines and classifies each one. A line with
// date ranges yields one TokenRange per range, labelled with the text that
// precedes it on the same line; any other non-empty line is a TokenLabel.
func Tokenize(narrative string) []Token {
	narrative = lineBreakRe.ReplaceAllString(narrative, "\n")
	var out []Token
	for _, line := range strings.Split(narrative, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		matches := rangeRe.FindAllStringSubmatchIndex(line, -1)
		if len(matches) == 0 {
			out = append(out, Token{Kind: TokenLabel, Label: line, Raw: line})
			continue
		}
		prev := 0
		for _, m := range matches {
			tok := Token{
				Kind:  TokenRange,
				Label: strings.TrimSpace(line[prev:m[0]]),
				Start: line[m[2]:m[3]],
				Raw:   line,
			}
			if m[4] >= 0 {
				tok.End = line[m[4]:m[5]]
			}
			out = append(out, tok)
			prev = m[1]
		}
	}
	return out
}

// Build folds a token stream into timeline events. Label tokens update the
// current event name; range tokens emit an event under their own label when
// they carry one, otherwise under the current name.
func Build(tokens []Token) []models.TimelineEvent {
	current := ""
	events := make([]models.TimelineEvent, 0, len(tokens))
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenLabel:
			current = tok.Label
		case TokenRange:
			name := tok.Label
			if name != "" {
				current = name
			} else {
				name = current
			}
			if name == "" {
				name = UnlabeledEvent
			}
			events = append(events, models.TimelineEvent{
				Event:     name,
				StartDate: NormalizeDate(tok.Start),
				EndDate:   NormalizeDate(tok.End),
				Raw:       tok.Raw,
			})
		}
	}
	return events
}
