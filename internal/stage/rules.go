// Package stage classifies records into their canonical lifecycle stage and
// keeps an append-only history of transitions.
package stage

import (
	"strings"

	"github.com/starford/tramite/internal/models"
	"github.com/starford/tramite/internal/textnorm"
)

// Signal names a boolean fact observed on a record.
type Signal string

const (
	SignalApproval            Signal = "approval"
	SignalRejection           Signal = "rejection"
	SignalWithdrawal          Signal = "withdrawal"
	SignalVerifiedPublication Signal = "verified_publication"
	SignalVoting              Signal = "voting"
	SignalCommittee           Signal = "committee"
	SignalDebate              Signal = "debate"
	SignalClosed              Signal = "closed"
)

// Keywords per text signal, matched as substrings of the folded status text.
// Stems such as "aprobad" cover gender and number inflections.
var Keywords = map[Signal][]string{
	SignalApproval:   {"aprobad", "convalidad"},
	SignalRejection:  {"rechazad", "denegad", "inadmitid", "no tomada en consideracion"},
	SignalWithdrawal: {"retirad"},
	SignalVoting:     {"votacion", "pleno", "aprobacion", "toma en consideracion", "lectura unica"},
	SignalCommittee:  {"comision", "ponencia", "dictamen", "enmiendas"},
	SignalDebate:     {"debate", "tramitacion", "deliberacion"},
	SignalClosed:     {"concluid", "caducad", "decaid", "cerrad", "subsumid"},
}

// Input is the evidence a rule sees.
type Input struct {
	Text                string
	VerifiedPublication bool
}

// NewInput folds the record's status signals into classifier input.
func NewInput(rec *models.Record) Input {
	return Input{
		Text:                textnorm.Fold(rec.StatusText()),
		VerifiedPublication: rec.HasVerifiedPublication(),
	}
}

// Has reports whether sig fires for in.
func (in Input) Has(sig Signal) bool {
	if sig == SignalVerifiedPublication {
		return in.VerifiedPublication
	}
	for _, kw := range Keywords[sig] {
		if strings.Contains(in.Text, kw) {
			return true
		}
	}
	return false
}

// Rule maps a signal to a stage. A rule with an empty Signal always fires.
type Rule struct {
	Signal Signal
	Stage  models.Stage
	Step   int
}

// Rules is evaluated top-down and the first firing rule wins. The order is
// the precedence: approval outranks rejection, and both outrank any
// process-stage keyword.
var Rules = []Rule{
	{SignalApproval, models.StagePassed, 4},
	{SignalRejection, models.StageRejected, 2},
	{SignalWithdrawal, models.StageWithdrawn, 1},
	{SignalVerifiedPublication, models.StagePublished, 5},
	{SignalVoting, models.StageVoting, 4},
	{SignalCommittee, models.StageCommittee, 3},
	{SignalDebate, models.StageDebating, 2},
	{SignalClosed, models.StageClosed, 1},
	{"", models.StageProposed, 1},
}

// Result is the outcome of classifying one record.
type Result struct {
	Stage   models.Stage `json:"stage"`
	Step    int          `json:"step"`
	Reason  string       `json:"reason"`
	Signals []Signal     `json:"signals"`
}

// Evaluate runs rules against in. Every signal is evaluated so the reason
// lists all that fired, not only the winning one.
func Evaluate(rules []Rule, in Input) Result {
	res := Result{Stage: models.StageProposed, Step: 1, Signals: []Signal{}}
	matched := false
	for _, r := range rules {
		fired := r.Signal == "" || in.Has(r.Signal)
		if fired && r.Signal != "" {
			res.Signals = append(res.Signals, r.Signal)
		}
		if fired && !matched {
			res.Stage, res.Step = r.Stage, r.Step
			matched = true
		}
	}
	res.Reason = reason(res)
	return res
}

func reason(res Result) string {
	if len(res.Signals) == 0 {
		return "no signals; default " + string(res.Stage)
	}
	names := make([]string, len(res.Signals))
	for i, s := range res.Signals {
		names[i] = string(s)
	}
	return "signals: " + strings.Join(names, ", ") + "; rule: " + names[0]
}
