package stage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/starford/tramite/internal/models"
)

func TestClassify_Rules(t *testing.T) {
	verified := &models.Publication{Confidence: models.ConfidenceHigh, URL: "https://www.boe.es/x"}
	dated := &models.Publication{Confidence: models.ConfidenceMedium, GazetteDate: "2021-01-01"}

	tests := []struct {
		name      string
		rec       models.Record
		wantStage models.Stage
		wantStep  int
	}{
		{"approval beats rejection", models.Record{Status: "Ley aprobada tras ser rechazada en primera lectura"}, models.StagePassed, 4},
		{"convalidation", models.Record{Result: "Convalidado"}, models.StagePassed, 4},
		{"approval beats closed", models.Record{Status: "Concluido - (Aprobado con modificaciones)"}, models.StagePassed, 4},
		{"rejection", models.Record{Result: "Rechazado"}, models.StageRejected, 2},
		{"withdrawal", models.Record{Status: "Retirado"}, models.StageWithdrawn, 1},
		{"verified publication", models.Record{Status: "En tramitación", Publication: verified}, models.StagePublished, 5},
		{"unverified publication ignored", models.Record{Publication: dated}, models.StageProposed, 1},
		{"voting", models.Record{Status: "Pendiente de votación en el Pleno"}, models.StageVoting, 4},
		{"committee", models.Record{Status: "Comisión de Justicia - Plazo de enmiendas"}, models.StageCommittee, 3},
		{"debate", models.Record{Status: "En tramitación"}, models.StageDebating, 2},
		{"closed", models.Record{Status: "Caducado"}, models.StageClosed, 1},
		{"default", models.Record{Status: "Calificado"}, models.StageProposed, 1},
		{"diacritics and case", models.Record{Procedure: "COMISIÓN CONSTITUCIONAL"}, models.StageCommittee, 3},
	}

	c := New(nil, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			res := c.Classify(&rec)
			if res.Stage != tt.wantStage || res.Step != tt.wantStep {
				t.Errorf("Classify = %s/%d, want %s/%d (%s)", res.Stage, res.Step, tt.wantStage, tt.wantStep, res.Reason)
			}
		})
	}
}

func TestClassify_ReasonListsFiredSignals(t *testing.T) {
	rec := &models.Record{Status: "Ley aprobada tras ser rechazada en primera lectura"}
	res := New(nil, nil, nil).Classify(rec)

	want := []Signal{SignalApproval, SignalRejection}
	if !reflect.DeepEqual(res.Signals, want) {
		t.Errorf("Signals = %v, want %v", res.Signals, want)
	}
	if res.Reason != "signals: approval, rejection; rule: approval" {
		t.Errorf("Reason = %q", res.Reason)
	}

	res = New(nil, nil, nil).Classify(&models.Record{})
	if res.Reason != "no signals; default proposed" || len(res.Signals) != 0 {
		t.Errorf("empty record result = %+v", res)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	c := New(nil, nil, nil)
	rec := &models.Record{Status: "Comisión de Hacienda", Result: "Aprobado"}
	first := c.Classify(rec)
	second := c.Classify(rec)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
}

func fixedClassifier(h HistoryStore) *Classifier {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	return New(h, nil, nil,
		WithClock(func() time.Time { return at }),
		WithIDs(func() string { n++; return "h" + string(rune('0'+n)) }),
	)
}

func TestApply_AppendsOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory()
	c := fixedClassifier(h)
	rec := &models.Record{ID: "121/000001", Status: "En tramitación"}

	if _, changed := c.Apply(ctx, rec); !changed {
		t.Fatal("first classification should append")
	}
	if _, changed := c.Apply(ctx, rec); changed {
		t.Fatal("unchanged classification appended again")
	}
	if rec.Stage != models.StageDebating || rec.Step != 2 || rec.StageReason == "" {
		t.Errorf("stage fields = %s/%d %q", rec.Stage, rec.Step, rec.StageReason)
	}

	rec.Status = "Aprobado por el Pleno"
	if _, changed := c.Apply(ctx, rec); !changed {
		t.Fatal("transition not recorded")
	}

	got := h.History(rec.ID)
	if len(got) != 2 {
		t.Fatalf("history = %+v", got)
	}
	if got[0].Stage != models.StageDebating || got[1].Stage != models.StagePassed {
		t.Errorf("history stages = %s, %s", got[0].Stage, got[1].Stage)
	}
	if got[1].ID != "h2" || !got[1].RecordedAt.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("entry = %+v", got[1])
	}
}

type failingHistory struct{ lookupErr, appendErr error }

func (f failingHistory) LastStage(context.Context, string) (models.StageHistoryEntry, bool, error) {
	return models.StageHistoryEntry{}, false, f.lookupErr
}

func (f failingHistory) AppendStage(context.Context, models.StageHistoryEntry) error {
	return f.appendErr
}

func TestApply_HistoryFailureDoesNotFail(t *testing.T) {
	for _, h := range []failingHistory{
		{appendErr: errors.New("disk full")},
		{lookupErr: errors.New("locked")},
	} {
		rec := &models.Record{ID: "1", Result: "Rechazado"}
		res, changed := fixedClassifier(h).Apply(context.Background(), rec)
		if changed {
			t.Error("changed reported despite history failure")
		}
		if res.Stage != models.StageRejected || rec.Stage != models.StageRejected {
			t.Errorf("classification lost: %+v / %s", res, rec.Stage)
		}
	}
}
