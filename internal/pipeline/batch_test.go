package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/starford/tramite/internal/models"
	"github.com/starford/tramite/internal/senate"
	"github.com/starford/tramite/internal/sse"
	"github.com/starford/tramite/internal/testutil"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type lawSource struct{ laws []models.ExternalLawRecord }

func (lawSource) Name() string              { return "stub" }
func (lawSource) Kind() models.CorpusSource { return models.CorpusExport }
func (s lawSource) Fetch(context.Context) ([]models.ExternalLawRecord, error) {
	return s.laws, nil
}

type recorder struct {
	mu      sync.Mutex
	changes []sse.StageChange
	batches int
}

func (r *recorder) PublishStageChange(c sse.StageChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) PublishBatch(any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches++
}

var climateLaw = models.ExternalLawRecord{
	LawType:        "Ley",
	LawNumber:      "7/2021",
	Title:          "Ley de cambio climático y transición energética",
	Docket:         "621/000045",
	GazetteDate:    "2021-05-21",
	PublicationURL: "https://www.boe.es/buscar/doc.php?id=BOE-A-2021-8447",
}

func fixedClock() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

func TestBatchRun(t *testing.T) {
	_, docs := testutil.TestDocs(t, map[string]string{
		"congreso/iniciativas.xml": testutil.CongressXML,
		"broken.xml":               "<results><result>",
		"notes.txt":                "ignored",
	})
	db := testutil.TestDB(t)
	pub := &recorder{}

	b := New(docs, Config{OutputPath: "records.json"},
		WithLogger(quiet),
		WithSnapshotStore(db),
		WithHistory(db),
		WithPublisher(pub),
		WithOutput(docs),
		WithSources(lawSource{laws: []models.ExternalLawRecord{climateLaw}}),
		WithClock(fixedClock),
	)

	rep, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Documents != 2 || rep.DocumentsFailed != 1 {
		t.Errorf("documents = %d, failed = %d", rep.Documents, rep.DocumentsFailed)
	}
	if rep.Records != 4 || rep.Rejected != 1 || rep.Entries != 5 {
		t.Errorf("records = %d, rejected = %d, entries = %d", rep.Records, rep.Rejected, rep.Entries)
	}
	if rep.Errors != 2 {
		t.Errorf("errors = %d, want 2", rep.Errors)
	}
	if rep.DirectEdges != 1 {
		t.Errorf("direct edges = %d, want 1", rep.DirectEdges)
	}
	if rep.Resolved != 1 || rep.CorpusLaws != 1 {
		t.Errorf("resolved = %d, corpus = %d", rep.Resolved, rep.CorpusLaws)
	}
	if rep.StageChanges != 4 || len(pub.changes) != 4 || pub.batches != 1 {
		t.Errorf("stage changes = %d, published = %d, batches = %d", rep.StageChanges, len(pub.changes), pub.batches)
	}

	wantStages := map[string]models.Stage{
		"121/000001": models.StagePassed,
		"122/000002": models.StageCommittee,
		"122/000003": models.StageWithdrawn,
		"162/000004": models.StageProposed,
	}
	for id, want := range wantStages {
		rec, err := db.GetRecord(id)
		if err != nil {
			t.Fatalf("GetRecord(%s): %v", id, err)
		}
		if rec.Stage != want {
			t.Errorf("%s stage = %s, want %s (%s)", id, rec.Stage, want, rec.StageReason)
		}
	}

	climate, _ := db.GetRecord("121/000001")
	if climate.Publication == nil || climate.Publication.GazetteID != "BOE-A-2021-8447" ||
		climate.Publication.Confidence != models.ConfidenceHigh {
		t.Errorf("publication = %+v", climate.Publication)
	}

	env, _ := db.GetRecord("122/000002")
	if len(env.Similar) == 0 || env.Similar[0].Target != "122/000003" {
		t.Errorf("similar = %+v", env.Similar)
	}
	if len(env.DirectRelations) != 0 {
		t.Errorf("unknown origin kept: %+v", env.DirectRelations)
	}

	out, err := docs.Read("records.json")
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	var written []models.Record
	if err := json.Unmarshal(out, &written); err != nil || len(written) != 4 {
		t.Errorf("output = %d records, %v", len(written), err)
	}
}

func TestBatchRun_Idempotent(t *testing.T) {
	_, docs := testutil.TestDocs(t, map[string]string{"a.xml": testutil.CongressXML})
	db := testutil.TestDB(t)
	b := New(docs, Config{}, WithLogger(quiet), WithSnapshotStore(db), WithHistory(db), WithClock(fixedClock))
	ctx := context.Background()

	firstRep, err := b.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	_, firstEdges, _ := db.Graph()
	first, _ := db.GetRecord("122/000002")

	rep, err := b.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rep.StageChanges != 0 {
		t.Errorf("second run recorded %d stage changes", rep.StageChanges)
	}
	if rep.InputChecksum == "" || rep.InputChecksum != firstRep.InputChecksum {
		t.Errorf("input checksum %q, first run %q", rep.InputChecksum, firstRep.InputChecksum)
	}
	_, secondEdges, _ := db.Graph()
	second, _ := db.GetRecord("122/000002")

	if !reflect.DeepEqual(firstEdges, secondEdges) {
		t.Errorf("edges differ between runs:\n%+v\n%+v", firstEdges, secondEdges)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("record differs between runs:\n%+v\n%+v", first, second)
	}
	if hist, _ := db.History(ctx, "122/000002"); len(hist) != 1 {
		t.Errorf("history = %+v", hist)
	}
}

func TestBatchRun_DuplicateIdentifiersMerge(t *testing.T) {
	later := `<results><result>
  <NUMEXPEDIENTE>122/000002</NUMEXPEDIENTE>
  <OBJETO>Ley de protección del medio ambiente</OBJETO>
  <RESULTADOTRAMITACION>Rechazado</RESULTADOTRAMITACION>
</result></results>`
	_, docs := testutil.TestDocs(t, map[string]string{"a.xml": testutil.CongressXML, "b.xml": later})
	db := testutil.TestDB(t)
	rep, err := New(docs, Config{}, WithLogger(quiet), WithSnapshotStore(db)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Merged != 1 || rep.Records != 4 {
		t.Errorf("merged = %d, records = %d", rep.Merged, rep.Records)
	}
	rec, _ := db.GetRecord("122/000002")
	if rec.Stage != models.StageRejected || rec.Author != "Grupo Parlamentario Mixto" {
		t.Errorf("merged record = %+v", rec)
	}
}

func TestBatchRun_RejectedEntriesCountAsErrors(t *testing.T) {
	doc := `<results>
<result><NUMEXPEDIENTE>121/000010</NUMEXPEDIENTE><OBJETO>Proyecto de Ley de pesca sostenible</OBJETO></result>
<result><NUMEXPEDIENTE>121/000011</NUMEXPEDIENTE></result>
<result><OBJETO>Proposición de Ley sin expediente</OBJETO></result>
</results>`
	_, docs := testutil.TestDocs(t, map[string]string{"a.xml": doc})
	rep, err := New(docs, Config{}, WithLogger(quiet)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Records != 1 || rep.Rejected != 2 || rep.Errors != 2 {
		t.Errorf("records = %d, rejected = %d, errors = %d", rep.Records, rep.Rejected, rep.Errors)
	}
}

func TestBatchRun_SourceFailureDegrades(t *testing.T) {
	_, docs := testutil.TestDocs(t, map[string]string{"a.xml": testutil.CongressXML})
	failing := senate.NewExportSource("/nonexistent/leyes.xml", nil)
	rep, err := New(docs, Config{}, WithLogger(quiet), WithSources(failing)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// One unreachable source plus the fixture's rejected entry.
	if rep.SourcesFailed != 1 || rep.Errors != 2 || rep.Resolved != 0 || rep.Records != 4 {
		t.Errorf("report = %+v", rep)
	}
}

func TestRunIfChanged(t *testing.T) {
	dir, docs := testutil.TestDocs(t, map[string]string{"a.xml": testutil.CongressXML})
	db := testutil.TestDB(t)
	b := New(docs, Config{}, WithLogger(quiet), WithSnapshotStore(db))
	ctx := context.Background()

	if _, ran, err := b.RunIfChanged(ctx, db); !ran || err != nil {
		t.Fatalf("first run: ran = %v, err = %v", ran, err)
	}
	if _, ran, _ := b.RunIfChanged(ctx, db); ran {
		t.Error("unchanged documents triggered a run")
	}
	testutil.WriteFile(t, dir, "b.xml", `<results><result><NUMEXPEDIENTE>1</NUMEXPEDIENTE><OBJETO>x</OBJETO></result></results>`)
	if _, ran, _ := b.RunIfChanged(ctx, db); !ran {
		t.Error("new document did not trigger a run")
	}
}
