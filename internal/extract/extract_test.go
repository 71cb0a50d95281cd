package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/tramite/internal/apperr"
)

const congressXML = `<?xml version="1.0" encoding="UTF-8"?>
<results>
  <result>
    <LEGISLATURA>14</LEGISLATURA>
    <TIPO>Proyecto de ley</TIPO>
    <OBJETO>Proyecto de Ley de protección del medio ambiente (621/000045)</OBJETO>
    <NUMEXPEDIENTE>121/000045</NUMEXPEDIENTE>
    <FECHAPRESENTACION>07/02/2020</FECHAPRESENTACION>
    <FECHACALIFICACION>11/02/2020</FECHACALIFICACION>
    <AUTOR>Gobierno</AUTOR>
    <SITUACIONACTUAL>Comisión de Transición Ecológica Enmiendas</SITUACIONACTUAL>
    <TRAMITACIONSEGUIDA>Comisión de Transición Ecológica
Publicación desde 13/02/2020 hasta 13/02/2020
Enmiendas desde 13/02/2020 hasta 25/02/2020</TRAMITACIONSEGUIDA>
    <INICIATIVASRELACIONADAS>121/000046, 121/000047
121/000048</INICIATIVASRELACIONADAS>
    <INICIATIVASDEORIGEN>622/000001</INICIATIVASDEORIGEN>
  </result>
  <result>
    <TIPO>Proposición de ley</TIPO>
    <OBJETO></OBJETO>
    <NUMEXPEDIENTE>122/000001</NUMEXPEDIENTE>
  </result>
  <result>
    <TIPO>Proposición de ley</TIPO>
    <OBJETO>Sin expediente</OBJETO>
  </result>
</results>`

func TestExtract_CongressShape(t *testing.T) {
	ex := New(Config{}, nil)
	res, err := ex.Extract("iniciativas.xml", []byte(congressXML))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(res.Records))
	}
	if len(res.Rejections) != 2 {
		t.Fatalf("rejections = %d, want 2", len(res.Rejections))
	}
	if res.Rejections[0].Reason != "missing subject" || res.Rejections[1].Reason != "missing identifier" {
		t.Errorf("rejection reasons = %+v", res.Rejections)
	}

	rec := res.Records[0]
	if rec.ID != "121/000045" {
		t.Errorf("ID = %q", rec.ID)
	}
	if rec.PresentedAt != "2020-02-07" || rec.QualifiedAt != "2020-02-11" {
		t.Errorf("dates = %q, %q", rec.PresentedAt, rec.QualifiedAt)
	}
	if got := strings.Join(rec.Related, " "); got != "121/000046 121/000047 121/000048" {
		t.Errorf("Related = %v", rec.Related)
	}
	if len(rec.Origin) != 1 || rec.Origin[0] != "622/000001" {
		t.Errorf("Origin = %v", rec.Origin)
	}
	if rec.Source != "iniciativas.xml" {
		t.Errorf("Source = %q", rec.Source)
	}
	if len(rec.Timeline) != 2 {
		t.Fatalf("timeline = %+v, want 2 events", rec.Timeline)
	}
	if rec.Timeline[1].Event != "Enmiendas" || rec.Timeline[1].EndDate != "2020-02-25" {
		t.Errorf("timeline[1] = %+v", rec.Timeline[1])
	}
}

func TestExtract_AlternateRootShapes(t *testing.T) {
	docs := map[string]string{
		"iniciativas": `<iniciativas><iniciativa><EXPEDIENTE>121/1</EXPEDIENTE><TITULO>Ley A</TITULO></iniciativa></iniciativas>`,
		"data":        `<data><item><NUMEXPEDIENTE>121/1</NUMEXPEDIENTE><OBJETO>Ley A</OBJETO></item></data>`,
		"nested":      `<response><results><result><NUMEXPEDIENTE>121/1</NUMEXPEDIENTE><OBJETO>Ley A</OBJETO></result></results></response>`,
		"fallback":    `<export><registro><NUMEXPEDIENTE>121/1</NUMEXPEDIENTE><OBJETO>Ley A</OBJETO></registro></export>`,
	}
	ex := New(Config{}, nil)
	for name, doc := range docs {
		res, err := ex.Extract(name, []byte(doc))
		if err != nil {
			t.Errorf("%s: Extract: %v", name, err)
			continue
		}
		if len(res.Records) != 1 || res.Records[0].ID != "121/1" || res.Records[0].Subject != "Ley A" {
			t.Errorf("%s: records = %+v", name, res.Records)
		}
	}
}

func TestExtract_FirstMatchingPathWins(t *testing.T) {
	doc := `<results><result><NUMEXPEDIENTE>1</NUMEXPEDIENTE><OBJETO>A</OBJETO></result><other/></results>`
	res, err := New(Config{}, nil).Extract("doc", []byte(doc))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if strings.Join(res.Path, "/") != "results/result" {
		t.Errorf("path = %v", res.Path)
	}
}

func TestExtract_TooLarge(t *testing.T) {
	ex := New(Config{MaxDocumentBytes: 10}, nil)
	_, err := ex.Extract("big.xml", []byte(congressXML))
	if !errors.Is(err, apperr.ErrDocumentTooLarge) {
		t.Fatalf("err = %v, want ErrDocumentTooLarge", err)
	}
}

func TestExtract_NoEntries(t *testing.T) {
	_, err := New(Config{}, nil).Extract("empty.xml", []byte(`<results></results>`))
	if !errors.Is(err, apperr.ErrNoEntries) {
		t.Fatalf("err = %v, want ErrNoEntries", err)
	}
}

func TestExtract_Malformed(t *testing.T) {
	_, err := New(Config{}, nil).Extract("bad.xml", []byte(`not xml at all`))
	if err == nil {
		t.Fatal("expected error for document without elements")
	}
}

func TestExtract_Latin1(t *testing.T) {
	doc := append([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?><results><result><NUMEXPEDIENTE>1</NUMEXPEDIENTE><OBJETO>Protecci`),
		0xF3)
	doc = append(doc, []byte(`n</OBJETO></result></results>`)...)
	res, err := New(Config{}, nil).Extract("latin1.xml", doc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Records[0].Subject != "Protección" {
		t.Errorf("Subject = %q", res.Records[0].Subject)
	}
}

func TestSplitReferences(t *testing.T) {
	got := SplitReferences(" 121/1,121/2;\n(121/3)  121/1 ")
	want := []string{"121/1", "121/2", "121/3"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("SplitReferences = %v, want %v", got, want)
	}
	if got := SplitReferences(""); len(got) != 0 {
		t.Errorf("empty input = %v", got)
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct{ in, want string }{
		{"07/02/2020", "2020-02-07"},
		{"7/2/2020", "2020-02-07"},
		{"2020-02-07", "2020-02-07"},
		{"", ""},
		{"sin fecha", "sin fecha"},
	}
	for _, tt := range tests {
		if got := NormalizeDate(tt.in); got != tt.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
