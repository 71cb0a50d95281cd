package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/tramite/internal/extract"
	"github.com/starford/tramite/internal/pipeline"
	"github.com/starford/tramite/internal/recordservice"
	"github.com/starford/tramite/internal/testutil"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// testEnv indexes the Congress fixture and returns a router over it plus
// the documents directory. An empty token means auth is disabled.
func testEnv(t *testing.T, authToken string) (http.Handler, string) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (http.Handler, string) {
	t.Helper()
	dir, docs := testutil.TestDocs(t, map[string]string{"congreso.xml": testutil.CongressXML})
	db := testutil.TestDB(t)

	batch := pipeline.New(docs, pipeline.Config{},
		pipeline.WithLogger(quiet),
		pipeline.WithSnapshotStore(db),
		pipeline.WithHistory(db),
	)
	if _, err := batch.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	svc := recordservice.NewService(db,
		recordservice.WithRunner(batch),
		recordservice.WithDocuments(docs, extract.New(extract.Config{}, quiet)),
	)
	return NewRouter(svc, authEnabled, token, sseHandler), dir
}

func do(router http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListRecords(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(router, http.MethodGet, "/records?limit=2")
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d, body = %s", w.Code, w.Body.String())
	}
	var resp RecordListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 4 || len(resp.Records) != 2 {
		t.Errorf("total = %d, page = %d", resp.Total, len(resp.Records))
	}

	w = do(router, http.MethodGet, "/records?stage=withdrawn")
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Records[0].ID != "122/000003" {
		t.Errorf("withdrawn = %+v", resp)
	}

	if w := do(router, http.MethodGet, "/records?stage=limbo"); w.Code != http.StatusBadRequest {
		t.Errorf("unknown stage = %d, want 400", w.Code)
	}
}

func TestGetRecord(t *testing.T) {
	router, _ := testEnv(t, "")

	for _, target := range []string{"/records/121/000001", "/records/121%2F000001"} {
		w := do(router, http.MethodGet, target)
		if w.Code != http.StatusOK {
			t.Fatalf("%s = %d", target, w.Code)
		}
		var rec RecordDetail
		_ = json.Unmarshal(w.Body.Bytes(), &rec)
		if rec.ID != "121/000001" || rec.Stage == "" || rec.StageReason == "" {
			t.Errorf("%s: record = %+v", target, rec)
		}
	}

	if w := do(router, http.MethodGet, "/records/999/000000"); w.Code != http.StatusNotFound {
		t.Errorf("missing record = %d, want 404", w.Code)
	}
}

func TestRecordHistory(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(router, http.MethodGet, "/records/122/000003/history")
	if w.Code != http.StatusOK {
		t.Fatalf("history = %d, body = %s", w.Code, w.Body.String())
	}
	var resp HistoryResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.ID != "122/000003" || len(resp.History) != 1 || resp.History[0].Stage != "withdrawn" {
		t.Errorf("history = %+v", resp)
	}

	if w := do(router, http.MethodGet, "/records/999/000000/history"); w.Code != http.StatusNotFound {
		t.Errorf("missing history = %d, want 404", w.Code)
	}
}

func TestRecordEdges(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(router, http.MethodGet, "/records/122/000002/edges")
	if w.Code != http.StatusOK {
		t.Fatalf("edges = %d", w.Code)
	}
	var rel RelationsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &rel)
	var fromClimate bool
	for _, e := range rel.Incoming {
		if e.Source == "121/000001" && e.Kind == "direct" {
			fromClimate = true
		}
	}
	if !fromClimate {
		t.Errorf("incoming = %+v, want direct edge from 121/000001", rel.Incoming)
	}
}

func TestSearchAndGraph(t *testing.T) {
	router, _ := testEnv(t, "")

	if w := do(router, http.MethodGet, "/search"); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
	w := do(router, http.MethodGet, "/search?q=pesca")
	var sr SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &sr)
	if w.Code != http.StatusOK || len(sr.Results) != 1 || sr.Results[0].ID != "162/000004" {
		t.Errorf("search = %d %+v", w.Code, sr)
	}

	w = do(router, http.MethodGet, "/graph")
	var g GraphResponse
	_ = json.Unmarshal(w.Body.Bytes(), &g)
	if len(g.Nodes) != 4 || len(g.Links) == 0 {
		t.Errorf("graph nodes = %d, links = %d", len(g.Nodes), len(g.Links))
	}
}

func TestRunBatch(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(router, http.MethodPost, "/batch")
	if w.Code != http.StatusOK {
		t.Fatalf("batch = %d, body = %s", w.Code, w.Body.String())
	}
	var rep pipeline.Report
	_ = json.Unmarshal(w.Body.Bytes(), &rep)
	if rep.Records != 4 || rep.StageChanges != 0 {
		t.Errorf("report records = %d, stage changes = %d", rep.Records, rep.StageChanges)
	}
}

func TestAuthMiddleware_TokenMode(t *testing.T) {
	router, _ := testEnv(t, "secret")

	if w := do(router, http.MethodGet, "/records"); w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/records", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/records", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router, _ := testEnv(t, "")
	if w := do(router, http.MethodGet, "/records"); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func blockingSSE() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router, _ := testEnvWithSSE(t, true, "secret", blockingSSE())
	if w := do(router, http.MethodGet, "/events"); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router, _ := testEnvWithSSE(t, true, "tok", blockingSSE())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d", w.Code)
	}
}

func uploadFile(t *testing.T, router http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadDocument(t *testing.T) {
	router, dir := testEnv(t, "")

	w := uploadFile(t, router, "segunda.xml", []byte(testutil.CongressXML))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var info DocumentUploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &info)
	if info.Path != "segunda.xml" || info.Entries != 4 {
		t.Errorf("info = %+v", info)
	}
	if _, err := os.Stat(filepath.Join(dir, "segunda.xml")); err != nil {
		t.Errorf("document not on disk: %v", err)
	}
}

func TestUploadDocument_Rejected(t *testing.T) {
	router, dir := testEnv(t, "")

	if w := uploadFile(t, router, "notas.txt", []byte(testutil.CongressXML)); w.Code != http.StatusBadRequest {
		t.Errorf("wrong extension = %d, want 400", w.Code)
	}
	if w := uploadFile(t, router, "vacio.xml", []byte("<root><a>1</a></root>")); w.Code != http.StatusBadRequest {
		t.Errorf("no entries = %d, want 400", w.Code)
	}
	if _, err := os.Stat(filepath.Join(dir, "vacio.xml")); err == nil {
		t.Error("rejected document was stored")
	}
}

func TestUploadDocument_MissingFileField(t *testing.T) {
	router, _ := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("wrong", "data")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}
}
