package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/tramite/internal/models"
	"github.com/starford/tramite/internal/recordservice"
)

const maxUploadBytes = 64 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *recordservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *recordservice.Service) *Handler {
	return &Handler{svc: svc}
}

// recordPath extracts everything after /api/records/. Encoded slashes
// (121%2F000001) are accepted from OpenAPI clients.
func recordPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListRecords handles GET /api/records.
//
//	@Summary		List records with optional pagination and stage filter
//	@Tags			records
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			stage	query		string	false	"Filter by stage"	Enums(proposed, debating, committee, voting, passed, published, rejected, withdrawn, closed)
//	@Success		200		{object}	RecordListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records [get]
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListRecords(r.Context(), limit, offset, q.Get("stage"))
	if err != nil {
		writeError(w, "list records", err)
		return
	}
	if items == nil {
		items = []RecordListItem{}
	}
	writeJSON(w, http.StatusOK, RecordListResponse{Records: items, Total: total})
}

// RecordResource handles GET /api/records/*, dispatching the /history and
// /edges sub-resources.
func (h *Handler) RecordResource(w http.ResponseWriter, r *http.Request) {
	p := recordPath(r)
	switch {
	case strings.HasSuffix(p, "/history"):
		h.getHistory(w, r, strings.TrimSuffix(p, "/history"))
	case strings.HasSuffix(p, "/edges"):
		h.getRelations(w, r, strings.TrimSuffix(p, "/edges"))
	default:
		h.getRecord(w, r, p)
	}
}

// getRecord handles GET /api/records/{id}.
//
//	@Summary		Get a single record by identifier
//	@Tags			records
//	@Produce		json
//	@Param			id	path		string	true	"Record identifier"
//	@Success		200	{object}	RecordDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{id} [get]
func (h *Handler) getRecord(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	rec, err := h.svc.GetRecord(r.Context(), id)
	if err != nil {
		writeError(w, "get record", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// getHistory handles GET /api/records/{id}/history.
//
//	@Summary		Stage transitions of a record, oldest first
//	@Tags			records
//	@Produce		json
//	@Param			id	path		string	true	"Record identifier"
//	@Success		200	{object}	HistoryResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{id}/history [get]
func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request, id string) {
	hist, err := h.svc.History(r.Context(), id)
	if err != nil {
		writeError(w, "stage history", err, slog.String("id", id))
		return
	}
	if hist == nil {
		hist = []models.StageHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{ID: id, History: hist})
}

// getRelations handles GET /api/records/{id}/edges.
//
//	@Summary		Direct and similarity edges touching a record
//	@Tags			records
//	@Produce		json
//	@Param			id	path		string	true	"Record identifier"
//	@Success		200	{object}	RelationsResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{id}/edges [get]
func (h *Handler) getRelations(w http.ResponseWriter, r *http.Request, id string) {
	rel, err := h.svc.Relations(r.Context(), id)
	if err != nil {
		writeError(w, "relations", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across record subjects and status text
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the relationship graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.svc.Graph(r.Context())
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: nodes, Links: links})
}

// RunBatch handles POST /api/batch.
//
//	@Summary		Run the pipeline over the documents directory
//	@Tags			batch
//	@Produce		json
//	@Success		200	{object}	pipeline.Report
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/batch [post]
func (h *Handler) RunBatch(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.RunBatch(r.Context())
	if err != nil {
		writeError(w, "batch", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// UploadDocument handles POST /api/documents (multipart/form-data, field "file").
//
//	@Summary		Upload an XML export into the documents directory
//	@Tags			documents
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"XML export"
//	@Success		201		{object}	DocumentUploadResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}
	info, err := h.svc.UploadDocument(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, "upload document", err, slog.String("name", header.Filename))
		return
	}
	writeJSON(w, http.StatusCreated, info)
}
