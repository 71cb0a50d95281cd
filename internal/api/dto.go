package api

import (
	"github.com/starford/tramite/internal/index"
	"github.com/starford/tramite/internal/models"
	"github.com/starford/tramite/internal/recordservice"
)

// RecordDetail is the full record response type (aliased from the domain layer).
type RecordDetail = models.Record

// RecordListItem is a lightweight item in a list response.
type RecordListItem = recordservice.RecordListItem

// RecordListResponse wraps paginated record listings.
type RecordListResponse struct {
	Records []RecordListItem `json:"records" validate:"required"`
	Total   int              `json:"total" example:"42" validate:"required"`
}

// HistoryResponse wraps the stage transitions of a record.
type HistoryResponse struct {
	ID      string                     `json:"id" example:"121/000001" validate:"required"`
	History []models.StageHistoryEntry `json:"history" validate:"required"`
}

// RelationsResponse lists the edges touching a record.
type RelationsResponse = recordservice.Relations

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// GraphResponse wraps the relationship graph.
type GraphResponse struct {
	Nodes []index.GraphNode `json:"nodes" validate:"required"`
	Links []index.GraphLink `json:"links" validate:"required"`
}

// DocumentUploadResponse is returned after a successful export upload.
type DocumentUploadResponse = recordservice.DocumentInfo
