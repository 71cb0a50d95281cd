// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the legislative record index to LLM clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/tramite/internal/apperr"
	"github.com/starford/tramite/internal/recordservice"
)

const contractURI = "tramite://record-format"

// Server wraps the MCP server with tramite tools.
type Server struct {
	mcp *server.MCPServer
	svc *recordservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *recordservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"tramite",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_records",
		mcp.WithDescription("Full-text search over record subjects and status text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchRecords)

	s.mcp.AddTool(mcp.NewTool("list_records",
		mcp.WithDescription("List records in snapshot order, optionally filtered by stage."),
		mcp.WithString("stage", mcp.Description("Stage filter"),
			mcp.Enum("proposed", "debating", "committee", "voting", "passed", "published", "rejected", "withdrawn", "closed")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
	), s.listRecords)

	s.mcp.AddTool(mcp.NewTool("get_record",
		mcp.WithDescription("Return the full JSON record for a docket identifier (e.g. 121/000001). "+
			"Read the record contract via get_record_contract or the "+contractURI+" resource."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Docket identifier")),
	), s.getRecord)

	s.mcp.AddTool(mcp.NewTool("get_stage_history",
		mcp.WithDescription("Stage transitions recorded for a record, oldest first."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Docket identifier")),
	), s.getStageHistory)

	s.mcp.AddTool(mcp.NewTool("get_relations",
		mcp.WithDescription("Direct cross-references and similarity edges touching a record."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Docket identifier")),
	), s.getRelations)

	s.mcp.AddTool(mcp.NewTool("get_record_contract",
		mcp.WithDescription("Returns the record output contract: fields, stages and edge kinds."),
	), s.getRecordContract)

	s.mcp.AddTool(mcp.NewTool("upload_document",
		mcp.WithDescription("Add an XML export to the documents directory. Accepts an http(s) URL "+
			"or a base64 data URI. The document must yield at least one valid record."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:application/xml;base64,... URI")),
		mcp.WithString("filename", mcp.Description("Target file name (must end with .xml)")),
	), s.uploadDocument)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Record Output Contract",
			mcp.WithResourceDescription("JSON shape of enriched legislative records."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(id string, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) searchRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) listRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.ListRecords(ctx, req.GetInt("limit", 50), req.GetInt("offset", 0), req.GetString("stage", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"records": items, "total": total})
}

func (s *Server) getRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.GetRecord(ctx, id)
	if err != nil {
		return errorResult(id, err), nil
	}
	return jsonResult(rec)
}

func (s *Server) getStageHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hist, err := s.svc.History(ctx, id)
	if err != nil {
		return errorResult(id, err), nil
	}
	if len(hist) == 0 {
		return mcp.NewToolResultText("no stage transitions recorded"), nil
	}
	return jsonResult(hist)
}

func (s *Server) getRelations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rel, err := s.svc.Relations(ctx, id)
	if err != nil {
		return errorResult(id, err), nil
	}
	return jsonResult(rel)
}

func (s *Server) getRecordContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordContract), nil
}

func (s *Server) readContractResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     RecordContract,
		},
	}, nil
}
