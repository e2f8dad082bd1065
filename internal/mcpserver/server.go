// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the note engine to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/avhall/notarius/internal/library"
	"github.com/avhall/notarius/internal/models"
	"github.com/avhall/notarius/internal/search"
)

// Server wraps the MCP server with notarius tools.
type Server struct {
	mcp  *server.MCPServer
	svc  *library.Service
	orch *search.Orchestrator
}

// New creates an MCP server with all tools registered.
func New(svc *library.Service, orch *search.Orchestrator) *Server {
	s := &Server{svc: svc, orch: orch}

	s.mcp = server.NewMCPServer(
		"notarius",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search notes by free text. Every whitespace-separated term must match the note's name or content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("category", mcp.Description("Scope: 'all' (default) or 'trash'")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of the note")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note in a project. Content is Markdown; a leading H1 or a YAML frontmatter title becomes the note title."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project id (see list_projects)")),
		mcp.WithString("name", mcp.Required(), mcp.Description("File name for the new note (md, markdown, or txt)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note content")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List registered projects with their ids, labels, and flags."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("pin_note",
		mcp.WithDescription("Pin or unpin a note. Pinned notes sort ahead of unpinned ones."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of the note")),
		mcp.WithBoolean("pinned", mcp.Description("true to pin (default), false to unpin")),
	), s.pinNote)

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

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	scope := models.Scope{Category: models.CategoryAll}
	if req.GetString("category", "all") == "trash" {
		scope.Category = models.CategoryTrash
	}
	notes, cancelled, err := s.orch.Search(ctx, query, scope, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if cancelled {
		return mcp.NewToolResultError("search superseded by a newer request"), nil
	}
	type hit struct {
		Path  string `json:"path"`
		Title string `json:"title"`
	}
	hits := make([]hit, len(notes))
	for i, n := range notes {
		hits[i] = hit{Path: n.URL, Title: n.DisplayTitle()}
	}
	out, _ := json.MarshalIndent(hits, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n := s.svc.Index().ByPath(path)
	if n == nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(n.Body()), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectArg, err := req.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var id int
	if _, scanErr := fmt.Sscanf(projectArg, "%d", &id); scanErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid project id: %s", projectArg)), nil
	}
	n, err := s.svc.CreateNote(models.ProjectID(id), name, []byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.orch.Refresh()
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", n.URL)), nil
}

func (s *Server) listProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var lines []string
	for _, p := range s.svc.Registry().All() {
		flags := ""
		if p.IsDefault {
			flags += " default"
		}
		if p.IsTrash {
			flags += " trash"
		}
		lines = append(lines, fmt.Sprintf("%d\t%s\t%s%s", p.ID, p.Label, p.URL, flags))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no projects registered"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) pinNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pinned := req.GetBool("pinned", true)
	if err := s.svc.SetPinned(path, pinned); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.orch.Refresh()
	state := "pinned"
	if !pinned {
		state = "unpinned"
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", state, path)), nil
}
