// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes readmore tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/readmore/internal/apperr"
	"github.com/starford/readmore/internal/models"
	"github.com/starford/readmore/internal/postservice"
)

// DefaultScanPages caps the scan pages a single find_marked_posts call
// fetches.
const DefaultScanPages = 10

// BlockFormatURI is the resource URI of the block format contract.
const BlockFormatURI = "readmore://block-format"

// Server wraps the MCP server with readmore tools.
type Server struct {
	mcp *server.MCPServer
	svc *postservice.Service
}

// New creates a new MCP server with all readmore tools registered.
func New(svc *postservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"readmore",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_posts",
		mcp.WithDescription("Search published posts by title and content. "+
			"An all-digit query also looks up the post with that ID."),
		mcp.WithString("query", mcp.Description("Search term (empty lists the newest posts)")),
		mcp.WithNumber("page", mcp.Description("Page number, 1-based")),
		mcp.WithNumber("current", mcp.Description("ID of the post being edited; never returned")),
	), s.searchPosts)

	s.mcp.AddTool(mcp.NewTool("get_post",
		mcp.WithDescription("Read a post by ID."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Post ID")),
	), s.getPost)

	s.mcp.AddTool(mcp.NewTool("render_read_more",
		mcp.WithDescription("Render the read-more link block for a post."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Post ID")),
	), s.renderReadMore)

	s.mcp.AddTool(mcp.NewTool("find_marked_posts",
		mcp.WithDescription("List the IDs of published posts that embed the read-more block. "+
			"Dates use YYYY-MM-DD; the default range is the last 30 days. "+
			"Results are paged: when next_page is set, call again with start_page = next_page."),
		mcp.WithString("before", mcp.Description("Upper date bound, inclusive")),
		mcp.WithString("after", mcp.Description("Lower date bound, inclusive")),
		mcp.WithNumber("start_page", mcp.Description("Resume the scan from this page")),
		mcp.WithNumber("max_pages", mcp.Description("Pages to fetch in this call, at most 10")),
	), s.findMarkedPosts)

	s.mcp.AddTool(mcp.NewTool("get_block_contract",
		mcp.WithDescription("Returns the read-more block markup and content file format."),
	), s.getBlockContract)

	s.mcp.AddResource(
		mcp.NewResource(BlockFormatURI, "Read More Block Format",
			mcp.WithResourceDescription("Markup of the read-more block and the content file format."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readBlockFormatResource,
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

func (s *Server) searchPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Search(ctx,
		req.GetString("query", ""),
		req.GetInt("page", 1),
		int64(req.GetInt("current", 0)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) getPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.GetPost(ctx, int64(id))
	if err != nil {
		return toolError(id, err), nil
	}
	return jsonResult(p)
}

func (s *Server) renderReadMore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Select(ctx, int64(id), models.Selection{})
	if err != nil {
		return toolError(id, err), nil
	}
	return mcp.NewToolResultText(res.HTML), nil
}

// markedPosts is one bounded slice of a marker scan. NextPage is set when
// more pages remain; pass it back as start_page to continue.
type markedPosts struct {
	Range    string  `json:"range"`
	IDs      []int64 `json:"ids"`
	Pages    int     `json:"pages"`
	LastPage int     `json:"last_page"`
	NextPage int     `json:"next_page,omitempty"`
}

func (s *Server) findMarkedPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	maxPages := req.GetInt("max_pages", DefaultScanPages)
	if maxPages < 1 || maxPages > DefaultScanPages {
		maxPages = DefaultScanPages
	}

	var ids []int64
	report, err := s.svc.Scan(ctx, postservice.ScanRequest{
		Before:    req.GetString("before", ""),
		After:     req.GetString("after", ""),
		StartPage: req.GetInt("start_page", 1),
		MaxPages:  maxPages,
	}, func(id int64) error {
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(ids) == 0 {
		return mcp.NewToolResultText(postservice.NoMatchesMessage + " (" + report.Range.String() + ")"), nil
	}
	return jsonResult(markedPosts{
		Range:    report.Range.String(),
		IDs:      ids,
		Pages:    report.Result.Pages,
		LastPage: report.Result.LastPage,
		NextPage: report.Result.NextPage,
	})
}

func (s *Server) getBlockContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(BlockFormatContract), nil
}

func (s *Server) readBlockFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      BlockFormatURI,
			MIMEType: "text/markdown",
			Text:     BlockFormatContract,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func toolError(id int, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("post not found: %d", id))
	}
	return mcp.NewToolResultError(err.Error())
}
