// Package mcpserver exposes stored classification results to AI agents over
// MCP: verdict lookup, disagreement listing, and the agreement summary.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/refjudge/refjudge/internal/classify"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server over one verdict store.
type Server struct {
	store *classify.Store
	mcp   *server.MCPServer
}

// NewServer creates an MCP server reading from the given store.
func NewServer(store *classify.Store) *Server {
	s := &Server{store: store}

	s.mcp = server.NewMCPServer(
		"refjudge",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(getCommitVerdictTool, s.handleGetCommitVerdict)
	s.mcp.AddTool(listDisagreementsTool, s.handleListDisagreements)
	s.mcp.AddTool(agreementSummaryTool, s.handleAgreementSummary)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
