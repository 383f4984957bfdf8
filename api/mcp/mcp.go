// Package mcp provides an MCP (Model Context Protocol) server exposing the
// memory service as tools.
package mcp

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/sumrendra/memory-api/pkg/memory"
	"github.com/sumrendra/memory-api/pkg/utils"
)

// Memory is the subset of the memory service the tools call.
type Memory interface {
	Store(ctx context.Context, req memory.StoreRequest) (*memory.StoreResult, error)
	Search(ctx context.Context, req memory.SearchRequest) (*memory.SearchResult, error)
	Config(ctx context.Context) (*memory.ConfigReport, error)
	Health(ctx context.Context) error
}

var _ Memory = (*memory.Service)(nil)

type Config struct {
	// Memory stores and recalls documents
	Memory Memory

	// Logger is the configured zap logger
	Logger *zap.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the memory tools.
func NewServer(c Config) (*Server, error) {
	if c.Memory == nil {
		return nil, errors.New("memory service is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "memoryapi",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        storeToolName,
		Description: storeDescription,
	}, s.handleStore)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        recallToolName,
		Description: recallDescription,
	}, s.handleRecall)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        statusToolName,
		Description: statusDescription,
	}, s.handleStatus)

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
