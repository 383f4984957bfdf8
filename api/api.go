package api

import (
	"context"
	"errors"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sumrendra/memory-api/pkg/memory"
)

// Memory is the service the API exposes.
type Memory interface {
	Store(ctx context.Context, req memory.StoreRequest) (*memory.StoreResult, error)
	Search(ctx context.Context, req memory.SearchRequest) (*memory.SearchResult, error)
	Delete(ctx context.Context, docID string) (*memory.DeleteResult, error)
	Config(ctx context.Context) (*memory.ConfigReport, error)
	Health(ctx context.Context) error
	Ready(ctx context.Context) error
}

var _ Memory = (*memory.Service)(nil)

// Server is the API server for the memory service.
type Server struct {
	config Config
	memory Memory
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server around an already built memory service.
func NewServer(config Config, mem Memory, logger *zap.Logger) (*Server, error) {
	if mem == nil {
		return nil, errors.New("memory service is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          fiberErrorHandler,
	})

	s := &Server{
		config: config,
		memory: mem,
		logger: logger,
		app:    app,
	}

	app.Use(s.requestLogger)

	app.Get("/health", s.handleHealth)
	app.Get("/ready", s.handleReady)
	app.Get("/config", s.handleConfig)

	app.Post("/memory/store", s.handleStore)
	app.Post("/memory/search", s.handleSearch)
	app.Delete("/memory/:doc_id", s.handleDelete)

	if config.MCPHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
		zap.Bool("mcp", s.config.MCPHandler != nil),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// ShutdownWithContext shuts down the API server, giving up when ctx ends.
func (s *Server) ShutdownWithContext(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
