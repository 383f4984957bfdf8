// Package servecmder provides the serve command that runs the memory API.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sumrendra/memory-api/api"
	"github.com/sumrendra/memory-api/pkg/config"
	"github.com/sumrendra/memory-api/pkg/logger"
)

type serveCommander struct {
	configDir string
	debug     bool
	noMCP     bool
	logJSON   bool

	listen            string
	storageProvider   string
	databaseURL       string
	sqlitePath        string
	schema            string
	table             string
	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string
	embeddingDims     uint
	chunkSize         uint
	chunkOverlap      uint
	eventsProvider    string
	eventsTopic       string

	viper  *viper.Viper
	logger *zap.Logger
}

var serveFlags = config.FlagSet{
	config.FlagListen:          {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	config.FlagStorageProvider: {Name: "storage-provider", ViperKey: "storage.provider", Description: "Chunk store (postgres, sqlite, qdrant, memory); empty picks postgres when a database URL is set"},
	config.FlagDatabaseURL:     {Name: "database-url", ViperKey: "storage.url", Description: "PostgreSQL connection URL, or the Qdrant gRPC URL for the qdrant provider"},
	config.FlagSQLite:          {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite database (default: memory.db in the config dir)"},
	config.FlagSchema:          {Name: "schema", ViperKey: "storage.schema", Description: "PostgreSQL schema holding the chunk table"},
	config.FlagTable:           {Name: "table", ViperKey: "storage.table", Description: "Chunk table name"},
	config.FlagEmbeddingProv:   {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (huggingface, ollama, openai)"},
	config.FlagEmbeddingTgt:    {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider URL (default: provider specific)"},
	config.FlagEmbeddingModel:  {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name (default: provider specific)"},
	config.FlagEmbeddingDims:   {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Configured embedding dimensionality"},
	config.FlagChunkSize:       {Name: "chunk-size", ViperKey: "chunking.size", Description: "Maximum chunk length in characters"},
	config.FlagChunkOverlap:    {Name: "chunk-overlap", ViperKey: "chunking.overlap", Description: "Characters shared by consecutive chunks"},
	config.FlagEventsProvider:  {Name: "events-provider", ViperKey: "events.provider", Description: "Document event publisher (nop, kafka)"},
	config.FlagEventsTopic:     {Name: "events-topic", ViperKey: "events.topic", Description: "Kafka topic for document events"},
}

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagStorageProvider,
	config.FlagDatabaseURL,
	config.FlagSQLite,
	config.FlagSchema,
	config.FlagTable,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagChunkSize,
	config.FlagChunkOverlap,
	config.FlagEventsProvider,
	config.FlagEventsTopic,
}

const serveLongDesc string = `Run the memory API server.

The server chunks, embeds and stores documents and answers similarity
queries over them. It exposes:
  GET    /health           liveness
  GET    /ready            chunk store reachability
  GET    /config           configuration and embedding dimension report
  POST   /memory/store     store or replace a document
  POST   /memory/search    similarity search
  DELETE /memory/:doc_id   remove a document
  /mcp                     MCP tools (store_memory, recall_memory, check_memory_api_status)

Settings come from flags, MEMORYAPI_* environment variables, the config file
and defaults, in that order.

Examples:
  memoryapi serve --database-url postgres://localhost:5432/rag
  memoryapi serve --storage-provider sqlite --embedding-provider ollama
  memoryapi serve --storage-provider qdrant --database-url http://localhost:6334
  memoryapi serve --storage-provider memory --embedding-dimensions 384`

const serveShortDesc string = "Run the memory API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context(), config.FromViper(cmder.viper))
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagStorageProvider, &cmder.storageProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagDatabaseURL, &cmder.databaseURL)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagSchema, &cmder.schema)
	config.AddStringFlag(cmd, serveFlags, config.FlagTable, &cmder.table)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, serveFlags, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddUintFlag(cmd, serveFlags, config.FlagChunkSize, &cmder.chunkSize)
	config.AddUintFlag(cmd, serveFlags, config.FlagChunkOverlap, &cmder.chunkOverlap)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsTopic, &cmder.eventsTopic)
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Do not mount the MCP server at /mcp")
	cmd.Flags().BoolVar(&cmder.logJSON, "log-json", false, "Write logs as JSON lines")

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cfg *config.Config) error {
	if c.logJSON {
		c.logger = logger.NewJSONLogger(c.debug, os.Stdout)
	} else {
		c.logger = logger.NewLogger(c.debug)
	}
	defer func() { _ = c.logger.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg, appOptions{
		configDir: c.configDir,
		noMCP:     c.noMCP,
		logger:    c.logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			c.logger.Warn("closing resources", zap.Error(err))
		}
	}()

	a.checkDimensions(ctx)

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := a.server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errChan:
		return err
	case <-sigCtx.Done():
		c.logger.Info("received signal, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// newServer is split out so the wiring can be exercised without listening.
func newServer(cfg *config.Config, a *app) (*api.Server, error) {
	apiConfig := api.Config{
		ListenAddr: cfg.ListenAddr(),
	}
	if a.mcp != nil {
		apiConfig.MCPHandler = a.mcp.Handler()
	}
	return api.NewServer(apiConfig, a.service, a.logger)
}
