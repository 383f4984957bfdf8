package servecmder

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sumrendra/memory-api/api"
	"github.com/sumrendra/memory-api/api/mcp"
	"github.com/sumrendra/memory-api/pkg/chunker"
	"github.com/sumrendra/memory-api/pkg/config"
	"github.com/sumrendra/memory-api/pkg/dotdir"
	"github.com/sumrendra/memory-api/pkg/embeddings"
	embeddingutils "github.com/sumrendra/memory-api/pkg/embeddings/utils"
	"github.com/sumrendra/memory-api/pkg/eventstream"
	"github.com/sumrendra/memory-api/pkg/eventstream/kafka"
	"github.com/sumrendra/memory-api/pkg/eventstream/nop"
	"github.com/sumrendra/memory-api/pkg/eventstream/worker"
	"github.com/sumrendra/memory-api/pkg/memory"
	"github.com/sumrendra/memory-api/pkg/vector"
	vectorutils "github.com/sumrendra/memory-api/pkg/vector/utils"
)

const (
	eventsProviderKafka = "kafka"
	eventsProviderNop   = "nop"
)

type appOptions struct {
	configDir string
	noMCP     bool
	logger    *zap.Logger
}

// app holds everything the server shares across requests.
type app struct {
	embedder  embeddings.Embedder
	driver    vector.Driver
	publisher eventstream.Publisher
	service   *memory.Service
	mcp       *mcp.Server
	server    *api.Server
	logger    *zap.Logger
}

// newApp builds the embedder, chunk store, event publisher and service from
// cfg. Resources already opened are released when a later step fails.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (_ *app, err error) {
	if opts.logger == nil {
		opts.logger = zap.NewNop()
	}
	a := &app{logger: opts.logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.embedder, err = embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       cfg.Embedding.APIKey,
		BatchSize:    int(cfg.Embedding.BatchSize),
		Timeout:      cfg.EmbeddingTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	provider := cfg.ResolvedStorageProvider()
	sqlitePath := cfg.Storage.SQLitePath
	if provider == vectorutils.ProviderSQLite && sqlitePath == "" {
		sqlitePath, err = dotdir.NewManager().Path(opts.configDir, config.DefaultSQLiteFile)
		if err != nil {
			return nil, fmt.Errorf("resolving sqlite path: %w", err)
		}
	}

	a.driver, err = vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: provider,
		TargetURL:    cfg.Storage.URL,
		SQLitePath:   sqlitePath,
		Schema:       cfg.Storage.Schema,
		Table:        cfg.Storage.Table,
		Dimensions:   cfg.Embedding.Dimensions,
		AutoMigrate:  cfg.Storage.AutoMigrate,
		StrictDelete: cfg.Storage.StrictDelete,
		Logger:       opts.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vector driver: %w", err)
	}

	a.publisher, err = newPublisher(cfg, opts.logger)
	if err != nil {
		return nil, err
	}

	a.service, err = memory.NewService(memory.Config{
		Embedder:  a.embedder,
		Driver:    a.driver,
		Publisher: a.publisher,
		Splitter: chunker.New(
			chunker.WithChunkSize(int(cfg.Chunking.Size)),
			chunker.WithOverlap(int(cfg.Chunking.Overlap)),
		),
		Dimensions: int(cfg.Embedding.Dimensions),
		Dedupe: memory.DedupeConfig{
			Enabled:   cfg.Dedupe.Enabled,
			Threshold: cfg.Dedupe.Threshold,
		},
		EmbeddingTimeout: cfg.EmbeddingTimeout(),
		StorageTimeout:   cfg.StorageTimeout(),
		Schema:           cfg.Storage.Schema,
		Table:            cfg.Storage.Table,
		Logger:           opts.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating memory service: %w", err)
	}

	if !opts.noMCP {
		a.mcp, err = mcp.NewServer(mcp.Config{
			Memory: a.service,
			Logger: opts.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating MCP server: %w", err)
		}
	}

	a.server, err = newServer(cfg, a)
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}

	opts.logger.Info("memory API configured",
		zap.String("listen", cfg.ListenAddr()),
		zap.String("storage_provider", provider),
		zap.String("embedding_provider", a.embedder.Provider()),
		zap.String("embedding_model", a.embedder.Model()),
		zap.Uint("dimensions", cfg.Embedding.Dimensions),
		zap.String("events_provider", cfg.Events.Provider),
		zap.Bool("mcp", a.mcp != nil),
	)

	return a, nil
}

// newPublisher returns the configured event publisher. Kafka delivery runs
// behind a worker pool so requests never wait on the broker.
func newPublisher(cfg *config.Config, logger *zap.Logger) (eventstream.Publisher, error) {
	switch cfg.Events.Provider {
	case "", eventsProviderNop:
		return nop.NewPublisher(), nil

	case eventsProviderKafka:
		kp, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Events.Brokers,
			Topic:   cfg.Events.Topic,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}

		pool, err := worker.NewPool(&worker.Config{
			Publisher: kp,
			Logger:    logger,
		})
		if err != nil {
			_ = kp.Close()
			return nil, fmt.Errorf("creating event worker pool: %w", err)
		}
		return pool, nil

	default:
		return nil, fmt.Errorf("unsupported events provider: %s", cfg.Events.Provider)
	}
}

// checkDimensions probes the embedding and storage widths once so a
// misconfiguration shows up in the startup log. Requests still validate on
// their own, so a failed probe here does not stop the server.
func (a *app) checkDimensions(ctx context.Context) {
	report, err := a.service.Config(ctx)
	if err != nil {
		a.logger.Warn("embedding dimension probe failed; requests will retry it", zap.Error(err))
		return
	}

	fields := []zap.Field{
		zap.Int("configured", report.VectorDim.Configured),
		zap.Int("embedding", report.VectorDim.Embedding),
	}
	if report.VectorDim.DB != nil {
		fields = append(fields, zap.Int("db", *report.VectorDim.DB))
	}

	if !report.VectorDim.Match {
		a.logger.Warn("embedding dimension mismatch; store and search will fail", fields...)
		return
	}
	a.logger.Info("embedding dimensions verified", fields...)
}

// Close releases the publisher, the driver and the embedder. The publisher
// goes first so queued events drain before the process exits.
func (a *app) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.driver != nil {
		errs = append(errs, a.driver.Close())
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	return errors.Join(errs...)
}
