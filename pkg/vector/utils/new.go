package vectorutils

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sumrendra/memory-api/pkg/vector"
	"github.com/sumrendra/memory-api/pkg/vector/inmemory"
	"github.com/sumrendra/memory-api/pkg/vector/postgres"
	"github.com/sumrendra/memory-api/pkg/vector/qdrant"
	"github.com/sumrendra/memory-api/pkg/vector/sqlitevec"
)

const (
	ProviderPostgres = "postgres"
	ProviderSQLite   = "sqlite"
	ProviderMemory   = "memory"
	ProviderQdrant   = "qdrant"
)

type NewVectorDriverOpts struct {
	ProviderType string
	TargetURL    string
	SQLitePath   string
	Schema       string
	Table        string
	Dimensions   uint
	AutoMigrate  bool
	StrictDelete bool
	Logger       *zap.Logger
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case ProviderPostgres:
		return postgres.NewDriver(ctx, postgres.Config{
			ConnString:   o.TargetURL,
			Schema:       o.Schema,
			Table:        o.Table,
			Dimensions:   o.Dimensions,
			AutoMigrate:  o.AutoMigrate,
			StrictDelete: o.StrictDelete,
		}, o.Logger)
	case ProviderSQLite:
		return sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{
			DBPath:       o.SQLitePath,
			Dimensions:   o.Dimensions,
			Table:        o.Table,
			StrictDelete: o.StrictDelete,
		}, o.Logger)
	case ProviderQdrant:
		return qdrant.NewDriver(ctx, qdrant.Config{
			URL:          o.TargetURL,
			Collection:   o.Table,
			Dimensions:   o.Dimensions,
			AutoMigrate:  o.AutoMigrate,
			StrictDelete: o.StrictDelete,
		}, o.Logger)
	case ProviderMemory:
		return inmemory.NewDriver(inmemory.Config{
			Dimensions: int(o.Dimensions),
		}, o.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
