// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/sumrendra/memory-api/pkg/vector"
)

const defaultTable = "chunks"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteVecDriver implements vector.Driver using SQLite with sqlite-vec.
type SQLiteVecDriver struct {
	db           *sql.DB
	table        string
	dimensions   int
	strictDelete bool
	logger       *zap.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	// Used when the table is created. An existing table keeps the width it
	// was created with.
	Dimensions uint

	// Table is the chunk table name. Defaults to "chunks".
	Table string

	// StrictDelete fails an upsert when clearing the previous chunks of the
	// document fails, instead of logging and continuing with the insert.
	StrictDelete bool
}

var _ vector.Driver = (*SQLiteVecDriver)(nil)

// NewSQLiteVecDriver creates a new SQLite vector driver backed by sqlite-vec.
func NewSQLiteVecDriver(c Config, logger *zap.Logger) (*SQLiteVecDriver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, errors.New("database path is required")
	}

	if c.Dimensions == 0 {
		return nil, errors.New("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	table := c.Table
	if table == "" {
		table = defaultTable
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", vector.ErrStorageUnavailable, err)
	}

	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	d := &SQLiteVecDriver{
		db:           db,
		table:        table,
		strictDelete: c.StrictDelete,
		logger:       logger,
	}

	if err := d.migrate(int(c.Dimensions)); err != nil {
		db.Close()
		return nil, err
	}

	dims, err := d.Dimension(context.Background())
	if err != nil {
		db.Close()
		return nil, err
	}
	d.dimensions = dims

	logger.Info("sqlite-vec vector driver initialized",
		zap.String("db_path", c.DBPath),
		zap.String("table", table),
		zap.Int("dimensions", dims),
		zap.String("vec_version", vecVersion),
	)

	return d, nil
}

func (d *SQLiteVecDriver) migrate(dimensions int) error {
	stmts := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				doc_id TEXT NOT NULL,
				chunk TEXT NOT NULL,
				meta TEXT NOT NULL DEFAULT '{}',
				embedding BLOB NOT NULL
			)`, d.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_doc_id_idx ON %s(doc_id)`, d.table, d.table),

		// The vector width lives next to the table since a BLOB column
		// cannot declare it.
		`CREATE TABLE IF NOT EXISTS vec_schema (
			table_name TEXT PRIMARY KEY,
			dimensions INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	if _, err := d.db.Exec(
		`INSERT OR IGNORE INTO vec_schema(table_name, dimensions) VALUES (?, ?)`,
		d.table, dimensions,
	); err != nil {
		return fmt.Errorf("recording schema dimensions: %w", err)
	}
	return nil
}

// Upsert replaces every chunk of docID inside one transaction.
func (d *SQLiteVecDriver) Upsert(ctx context.Context, docID string, chunks []vector.Chunk) (int, error) {
	for i, c := range chunks {
		if len(c.Embedding) != d.dimensions {
			return 0, fmt.Errorf("%w: chunk %d has %d dimensions, want %d",
				vector.ErrWriteFailed, i, len(c.Embedding), d.dimensions)
		}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: beginning transaction: %w", vector.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	if err := d.clearDocument(ctx, tx, docID); err != nil {
		return 0, err
	}

	insert := fmt.Sprintf(`INSERT INTO %s(doc_id, chunk, meta, embedding) VALUES (?, ?, ?, ?)`, d.table)
	for i, c := range chunks {
		blob, err := sqlite_vec.SerializeFloat32(c.Embedding)
		if err != nil {
			return 0, fmt.Errorf("%w: serializing embedding for chunk %d: %w", vector.ErrWriteFailed, i, err)
		}
		meta, err := json.Marshal(c.Meta)
		if err != nil {
			return 0, fmt.Errorf("%w: encoding meta for chunk %d: %w", vector.ErrWriteFailed, i, err)
		}
		if _, err := tx.ExecContext(ctx, insert, docID, c.Text, string(meta), blob); err != nil {
			return 0, fmt.Errorf("%w: inserting chunk %d: %w", vector.ErrWriteFailed, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: committing transaction: %w", vector.ErrWriteFailed, err)
	}

	d.logger.Debug("upserted chunks in sqlite-vec",
		zap.String("doc_id", docID),
		zap.Int("count", len(chunks)),
	)

	return d.Count(ctx, docID)
}

// clearDocument deletes the previous chunks of docID under a savepoint so a
// failed delete can be undone without losing the transaction.
func (d *SQLiteVecDriver) clearDocument(ctx context.Context, tx *sql.Tx, docID string) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT clear_document"); err != nil {
		return fmt.Errorf("%w: creating savepoint: %w", vector.ErrWriteFailed, err)
	}

	del := fmt.Sprintf(`DELETE FROM %s WHERE doc_id = ?`, d.table)
	if _, err := tx.ExecContext(ctx, del, docID); err != nil {
		if d.strictDelete {
			return fmt.Errorf("%w: deleting previous chunks: %w", vector.ErrWriteFailed, err)
		}
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT clear_document"); rbErr != nil {
			return fmt.Errorf("%w: rolling back savepoint: %w", vector.ErrWriteFailed, rbErr)
		}
		d.logger.Warn("deleting previous chunks failed, inserting anyway",
			zap.String("doc_id", docID),
			zap.Error(err),
		)
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT clear_document"); err != nil {
		return fmt.Errorf("%w: releasing savepoint: %w", vector.ErrWriteFailed, err)
	}
	return nil
}

// Search ranks chunks by cosine distance computed with vec_distance_cosine.
func (d *SQLiteVecDriver) Search(ctx context.Context, q vector.Query) ([]vector.ScoredChunk, error) {
	if q.TopK <= 0 {
		return nil, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(q.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: serializing query embedding: %w", vector.ErrSearchFailed, err)
	}

	query := fmt.Sprintf(`
		SELECT id, doc_id, chunk, meta, vec_distance_cosine(embedding, ?) AS distance
		FROM %s`, d.table)
	args := []any{blob}
	if q.DocID != "" {
		query += ` WHERE doc_id = ?`
		args = append(args, q.DocID)
	}
	query += ` ORDER BY distance, id`

	// Metadata filters are applied while scanning, so the limit can only
	// be pushed down when there is no filter.
	if len(q.Filter) == 0 {
		query += ` LIMIT ?`
		args = append(args, q.TopK)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying vectors: %w", vector.ErrSearchFailed, err)
	}
	defer rows.Close()

	results := make([]vector.ScoredChunk, 0, q.TopK)
	for rows.Next() && len(results) < q.TopK {
		var (
			sc       vector.ScoredChunk
			metaJSON string
		)
		if err := rows.Scan(&sc.ID, &sc.DocID, &sc.Text, &metaJSON, &sc.Distance); err != nil {
			return nil, fmt.Errorf("%w: scanning query result: %w", vector.ErrSearchFailed, err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &sc.Meta); err != nil {
			return nil, fmt.Errorf("%w: decoding meta for chunk %d: %w", vector.ErrSearchFailed, sc.ID, err)
		}
		if !vector.MatchesFilter(sc.Meta, q.Filter) {
			continue
		}
		sc.Score = 1 - sc.Distance
		results = append(results, sc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating query results: %w", vector.ErrSearchFailed, err)
	}

	d.logger.Debug("queried sqlite-vec",
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Count returns the number of chunks stored for docID.
func (d *SQLiteVecDriver) Count(ctx context.Context, docID string) (int, error) {
	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE doc_id = ?`, d.table)
	if err := d.db.QueryRowContext(ctx, query, docID).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting chunks: %w", vector.ErrStorageUnavailable, err)
	}
	return n, nil
}

// Delete removes every chunk of docID.
func (d *SQLiteVecDriver) Delete(ctx context.Context, docID string) (int, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE doc_id = ?`, d.table)
	res, err := d.db.ExecContext(ctx, query, docID)
	if err != nil {
		return 0, fmt.Errorf("%w: deleting chunks: %w", vector.ErrWriteFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: reading affected rows: %w", vector.ErrWriteFailed, err)
	}
	return int(n), nil
}

// Dimension reads the embedding width recorded for the table.
func (d *SQLiteVecDriver) Dimension(ctx context.Context) (int, error) {
	var dims int
	err := d.db.QueryRowContext(ctx,
		`SELECT dimensions FROM vec_schema WHERE table_name = ?`, d.table,
	).Scan(&dims)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && dims <= 0) {
		return 0, vector.ErrIntrospectionUnavailable
	}
	if err != nil {
		return 0, fmt.Errorf("%w: reading schema dimensions: %w", vector.ErrStorageUnavailable, err)
	}
	return dims, nil
}

func (d *SQLiteVecDriver) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", vector.ErrStorageUnavailable, err)
	}
	return nil
}

// Close releases resources held by the driver.
func (d *SQLiteVecDriver) Close() error {
	return d.db.Close()
}
