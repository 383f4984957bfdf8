// Package qdrant provides a vector driver backed by a Qdrant collection.
//
// Qdrant has no multi-statement transactions, so a document replace writes
// the new points first and then deletes the document's other points. A
// failed insert leaves the previous version in place. Writers in this
// process are serialized; readers may briefly see old and new chunks
// together between the two steps.
package qdrant

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	qc "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/sumrendra/memory-api/pkg/vector"
)

const (
	defaultCollection = "chunks"
	defaultPort       = 6334

	payloadDocID = "doc_id"
	payloadChunk = "chunk"
	payloadMeta  = "meta"

	// oversample widens the candidate set when part of a filter has to be
	// applied after the query.
	oversample   = 10
	maxCandidate = 1000
)

// Config holds configuration for the Qdrant driver.
type Config struct {
	// URL is the gRPC endpoint, e.g. http://localhost:6334. An https scheme
	// enables TLS and an api_key query parameter is sent as the API key.
	URL string

	// Collection is the collection name. Defaults to "chunks".
	Collection string

	// Dimensions is the vector size used when the collection is created.
	Dimensions uint

	// AutoMigrate creates the collection when it does not exist.
	AutoMigrate bool

	// StrictDelete fails an upsert when clearing the previous chunks of the
	// document fails, instead of logging and continuing with the insert.
	StrictDelete bool
}

// pointsClient is the part of *qc.Client the driver uses.
type pointsClient interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qc.CreateCollection) error
	DeleteCollection(ctx context.Context, collectionName string) error
	CreateFieldIndex(ctx context.Context, request *qc.CreateFieldIndexCollection) (*qc.UpdateResult, error)
	GetCollectionInfo(ctx context.Context, collectionName string) (*qc.CollectionInfo, error)
	Upsert(ctx context.Context, request *qc.UpsertPoints) (*qc.UpdateResult, error)
	Delete(ctx context.Context, request *qc.DeletePoints) (*qc.UpdateResult, error)
	Count(ctx context.Context, request *qc.CountPoints) (uint64, error)
	Query(ctx context.Context, request *qc.QueryPoints) ([]*qc.ScoredPoint, error)
	HealthCheck(ctx context.Context) (*qc.HealthCheckReply, error)
	Close() error
}

// Driver implements vector.Driver over a Qdrant collection.
type Driver struct {
	client       pointsClient
	collection   string
	strictDelete bool
	logger       *zap.Logger

	// writeMu serializes replaces so two stores of one doc_id cannot
	// interleave their delete and upsert.
	writeMu sync.Mutex
}

var (
	_ vector.Driver = (*Driver)(nil)
	_ pointsClient  = (*qc.Client)(nil)
)

// NewDriver connects to Qdrant and, when configured, creates the collection.
func NewDriver(ctx context.Context, c Config, logger *zap.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, errors.New("qdrant URL is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	qcfg, err := parseURL(c.URL)
	if err != nil {
		return nil, err
	}

	collection := c.Collection
	if collection == "" {
		collection = defaultCollection
	}

	client, err := qc.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("%w: creating qdrant client: %w", vector.ErrStorageUnavailable, err)
	}

	d := newDriver(client, collection, c.StrictDelete, logger)

	if c.AutoMigrate {
		if err := d.ensureCollection(ctx, c.Dimensions); err != nil {
			client.Close()
			return nil, err
		}
	}

	logger.Info("qdrant vector driver initialized",
		zap.String("host", qcfg.Host),
		zap.Int("port", qcfg.Port),
		zap.String("collection", collection),
	)

	return d, nil
}

func newDriver(client pointsClient, collection string, strictDelete bool, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		client:       client,
		collection:   collection,
		strictDelete: strictDelete,
		logger:       logger,
	}
}

// parseURL turns http(s)://host:port?api_key=... into a client config.
func parseURL(raw string) (*qc.Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant URL: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("invalid qdrant URL %q: missing host", raw)
	}

	port := defaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port %q: %w", p, err)
		}
	}

	return &qc.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: u.Query().Get("api_key"),
		UseTLS: u.Scheme == "https",
	}, nil
}

func (d *Driver) ensureCollection(ctx context.Context, dimensions uint) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection: %w", vector.ErrStorageUnavailable, err)
	}
	if exists {
		return nil
	}
	if dimensions == 0 {
		return errors.New("qdrant collection dimensions cannot be 0, must be configured")
	}

	err = d.client.CreateCollection(ctx, &qc.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
			Size:     uint64(dimensions),
			Distance: qc.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: creating collection %s: %w", vector.ErrStorageUnavailable, d.collection, err)
	}

	// Payload index keeps doc_id deletes and filters cheap.
	_, err = d.client.CreateFieldIndex(ctx, &qc.CreateFieldIndexCollection{
		CollectionName: d.collection,
		FieldName:      payloadDocID,
		FieldType:      qc.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		d.logger.Warn("creating doc_id payload index failed", zap.Error(err))
	}

	d.logger.Info("created qdrant collection",
		zap.String("collection", d.collection),
		zap.Uint("dimensions", dimensions),
	)
	return nil
}

// Upsert replaces every point of docID with chunks. The new points are
// written before the old ones are removed, so a failed write keeps the
// previous version.
func (d *Driver) Upsert(ctx context.Context, docID string, chunks []vector.Chunk) (int, error) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	points := make([]*qc.PointStruct, len(chunks))
	ids := make([]*qc.PointId, len(chunks))
	for i, c := range chunks {
		payload, err := qc.TryValueMap(map[string]any{
			payloadDocID: docID,
			payloadChunk: c.Text,
			payloadMeta:  toPayloadMeta(c.Meta),
		})
		if err != nil {
			return 0, fmt.Errorf("%w: encoding payload: %w", vector.ErrWriteFailed, err)
		}
		ids[i] = qc.NewIDNum(newPointID())
		points[i] = &qc.PointStruct{
			Id:      ids[i],
			Vectors: qc.NewVectors(c.Embedding...),
			Payload: payload,
		}
	}

	if len(points) > 0 {
		_, err := d.client.Upsert(ctx, &qc.UpsertPoints{
			CollectionName: d.collection,
			Wait:           qc.PtrOf(true),
			Points:         points,
		})
		if err != nil {
			return 0, fmt.Errorf("%w: upserting points: %w", vector.ErrWriteFailed, err)
		}
	}

	if err := d.deleteStale(ctx, docID, ids); err != nil {
		if d.strictDelete {
			if len(ids) > 0 {
				if rerr := d.deleteIDs(ctx, ids); rerr != nil {
					d.logger.Error("removing new chunks after failed replace failed",
						zap.String("doc_id", docID),
						zap.Error(rerr),
					)
				}
			}
			return 0, fmt.Errorf("%w: clearing previous chunks: %w", vector.ErrWriteFailed, err)
		}
		d.logger.Warn("clearing previous chunks failed, keeping them",
			zap.String("doc_id", docID),
			zap.Error(err),
		)
	}

	return d.Count(ctx, docID)
}

// Search returns the closest points. Filter values qdrant can match
// natively are pushed into the query; the rest are checked afterwards, paging
// through candidates until TopK matches are found or the collection runs out.
func (d *Driver) Search(ctx context.Context, q vector.Query) ([]vector.ScoredChunk, error) {
	if q.TopK <= 0 {
		return []vector.ScoredChunk{}, nil
	}

	filter, residual := buildFilter(q.DocID, q.Filter)

	pageSize := uint64(q.TopK)
	if len(residual) > 0 {
		pageSize = min(uint64(q.TopK*oversample), maxCandidate)
	}

	results := make([]vector.ScoredChunk, 0, q.TopK)
	for offset := uint64(0); ; offset += pageSize {
		points, err := d.client.Query(ctx, &qc.QueryPoints{
			CollectionName: d.collection,
			Query:          qc.NewQuery(q.Embedding...),
			Filter:         filter,
			Limit:          qc.PtrOf(pageSize),
			Offset:         qc.PtrOf(offset),
			WithPayload:    qc.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", vector.ErrSearchFailed, err)
		}

		for _, p := range points {
			chunk := fromPayload(p.GetPayload())
			chunk.ID = int64(p.GetId().GetNum())

			if len(residual) > 0 && !vector.MatchesFilter(chunk.Meta, residual) {
				continue
			}

			score := float64(p.GetScore())
			results = append(results, vector.ScoredChunk{
				Chunk:    chunk,
				Distance: 1 - score,
				Score:    score,
			})
			if len(results) == q.TopK {
				return results, nil
			}
		}

		if len(residual) == 0 || uint64(len(points)) < pageSize {
			return results, nil
		}
	}
}

// Count returns the number of points stored for docID.
func (d *Driver) Count(ctx context.Context, docID string) (int, error) {
	n, err := d.client.Count(ctx, &qc.CountPoints{
		CollectionName: d.collection,
		Filter:         docFilter(docID),
		Exact:          qc.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: counting points: %w", vector.ErrStorageUnavailable, err)
	}
	return int(n), nil
}

// Delete removes every point of docID.
func (d *Driver) Delete(ctx context.Context, docID string) (int, error) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	n, err := d.Count(ctx, docID)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	if err := d.deleteDoc(ctx, docID); err != nil {
		return 0, fmt.Errorf("%w: deleting document: %w", vector.ErrWriteFailed, err)
	}
	return n, nil
}

func (d *Driver) deleteDoc(ctx context.Context, docID string) error {
	return d.deleteStale(ctx, docID, nil)
}

// deleteStale removes the points of docID except keep.
func (d *Driver) deleteStale(ctx context.Context, docID string, keep []*qc.PointId) error {
	filter := docFilter(docID)
	if len(keep) > 0 {
		filter.MustNot = []*qc.Condition{qc.NewHasID(keep...)}
	}
	_, err := d.client.Delete(ctx, &qc.DeletePoints{
		CollectionName: d.collection,
		Wait:           qc.PtrOf(true),
		Points:         qc.NewPointsSelectorFilter(filter),
	})
	return err
}

func (d *Driver) deleteIDs(ctx context.Context, ids []*qc.PointId) error {
	_, err := d.client.Delete(ctx, &qc.DeletePoints{
		CollectionName: d.collection,
		Wait:           qc.PtrOf(true),
		Points:         qc.NewPointsSelectorFilter(&qc.Filter{Must: []*qc.Condition{qc.NewHasID(ids...)}}),
	})
	return err
}

// Dimension reports the vector size of the collection.
func (d *Driver) Dimension(ctx context.Context) (int, error) {
	info, err := d.client.GetCollectionInfo(ctx, d.collection)
	if err != nil {
		return 0, fmt.Errorf("%w: reading collection info: %w", vector.ErrStorageUnavailable, err)
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil || params.GetSize() == 0 {
		return 0, vector.ErrIntrospectionUnavailable
	}
	return int(params.GetSize()), nil
}

// Ping checks the server is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	if _, err := d.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: %w", vector.ErrStorageUnavailable, err)
	}
	return nil
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

func docFilter(docID string) *qc.Filter {
	return &qc.Filter{
		Must: []*qc.Condition{qc.NewMatch(payloadDocID, docID)},
	}
}

// buildFilter converts a metadata filter into qdrant conditions. Strings,
// booleans and whole numbers under plain keys match natively; everything
// else is returned as residual for post-filtering.
func buildFilter(docID string, filter map[string]any) (*qc.Filter, map[string]any) {
	var must []*qc.Condition
	if docID != "" {
		must = append(must, qc.NewMatch(payloadDocID, docID))
	}

	residual := map[string]any{}
	for k, v := range filter {
		if strings.ContainsAny(k, ".[]") {
			residual[k] = v
			continue
		}

		field := payloadMeta + "." + k
		switch val := v.(type) {
		case string:
			must = append(must, qc.NewMatch(field, val))
		case bool:
			must = append(must, qc.NewMatchBool(field, val))
		case int:
			must = append(must, qc.NewMatchInt(field, int64(val)))
		case int64:
			must = append(must, qc.NewMatchInt(field, val))
		case float64:
			if val == float64(int64(val)) {
				must = append(must, qc.NewMatchInt(field, int64(val)))
			} else {
				residual[k] = v
			}
		default:
			residual[k] = v
		}
	}

	if len(must) == 0 {
		return nil, residual
	}
	return &qc.Filter{Must: must}, residual
}

// toPayloadMeta normalizes meta to JSON-shaped values qdrant can encode.
func toPayloadMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return toPayloadMeta(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	case float32:
		return float64(val)
	case int32:
		return int64(val)
	default:
		return v
	}
}

func fromPayload(payload map[string]*qc.Value) vector.Chunk {
	chunk := vector.Chunk{
		DocID: payload[payloadDocID].GetStringValue(),
		Text:  payload[payloadChunk].GetStringValue(),
		Meta:  map[string]any{},
	}
	if meta, ok := fromValue(payload[payloadMeta]).(map[string]any); ok {
		chunk.Meta = meta
	}
	return chunk
}

// fromValue converts a payload value back to the shapes encoding/json
// produces, so filters compare the same way on every driver.
func fromValue(v *qc.Value) any {
	switch kind := v.GetKind().(type) {
	case *qc.Value_StringValue:
		return kind.StringValue
	case *qc.Value_BoolValue:
		return kind.BoolValue
	case *qc.Value_IntegerValue:
		return float64(kind.IntegerValue)
	case *qc.Value_DoubleValue:
		return kind.DoubleValue
	case *qc.Value_StructValue:
		out := make(map[string]any, len(kind.StructValue.GetFields()))
		for k, fv := range kind.StructValue.GetFields() {
			out[k] = fromValue(fv)
		}
		return out
	case *qc.Value_ListValue:
		values := kind.ListValue.GetValues()
		out := make([]any, len(values))
		for i, lv := range values {
			out[i] = fromValue(lv)
		}
		return out
	default:
		return nil
	}
}

// newPointID returns a random positive 63-bit id so it fits the int64
// chunk id exposed by the API.
func newPointID() uint64 {
	u := uuid.New()
	return binary.BigEndian.Uint64(u[:8]) &^ (1 << 63)
}
