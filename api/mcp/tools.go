package mcp

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/sumrendra/memory-api/pkg/memory"
)

var (
	storeToolName    = "store_memory"
	storeDescription = "Store information in long-term memory. The text is chunked and embedded for retrieval. Reusing a doc_id replaces the document's previous content."

	recallToolName    = "recall_memory"
	recallDescription = "Search and retrieve relevant memories for a query. Returns the most similar stored chunks."

	statusToolName    = "check_memory_api_status"
	statusDescription = "Check that the memory service is running and report its embedding configuration."
)

// StoreInput represents the input arguments for the store_memory tool.
type StoreInput struct {
	Text  string         `json:"text" jsonschema:"the text to store; any length, it is chunked automatically"`
	DocID string         `json:"doc_id,omitempty" jsonschema:"optional document id; generated when omitted, reuse it to replace content"`
	Meta  map[string]any `json:"meta,omitempty" jsonschema:"optional metadata stored with every chunk"`
}

// StoreOutput represents the output of the store_memory tool.
type StoreOutput struct {
	DocID          string `json:"doc_id"`
	ChunksInserted int    `json:"chunks_inserted"`
	Message        string `json:"message"`
}

// RecallInput represents the input arguments for the recall_memory tool.
type RecallInput struct {
	Query      string         `json:"query" jsonschema:"the search query"`
	TopK       int            `json:"top_k,omitempty" jsonschema:"number of results to return (default: 5)"`
	FilterMeta map[string]any `json:"filter_meta,omitempty" jsonschema:"only return chunks whose metadata contains these key/value pairs"`
	DocID      string         `json:"doc_id,omitempty" jsonschema:"only search within this document"`
}

// RecalledMemory is a single recalled chunk.
type RecalledMemory struct {
	ID             int64          `json:"id"`
	DocID          string         `json:"doc_id"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata"`
	RelevanceScore float64        `json:"relevance_score"`
}

// RecallOutput represents the output of the recall_memory tool.
type RecallOutput struct {
	Query        string           `json:"query"`
	TotalResults int              `json:"total_results"`
	Results      []RecalledMemory `json:"results"`
}

// StatusInput is empty; the status tool takes no arguments.
type StatusInput struct{}

// StatusOutput represents the output of the check_memory_api_status tool.
type StatusOutput struct {
	Status            string `json:"status"`
	EmbeddingProvider string `json:"embedding_provider"`
	EmbeddingModel    string `json:"embedding_model"`
	VectorDimension   int    `json:"vector_dimension"`
	DimensionsMatch   bool   `json:"dimensions_match"`
	Version           string `json:"version"`
}

func (s *Server) handleStore(ctx context.Context, _ *mcp.CallToolRequest, input StoreInput) (*mcp.CallToolResult, StoreOutput, error) {
	docID := input.DocID
	if docID == "" {
		docID = uuid.NewString()
	}

	s.config.Logger.Debug("MCP store request",
		zap.String("doc_id", docID),
		zap.Int("text_len", len(input.Text)),
	)

	result, err := s.config.Memory.Store(ctx, memory.StoreRequest{
		DocID: docID,
		Text:  input.Text,
		Meta:  input.Meta,
	})
	if err != nil {
		return toolError("Failed to store memory", err), StoreOutput{}, nil
	}

	return nil, StoreOutput{
		DocID:          result.DocID,
		ChunksInserted: result.ChunksInserted,
		Message:        fmt.Sprintf("Stored %d chunks for document %s", result.ChunksInserted, result.DocID),
	}, nil
}

func (s *Server) handleRecall(ctx context.Context, _ *mcp.CallToolRequest, input RecallInput) (*mcp.CallToolResult, RecallOutput, error) {
	topK := input.TopK
	if topK <= 0 {
		topK = memory.DefaultTopK
	}

	s.config.Logger.Debug("MCP recall request",
		zap.String("query", input.Query),
		zap.Int("topK", topK),
	)

	result, err := s.config.Memory.Search(ctx, memory.SearchRequest{
		Query:  input.Query,
		TopK:   topK,
		Filter: input.FilterMeta,
		DocID:  input.DocID,
	})
	if err != nil {
		return toolError("Failed to search memory", err), RecallOutput{}, nil
	}

	out := RecallOutput{
		Query:        result.Query,
		TotalResults: len(result.Results),
		Results:      make([]RecalledMemory, 0, len(result.Results)),
	}
	for _, hit := range result.Results {
		out.Results = append(out.Results, RecalledMemory{
			ID:             hit.ID,
			DocID:          hit.DocID,
			Content:        hit.Chunk,
			Metadata:       hit.Meta,
			RelevanceScore: math.Round(hit.Score*1000) / 1000,
		})
	}

	return nil, out, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	if err := s.config.Memory.Health(ctx); err != nil {
		return toolError("Memory service not healthy", err), StatusOutput{}, nil
	}

	report, err := s.config.Memory.Config(ctx)
	if err != nil {
		return toolError("Memory service not accessible", err), StatusOutput{}, nil
	}

	return nil, StatusOutput{
		Status:            "Memory service is running",
		EmbeddingProvider: report.EmbeddingProvider,
		EmbeddingModel:    report.EmbeddingModel,
		VectorDimension:   report.VectorDim.Configured,
		DimensionsMatch:   report.VectorDim.Match,
		Version:           report.Version,
	}, nil
}

// toolError reports err to the model as a tool error rather than a
// protocol error.
func toolError(msg string, err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%s: %v", msg, err)},
		},
	}
}
