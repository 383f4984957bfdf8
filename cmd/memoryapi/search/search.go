// Package searchcmder provides the search command for similarity search over
// stored documents.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sumrendra/memory-api/cmd/memoryapi/apitarget"
	"github.com/sumrendra/memory-api/pkg/cliui"
	"github.com/sumrendra/memory-api/pkg/logger"
	"github.com/sumrendra/memory-api/pkg/memory"
)

type searchCommander struct {
	query  string
	topK   int
	docID  string
	filter map[string]string
	json   bool

	apiTarget string

	debug  bool
	logger *zap.Logger
}

const searchLongDesc string = `Search stored documents via the memoryapi server.

Embeds the query and returns the closest chunks, most similar first.
Results can be restricted to one document with --doc-id and to chunks
whose metadata matches every --filter key=value pair.

Example:
  memoryapi search "which port does staging postgres use"
  memoryapi search "deploy steps" --top 10 --filter team=infra
  memoryapi search "rollback" --doc-id runbook.md
  memoryapi search "rollback" --json | jq '.results[0].chunk'`

const searchShortDesc string = "Search stored documents"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return apitarget.Resolve(cmd, &cmder.apiTarget)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&cmder.topK, "top", "k", memory.DefaultTopK, "Number of results to return")
	cmd.Flags().StringVar(&cmder.docID, "doc-id", "", "Only search chunks of this document")
	cmd.Flags().StringToStringVar(&cmder.filter, "filter", nil, "Metadata filter as key=value (repeatable)")
	cmd.Flags().BoolVar(&cmder.json, "json", false, "Print the raw JSON response")
	apitarget.AddFlag(cmd, &cmder.apiTarget)

	return cmd
}

func (c *searchCommander) run(ctx context.Context, w io.Writer) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}

	cl, err := apitarget.NewClient(c.apiTarget)
	if err != nil {
		return err
	}

	var filter map[string]any
	if len(c.filter) > 0 {
		filter = make(map[string]any, len(c.filter))
		for k, v := range c.filter {
			filter[k] = v
		}
	}

	c.logger.Debug("searching",
		zap.String("api_target", c.apiTarget),
		zap.Int("top_k", c.topK),
		zap.String("doc_id", c.docID),
	)

	res, err := cl.Search(ctx, memory.SearchRequest{
		Query:  c.query,
		TopK:   c.topK,
		Filter: filter,
		DocID:  c.docID,
	})
	if err != nil {
		return err
	}

	if c.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if len(res.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	fmt.Fprintf(w, "\n%s %s\n\n",
		cliui.KeyStyle.Render("Results for:"),
		cliui.DimStyle.Render(fmt.Sprintf("%q", res.Query)),
	)
	for i, hit := range res.Results {
		fmt.Fprintln(w, cliui.RenderHit(i+1, hit.DocID, hit.Score, hit.Chunk))
	}

	return nil
}
