// Package storecmder provides the store command that sends a document to a
// running memoryapi server.
package storecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sumrendra/memory-api/cmd/memoryapi/apitarget"
	"github.com/sumrendra/memory-api/pkg/cliui"
	"github.com/sumrendra/memory-api/pkg/logger"
	"github.com/sumrendra/memory-api/pkg/memory"
)

type storeCommander struct {
	docID string
	file  string
	meta  map[string]string
	quiet bool

	apiTarget string

	debug  bool
	logger *zap.Logger
}

const storeLongDesc string = `Store a document in a running memoryapi server.

The text is chunked, embedded and stored under --doc-id. Storing again
with the same doc_id replaces every chunk of the previous version.

The text comes from the first argument, from --file, or from stdin when
the argument is "-" or omitted. Without --doc-id, the file's base name is
used for --file input and a random UUID otherwise.

Metadata is attached to every chunk and can be used to filter searches.

Examples:
  memoryapi store "Postgres runs on port 5432 in staging" --doc-id staging-db
  memoryapi store --file notes/runbook.md --meta team=infra --meta kind=runbook
  cat design.md | memoryapi store --doc-id design -
  memoryapi store --file notes.txt --quiet`

const storeShortDesc string = "Store a document"

func NewStoreCmd() *cobra.Command {
	cmder := &storeCommander{}

	cmd := &cobra.Command{
		Use:   "store [text|-]",
		Short: storeShortDesc,
		Long:  storeLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return apitarget.Resolve(cmd, &cmder.apiTarget)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			text, err := cmder.readText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			return cmder.run(cmd.Context(), cmd.OutOrStdout(), text)
		},
	}

	cmd.Flags().StringVar(&cmder.docID, "doc-id", "", "Document ID (default: file name or a random UUID)")
	cmd.Flags().StringVarP(&cmder.file, "file", "f", "", "Read the document from a file")
	cmd.Flags().StringToStringVarP(&cmder.meta, "meta", "m", nil, "Metadata as key=value (repeatable)")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only the doc_id")
	apitarget.AddFlag(cmd, &cmder.apiTarget)

	return cmd
}

func (c *storeCommander) readText(stdin io.Reader, args []string) (string, error) {
	switch {
	case len(args) == 1 && args[0] != "-":
		if c.file != "" {
			return "", errors.New("pass either text or --file, not both")
		}
		return args[0], nil

	case c.file != "":
		data, err := os.ReadFile(c.file)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", c.file, err)
		}
		if c.docID == "" {
			c.docID = filepath.Base(c.file)
		}
		return string(data), nil

	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
}

func (c *storeCommander) run(ctx context.Context, w io.Writer, text string) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(text) == "" {
		return errors.New("nothing to store: text is empty")
	}
	if c.docID == "" {
		c.docID = uuid.NewString()
	}

	cl, err := apitarget.NewClient(c.apiTarget)
	if err != nil {
		return err
	}

	var meta map[string]any
	if len(c.meta) > 0 {
		meta = make(map[string]any, len(c.meta))
		for k, v := range c.meta {
			meta[k] = v
		}
	}

	c.logger.Debug("storing document",
		zap.String("api_target", c.apiTarget),
		zap.String("doc_id", c.docID),
		zap.Int("bytes", len(text)),
	)

	res, err := cl.Store(ctx, memory.StoreRequest{
		DocID: c.docID,
		Text:  text,
		Meta:  meta,
	})
	if err != nil {
		return err
	}

	if c.quiet {
		fmt.Fprintln(w, res.DocID)
		return nil
	}

	fmt.Fprintf(w, "  %s Stored %s %s\n",
		cliui.SuccessMark,
		cliui.DocStyle.Render(res.DocID),
		cliui.DimStyle.Render(fmt.Sprintf("(%d chunks)", res.ChunksInserted)),
	)
	return nil
}
