// Package deletecmder provides the delete command that removes a stored
// document.
package deletecmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sumrendra/memory-api/cmd/memoryapi/apitarget"
	"github.com/sumrendra/memory-api/pkg/cliui"
)

type deleteCommander struct {
	docID     string
	apiTarget string
}

const deleteLongDesc string = `Delete every chunk stored under a doc_id.

Deleting a document that does not exist succeeds and reports zero chunks
unless the server runs with storage.strict_delete.

Examples:
  memoryapi delete staging-db
  memoryapi delete "meeting notes" --api-target http://memory.internal:8081`

const deleteShortDesc string = "Delete a stored document"

func NewDeleteCmd() *cobra.Command {
	cmder := &deleteCommander{}

	cmd := &cobra.Command{
		Use:   "delete <doc_id>",
		Short: deleteShortDesc,
		Long:  deleteLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return apitarget.Resolve(cmd, &cmder.apiTarget)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.docID = args[0]
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	apitarget.AddFlag(cmd, &cmder.apiTarget)

	return cmd
}

func (c *deleteCommander) run(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cl, err := apitarget.NewClient(c.apiTarget)
	if err != nil {
		return err
	}

	res, err := cl.Delete(ctx, c.docID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Deleted %s %s\n",
		cliui.SuccessMark,
		cliui.DocStyle.Render(res.DocID),
		cliui.DimStyle.Render(fmt.Sprintf("(%d chunks)", res.ChunksDeleted)),
	)
	return nil
}
