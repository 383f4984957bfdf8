// Package statuscmder provides the status command that checks a running
// memoryapi server and reports its configuration.
package statuscmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sumrendra/memory-api/cmd/memoryapi/apitarget"
	"github.com/sumrendra/memory-api/pkg/cliui"
	"github.com/sumrendra/memory-api/pkg/memory"
)

// ErrUnhealthy is returned when any status check fails.
var ErrUnhealthy = errors.New("memoryapi server is not healthy")

type statusCommander struct {
	apiTarget string
}

const statusLongDesc string = `Check a running memoryapi server.

Runs the liveness, readiness and configuration checks and prints the
embedding provider, chunking settings and the configured, embedding and
stored vector widths. Exits non-zero when any check fails or the widths
disagree.

Examples:
  memoryapi status
  memoryapi status --api-target http://memory.internal:8081`

const statusShortDesc string = "Check a running memoryapi server"

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return apitarget.Resolve(cmd, &cmder.apiTarget)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	apitarget.AddFlag(cmd, &cmder.apiTarget)

	return cmd
}

func (c *statusCommander) run(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cl, err := apitarget.NewClient(c.apiTarget)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s %s\n\n", cliui.KeyStyle.Render("Server:"), cliui.DimStyle.Render(c.apiTarget))

	healthy := true
	check := func(msg string, fn func() error) {
		if err := cliui.Step(w, msg, fn); err != nil {
			healthy = false
			fmt.Fprintf(w, "    %s\n", cliui.DimStyle.Render(err.Error()))
		}
	}

	check("Liveness", func() error { return cl.Health(ctx) })
	check("Chunk store", func() error { return cl.Ready(ctx) })

	var report *memory.ConfigReport
	check("Embedding dimensions", func() error {
		var err error
		report, err = cl.Config(ctx)
		if err != nil {
			return err
		}
		if !report.VectorDim.Match {
			return fmt.Errorf("%w: %s", memory.ErrDimensionMismatch, describeDims(report.VectorDim))
		}
		return nil
	})

	if report != nil {
		printReport(w, report)
	}

	if !healthy {
		return ErrUnhealthy
	}
	return nil
}

func printReport(w io.Writer, r *memory.ConfigReport) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, cliui.KeyValue("Version", r.Version))
	fmt.Fprintln(w, cliui.KeyValue("Embedding provider", r.EmbeddingProvider))
	fmt.Fprintln(w, cliui.KeyValue("Embedding model", r.EmbeddingModel))
	fmt.Fprintln(w, cliui.KeyValue("Vector dimensions", describeDims(r.VectorDim)))
	fmt.Fprintln(w, cliui.KeyValue("Table", r.Schema+"."+r.Table))
	fmt.Fprintln(w, cliui.KeyValue("Chunking", fmt.Sprintf("%d chars, %d overlap", r.ChunkSize, r.ChunkOverlap)))
	if r.Dedupe.Enabled {
		fmt.Fprintln(w, cliui.KeyValue("Dedupe", fmt.Sprintf("on, threshold %.2f", r.Dedupe.Threshold)))
	} else {
		fmt.Fprintln(w, cliui.KeyValue("Dedupe", "off"))
	}
	fmt.Fprintln(w)
}

func describeDims(d memory.DimensionReport) string {
	db := "unknown"
	if d.DB != nil {
		db = strconv.Itoa(*d.DB)
	}
	return fmt.Sprintf("configured %d, embedding %d, db %s", d.Configured, d.Embedding, db)
}
