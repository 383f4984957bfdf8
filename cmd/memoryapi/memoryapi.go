// Package memoryapicmder is the root memoryapi command.
package memoryapicmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/sumrendra/memory-api/cmd/memoryapi/config"
	deletecmder "github.com/sumrendra/memory-api/cmd/memoryapi/delete"
	initcmder "github.com/sumrendra/memory-api/cmd/memoryapi/init"
	searchcmder "github.com/sumrendra/memory-api/cmd/memoryapi/search"
	servecmder "github.com/sumrendra/memory-api/cmd/memoryapi/serve"
	statuscmder "github.com/sumrendra/memory-api/cmd/memoryapi/status"
	storecmder "github.com/sumrendra/memory-api/cmd/memoryapi/store"
	versioncmder "github.com/sumrendra/memory-api/cmd/version"
)

const memoryAPILongDesc string = `memoryapi stores documents as embedded chunks and answers
similarity queries over them.

Run the server:
  memoryapi serve          Run the HTTP API (with MCP tools at /mcp)

Talk to a running server:
  memoryapi store          Store or replace a document
  memoryapi search         Similarity search
  memoryapi delete         Delete a document
  memoryapi status         Check liveness, readiness and dimensions

Manage settings:
  memoryapi init           Create a local .memoryapi/ directory
  memoryapi config         Get, set and list config.toml values`

const memoryAPIShortDesc string = "memoryapi - document memory over embeddings"

func NewMemoryAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "memoryapi",
		Short:         memoryAPIShortDesc,
		Long:          memoryAPILongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .memoryapi/ directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(storecmder.NewStoreCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(deletecmder.NewDeleteCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
