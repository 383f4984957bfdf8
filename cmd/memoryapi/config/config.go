// Package configcmder provides the config command for managing persistent
// memoryapi configuration stored in the .memoryapi/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent memoryapi configuration.

Configuration is stored as config.toml in the .memoryapi/ directory and
provides default values for command flags. CLI flags and MEMORYAPI_*
environment variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  api.listen,
  storage.provider, storage.url, storage.sqlite_path, storage.schema,
  storage.table, storage.timeout, storage.auto_migrate, storage.strict_delete,
  embedding.provider, embedding.target, embedding.model, embedding.api_key,
  embedding.dimensions, embedding.timeout,
  chunking.size, chunking.overlap,
  dedupe.enabled, dedupe.threshold,
  events.provider, events.brokers, events.topic,
  client.api_target

Use subcommands to get, set, or list configuration values:
  memoryapi config set <key> <value>    Set a configuration value
  memoryapi config get <key>            Get a configuration value
  memoryapi config list                 List all configuration values

Examples:
  memoryapi config set embedding.provider ollama
  memoryapi config set dedupe.enabled true
  memoryapi config get storage.url
  memoryapi config list`

const configShortDesc string = "Manage persistent memoryapi configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// secretKeys are masked when printed.
var secretKeys = map[string]bool{
	"embedding.api_key": true,
	"storage.url":       true,
}

func displayValue(key, value string) string {
	if value == "" || !secretKeys[key] {
		return value
	}
	if key == "storage.url" {
		return maskURL(value)
	}
	return "********"
}
