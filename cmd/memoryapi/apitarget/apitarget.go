// Package apitarget resolves the API server URL for commands that talk to a
// running memoryapi server.
package apitarget

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sumrendra/memory-api/pkg/client"
	"github.com/sumrendra/memory-api/pkg/config"
)

var clientFlags = config.FlagSet{
	config.FlagAPITarget: {Name: "api-target", ViperKey: "client.api_target", Description: "memoryapi server URL"},
}

// AddFlag registers --api-target on cmd, defaulting to the built-in target.
func AddFlag(cmd *cobra.Command, target *string) {
	config.AddStringFlag(cmd, clientFlags, config.FlagAPITarget, target)
}

// Resolve fills target from client.api_target in config.toml unless
// --api-target was given explicitly.
func Resolve(cmd *cobra.Command, target *string) error {
	if cmd.Flags().Changed(clientFlags[config.FlagAPITarget].Name) {
		return nil
	}

	configDir, _ := cmd.Flags().GetString("config-dir")
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	*target = cfg.Client.APITarget
	return nil
}

// NewClient builds a client for target.
func NewClient(target string) (*client.Client, error) {
	c, err := client.New(target)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", target, err)
	}
	return c, nil
}
