// Package initcmder provides the init command for initializing a local
// .memoryapi directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sumrendra/memory-api/pkg/cliui"
	"github.com/sumrendra/memory-api/pkg/config"
)

const (
	dirName = ".memoryapi"
)

type initCommander struct {
	preset string
	force  bool
}

const initLongDesc string = `Initialize a new .memoryapi/ directory in the current working directory.

Creates a local .memoryapi/ directory that takes precedence over the default
~/.memoryapi/ directory for configuration and the SQLite chunk store.

With --preset, a config.toml is also written with the embedding section set
up for the named provider (huggingface, ollama or openai). An existing
config.toml is left alone unless --force is given.

Examples:
  memoryapi init
  memoryapi init --preset ollama
  memoryapi init --preset openai --force`

const initShortDesc string = "Initialize a local .memoryapi/ directory"

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "",
		fmt.Sprintf("Write a config.toml for an embedding provider (%s)", strings.Join(config.ValidPresetNames(), ", ")))
	cmd.Flags().BoolVar(&cmder.force, "force", false, "Overwrite an existing config.toml")

	return cmd
}

func (c *initCommander) run(w io.Writer) error {
	var preset *config.Config
	if c.preset != "" {
		var err error
		preset, err = config.PresetConfig(c.preset)
		if err != nil {
			return err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .memoryapi directory: %w", err)
		}
		fmt.Fprintf(w, "Initialized .memoryapi directory: %s\n", dir)
	}

	if preset == nil {
		return nil
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	_, err = os.Stat(cfger.GetTarget())
	switch {
	case err == nil && !c.force:
		return fmt.Errorf("%s already exists, use --force to overwrite", cfger.GetTarget())
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("checking config: %w", err)
	}

	if err := cfger.SaveConfig(preset); err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Wrote %s preset to %s\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(c.preset),
		cliui.DimStyle.Render(cfger.GetTarget()),
	)
	return nil
}
