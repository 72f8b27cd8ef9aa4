// Package cli implements the flowcanvas admin command line. It works on the
// configured state backend directly, without an editor session.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/petrijr/flowcanvas"
	"github.com/petrijr/flowcanvas/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Backend    string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the flowcanvas CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "flowcanvas",
		Short: "flowcanvas editor state administration",
		Long:  "Inspect and change the feature flags and saved viewports kept in the flowcanvas state backend.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "YAML config file (default $FLOWCANVAS_CONFIG_FILE)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "state backend override (memory|sqlite|redis|postgres|mongo)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewFlagsCommand(opts))
	cmd.AddCommand(NewViewportCommand(opts))

	return cmd
}

func (o *RootOptions) loadConfig() (config.Config, error) {
	path := o.ConfigFile
	var (
		cfg config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadWithFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Config{}, err
	}
	if o.Backend != "" {
		cfg.StateBackend = o.Backend
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

// withState opens the configured backend for the duration of fn.
func (o *RootOptions) withState(ctx context.Context, fn func(cfg config.Config, state flowcanvas.StateStore) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	state, closeFn, err := flowcanvas.OpenStateStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(cfg, state)
}

// print writes v as indented JSON or calls text for the text format.
func (o *RootOptions) print(w io.Writer, v any, text func(io.Writer) error) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}
