package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/petrijr/flowcanvas"
	"github.com/petrijr/flowcanvas/internal/config"
	"github.com/petrijr/flowcanvas/internal/flags"
)

// NewFlagsCommand creates the flags command group.
func NewFlagsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flags",
		Short: "Inspect and change persisted feature flags",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every flag of the configured flag store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withState(cmd.Context(), func(cfg config.Config, state flowcanvas.StateStore) error {
				store := openFlags(cmd, cfg, state)
				defer store.Close()

				values := store.Snapshot()
				return rootOpts.print(cmd.OutOrStdout(), values, func(w io.Writer) error {
					for _, name := range slices.Sorted(maps.Keys(values)) {
						if _, err := fmt.Fprintf(w, "%s=%t\n", name, values[name]); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <flag>",
		Short: "Print one flag; unknown flags are false",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withState(cmd.Context(), func(cfg config.Config, state flowcanvas.StateStore) error {
				store := openFlags(cmd, cfg, state)
				defer store.Close()

				value := store.Get(args[0])
				return rootOpts.print(cmd.OutOrStdout(), map[string]bool{args[0]: value}, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, value)
					return err
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <flag> <true|false>",
		Short: "Persist a flag value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("invalid flag value %q: %w", args[1], err)
			}
			return rootOpts.withState(cmd.Context(), func(cfg config.Config, state flowcanvas.StateStore) error {
				store := openFlags(cmd, cfg, state)
				defer store.Close()

				if err := store.Set(cmd.Context(), args[0], value); err != nil {
					return err
				}
				return rootOpts.print(cmd.OutOrStdout(), map[string]bool{args[0]: value}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s=%t\n", args[0], value)
					return err
				})
			})
		},
	})

	return cmd
}

func openFlags(cmd *cobra.Command, cfg config.Config, state flowcanvas.StateStore) *flags.Store {
	return flags.New(cmd.Context(), flags.Options{
		Name:  cfg.FlagStoreName,
		State: state,
	})
}
