package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petrijr/flowcanvas"
	"github.com/petrijr/flowcanvas/internal/config"
	"github.com/petrijr/flowcanvas/internal/persistence"
	"github.com/petrijr/flowcanvas/pkg/api"
)

type viewportEntry struct {
	WorkflowID string       `json:"workflowId"`
	Viewport   api.Viewport `json:"viewport"`
	Saved      bool         `json:"saved"`
}

// NewViewportCommand creates the viewport command group.
func NewViewportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "viewport",
		Short: "Inspect and reset saved per-workflow viewports",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List workflows with a saved viewport",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withState(cmd.Context(), func(cfg config.Config, state flowcanvas.StateStore) error {
				keys, err := state.Keys(cmd.Context(), persistence.ViewportKey(""))
				if err != nil {
					return err
				}
				ids := make([]string, 0, len(keys))
				for _, k := range keys {
					ids = append(ids, strings.TrimPrefix(k, persistence.ViewportKey("")))
				}
				return rootOpts.print(cmd.OutOrStdout(), ids, func(w io.Writer) error {
					for _, id := range ids {
						if _, err := fmt.Fprintln(w, id); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <workflow-id>",
		Short: "Print the saved viewport of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withState(cmd.Context(), func(cfg config.Config, state flowcanvas.StateStore) error {
				entry := viewportEntry{WorkflowID: args[0], Viewport: api.DefaultViewport()}
				v, err := persistence.LoadValue[api.Viewport](cmd.Context(), state, persistence.ViewportKey(args[0]))
				switch {
				case errors.Is(err, persistence.ErrStateNotFound):
				case err != nil:
					return fmt.Errorf("load viewport %s: %w", args[0], err)
				default:
					entry.Viewport = v.Normalize(cfg.ZoomBounds())
					entry.Saved = true
				}
				return rootOpts.print(cmd.OutOrStdout(), entry, func(w io.Writer) error {
					suffix := ""
					if !entry.Saved {
						suffix = " (default)"
					}
					_, err := fmt.Fprintf(w, "x=%g y=%g zoom=%g%s\n",
						entry.Viewport.X, entry.Viewport.Y, entry.Viewport.Zoom, suffix)
					return err
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset <workflow-id>",
		Short: "Forget the saved viewport of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withState(cmd.Context(), func(cfg config.Config, state flowcanvas.StateStore) error {
				if err := state.Delete(cmd.Context(), persistence.ViewportKey(args[0])); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.ErrOrStderr(), "viewport of %s reset\n", args[0])
				return err
			})
		},
	})

	return cmd
}
