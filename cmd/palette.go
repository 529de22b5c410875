package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"flowdesk/internal/flow"
	"flowdesk/internal/ui"
)

func paletteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "palette",
		Short: "List the node types that can be dragged onto a flow",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			palette := flow.DefaultPalette()

			for _, cat := range palette.Categories() {
				fmt.Fprintln(ui.Output, ui.Info.Sprint(string(cat.Title)))

				var rows [][]string
				for _, e := range cat.Entries {
					rows = append(rows, []string{
						string(e.Type),
						e.Label,
						ui.Swatch(string(e.Color)),
						ui.Swatch(string(flow.CanvasColor(e.Type))),
					})
				}
				ui.Table([]string{"TYPE", "LABEL", "PALETTE", "CANVAS"}, rows)
				fmt.Fprintln(ui.Output)
			}

			fmt.Fprintln(ui.Output, ui.Subtle.Sprintf("  %d node types", len(palette.Entries())))
		},
	}
}
