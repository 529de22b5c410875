package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"flowdesk/internal/editor"
	"flowdesk/internal/flow"
	"flowdesk/internal/ui"
)

func flowsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flows",
		Short: "Manage stored flows",
		Long: `List, export and import the flows kept in the flowdesk database.

  flowdesk flows list
  flowdesk flows export <id> --format json -o flow.json
  flowdesk flows import flow.yaml --name "Ventas"`,
	}

	cmd.AddCommand(
		flowsListCmd(),
		flowsExportCmd(),
		flowsImportCmd(),
	)
	return cmd
}

func flowsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored flows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, repo, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			flows, err := repo.GetAll()
			if err != nil {
				return err
			}
			if len(flows) == 0 {
				fmt.Fprintln(ui.Output, ui.Subtle.Sprint("  No flows yet. Run `flowdesk serve` to create the default flow."))
				return nil
			}

			rows := make([][]string, 0, len(flows))
			for _, f := range flows {
				rows = append(rows, []string{
					f.ID,
					f.Name,
					strconv.Itoa(f.NodeCount),
					strconv.Itoa(f.EdgeCount),
					f.UpdatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			ui.Table([]string{"ID", "NAME", "NODES", "EDGES", "UPDATED"}, rows)
			return nil
		},
	}
}

func flowsExportCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a flow as a YAML or JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, repo, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			stored, err := repo.GetByID(args[0])
			if err != nil {
				return err
			}
			if stored == nil {
				return fmt.Errorf("flow %s not found", args[0])
			}

			if format == "" {
				format = formatFromPath(output)
			}
			doc := flow.Document{Name: stored.Name, Nodes: stored.Nodes, Edges: stored.Edges}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			if err := flow.EncodeDocument(w, doc, format); err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(ui.Output, "  %s exported %s to %s\n", ui.StatusIcon(true), stored.Name, output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "yaml or json (default from --output extension, else yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")
	return cmd
}

func flowsImportCmd() *cobra.Command {
	var (
		format string
		name   string
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Store a flow from a YAML or JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, repo, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			if format == "" {
				format = formatFromPath(args[0])
			}
			doc, err := flow.DecodeDocument(f, format)
			if err != nil {
				return err
			}
			if name != "" {
				doc.Name = name
			}
			if strings.TrimSpace(doc.Name) == "" {
				doc.Name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			manager := editor.NewManager(repo, flow.DefaultPalette(), nil)
			s, err := manager.Import(doc)
			if err != nil {
				return err
			}

			view := s.View()
			fmt.Fprintf(ui.Output, "  %s imported %s as %s (%d nodes, %d edges)\n",
				ui.StatusIcon(true), view.Name, ui.Info.Sprint(view.FlowID), len(view.Nodes), len(view.Edges))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "yaml or json (default from file extension)")
	cmd.Flags().StringVar(&name, "name", "", "name for the imported flow (default from document)")
	return cmd
}

func formatFromPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return flow.FormatJSON
	}
	return flow.FormatYAML
}
