package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"flowdesk/internal/config"
	"flowdesk/internal/database"
	"flowdesk/internal/models"
	"flowdesk/internal/ui"
)

var version = "0.3.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "flowdesk",
	Short: "flowdesk - WhatsApp chatbot flow builder",
	Long: ui.Brand.Sprint("flowdesk") + " - design WhatsApp chatbot flows on a canvas\n" +
		ui.Subtle.Sprint("Serve the flow builder, inspect the palette, and move flows in and out as YAML"),
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("flowdesk {{ .Version }}\n")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath()+")")

	rootCmd.AddCommand(
		serveCmd(),
		paletteCmd(),
		flowsCmd(),
		configCmd(),
	)
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		ui.Bad.Printf("flowdesk: %v\n", err)
	}
	return err
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openStore opens the flow database named in the config.
func openStore(cfg *config.Config) (*database.DB, *models.FlowRepository, error) {
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	return db, models.NewFlowRepository(db), nil
}
