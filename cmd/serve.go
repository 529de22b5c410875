package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flowdesk/internal/config"
	"flowdesk/internal/editor"
	"flowdesk/internal/flow"
	"flowdesk/internal/handlers"
	"flowdesk/internal/logging"
	"flowdesk/internal/whatsapp"
)

func serveCmd() *cobra.Command {
	var (
		addr       string
		noWhatsApp bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the flow builder web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if noWhatsApp {
				cfg.WhatsApp.Enabled = false
			}
			return serve(cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&noWhatsApp, "no-whatsapp", false, "start without the WhatsApp device link")
	return cmd
}

func serve(cfg *config.Config) error {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	appDB, repo, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open flow database: %w", err)
	}
	defer appDB.Close()
	logger.Info("flow database initialized", zap.String("path", cfg.Database.Path))

	palette := flow.DefaultPalette()
	manager := editor.NewManager(repo, palette, logger.Named("editor"))

	autosave := editor.NewWorker(manager, cfg.Autosave.Interval, logger.Named("autosave"))
	manager.SetChangeHandler(autosave.HandleChange)
	autosave.Start()

	if _, err := manager.EnsureDefault(config.DefaultFlowName); err != nil {
		return fmt.Errorf("failed to create default flow: %w", err)
	}

	qrHandler := handlers.NewQRHandler()
	link := handlers.OfflineLink()

	if cfg.WhatsApp.Enabled {
		client, err := whatsapp.NewClient(cfg.WhatsApp.SessionPath, logger)
		if err != nil {
			logger.Warn("whatsapp link unavailable", zap.Error(err))
		} else {
			defer client.Disconnect()

			// Wire up QR code callbacks
			client.SetQRHandler(qrHandler.SetQR)
			client.SetQRClearHandler(qrHandler.ClearQR)
			link = client

			if client.HasSession() {
				if err := client.Connect(); err != nil {
					logger.Warn("failed to restore whatsapp session", zap.Error(err))
				}
			}
		}
	}

	set := handlers.Set{
		Flows:    handlers.NewFlowHandler(manager, autosave, logger.Named("http")),
		Palette:  handlers.NewPaletteHandler(palette),
		WhatsApp: handlers.NewWhatsAppHandler(link),
		QR:       qrHandler,
		Web:      handlers.NewWebHandler(manager, config.DefaultFlowName, logger.Named("web")),
	}

	// Cancelled on shutdown so open event streams return.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handlers.Wrap(set.Routes(), logger.Named("http"), cfg.CORS.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting flowdesk server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-serverErr:
		autosave.Shutdown()
		return fmt.Errorf("server failed: %w", err)
	}

	cancelBase()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// Final flush after the last request has finished.
	autosave.Shutdown()
	logger.Info("server exited")
	return nil
}
