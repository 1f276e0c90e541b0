package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paularlott/cli"

	"github.com/martinsuchenak/ztnetd/internal/api"
	"github.com/martinsuchenak/ztnetd/internal/auth"
	"github.com/martinsuchenak/ztnetd/internal/config"
	"github.com/martinsuchenak/ztnetd/internal/controller"
	"github.com/martinsuchenak/ztnetd/internal/log"
	"github.com/martinsuchenak/ztnetd/internal/mcp"
	"github.com/martinsuchenak/ztnetd/internal/member"
	"github.com/martinsuchenak/ztnetd/internal/notify"
	"github.com/martinsuchenak/ztnetd/internal/storage"
	"github.com/martinsuchenak/ztnetd/internal/worker"
	"github.com/martinsuchenak/ztnetd/internal/ws"
)

const shutdownTimeout = 10 * time.Second

// ServerConfig holds the wired components for running the server
type ServerConfig struct {
	Config     *config.Config
	Store      storage.Storage
	Controller controller.Client
	Members    *member.Service
	Dispatcher *notify.Dispatcher
	Hub        *ws.Hub
	Poller     *worker.Poller
	MCPServer  *mcp.Server
	APIHandler *api.Handler
	Tokens     *auth.Tokens
}

// RunServer starts the ztnetd server with the given configuration
func RunServer(cfg *ServerConfig) error {
	mux := http.NewServeMux()

	// API routes
	cfg.APIHandler.RegisterRoutes(mux)

	// MCP endpoint
	mux.HandleFunc("/mcp", cfg.MCPServer.GetHTTPHandler())

	// Apply middleware
	var handler http.Handler = mux
	handler = api.SessionMiddleware(cfg.Tokens, cfg.Config.ServiceToken, handler)
	handler = api.SecurityHeadersMiddleware(handler)

	server := &http.Server{
		Addr:    cfg.Config.ListenAddr,
		Handler: handler,
	}

	// Background reconciliation sweeps
	if err := cfg.Poller.Start(); err != nil {
		return fmt.Errorf("starting poller: %w", err)
	}

	// Handle shutdown gracefully
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Warn("Forced server shutdown", "error", err)
			server.Close()
		}
	}()

	// Log startup info
	log.Info("Starting ztnetd server", "addr", cfg.Config.ListenAddr)
	log.Info("API available", "url", "http://localhost"+cfg.Config.ListenAddr+"/api/")
	log.Info("MCP available", "url", "http://localhost"+cfg.Config.ListenAddr+"/mcp")
	log.Info("Controller backend", "mode", cfg.Config.ControllerMode, "url", cfg.Config.ControllerURL)
	if cfg.Config.IsAPIAuthEnabled() {
		log.Info("API service token enabled")
	}
	cfg.MCPServer.LogStartup()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("Server error", "error", err)
		return err
	}
	<-done

	cfg.Poller.Stop()
	cfg.Dispatcher.Wait()
	cfg.Hub.Close()
	if err := cfg.Store.Close(); err != nil {
		log.Warn("Failed to close storage", "error", err)
	}

	log.Info("Server stopped")
	return nil
}

// newControllerClient builds the controller client for the configured mode
func newControllerClient(cfg *config.Config) controller.Client {
	if cfg.ControllerMode == "central" {
		return controller.NewCentralClient(cfg.ControllerURL, cfg.ControllerToken)
	}
	return controller.NewLocalClient(cfg.ControllerURL, cfg.ControllerToken)
}

func Command() *cli.Command {
	return &cli.Command{
		Name:        "server",
		Usage:       "Start the ztnetd server",
		Description: "Start the HTTP server with the management API, websocket events, and MCP endpoint",
		Flags:       config.GetFlags(),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd)
			if err != nil {
				log.Error("Invalid configuration", "error", err)
				return err
			}

			log.Info("Configuration loaded", "data_dir", cfg.DataDir, "listen_addr", cfg.ListenAddr)

			store, err := storage.NewSQLiteStorage(cfg.DataDir)
			if err != nil {
				log.Error("Failed to initialize storage", "error", err)
				return err
			}
			log.Info("Storage initialized", "backend", "SQLite", "path", cfg.DataDir)

			ctrl := newControllerClient(cfg)

			// Events fan out to webhooks and websocket subscribers.
			dispatcher := notify.NewDispatcher(store)
			hub := ws.NewHub()
			members := member.NewService(store, ctrl, member.MultiPublisher{dispatcher, hub})

			tokens := auth.NewTokens(cfg.SessionSecret)
			apiHandler := api.NewHandler(store, members, ctrl, tokens, hub, dispatcher)
			mcpServer := mcp.NewServer(store, members, cfg.MCPToken)

			poller := worker.NewPoller(store, func(ctx context.Context, networkID string) error {
				_, err := members.Reconcile(ctx, networkID)
				return err
			}, cfg.PollInterval)

			return RunServer(&ServerConfig{
				Config:     cfg,
				Store:      store,
				Controller: ctrl,
				Members:    members,
				Dispatcher: dispatcher,
				Hub:        hub,
				Poller:     poller,
				MCPServer:  mcpServer,
				APIHandler: apiHandler,
				Tokens:     tokens,
			})
		},
	}
}
