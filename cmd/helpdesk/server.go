package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/bfiber/helpdesk/internal/api"
	"github.com/bfiber/helpdesk/internal/config"
	"github.com/bfiber/helpdesk/internal/faq"
	"github.com/bfiber/helpdesk/internal/ollama"
	"github.com/bfiber/helpdesk/internal/retrieval"
	"github.com/bfiber/helpdesk/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the helpdesk server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "helpdesk version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Check Ollama readiness. The server still starts without it; embedding
	// calls will fail until Ollama comes up.
	ollamaClient := ollama.New(cfg.Ollama.BaseURL)
	checkOllama(ctx, ollamaClient, cfg.Ollama.EmbedModel)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build the FAQ retrieval stack.
	embedder := retrieval.NewEmbedder(ollamaClient, cfg.Ollama.EmbedModel)
	vectorStore := retrieval.NewSQLiteStore(store.DB())
	syncer := faq.NewSyncer(store, embedder, vectorStore)

	// Build the MCP server and its streamable HTTP transport.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:    store,
		Syncer:   syncer,
		Embedder: embedder,
		Index:    vectorStore,
	})
	mcpHTTP := server.NewStreamableHTTPServer(mcpSrv,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
	)

	appHandler := api.NewAppHandler(api.AppDeps{
		Store:  store,
		Syncer: syncer,
		Index:  vectorStore,
	})

	// Compose top-level router: MCP transport + admin routes.
	topRouter := chi.NewRouter()
	topRouter.Handle("/mcp", mcpHTTP)
	topRouter.Mount("/", appHandler)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: topRouter,
	}

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("helpdesk listening", "addr", addr, "mcp_endpoint", "/mcp")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func checkOllama(ctx context.Context, client *ollama.Client, embedModel string) {
	if !client.IsRunning(ctx) {
		printWarning("Ollama is not reachable; FAQ embedding tools will fail")
		return
	}
	if !client.HasModel(ctx, embedModel) {
		printWarning("embed model %q is not pulled; run: ollama pull %s", embedModel, embedModel)
		return
	}
	printSuccess("Ollama ready with embed model %s", embedModel)
}
