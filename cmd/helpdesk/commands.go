package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/bfiber/helpdesk/internal/config"
	"github.com/bfiber/helpdesk/internal/faq"
	"github.com/bfiber/helpdesk/internal/ollama"
	"github.com/bfiber/helpdesk/internal/retrieval"
	"github.com/bfiber/helpdesk/internal/storage"
)

// --- sync-faq ---

var syncFAQCmd = &cobra.Command{
	Use:   "sync-faq",
	Short: "Embed all FAQ rows and rebuild the vector index",
	Long: `Embed all FAQ rows and rebuild the vector index.

This is the same operation the save_faq_docs tool performs, run once from
the command line. Useful after bulk-loading FAQ rows.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ollamaClient := ollama.New(cfg.Ollama.BaseURL)
		if !ollamaClient.IsRunning(cmd.Context()) {
			printError("Ollama is not reachable at %s", cfg.Ollama.BaseURL)
			return fmt.Errorf("ollama not running")
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		embedder := retrieval.NewEmbedder(ollamaClient, cfg.Ollama.EmbedModel)
		vectorStore := retrieval.NewSQLiteStore(store.DB())
		syncer := faq.NewSyncer(store, embedder, vectorStore)

		printStep("Embedding FAQ rows with %s", cfg.Ollama.EmbedModel)
		n, err := syncer.Sync(cmd.Context())
		if errors.Is(err, faq.ErrNoData) {
			printWarning("No FAQ rows in the database; nothing to sync")
			return nil
		}
		if err != nil {
			return fmt.Errorf("syncing FAQ: %w", err)
		}

		printSuccess("Synced %d FAQ documents to the vector index", n)
		return nil
	},
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show helpdesk system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	// Check server health.
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	// Check Ollama.
	ollamaClient := ollama.New(cfg.Ollama.BaseURL)
	if ollamaClient.IsRunning(ctx) {
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	} else {
		printStatus("Ollama", "not running")
	}
	printStatus("Embed model", "%s", cfg.Ollama.EmbedModel)

	// Show row counts straight from storage. The server holds no state, so
	// reading the database directly is safe even while it runs.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		printError("opening storage: %v", err)
		return nil
	}
	defer store.Close()

	counts, err := store.RowCounts()
	if err != nil {
		printError("counting rows: %v", err)
		return nil
	}
	vectors, err := retrieval.NewSQLiteStore(store.DB()).Count()
	if err != nil {
		printError("counting vectors: %v", err)
		return nil
	}

	printStatus("Users", "%d", counts.Users)
	printStatus("Tickets", "%d", counts.Tickets)
	printStatus("FAQ docs", "%d (%d embedded)", counts.FAQDocs, vectors)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
