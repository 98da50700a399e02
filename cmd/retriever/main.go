// Command retriever runs the Retriever agent as a standalone A2A service:
// vector similarity search and intent-decomposing retrieval over the
// mission knowledge base.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skydeck/missionctl/pkg/a2a"
	"github.com/skydeck/missionctl/pkg/config"
	"github.com/skydeck/missionctl/pkg/llm"
	"github.com/skydeck/missionctl/pkg/retriever"
	"github.com/skydeck/missionctl/pkg/vectorstore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envPath string

	cmd := &cobra.Command{
		Use:   "retriever",
		Short: "Run the Retriever agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(envPath)
		},
	}
	cmd.Flags().StringVar(&envPath, "env", "", "Path to .env file (default: ./.env)")
	return cmd
}

func run(envPath string) error {
	cfg := config.Load(envPath)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store vectorstore.Store
	if cfg.SupabaseURL != "" {
		pg, err := vectorstore.Connect(ctx, cfg.SupabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to vector store: %w", err)
		}
		defer pg.Close()
		store = pg
		logger.Info("connected to pgvector store")
	} else {
		logger.Warn("SUPABASE_URL not set, falling back to an in-memory vector store")
		store = vectorstore.NewMemoryStore()
	}

	llmClient := llm.NewClient(cfg.GeminiAPIKey, "", cfg.GeminiModel, cfg.GeminiEmbeddingModel)
	r := retriever.New(llmClient, store)

	addr := fmt.Sprintf(":%d", cfg.A2ARAGPort)
	card := retriever.Card(fmt.Sprintf("http://localhost%s", addr))
	server := a2a.NewServer(card, logger)
	retriever.RegisterSkills(server, r)
	if err := server.ValidateWiring(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("retriever agent listening", "addr", addr)
		if err := server.Start(addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("retriever agent shutting down")
		return server.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
