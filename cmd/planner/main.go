// Command planner runs the Planner agent as a standalone A2A service:
// tool-schema-grounded plan generation and post-execution reflection.
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
	"github.com/skydeck/missionctl/pkg/planner"
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
		Use:   "planner",
		Short: "Run the Planner agent",
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

	llmClient := llm.NewClient(cfg.GeminiAPIKey, "", cfg.GeminiModel, cfg.GeminiEmbeddingModel)
	p := planner.New(llmClient)

	addr := fmt.Sprintf(":%d", cfg.A2APlannerPort)
	card := planner.Card(fmt.Sprintf("http://localhost%s", addr))
	server := a2a.NewServer(card, logger)
	planner.RegisterSkills(server, p)
	if err := server.ValidateWiring(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("planner agent listening", "addr", addr)
		if err := server.Start(addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("planner agent shutting down")
		return server.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
