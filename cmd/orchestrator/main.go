// Command orchestrator runs the Orchestrator agent: the bounded ReAct
// loop and the HTTP surface users and the terminal REPL talk to.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skydeck/missionctl/pkg/a2a"
	"github.com/skydeck/missionctl/pkg/api"
	"github.com/skydeck/missionctl/pkg/config"
	"github.com/skydeck/missionctl/pkg/events"
	"github.com/skydeck/missionctl/pkg/orchestrator"
	"github.com/skydeck/missionctl/pkg/session"
)

const agentDispatchTimeout = 60 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envPath string

	cmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "Run the Orchestrator agent and its HTTP API",
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

	retrieverClient := a2a.NewClient(fmt.Sprintf("http://localhost:%d", cfg.A2ARAGPort), agentDispatchTimeout)
	plannerClient := a2a.NewClient(fmt.Sprintf("http://localhost:%d", cfg.A2APlannerPort), agentDispatchTimeout)
	executorClient := a2a.NewClient(fmt.Sprintf("http://localhost:%d", cfg.A2AExecutorPort), agentDispatchTimeout)

	sessions := session.NewManager(0)
	publisher := events.NewPublisher()
	orch := orchestrator.New(retrieverClient, plannerClient, executorClient, sessions, publisher, orchestrator.Config{})

	server := api.NewServer(orch, sessions, publisher, logger)

	a2aAddr := fmt.Sprintf(":%d", cfg.A2AOrchestratorPort)
	a2aCard := orchestrator.Card(fmt.Sprintf("http://localhost%s", a2aAddr))
	a2aServer := a2a.NewServer(a2aCard, logger)
	if err := a2aServer.ValidateWiring(); err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.WebAPIPort)
	errCh := make(chan error, 2)
	go func() {
		logger.Info("orchestrator HTTP API listening", "addr", addr)
		if err := server.Start(addr); err != nil {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("orchestrator A2A discovery endpoint listening", "addr", a2aAddr)
		if err := a2aServer.Start(a2aAddr); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("orchestrator shutting down")
		shutdownCtx := context.Background()
		err := server.Shutdown(shutdownCtx)
		if a2aErr := a2aServer.Shutdown(shutdownCtx); a2aErr != nil && err == nil {
			err = a2aErr
		}
		return err
	case err := <-errCh:
		return err
	}
}
