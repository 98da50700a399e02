// Command executor runs the Executor agent as a standalone A2A service:
// the sole process that holds the MCP connection to the drone tool
// endpoint and carries out tool invocations on the Planner's behalf.
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
	"github.com/skydeck/missionctl/pkg/drone"
	"github.com/skydeck/missionctl/pkg/executor"
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
		Use:   "executor",
		Short: "Run the Executor agent",
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

	if cfg.MCPServerPath == "" {
		return fmt.Errorf("MCP_SERVER_PATH must name the drone tool endpoint executable")
	}

	droneClient := drone.NewClient(cfg.MCPServerPath, nil, cfg.MCPMissionTimeout, logger)
	defer droneClient.Close()

	exec := executor.New(droneClient)

	addr := fmt.Sprintf(":%d", cfg.A2AExecutorPort)
	card := executor.Card(fmt.Sprintf("http://localhost%s", addr))
	server := a2a.NewServer(card, logger)
	executor.RegisterSkills(server, exec)
	if err := server.ValidateWiring(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("executor agent listening", "addr", addr)
		if err := server.Start(addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("executor agent shutting down")
		return server.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
