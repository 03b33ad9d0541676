package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skalenetwork/ima-agent/api"
	"github.com/skalenetwork/ima-agent/relayer"
)

// newStartCmd builds the start subcommand: parse config, wire every
// enabled direction, and drive the fan-out loop until interrupted,
// grounded on cmd/process.go's Start/StartProcessor main loop.
func newStartCmd(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the IMA relayer agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.InitAppState()
			return runAgent(cmd, a)
		},
	}
	return cmd
}

func runAgent(cmd *cobra.Command, a *AppState) error {
	cfg := a.Config

	metricsPort, err := cmd.Flags().GetInt16(flagMetricsPort)
	if err != nil {
		return err
	}
	metrics := relayer.InitPromMetrics(metricsPort)

	f, loops, err := buildFanout(cfg, metrics, a.Logger)
	if err != nil {
		return err
	}

	apiDirections := make([]api.Direction, 0, len(loops))
	for _, l := range loops {
		apiDirections = append(apiDirections, api.Direction{Key: l.DirectionKey, State: l.State, Errors: l.Errors})
	}
	server := api.New(apiDirections, a.Logger)

	addr := cfg.APIListenAddr
	if addr == "" {
		addr = "localhost:8000"
	}
	go func() {
		if err := server.Router().Run(addr); err != nil {
			a.Logger.Error("api server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetricsRefresh(ctx, cfg, metrics, a.Logger)

	interval := time.Duration(cfg.Options.SleepBeforeFetchOutgoingMessageEventMs) * time.Millisecond
	if interval <= 0 {
		interval = 5 * time.Second
	}

	a.Logger.Info("starting transfer loops", "directions", len(loops), "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result := f.RunOnce(ctx)
		if result.FailedDirections > 0 {
			a.Logger.Error("fan-out pass had failures", "failed_directions", result.FailedDirections)
		}

		select {
		case <-ctx.Done():
			a.Logger.Info("shutting down")
			return nil
		case <-ticker.C:
		}
	}
}
