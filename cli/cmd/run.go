package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/qtrack"
	cliconfig "github.com/justapithecus/qtrack/cli/config"
	"github.com/justapithecus/qtrack/config"
)

// RunCommand starts a run and emits synthetic metrics until interrupted.
// It exists to exercise the pipeline end to end from the command line; a
// real producer imports the qtrack package directly and calls Init/LogMetric
// from its own training loop instead of shelling out to this command.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start a run and stream synthetic metrics until interrupted",
		Flags: []cli.Flag{
			ConfigFlag,
			ProjectFlag,
			NameFlag,
			&cli.DurationFlag{Name: "interval", Usage: "Interval between synthetic metric emissions", Value: time.Second},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := resolveConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("qtrack: %v", err), 1)
	}

	project := c.String("project")
	if project == "" {
		project = "cli"
	}
	name := c.String("name")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := qtrack.InitWithConfig(ctx, cfg, project, name, nil)
	if err != nil {
		return cli.Exit(fmt.Sprintf("qtrack: init run: %v", err), 1)
	}
	qtrack.SetDefault(run)

	fmt.Fprintf(c.App.Writer, "run %s started, emitting every %s (ctrl+c to stop)\n", run.RunID(), c.Duration("interval"))

	ticker := time.NewTicker(c.Duration("interval"))
	defer ticker.Stop()

	var step int64
	for {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := run.Stop(stopCtx); err != nil {
				return cli.Exit(fmt.Sprintf("qtrack: stop: %v", err), 1)
			}
			snap := run.Stats()
			fmt.Fprintf(c.App.Writer, "stopped: %d sent, %d dropped, %d batches\n", snap.EventsSent, snap.EventsDropped, snap.BatchesSent)
			return nil

		case <-ticker.C:
			run.LogMetric("loss", rand.Float64(), step)
			step++
		}
	}
}

// resolveConfig loads environment configuration and, when --config points at
// a YAML file, overlays any values it sets on top. The environment's values
// remain in place for anything the overlay leaves zero.
func resolveConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	path := c.String("config")
	if path == "" {
		return cfg, nil
	}

	overlay, err := cliconfig.Load(path)
	if err != nil {
		return nil, err
	}

	if overlay.ServerURL != "" {
		cfg.ServerURL = overlay.ServerURL
	}
	if overlay.APIKey != "" {
		cfg.APIKey = overlay.APIKey
	}
	if overlay.Batch.Size > 0 {
		cfg.BatchSize = overlay.Batch.Size
	}
	if overlay.Batch.MaxBytes > 0 {
		cfg.BatchMaxBytes = overlay.Batch.MaxBytes
	}
	if overlay.Batch.Timeout.Duration > 0 {
		cfg.BatchTimeoutMS = overlay.Batch.Timeout.Milliseconds()
	}
	if overlay.Spool.Dir != "" {
		cfg.SpoolDir = overlay.Spool.Dir
	}
	if overlay.Spool.MaxSize > 0 {
		cfg.SpoolMaxSize = overlay.Spool.MaxSize
	}
	if overlay.Spool.RetentionHours > 0 {
		cfg.SpoolRetentionHours = overlay.Spool.RetentionHours
	}

	return cfg, nil
}
