package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/qtrack"
	"github.com/justapithecus/qtrack/cli/tui"
)

// StatsCommand renders the live dashboard (or a static snapshot) for the
// active run set by `qtrack run` in the same process. It only reads
// through Run's exported accessors, the same data a static renderer would
// print, per the TUI being read-only.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show live pipeline stats for the active run",
		Flags: []cli.Flag{
			TUIFlag,
			&cli.DurationFlag{Name: "interval", Usage: "Dashboard refresh interval", Value: time.Second},
		},
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	run := qtrack.Default()
	if run == nil {
		return cli.Exit("qtrack: no active run (start one with `qtrack run` first)", 1)
	}

	poll := func() tui.Snapshot { return snapshotFromRun(run) }

	if !c.Bool("tui") {
		fmt.Fprintln(c.App.Writer, tui.RenderStatsStatic(poll()))
		return nil
	}

	return tui.RunStatsTUI(poll, c.Duration("interval"))
}

func snapshotFromRun(run *qtrack.Run) tui.Snapshot {
	stats := run.Stats()
	connState := run.ConnState()
	spool := run.SpoolStats()

	return tui.Snapshot{
		RunID:              run.RunID(),
		QueueDepth:         run.QueueDepth(),
		ConnState:          string(connState.State),
		ConsecutiveErrors:  connState.ConsecutiveFailures,
		EventsOffered:      stats.EventsOffered,
		EventsDropped:      stats.EventsDropped,
		BatchesSent:        stats.BatchesSent,
		BatchesFailed:      stats.BatchesFailed,
		EventsSent:         stats.EventsSent,
		Coalesced:          stats.Coalesced,
		SpoolPendingFiles:  spool.PendingFiles,
		SpoolPendingEvents: spool.PendingEvents,
		SpoolTotalSynced:   spool.TotalSynced,
	}
}
