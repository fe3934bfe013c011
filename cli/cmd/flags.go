// Package cmd provides CLI commands for the qtrack binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags across commands.
var (
	// ConfigFlag points at an optional qtrack.yaml overlay.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to a qtrack.yaml config overlay",
	}

	// ProjectFlag names the project a run belongs to.
	ProjectFlag = &cli.StringFlag{
		Name:  "project",
		Usage: "Project name",
	}

	// NameFlag names the run itself.
	NameFlag = &cli.StringFlag{
		Name:  "name",
		Usage: "Run name",
	}

	// TUIFlag enables the Bubble Tea live dashboard for stats.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode",
		Value: true,
	}
)
