// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for provar-ci.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	configPath string
	verbose    bool
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "provar-ci",
		Short: "Run Provar Automation test plans through Ant",
		Long: TitleStyle.Render("provar-ci") + SubtitleStyle.Render(" - Run Provar Automation test plans through Ant") + `

provar-ci resolves the Provar Automation installation registered for a build,
locates the project's Ant build file and launches it with the test plan,
browser and secrets settings of the step, locally or on a remote agent.

` + SubtitleStyle.Render("Examples:") + `
  provar-ci run --provar-automation-name 2.12 --test-plan Smoke
  provar-ci with --installation 2.12 --jdk jdk17 -- ant -version
  provar-ci tool list
  provar-ci agent serve --listen 0.0.0.0:2222
  provar-ci config show`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is the config.cue in the provar-ci config directory)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newRunCommand(app, flags),
		newWithCommand(app, flags),
		newToolCommand(app, flags),
		newAgentCommand(app, flags),
		newConfigCommand(app, flags),
	)
	return root
}

// errorHandler leaves exit errors alone; their handlers already reported them.
func errorHandler(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}

func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	app := NewApp(Dependencies{})
	err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(errorHandler),
	)
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
