// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"mvdan.cc/sh/v3/syntax"

	"github.com/provar-ci/provar-ci/internal/agent"
	"github.com/provar-ci/provar-ci/internal/envvars"
	"github.com/provar-ci/provar-ci/internal/step"
	"github.com/provar-ci/provar-ci/pkg/platform"
)

type withFlags struct {
	installation string
	jdk          string
	ant          string
	node         string
}

func newWithCommand(app *App, root *rootFlags) *cobra.Command {
	f := &withFlags{}
	cmd := &cobra.Command{
		Use:   "with [flags] [-- command [args...]]",
		Short: "Expose registered installations to a command",
		Long: `Expose registered installations to a command.

Without a command, prints shell export lines for PROVAR_HOME, JAVA_HOME,
ANT_HOME and PATH suitable for eval. With a command after --, runs it with
those variables applied and exits with its status.`,
		Example: `  eval "$(provar-ci with --installation 2.12 --jdk jdk17)"
  provar-ci with --installation 2.12 --ant ant-1.10 -- ant -version`,
		RunE: func(cmd *cobra.Command, argv []string) error {
			return runWith(cmd, app, root, f, argv)
		},
	}
	cmd.Flags().StringVar(&f.installation, "installation", "", "Provar Automation installation name")
	cmd.Flags().StringVar(&f.jdk, "jdk", "", "JDK installation name")
	cmd.Flags().StringVar(&f.ant, "ant", "", "Ant installation name")
	cmd.Flags().StringVar(&f.node, "node", "", "node whose tool locations apply")
	return cmd
}

func runWith(cmd *cobra.Command, app *App, root *rootFlags, f *withFlags, argv []string) error {
	ctx := cmd.Context()
	cfg, _, err := app.loadConfig(ctx, root.configPath)
	if err != nil {
		return err
	}

	wc := step.WrapperContext{Env: envvars.FromEnviron(app.Environ())}
	goos := runtime.GOOS
	if f.node != "" {
		n, err := cfg.LookupNode(f.node)
		if err != nil {
			return err
		}
		wc.Node = &n
		if n.OS != "" {
			goos = n.OS
		}
	}
	w := step.Wrapper{Installation: f.installation, JDK: f.jdk, Ant: f.ant, Installations: cfg.Registry()}
	added, err := w.SetUp(wc)
	if err != nil {
		cmd.SilenceErrors = true
		renderError(app.stderr, err, root.verbose || cfg.UI.Verbose)
		return &ExitError{Code: step.ResultAborted.ExitCode(), Err: err}
	}

	env := wc.Env.Clone().WithPathSeparator(platform.PathListSeparator(goos))
	step.Apply(env, added)

	if len(argv) == 0 {
		return printExports(app, env, added)
	}

	dir, _ := os.Getwd()
	code, err := agent.RunProcess(ctx, agent.LaunchRequest{
		Args:   argv,
		Env:    env.Environ(),
		Dir:    dir,
		Stdout: app.stdout,
	})
	if err != nil {
		return fmt.Errorf("run %s: %w", argv[0], err)
	}
	if code != 0 {
		cmd.SilenceErrors = true
		return &ExitError{Code: code}
	}
	return nil
}

// printExports writes one POSIX shell line per variable touched by added.
func printExports(app *App, env, added *envvars.EnvVars) error {
	var names []string
	for _, k := range added.Keys() {
		name, _, _ := strings.Cut(k, "+")
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	for _, name := range names {
		v, ok := env.Get(name)
		if !ok {
			fmt.Fprintf(app.stdout, "unset %s\n", name)
			continue
		}
		q, err := syntax.Quote(v, syntax.LangPOSIX)
		if err != nil {
			return fmt.Errorf("quote %s: %w", name, err)
		}
		fmt.Fprintf(app.stdout, "export %s=%s\n", name, q)
	}
	return nil
}
