// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/provar-ci/provar-ci/internal/envvars"
	"github.com/provar-ci/provar-ci/internal/issue"
	"github.com/provar-ci/provar-ci/internal/step"
	"github.com/provar-ci/provar-ci/internal/tool"
)

func newToolCommand(app *App, root *rootFlags) *cobra.Command {
	toolCmd := &cobra.Command{
		Use:   "tool",
		Short: "Inspect registered installations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var verify bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List registered Provar Automation, JDK and Ant installations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := app.loadConfig(cmd.Context(), root.configPath)
			if err != nil {
				return err
			}
			reg := cfg.Registry()
			host := envvars.FromEnviron(app.Environ())
			for _, kind := range tool.Kinds() {
				fmt.Fprintf(app.stdout, "%s:\n", KeyStyle.Render(kind.String()))
				installs := reg.Installations(kind)
				if len(installs) == 0 {
					fmt.Fprintf(app.stdout, "  %s\n", SubtitleStyle.Render("(none configured)"))
					continue
				}
				for _, inst := range installs {
					line := fmt.Sprintf("  - %s  %s", inst.Name, inst.Home)
					if verify && kind == tool.KindProvar {
						if err := tool.CheckHome(host.Expand(inst.Home)); err != nil {
							line += "  " + ErrorStyle.Render("✗ "+err.Error())
						} else {
							line += "  " + SuccessStyle.Render("✓")
						}
					}
					fmt.Fprintln(app.stdout, line)
				}
			}
			return nil
		},
	}
	list.Flags().BoolVar(&verify, "check", false, "check Provar Automation homes on this host")

	check := &cobra.Command{
		Use:   "check <home>",
		Short: "Check that a directory is a Provar Automation installation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			if err := tool.CheckHome(argv[0]); err != nil {
				cmd.SilenceErrors = true
				renderError(app.stderr, &step.AbortError{Message: err.Error(), Issue: issue.NotInstallDirId, Cause: err}, root.verbose)
				return &ExitError{Code: 1, Err: err}
			}
			fmt.Fprintf(app.stdout, "%s %s is a Provar Automation installation\n", SuccessStyle.Render("✓"), argv[0])
			return nil
		},
	}

	toolCmd.AddCommand(list, check)
	return toolCmd
}
