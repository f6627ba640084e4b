// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/provar-ci/provar-ci/internal/config"
)

func newConfigCommand(app *App, root *rootFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage provar-ci configuration",
		Long: `Manage provar-ci configuration.

Configuration is stored in:
  - Linux: ~/.config/provar-ci/config.cue
  - macOS: ~/Library/Application Support/provar-ci/config.cue
  - Windows: %APPDATA%\provar-ci\config.cue`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := app.loadConfig(cmd.Context(), root.configPath)
			if err != nil {
				return err
			}
			showConfig(app.stdout, cfg, path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.CreateDefaultConfig()
			if err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
			fmt.Fprintf(app.stdout, "%s Configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if root.configPath != "" {
				fmt.Fprintf(app.stdout, "Config file: %s\n", root.configPath)
				return nil
			}
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			path, err := config.FilePath()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "Config directory: %s\n", dir)
			fmt.Fprintf(app.stdout, "Config file: %s\n", path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := app.loadConfig(cmd.Context(), root.configPath)
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(w io.Writer, cfg *config.Config, path string) {
	value := SuccessStyle.Render
	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if path != "" {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}

	for _, group := range []struct {
		name string
		list []config.Installation
	}{
		{"installations", cfg.Installations},
		{"jdks", cfg.JDKs},
		{"ants", cfg.Ants},
	} {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s:\n", KeyStyle.Render(group.name))
		if len(group.list) == 0 {
			fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
		}
		for _, inst := range group.list {
			fmt.Fprintf(w, "  - %s: %s\n", value(inst.Name), inst.Home)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", KeyStyle.Render("nodes"))
	if len(cfg.Nodes) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, n := range cfg.Nodes {
		fmt.Fprintf(w, "  - %s (%s)\n", value(n.Name), n.OS)
		for _, k := range slices.Sorted(maps.Keys(n.Env)) {
			fmt.Fprintf(w, "      env %s=%s\n", k, n.Env[k])
		}
		for _, loc := range n.ToolLocations {
			fmt.Fprintf(w, "      %s %s: %s\n", loc.Kind, loc.Name, loc.Home)
		}
	}

	d := cfg.Defaults
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", KeyStyle.Render("defaults"))
	for _, kv := range [][2]string{
		{"provar_automation_name", d.ProvarAutomationName},
		{"project_name", d.ProjectName},
		{"build_file", d.BuildFile},
		{"test_plan", d.TestPlan},
		{"test_folder", d.TestFolder},
		{"environment", d.Environment},
		{"browser", string(d.Browser)},
		{"salesforce_metadata_cache_setting", string(d.SalesforceMetadataCacheSetting)},
		{"results_path_setting", string(d.ResultsPathSetting)},
		{"license_path", d.LicensePath},
		{"windows_command_style", string(d.WindowsCommandStyle)},
	} {
		fmt.Fprintf(w, "  %s: %s\n", kv[0], value(kv[1]))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", KeyStyle.Render("agent"))
	fmt.Fprintf(w, "  address: %s\n", value(cfg.Agent.Address))
	fmt.Fprintf(w, "  token_env: %s\n", value(cfg.Agent.TokenEnv))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", KeyStyle.Render("ui"))
	fmt.Fprintf(w, "  verbose: %s\n", value(fmt.Sprintf("%v", cfg.UI.Verbose)))
	fmt.Fprintf(w, "  color: %s\n", value(string(cfg.UI.Color)))
}
