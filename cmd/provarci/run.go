// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/provar-ci/provar-ci/internal/agent"
	"github.com/provar-ci/provar-ci/internal/args"
	"github.com/provar-ci/provar-ci/internal/config"
	"github.com/provar-ci/provar-ci/internal/envvars"
	"github.com/provar-ci/provar-ci/internal/secret"
	"github.com/provar-ci/provar-ci/internal/step"
)

// runFlags mirrors the step form. Flags left unset fall back to the
// defaults section of the configuration.
type runFlags struct {
	installation       string
	projectName        string
	buildFile          string
	testPlan           string
	testFolder         string
	environment        string
	browser            string
	cacheSetting       string
	resultsPathSetting string
	licensePath        string
	secretsEnv         string
	secretsFile        string

	node         string
	workspace    string
	moduleRoot   string
	contextFile  string
	agentAddress string
	windowsStyle string
	vars         []string
	sensitive    []string
	dryRun       bool
}

func newRunCommand(app *App, root *rootFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a Provar Automation test plan through Ant",
		Long: `Run a Provar Automation test plan through Ant.

The build file is searched below <module-root>/<project>/ANT first and
<workspace>/<project>/ANT second. Exit status is 0 when the build succeeds,
1 when Ant reports a failure and 2 when the build is aborted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, app, root, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.installation, "provar-automation-name", "", "registered Provar Automation installation (empty uses ant on PATH)")
	fl.StringVar(&f.projectName, "project-name", step.DefaultProjectName, "project folder below the workspace")
	fl.StringVar(&f.buildFile, "build-file", step.DefaultBuildFile, "Ant build file name, .xml is appended when missing")
	fl.StringVar(&f.testPlan, "test-plan", step.DefaultTestPlan, "test plan to execute")
	fl.StringVar(&f.testFolder, "test-folder", step.DefaultTestFolder, "test folder to execute, All runs every folder")
	fl.StringVar(&f.environment, "environment", "", "target test environment")
	fl.StringVar(&f.browser, "browser", string(step.BrowserChromeHeadless), "target browser")
	fl.StringVar(&f.cacheSetting, "salesforce-metadata-cache-setting", string(step.CacheReuse), "metadata cache setting (Reuse, Refresh, Reload)")
	fl.StringVar(&f.resultsPathSetting, "results-path-setting", string(step.ResultsIncrement), "results path setting (Increment, Replace, Fail)")
	fl.StringVar(&f.licensePath, "license-path", "", "execution license path")
	fl.StringVar(&f.secretsEnv, "secrets-password-env", "", "environment variable holding the project secrets password")
	fl.StringVar(&f.secretsFile, "secrets-password-file", "", "file holding the project secrets password")

	fl.StringVar(&f.node, "node", "", "execution node name")
	fl.StringVar(&f.workspace, "workspace", "", "build workspace (default is the current directory for local runs)")
	fl.StringVar(&f.moduleRoot, "module-root", "", "checkout root searched before the workspace")
	fl.StringVar(&f.contextFile, "context", "", "TOML build context file")
	fl.StringVar(&f.agentAddress, "agent", "", "remote agent address host:port (default from config)")
	fl.StringVar(&f.windowsStyle, "windows-command-style", "", "cmd.exe command shape on Windows nodes (modern, legacy)")
	fl.StringArrayVar(&f.vars, "var", nil, "build variable NAME=VALUE, passed as -DNAME=VALUE (repeatable)")
	fl.StringArrayVar(&f.sensitive, "sensitive", nil, "name of a build variable whose value is masked (repeatable)")
	fl.BoolVar(&f.dryRun, "dry-run", false, "resolve everything and print the command instead of running it")
	cmd.MarkFlagsMutuallyExclusive("secrets-password-env", "secrets-password-file")

	return cmd
}

func runBuild(cmd *cobra.Command, app *App, root *rootFlags, f *runFlags) error {
	ctx := cmd.Context()
	cfg, _, err := app.loadConfig(ctx, root.configPath)
	if err != nil {
		return err
	}
	verbose := root.verbose || cfg.UI.Verbose
	logger := app.logger("provar-ci", verbose)

	stepCfg, err := f.stepConfig(cmd, app, cfg)
	if err != nil {
		return err
	}
	for _, warning := range stepCfg.Validate() {
		logger.Warn(warning)
	}

	style := cfg.Defaults.WindowsCommandStyle
	if f.windowsStyle != "" {
		if style, err = args.ParseStyle(f.windowsStyle); err != nil {
			return err
		}
	}

	bc := step.BuildContext{Variables: envvars.New(), Out: app.stdout, Color: colorEnabled(cfg.UI.Color, app.stdout)}
	var ctxEnv *envvars.EnvVars
	node := f.node
	if f.contextFile != "" {
		c, err := loadContextFile(f.contextFile)
		if err != nil {
			return err
		}
		ctxEnv = c.env()
		bc.Variables, bc.Sensitive = c.variables()
		bc.Workspace, bc.ModuleRoot = c.Workspace, c.ModuleRoot
		if node == "" {
			node = c.Node
		}
	}
	if err := parseAssignments("var", f.vars, bc.Variables); err != nil {
		return err
	}
	bc.Sensitive = bc.Sensitive.With(f.sensitive...)
	if f.workspace != "" {
		bc.Workspace = f.workspace
	}
	if f.moduleRoot != "" {
		bc.ModuleRoot = f.moduleRoot
	}

	address := cfg.Agent.Address
	if f.agentAddress != "" {
		address = f.agentAddress
	}
	if address == "" && bc.Workspace == "" {
		if wd, err := os.Getwd(); err == nil {
			bc.Workspace = wd
		}
	}

	ag, closer, err := app.Agents.Open(ctx, AgentRequest{Address: address, Node: node, Cfg: cfg})
	if err != nil {
		cmd.SilenceErrors = true
		renderError(app.stderr, err, verbose)
		return &ExitError{Code: step.ResultAborted.ExitCode(), Err: err}
	}
	defer closer.Close()

	bc.Env = buildEnv(ctx, ag, ctxEnv)
	if f.dryRun {
		ag = &dryRunAgent{Agent: ag, out: app.stdout, masked: maskedValues(stepCfg, bc)}
	}
	bc.Agent = ag

	b := &step.Builder{
		Config:        stepCfg,
		Installations: cfg.Registry(),
		WindowsStyle:  style,
		Logger:        logger,
	}
	res, err := b.Perform(ctx, bc)
	fmt.Fprintln(app.stdout, "Finished: "+strings.ToUpper(res.String()))
	if err != nil {
		cmd.SilenceErrors = true
		renderError(app.stderr, err, verbose)
		return &ExitError{Code: res.ExitCode(), Err: err}
	}
	if code := res.ExitCode(); code != 0 {
		cmd.SilenceErrors = true
		return &ExitError{Code: code}
	}
	return nil
}

// stepConfig starts from the configured defaults and applies the flags the
// user set.
func (f *runFlags) stepConfig(cmd *cobra.Command, app *App, cfg *config.Config) (step.Config, error) {
	sc := cfg.Defaults.StepConfig()
	changed := cmd.Flags().Changed

	for name, dst := range map[string]*string{
		"provar-automation-name": &sc.Installation,
		"project-name":           &sc.ProjectName,
		"build-file":             &sc.BuildFile,
		"test-plan":              &sc.TestPlan,
		"test-folder":            &sc.TestFolder,
		"environment":            &sc.Environment,
		"license-path":           &sc.LicensePath,
	} {
		if changed(name) {
			v, _ := cmd.Flags().GetString(name)
			*dst = v
		}
	}

	var err error
	if changed("browser") {
		if sc.Browser, err = step.ParseBrowser(f.browser); err != nil {
			return sc, err
		}
	}
	if changed("salesforce-metadata-cache-setting") {
		if sc.CacheSetting, err = step.ParseCacheSetting(f.cacheSetting); err != nil {
			return sc, err
		}
	}
	if changed("results-path-setting") {
		if sc.ResultsPathSetting, err = step.ParseResultsPathSetting(f.resultsPathSetting); err != nil {
			return sc, err
		}
	}

	switch {
	case f.secretsEnv != "":
		sc.SecretsPassword = secret.New(envvars.FromEnviron(app.Environ()).Value(f.secretsEnv))
	case f.secretsFile != "":
		if sc.SecretsPassword, err = secret.FromFile(f.secretsFile); err != nil {
			return sc, err
		}
	}

	if ok, errs := sc.IsValid(); !ok {
		return sc, errors.Join(errs...)
	}
	return sc, nil
}

// buildEnv is the node environment overlaid with the context environment.
func buildEnv(ctx context.Context, ag agent.Agent, overlay *envvars.EnvVars) *envvars.EnvVars {
	env := envvars.New()
	if n, err := ag.Node(ctx); err == nil {
		env = envvars.FromMap(n.Env, slices.Sorted(maps.Keys(n.Env))...)
	}
	if overlay != nil {
		for _, k := range overlay.Keys() {
			env.Put(k, overlay.Value(k))
		}
	}
	return env
}

func colorEnabled(mode config.ColorMode, w io.Writer) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
