// SPDX-License-Identifier: MPL-2.0

package step

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/provar-ci/provar-ci/internal/agent"
	"github.com/provar-ci/provar-ci/internal/args"
	"github.com/provar-ci/provar-ci/internal/buildfile"
	"github.com/provar-ci/provar-ci/internal/envvars"
	"github.com/provar-ci/provar-ci/internal/issue"
	"github.com/provar-ci/provar-ci/internal/runner"
	"github.com/provar-ci/provar-ci/internal/tool"
	"github.com/provar-ci/provar-ci/pkg/platform"
)

const (
	unixFrontEnd    = "ant"
	windowsFrontEnd = "ant.bat"
)

type (
	// Builder runs Provar Automation through Ant for one step configuration.
	Builder struct {
		Config Config
		// Installations is the registered toolchain snapshot.
		Installations tool.Lister
		// WindowsStyle selects the cmd.exe wrapper shape on Windows nodes.
		WindowsStyle args.Style
		// Logger receives diagnostics. The build log goes to BuildContext.Out.
		Logger *log.Logger
		// HintWindow and Now tune the early launch failure hint.
		HintWindow time.Duration
		Now        func() time.Time
	}

	// BuildContext is what the orchestrator knows about the running build.
	BuildContext struct {
		Agent agent.Agent
		// Env is the build environment. Perform works on a copy.
		Env *envvars.EnvVars
		// Variables are the user build variables, in declaration order.
		Variables *envvars.EnvVars
		// Sensitive names the build variables whose values are masked.
		Sensitive args.Set
		// ModuleRoot is the checkout root, searched first for the build file.
		ModuleRoot string
		// Workspace is the build workspace. Empty means it is unavailable.
		Workspace string
		Out       io.Writer
		Color     bool
	}
)

// Perform runs the build. A non-zero exit of the tool is ResultFailure with
// a nil error; configuration and connectivity problems return ResultAborted
// with an *AbortError; cancellation returns ResultAborted wrapping
// runner.ErrCancelled.
func (b *Builder) Perform(ctx context.Context, bc BuildContext) (Result, error) {
	logger := b.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	out := bc.Out
	if out == nil {
		out = io.Discard
	}
	cfg := b.Config

	node, err := bc.Agent.Node(ctx)
	if err != nil {
		return abort(issue.NodeOfflineId, "the build agent is offline", err)
	}
	goos := node.OS
	if goos == "" {
		goos = runtime.GOOS
	}

	env := envvars.New()
	if bc.Env != nil {
		env = bc.Env.Clone()
	}
	env = env.WithPathSeparator(platform.PathListSeparator(goos))

	buildFile := buildfile.NormalizeName(env.Expand(cfg.BuildFile))

	fmt.Fprintln(out, "Provar Automation CLI Version: "+cfg.Installation)
	fmt.Fprintln(out, "Project Folder: "+cfg.ProjectName)
	fmt.Fprintln(out, "Running the build file: "+buildFile)
	fmt.Fprintln(out, "Executing test plan: "+cfg.TestPlan)
	fmt.Fprintln(out, "Executing test folder: "+cfg.TestFolder)
	fmt.Fprintln(out, "Target environment: "+cfg.Environment)
	fmt.Fprintln(out, "Target browser: "+cfg.Browser.String())
	if cfg.SecretsPassword.IsSet() {
		fmt.Fprintln(out, "Project is encrypted! Thank you for being secure.")
	}
	fmt.Fprintln(out, "Salesforce Metadata Cache Setting: "+cfg.CacheSetting.String())
	fmt.Fprintln(out, "Results Path Setting: "+cfg.ResultsPathSetting.String())
	if cfg.LicensePath != "" {
		fmt.Fprintln(out, "Execution license path being used: "+cfg.LicensePath)
	}
	fmt.Fprintln(out, "Workspace: "+bc.Workspace)

	if bc.Variables != nil {
		envvars.MergeBuildVariables(env, bc.Variables)
	}

	var registered []tool.Installation
	if b.Installations != nil {
		registered = b.Installations.Installations(tool.KindProvar)
	}
	inst, selected := tool.Find(registered, cfg.Installation)
	if cfg.Installation != "" && !selected {
		logger.Warn("installation is not registered, using the Ant front end on PATH", "installation", cfg.Installation)
	}
	if selected {
		inst = tool.ForEnvironment(tool.ForNode(inst, node), env)
		home, err := tool.Executable(ctx, bc.Agent, inst)
		switch {
		case errors.Is(err, agent.ErrOffline):
			return abort(issue.NodeOfflineId, "the build agent is offline", err)
		case err != nil:
			return abort(issue.NotInstallDirId, err.Error(), err)
		}
		logger.Debug("resolved installation", "name", inst.Name, "home", home)
	}
	exe := unixFrontEnd
	if !platform.IsUnix(goos) {
		exe = windowsFrontEnd
	}

	exportStepVariables(env, cfg, bc.Workspace, goos)

	resolved, err := buildfile.Resolve(ctx, bc.Agent, goos, bc.ModuleRoot, bc.Workspace, buildFile, env.Expand(cfg.ProjectName))
	switch {
	case errors.Is(err, buildfile.ErrWorkspaceUnavailable):
		return abort(issue.WorkspaceUnavailableId, "Workspace is not available. Agent may be disconnected.", err)
	case err != nil:
		return abort(issue.NodeOfflineId, err.Error(), err)
	}
	if !resolved.Exists {
		logger.Warn("build file not found, the launch will report it", "path", resolved.Path)
	}
	fmt.Fprintln(out, "BUILD FILE PATH:"+resolved.Path)

	cmd, err := args.BuildInvocation(args.Invocation{
		Executable:    exe,
		BuildFileName: resolved.Name(),
		Variables:     bc.Variables,
		Sensitive:     bc.Sensitive,
		Secret:        cfg.SecretsPassword,
	})
	if err != nil {
		return abort(issue.InvalidStepConfigId, err.Error(), err)
	}

	if selected {
		inst.BuildEnvVars(env, goos)
	}

	cmd, err = args.ForPlatform(cmd, platform.IsUnix(goos), b.WindowsStyle)
	if err != nil {
		return abort(issue.InvalidStepConfigId, err.Error(), err)
	}

	outcome, err := runner.Run(ctx, bc.Agent, runner.Invocation{
		Args:         cmd,
		Env:          env,
		Dir:          resolved.Dir(),
		ToolSelected: selected,
	}, runner.Options{
		Out:                     out,
		Color:                   bc.Color,
		InstallationsRegistered: len(registered) > 0,
		HintWindow:              b.HintWindow,
		Now:                     b.Now,
	})
	if err != nil {
		if errors.Is(err, runner.ErrCancelled) {
			return ResultAborted, err
		}
		if errors.Is(err, agent.ErrOffline) {
			return abort(issue.NodeOfflineId, "the build agent went offline during the build", err)
		}
		id := issue.ExecutionFailedId
		var execErr *runner.ExecutionError
		if errors.As(err, &execErr) && execErr.Hint != 0 {
			id = execErr.Hint
		}
		return abort(id, err.Error(), err)
	}

	logger.Debug("build finished", "exit", outcome.ExitCode, "reported", outcome.Reported, "duration", outcome.Duration)
	if outcome.Success() {
		return ResultSuccess, nil
	}
	return ResultFailure, nil
}

// exportStepVariables exposes the step settings to the build script.
func exportStepVariables(env *envvars.EnvVars, cfg Config, workspace, goos string) {
	if cfg.TestPlan != "" {
		env.Put("TEST_PLAN", cfg.TestPlan)
	} else {
		env.Put("TEST_PLAN", " ")
	}
	switch {
	case strings.EqualFold(cfg.TestFolder, "All"):
		env.Put("TEST_FOLDER", "/")
	case cfg.TestFolder != "":
		env.Put("TEST_FOLDER", cfg.TestFolder)
	default:
		env.Put("TEST_FOLDER", " ")
	}

	env.Put("PROJECT_WORKSPACE", workspace+platform.Separator(goos)+cfg.ProjectName)
	env.Put("ENVIRONMENT", cfg.Environment)
	env.Put("BROWSER", cfg.Browser.String())
	env.Put("CACHE_SETTING", cfg.CacheSetting.String())
	env.Put("RESULTS_PATH_SETTING", cfg.ResultsPathSetting.String())
	env.Put("PROJECT_NAME", cfg.ProjectName)
	env.Put("LICENSE_PATH", cfg.LicensePath)
}
