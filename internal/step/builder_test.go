// SPDX-License-Identifier: MPL-2.0

package step

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/provar-ci/provar-ci/internal/agent"
	"github.com/provar-ci/provar-ci/internal/args"
	"github.com/provar-ci/provar-ci/internal/buildfile"
	"github.com/provar-ci/provar-ci/internal/envvars"
	"github.com/provar-ci/provar-ci/internal/issue"
	"github.com/provar-ci/provar-ci/internal/runner"
	"github.com/provar-ci/provar-ci/internal/secret"
	"github.com/provar-ci/provar-ci/internal/testutil"
	"github.com/provar-ci/provar-ci/internal/testutil/agenttest"
	"github.com/provar-ci/provar-ci/internal/tool"
)

func buildContext(a agent.Agent, out io.Writer) BuildContext {
	return BuildContext{
		Agent:     a,
		Env:       envvars.FromMap(map[string]string{"HOME": "/home/ci"}),
		Workspace: "/ws",
		Out:       out,
	}
}

func envOf(req *agent.LaunchRequest) *envvars.EnvVars {
	return envvars.FromEnviron(req.Env)
}

func TestPerformSuccess(t *testing.T) {
	t.Parallel()

	a := agenttest.Linux()
	a.Output = "run:\nBUILD SUCCESSFUL"
	var out bytes.Buffer

	b := &Builder{Config: DefaultConfig()}
	res, err := b.Perform(t.Context(), buildContext(a, &out))
	if err != nil {
		t.Fatal(err)
	}
	if res != ResultSuccess || res.ExitCode() != 0 {
		t.Fatalf("Result = %v", res)
	}

	for _, line := range []string{
		"Provar Automation CLI Version: \n",
		"Project Folder: ProvarProject\n",
		"Running the build file: build.xml\n",
		"Executing test plan: Regression\n",
		"Executing test folder: All\n",
		"Target browser: Chrome_Headless\n",
		"Salesforce Metadata Cache Setting: Reuse\n",
		"Results Path Setting: Increment\n",
		"Workspace: /ws\n",
		"BUILD FILE PATH:/ws/ProvarProject/ANT/build.xml\n",
	} {
		if !strings.Contains(out.String(), line) {
			t.Errorf("build log lacks %q:\n%s", line, out.String())
		}
	}

	if a.Launched.Dir != "/ws/ProvarProject/ANT" {
		t.Errorf("Dir = %q", a.Launched.Dir)
	}
	wantArgs := []string{"ant", "-file", "build.xml", "-DProvarSecretsPassword="}
	if !slices.Equal(a.Launched.Args, wantArgs) {
		t.Errorf("Args = %q, want %q", a.Launched.Args, wantArgs)
	}

	env := envOf(a.Launched)
	for name, want := range map[string]string{
		"HOME":                 "/home/ci",
		"TEST_PLAN":            "Regression",
		"TEST_FOLDER":          "/",
		"PROJECT_WORKSPACE":    "/ws/ProvarProject",
		"BROWSER":              "Chrome_Headless",
		"CACHE_SETTING":        "Reuse",
		"RESULTS_PATH_SETTING": "Increment",
		"PROJECT_NAME":         "ProvarProject",
	} {
		if got := env.Value(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if _, ok := env.Get("PROVAR_HOME"); ok {
		t.Error("PROVAR_HOME set without a selected installation")
	}
}

func TestPerformFailureExitCode(t *testing.T) {
	t.Parallel()

	a := agenttest.Linux()
	a.Code = 1
	b := &Builder{Config: DefaultConfig()}

	res, err := b.Perform(t.Context(), buildContext(a, nil))
	if err != nil {
		t.Fatal(err)
	}
	if res != ResultFailure || res.ExitCode() != 1 {
		t.Errorf("Result = %v", res)
	}
}

func TestPerformBuildFileWithoutExtension(t *testing.T) {
	t.Parallel()

	a := agenttest.Linux()
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.BuildFile = "build"

	if _, err := (&Builder{Config: cfg}).Perform(t.Context(), buildContext(a, &out)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Running the build file: build.xml\n") {
		t.Errorf("build log: %s", out.String())
	}
	if a.Launched.Args[2] != "build.xml" {
		t.Errorf("-file %q, want build.xml", a.Launched.Args[2])
	}
}

func TestPerformTestFolderAndPlan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		folder, plan         string
		wantFolder, wantPlan string
	}{
		{"All", "Regression", "/", "Regression"},
		{"aLL", "Smoke", "/", "Smoke"},
		{"tests/login", "", "tests/login", " "},
		{"", "", " ", " "},
	}
	for _, tt := range tests {
		t.Run(tt.folder, func(t *testing.T) {
			t.Parallel()

			a := agenttest.Linux()
			cfg := DefaultConfig()
			cfg.TestFolder = tt.folder
			cfg.TestPlan = tt.plan

			if _, err := (&Builder{Config: cfg}).Perform(t.Context(), buildContext(a, nil)); err != nil {
				t.Fatal(err)
			}
			env := envOf(a.Launched)
			if got := env.Value("TEST_FOLDER"); got != tt.wantFolder {
				t.Errorf("TEST_FOLDER = %q, want %q", got, tt.wantFolder)
			}
			if got := env.Value("TEST_PLAN"); got != tt.wantPlan {
				t.Errorf("TEST_PLAN = %q, want %q", got, tt.wantPlan)
			}
		})
	}
}

func TestPerformDefaultFrontEnd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, os, installation, want string
	}{
		{"unix no installation", "linux", "", "ant"},
		{"unix unknown installation", "darwin", "missing", "ant"},
		{"windows no installation", "windows", "", "cmd.exe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := agenttest.Linux()
			a.Info.OS = tt.os
			a.Files = map[string]bool{}
			cfg := DefaultConfig()
			cfg.Installation = tt.installation

			res, err := (&Builder{Config: cfg, Installations: tool.NewRegistry()}).Perform(t.Context(), buildContext(a, nil))
			if err != nil {
				t.Fatal(err)
			}
			if res != ResultSuccess {
				t.Errorf("Result = %v", res)
			}
			if a.Launched.Args[0] != tt.want {
				t.Errorf("Args[0] = %q, want %q", a.Launched.Args[0], tt.want)
			}
			if tt.os == "windows" && !strings.Contains(strings.Join(a.Launched.Args, " "), "ant.bat") {
				t.Errorf("windows command lacks ant.bat: %q", a.Launched.Args)
			}
		})
	}
}

func TestPerformSecret(t *testing.T) {
	t.Parallel()

	a := agenttest.Linux()
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.SecretsPassword = secret.New("s3cr3t pass")

	bc := buildContext(a, &out)
	bc.Variables = envvars.FromMap(map[string]string{"API": "key"}, "API")
	bc.Sensitive = args.NewSet("API")

	if _, err := (&Builder{Config: cfg}).Perform(t.Context(), bc); err != nil {
		t.Fatal(err)
	}

	log := out.String()
	if !strings.Contains(log, "Project is encrypted! Thank you for being secure.\n") {
		t.Errorf("build log lacks the encryption notice:\n%s", log)
	}
	if strings.Contains(log, "s3cr3t") || strings.Contains(log, "-DAPI=key") {
		t.Errorf("build log leaks a sensitive value:\n%s", log)
	}
	want := []string{"ant", "-file", "build.xml", "-DAPI=key", "-DProvarSecretsPassword=s3cr3t pass"}
	if !slices.Equal(a.Launched.Args, want) {
		t.Errorf("Args = %q, want %q", a.Launched.Args, want)
	}
}

func TestPerformBuildFileSearch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		moduleRoot string
		files      []string
		want       string
	}{
		{"module root first", "/src", []string{"/src/ProvarProject/ANT/build.xml", "/ws/ProvarProject/ANT/build.xml"}, "/src/ProvarProject/ANT/build.xml"},
		{"workspace when module root lacks it", "/src", []string{"/ws/ProvarProject/ANT/build.xml"}, "/ws/ProvarProject/ANT/build.xml"},
		{"fallback to workspace root", "/src", nil, "/ws/build.xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := agenttest.Linux()
			a.Files = map[string]bool{}
			for _, f := range tt.files {
				a.Files[f] = true
			}
			var out bytes.Buffer
			bc := buildContext(a, &out)
			bc.ModuleRoot = tt.moduleRoot

			if _, err := (&Builder{Config: DefaultConfig()}).Perform(t.Context(), bc); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out.String(), "BUILD FILE PATH:"+tt.want+"\n") {
				t.Errorf("build log lacks %s:\n%s", tt.want, out.String())
			}
		})
	}
}

func TestPerformWorkspaceUnavailable(t *testing.T) {
	t.Parallel()

	a := agenttest.Linux()
	a.Files = map[string]bool{}
	bc := buildContext(a, nil)
	bc.Workspace = ""
	bc.ModuleRoot = "/src"

	res, err := (&Builder{Config: DefaultConfig()}).Perform(t.Context(), bc)
	if res != ResultAborted || res.ExitCode() != 2 {
		t.Errorf("Result = %v", res)
	}
	var abortErr *AbortError
	if !errors.As(err, &abortErr) || abortErr.Issue != issue.WorkspaceUnavailableId {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(err, buildfile.ErrWorkspaceUnavailable) {
		t.Error("cause is lost")
	}
	if a.Launched != nil {
		t.Error("launched despite abort")
	}
}

func TestPerformInstallation(t *testing.T) {
	t.Parallel()

	a := agenttest.Linux()
	a.Info.Env = map[string]string{"TOOLS": "/opt/tools"}
	a.Homes = map[string]string{"/opt/tools/provar": "/opt/tools/provar"}
	cfg := DefaultConfig()
	cfg.Installation = "2.12"
	reg := tool.NewRegistry(tool.New(tool.KindProvar, "2.12", "$TOOLS/provar/"))

	res, err := (&Builder{Config: cfg, Installations: reg}).Perform(t.Context(), buildContext(a, nil))
	if err != nil {
		t.Fatal(err)
	}
	if res != ResultSuccess {
		t.Errorf("Result = %v", res)
	}
	if got := envOf(a.Launched).Value("PROVAR_HOME"); got != "/opt/tools/provar" {
		t.Errorf("PROVAR_HOME = %q", got)
	}
	if a.Launched.Args[0] != "ant" {
		t.Errorf("Args[0] = %q", a.Launched.Args[0])
	}
}

func TestPerformAborts(t *testing.T) {
	t.Parallel()

	reg := tool.NewRegistry(tool.New(tool.KindProvar, "2.12", "/opt/provar"))
	tests := []struct {
		name   string
		mutate func(*agenttest.Agent)
		want   issue.Id
		is     error
	}{
		{
			name:   "not a Provar directory",
			mutate: func(*agenttest.Agent) {},
			want:   issue.NotInstallDirId,
			is:     tool.ErrNotInstallDir,
		},
		{
			name:   "node offline",
			mutate: func(f *agenttest.Agent) { f.NodeErr = &agent.OfflineError{Agent: "linux-1", Err: io.EOF} },
			want:   issue.NodeOfflineId,
			is:     agent.ErrOffline,
		},
		{
			name:   "offline during lookup",
			mutate: func(f *agenttest.Agent) { f.HomeErr = &agent.OfflineError{Agent: "linux-1", Err: io.EOF} },
			want:   issue.NodeOfflineId,
			is:     agent.ErrOffline,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := agenttest.Linux()
			tt.mutate(a)
			cfg := DefaultConfig()
			cfg.Installation = "2.12"

			res, err := (&Builder{Config: cfg, Installations: reg}).Perform(t.Context(), buildContext(a, nil))
			if res != ResultAborted {
				t.Errorf("Result = %v", res)
			}
			var abortErr *AbortError
			if !errors.As(err, &abortErr) || abortErr.Issue != tt.want {
				t.Fatalf("err = %v", err)
			}
			if !errors.Is(err, tt.is) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.is)
			}
			if a.Launched != nil {
				t.Error("launched despite abort")
			}
		})
	}
}

func TestPerformLaunchFailureHint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		reg  *tool.Registry
		took time.Duration
		want issue.Id
	}{
		{"nothing registered", tool.NewRegistry(), 10 * time.Millisecond, issue.GlobalConfigNeededId},
		{"registered but not selected", tool.NewRegistry(tool.New(tool.KindProvar, "2.12", "/opt/provar")), 10 * time.Millisecond, issue.ProjectConfigNeededId},
		{"late failure", tool.NewRegistry(), 2 * time.Second, issue.ExecutionFailedId},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clock := testutil.NewFakeClock(time.Time{})
			a := agenttest.Linux()
			a.Clock = clock
			a.Took = tt.took
			a.LaunchErr = errors.New("exec: \"ant\": executable file not found in $PATH")

			b := &Builder{Config: DefaultConfig(), Installations: tt.reg, Now: clock.Now}
			res, err := b.Perform(t.Context(), buildContext(a, nil))
			if res != ResultAborted {
				t.Errorf("Result = %v", res)
			}
			var abortErr *AbortError
			if !errors.As(err, &abortErr) || abortErr.Issue != tt.want {
				t.Fatalf("err = %v", err)
			}
			if !errors.Is(err, runner.ErrExecutionFailed) {
				t.Error("cause is lost")
			}
		})
	}
}

func TestPerformAgentLostDuringLaunch(t *testing.T) {
	t.Parallel()

	clock := testutil.NewFakeClock(time.Time{})
	a := agenttest.Linux()
	a.Clock = clock
	a.Took = 10 * time.Millisecond
	a.LaunchErr = &agent.OfflineError{Agent: "linux-1", Err: io.ErrUnexpectedEOF}

	b := &Builder{Config: DefaultConfig(), Installations: tool.NewRegistry(), Now: clock.Now}
	res, err := b.Perform(t.Context(), buildContext(a, nil))
	if res != ResultAborted {
		t.Errorf("Result = %v", res)
	}
	var abortErr *AbortError
	if !errors.As(err, &abortErr) || abortErr.Issue != issue.NodeOfflineId {
		t.Fatalf("err = %v, want a NodeOfflineId abort", err)
	}
	if strings.Contains(err.Error(), "configure") {
		t.Errorf("a lost agent must not suggest configuration: %v", err)
	}
	if !errors.Is(err, agent.ErrOffline) {
		t.Error("ErrOffline is lost")
	}
}

func TestPerformRejectsInvalidUTF8Secret(t *testing.T) {
	t.Parallel()

	a := agenttest.Linux()
	cfg := DefaultConfig()
	cfg.SecretsPassword = secret.New("caf\xe9")

	res, err := (&Builder{Config: cfg}).Perform(t.Context(), buildContext(a, nil))
	if res != ResultAborted {
		t.Errorf("Result = %v", res)
	}
	var abortErr *AbortError
	if !errors.As(err, &abortErr) || abortErr.Issue != issue.InvalidStepConfigId {
		t.Fatalf("err = %v, want an InvalidStepConfigId abort", err)
	}
	if !errors.Is(err, args.ErrInvalidEncoding) {
		t.Errorf("err = %v, want ErrInvalidEncoding", err)
	}
	if a.Launches() != 0 {
		t.Error("launched with a corrupted secret")
	}
}

func TestPerformCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	res, err := (&Builder{Config: DefaultConfig()}).Perform(ctx, buildContext(agenttest.Linux(), nil))
	if res != ResultAborted {
		t.Errorf("Result = %v", res)
	}
	if !errors.Is(err, runner.ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", err)
	}
}

func TestPerformMergesBuildVariables(t *testing.T) {
	t.Parallel()

	a := agenttest.Linux()
	bc := buildContext(a, nil)
	bc.Variables = envvars.FromMap(map[string]string{"EMPTY": "", "WHERE": "$HOME/out"}, "EMPTY", "WHERE")

	if _, err := (&Builder{Config: DefaultConfig()}).Perform(t.Context(), bc); err != nil {
		t.Fatal(err)
	}
	env := envOf(a.Launched)
	if v, ok := env.Get("EMPTY"); !ok || v != "" {
		t.Errorf("EMPTY = %q, %v; empty build variables must be kept", v, ok)
	}
	if got := env.Value("WHERE"); got != "/home/ci/out" {
		t.Errorf("WHERE = %q", got)
	}
	want := []string{"ant", "-file", "build.xml", "-DEMPTY=", "-DWHERE=$HOME/out", "-DProvarSecretsPassword="}
	if !slices.Equal(a.Launched.Args, want) {
		t.Errorf("Args = %q, want %q", a.Launched.Args, want)
	}
}
