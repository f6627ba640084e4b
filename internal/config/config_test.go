// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/provar-ci/provar-ci/internal/args"
	"github.com/provar-ci/provar-ci/internal/issue"
	"github.com/provar-ci/provar-ci/internal/step"
	"github.com/provar-ci/provar-ci/internal/testutil"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Defaults.ProjectName != "ProvarProject" {
		t.Errorf("expected default project name to be ProvarProject, got %s", cfg.Defaults.ProjectName)
	}
	if cfg.Defaults.Browser != step.BrowserChromeHeadless {
		t.Errorf("expected default browser to be Chrome_Headless, got %s", cfg.Defaults.Browser)
	}
	if cfg.Defaults.WindowsCommandStyle != args.StyleSplit {
		t.Errorf("expected default windows style to be modern, got %s", cfg.Defaults.WindowsCommandStyle)
	}
	if cfg.Agent.TokenEnv != DefaultTokenEnv {
		t.Errorf("expected default token env %s, got %s", DefaultTokenEnv, cfg.Agent.TokenEnv)
	}
	if cfg.UI.Color != ColorAuto {
		t.Errorf("expected default color to be auto, got %s", cfg.UI.Color)
	}
	if len(cfg.Installations) != 0 {
		t.Errorf("expected no installations, got %v", cfg.Installations)
	}
}

func TestConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME is only honored on Linux")
	}
	Reset()
	defer testutil.MustSetenv(t, "XDG_CONFIG_HOME", "/tmp/test-xdg-config")()

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() returned error: %v", err)
	}
	if want := filepath.Join("/tmp/test-xdg-config", AppName); dir != want {
		t.Errorf("ConfigDir() = %s, want %s", dir, want)
	}
}

func TestReset(t *testing.T) {
	SetConfigDirOverride("/custom/dir")
	Reset()
	if configDirOverride != "" {
		t.Errorf("Reset() left override %q", configDirOverride)
	}
}

func TestLoad_ReturnsDefaultsWhenNoConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, path, err := NewProvider().LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if path != "" {
		t.Errorf("expected no config path, got %q", path)
	}
	if cfg.Defaults.TestPlan != step.DefaultTestPlan {
		t.Errorf("expected default test plan, got %q", cfg.Defaults.TestPlan)
	}
}

func TestLoad_FromConfigDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := writeConfig(t, dir, `
installations: [{name: "2.12", home: "/opt/provar/"}]
jdks: [{name: "jdk17", home: "/usr/lib/jvm/17"}]
nodes: [{
	name: "win-1"
	os:   "windows"
	env: {TOOLS: "D:\\tools"}
	tool_locations: [{kind: "provar", name: "2.12", home: "$TOOLS\\provar"}]
}]
defaults: {
	provar_automation_name: "2.12"
	browser:                "Firefox"
}
agent: {address: "ci-agent:2222"}
ui: {verbose: true}
`)

	cfg, path, err := NewProvider().LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if len(cfg.Installations) != 1 || cfg.Installations[0].Name != "2.12" {
		t.Errorf("Installations = %+v", cfg.Installations)
	}
	if cfg.Defaults.Browser != step.BrowserFirefox {
		t.Errorf("Browser = %q", cfg.Defaults.Browser)
	}
	if cfg.Defaults.ProjectName != step.DefaultProjectName {
		t.Errorf("unset defaults must keep their default, ProjectName = %q", cfg.Defaults.ProjectName)
	}
	if cfg.Agent.Address != "ci-agent:2222" || cfg.Agent.TokenEnv != DefaultTokenEnv {
		t.Errorf("Agent = %+v", cfg.Agent)
	}
	if !cfg.UI.Verbose {
		t.Error("expected verbose to be true")
	}

	node, ok := cfg.Node("win-1")
	if !ok {
		t.Fatal("node win-1 not found")
	}
	if node.Env["TOOLS"] != `D:\tools` {
		t.Errorf("node env keys must keep their case, got %v", node.Env)
	}
	if home, _ := node.ToolLocation("provar", "2.12"); home != `$TOOLS\provar` {
		t.Errorf("tool location = %q", home)
	}
}

func TestLoad_CustomPath_NotFound_ReturnsError(t *testing.T) {
	t.Parallel()

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "missing.cue")})
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	ae, ok := issue.Find(err)
	if !ok {
		t.Fatalf("expected ActionableError, got %T", err)
	}
	if ae.Operation != "load configuration" || ae.IssueID != issue.ConfigLoadFailedId {
		t.Errorf("unexpected error context: %+v", ae)
	}
}

func TestLoad_CustomPath_InvalidCUE_ReturnsError(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, t.TempDir(), `defaults: {browser: "IE"}`)

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err == nil {
		t.Fatal("expected schema validation error")
	}
	if !strings.Contains(err.Error(), "defaults.browser") {
		t.Errorf("error should name the field path, got: %v", err)
	}
}

func TestLoad_DuplicateNames_ReturnsError(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, t.TempDir(), `installations: [{name: "a"}, {name: "a"}]`)

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got: %v", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}

func TestCreateDefaultConfigAndSave(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)

	path, err := CreateDefaultConfig()
	if err != nil {
		t.Fatalf("CreateDefaultConfig() returned error: %v", err)
	}
	if path != filepath.Join(dir, "config.cue") {
		t.Errorf("path = %q", path)
	}

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}

	cfg.Installations = append(cfg.Installations, Installation{Name: "2.12", Home: `C:\Provar`})
	cfg.Nodes = append(cfg.Nodes, Node{
		Name:          "win-1",
		OS:            "windows",
		Env:           map[string]string{"B": "2", "A": "1"},
		ToolLocations: []ToolLocation{{Kind: "provar", Name: "2.12", Home: `D:\Provar`}},
	})
	cfg.Defaults.WindowsCommandStyle = args.StyleJoined
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}

	reloaded, err := NewProvider().Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("saved config does not load: %v", err)
	}
	if len(reloaded.Installations) != 1 || reloaded.Installations[0].Home != `C:\Provar` {
		t.Errorf("Installations = %+v", reloaded.Installations)
	}
	if reloaded.Defaults.WindowsCommandStyle != args.StyleJoined {
		t.Errorf("WindowsCommandStyle = %q", reloaded.Defaults.WindowsCommandStyle)
	}
	if n, ok := reloaded.Node("win-1"); !ok || n.Env["A"] != "1" {
		t.Errorf("Node = %+v, %v", n, ok)
	}

	// CreateDefaultConfig never overwrites an existing file.
	if _, err := CreateDefaultConfig(); err != nil {
		t.Fatal(err)
	}
	again, err := NewProvider().Load(context.Background(), LoadOptions{})
	if err != nil || len(again.Installations) != 1 {
		t.Errorf("existing config was overwritten: %v, %+v", err, again)
	}
}

func TestGenerateCUE_Deterministic(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Nodes = []Node{{Name: "n", OS: "linux", Env: map[string]string{"Z": "1", "A": "2", "M": "3"}}}

	first := GenerateCUE(cfg)
	for range 5 {
		if got := GenerateCUE(cfg); got != first {
			t.Fatal("GenerateCUE output depends on map order")
		}
	}
	if strings.Index(first, `"A"`) > strings.Index(first, `"Z"`) {
		t.Error("node env keys should be sorted")
	}
}
