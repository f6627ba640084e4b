// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"

	"github.com/provar-ci/provar-ci/internal/agent"
	"github.com/provar-ci/provar-ci/internal/step"
	"github.com/provar-ci/provar-ci/internal/tool"
)

func TestColorMode_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode    ColorMode
		want    bool
		wantErr bool
	}{
		{ColorAuto, true, false},
		{ColorAlways, true, false},
		{ColorNever, true, false},
		{"", false, true},
		{"AUTO", false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			t.Parallel()
			isValid, errs := tt.mode.IsValid()
			if isValid != tt.want {
				t.Errorf("ColorMode(%q).IsValid() = %v, want %v", tt.mode, isValid, tt.want)
			}
			if tt.wantErr {
				if len(errs) == 0 {
					t.Fatalf("ColorMode(%q).IsValid() returned no errors, want error", tt.mode)
				}
				if !errors.Is(errs[0], ErrInvalidColorMode) {
					t.Errorf("error should wrap ErrInvalidColorMode, got: %v", errs[0])
				}
			} else if len(errs) > 0 {
				t.Errorf("ColorMode(%q).IsValid() returned unexpected errors: %v", tt.mode, errs)
			}
		})
	}
}

func TestConfig_IsValid_DuplicateNames(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.JDKs = []Installation{{Name: "jdk17", Home: "/a"}, {Name: "jdk17", Home: "/b"}}
	cfg.Nodes = []Node{{Name: "n1", OS: "linux"}, {Name: "n1", OS: "windows"}}

	ok, errs := cfg.IsValid()
	if ok || len(errs) != 2 {
		t.Fatalf("IsValid() = %v, %v", ok, errs)
	}
	for _, err := range errs {
		if !errors.Is(err, ErrDuplicateName) {
			t.Errorf("error should wrap ErrDuplicateName, got: %v", err)
		}
	}
}

func TestConfig_IsValid_SameNameAcrossKinds(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Installations = []Installation{{Name: "default"}}
	cfg.Ants = []Installation{{Name: "default"}}

	if ok, errs := cfg.IsValid(); !ok {
		t.Errorf("names only need to be unique per kind: %v", errs)
	}
}

func TestConfig_Registry(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Installations = []Installation{{Name: "2.12", Home: "/opt/provar/"}}
	cfg.JDKs = []Installation{{Name: "jdk17", Home: "/usr/lib/jvm/17"}}

	reg := cfg.Registry()
	got := reg.Installations(tool.KindProvar)
	if len(got) != 1 || got[0].Home != "/opt/provar" {
		t.Errorf("Installations(provar) = %+v", got)
	}
	if n := len(reg.Installations(tool.KindJDK)); n != 1 {
		t.Errorf("Installations(jdk) has %d entries", n)
	}
	if n := len(reg.Installations(tool.KindAnt)); n != 0 {
		t.Errorf("Installations(ant) has %d entries", n)
	}
}

func TestConfig_Node(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Nodes = []Node{{
		Name:          "win-1",
		OS:            "windows",
		Env:           map[string]string{"TOOLS": `D:\tools`},
		ToolLocations: []ToolLocation{{Kind: tool.KindProvar, Name: "2.12", Home: `$TOOLS\provar`}},
	}}

	n, ok := cfg.Node("win-1")
	if !ok {
		t.Fatal("node not found")
	}
	if home, ok := n.ToolLocation("provar", "2.12"); !ok || home != `$TOOLS\provar` {
		t.Errorf("ToolLocation = %q, %v", home, ok)
	}
	if n.OS != "windows" || n.Env["TOOLS"] != `D:\tools` {
		t.Errorf("Node = %+v", n)
	}

	if _, ok := cfg.Node("missing"); ok {
		t.Error("unknown node found")
	}
	var _ agent.Node = n
}

func TestConfig_LookupNode(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Nodes = []Node{{Name: "win-1", OS: "windows"}}

	if n, err := cfg.LookupNode("win-1"); err != nil || n.OS != "windows" {
		t.Errorf("LookupNode(win-1) = %+v, %v", n, err)
	}

	_, err := cfg.LookupNode("win-2")
	var unknown *UnknownNodeError
	if !errors.As(err, &unknown) || unknown.Name != "win-2" {
		t.Fatalf("LookupNode(win-2) error = %v, want *UnknownNodeError", err)
	}
	if !errors.Is(err, ErrUnknownNode) {
		t.Error("error should wrap ErrUnknownNode")
	}
}

func TestStepDefaults_StepConfig(t *testing.T) {
	t.Parallel()

	d := StepDefaults{
		ProvarAutomationName: "2.12",
		ProjectName:          "Sales",
		Browser:              step.BrowserFirefox,
		TestFolder:           "  ",
	}
	cfg := d.StepConfig()

	if cfg.Installation != "2.12" || cfg.ProjectName != "Sales" || cfg.Browser != step.BrowserFirefox {
		t.Errorf("StepConfig() = %+v", cfg)
	}
	if cfg.TestFolder != step.DefaultTestFolder {
		t.Errorf("blank defaults must not override step defaults, TestFolder = %q", cfg.TestFolder)
	}
	if cfg.CacheSetting != step.CacheReuse || cfg.ResultsPathSetting != step.ResultsIncrement {
		t.Errorf("StepConfig() = %+v", cfg)
	}
}
