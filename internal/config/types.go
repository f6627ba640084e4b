// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/provar-ci/provar-ci/internal/agent"
	"github.com/provar-ci/provar-ci/internal/args"
	"github.com/provar-ci/provar-ci/internal/step"
	"github.com/provar-ci/provar-ci/internal/tool"
)

const (
	// ColorAuto enables color when the output is a terminal.
	ColorAuto ColorMode = "auto"
	// ColorAlways forces ANSI styling, e.g. for CI consoles that render it.
	ColorAlways ColorMode = "always"
	// ColorNever disables styling.
	ColorNever ColorMode = "never"

	// DefaultTokenEnv is the variable holding the agent token.
	DefaultTokenEnv = "PROVAR_CI_AGENT_TOKEN"
	// DefaultDialTimeoutSeconds bounds the SSH handshake with a remote agent.
	DefaultDialTimeoutSeconds = 15
)

var (
	// ErrInvalidColorMode is returned when a ColorMode value is not recognized.
	ErrInvalidColorMode = errors.New("invalid color mode")
	// ErrDuplicateName is the sentinel error wrapped by DuplicateNameError.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrUnknownNode is the sentinel error wrapped by UnknownNodeError.
	ErrUnknownNode = errors.New("unknown node")
)

type (
	// ColorMode selects when build output is styled.
	ColorMode string

	// InvalidColorModeError is returned when a ColorMode value is not recognized.
	InvalidColorModeError struct {
		Value ColorMode
	}

	// DuplicateNameError is returned when two entries of one list share a name.
	DuplicateNameError struct {
		Field string
		Name  string
	}

	// UnknownNodeError is returned when a node name is not configured.
	UnknownNodeError struct {
		Name string
	}

	// InvalidConfigError collects field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Installation registers one tool home under a name.
	Installation struct {
		Name string `json:"name" mapstructure:"name"`
		Home string `json:"home" mapstructure:"home"`
	}

	// ToolLocation overrides an installation home on one node.
	ToolLocation struct {
		Kind tool.Kind `json:"kind" mapstructure:"kind"`
		Name string    `json:"name" mapstructure:"name"`
		Home string    `json:"home" mapstructure:"home"`
	}

	// Node describes an execution node known to the controller.
	Node struct {
		Name          string            `json:"name" mapstructure:"name"`
		OS            string            `json:"os" mapstructure:"os"`
		Env           map[string]string `json:"env,omitempty" mapstructure:"env"`
		ToolLocations []ToolLocation    `json:"tool_locations,omitempty" mapstructure:"tool_locations"`
	}

	// StepDefaults pre-fills the run command flags.
	StepDefaults struct {
		ProvarAutomationName           string                  `json:"provar_automation_name,omitempty" mapstructure:"provar_automation_name"`
		ProjectName                    string                  `json:"project_name,omitempty" mapstructure:"project_name"`
		BuildFile                      string                  `json:"build_file,omitempty" mapstructure:"build_file"`
		TestPlan                       string                  `json:"test_plan,omitempty" mapstructure:"test_plan"`
		TestFolder                     string                  `json:"test_folder,omitempty" mapstructure:"test_folder"`
		Environment                    string                  `json:"environment,omitempty" mapstructure:"environment"`
		Browser                        step.Browser            `json:"browser,omitempty" mapstructure:"browser"`
		SalesforceMetadataCacheSetting step.CacheSetting       `json:"salesforce_metadata_cache_setting,omitempty" mapstructure:"salesforce_metadata_cache_setting"`
		ResultsPathSetting             step.ResultsPathSetting `json:"results_path_setting,omitempty" mapstructure:"results_path_setting"`
		LicensePath                    string                  `json:"license_path,omitempty" mapstructure:"license_path"`
		WindowsCommandStyle            args.Style              `json:"windows_command_style,omitempty" mapstructure:"windows_command_style"`
	}

	// AgentConfig configures the remote agent client and server.
	AgentConfig struct {
		// Address is host:port of the agent server. Empty runs builds locally.
		Address string `json:"address,omitempty" mapstructure:"address"`
		// TokenEnv names the variable holding the shared token.
		TokenEnv string `json:"token_env,omitempty" mapstructure:"token_env"`
		// HostKey is the server host key file (serve) or the pinned
		// authorized_keys line (client).
		HostKey            string `json:"host_key,omitempty" mapstructure:"host_key"`
		DialTimeoutSeconds int    `json:"dial_timeout_seconds,omitempty" mapstructure:"dial_timeout_seconds"`
	}

	// UIConfig configures console output.
	UIConfig struct {
		Verbose bool      `json:"verbose,omitempty" mapstructure:"verbose"`
		Color   ColorMode `json:"color,omitempty" mapstructure:"color"`
	}

	// Config holds the application configuration.
	Config struct {
		Installations []Installation `json:"installations,omitempty" mapstructure:"installations"`
		JDKs          []Installation `json:"jdks,omitempty" mapstructure:"jdks"`
		Ants          []Installation `json:"ants,omitempty" mapstructure:"ants"`
		Nodes         []Node         `json:"nodes,omitempty" mapstructure:"nodes"`
		Defaults      StepDefaults   `json:"defaults,omitempty" mapstructure:"defaults"`
		Agent         AgentConfig    `json:"agent,omitempty" mapstructure:"agent"`
		UI            UIConfig       `json:"ui,omitempty" mapstructure:"ui"`
	}
)

func (e *InvalidColorModeError) Error() string {
	return fmt.Sprintf("invalid color mode %q (valid: auto, always, never)", e.Value)
}

func (e *InvalidColorModeError) Unwrap() error { return ErrInvalidColorMode }

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s: duplicate name %q", e.Field, e.Name)
}

func (e *DuplicateNameError) Unwrap() error { return ErrDuplicateName }

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("node %q is not configured", e.Name)
}

func (e *UnknownNodeError) Unwrap() error { return ErrUnknownNode }

func (e *InvalidConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return fmt.Sprintf("invalid config: %v", e.FieldErrors[0])
	}
	return fmt.Sprintf("invalid config: %d field errors", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig and the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// String returns the string representation of the ColorMode.
func (m ColorMode) String() string { return string(m) }

// IsValid returns whether the ColorMode is one of the defined modes,
// and a list of validation errors if it is not.
func (m ColorMode) IsValid() (bool, []error) {
	switch m {
	case ColorAuto, ColorAlways, ColorNever:
		return true, nil
	default:
		return false, []error{&InvalidColorModeError{Value: m}}
	}
}

// IsValid checks the constraints the schema cannot express: unique names
// per list and valid enumerations in the step defaults.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	for field, list := range map[string][]Installation{
		"installations": c.Installations,
		"jdks":          c.JDKs,
		"ants":          c.Ants,
	} {
		seen := make(map[string]bool, len(list))
		for _, inst := range list {
			if seen[inst.Name] {
				errs = append(errs, &DuplicateNameError{Field: field, Name: inst.Name})
			}
			seen[inst.Name] = true
		}
	}
	nodes := make(map[string]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if nodes[n.Name] {
			errs = append(errs, &DuplicateNameError{Field: "nodes", Name: n.Name})
		}
		nodes[n.Name] = true
		for _, loc := range n.ToolLocations {
			if ok, e := loc.Kind.IsValid(); !ok {
				errs = append(errs, e...)
			}
		}
	}
	if b := c.Defaults.Browser; b != "" {
		if ok, e := b.IsValid(); !ok {
			errs = append(errs, e...)
		}
	}
	if s := c.Defaults.SalesforceMetadataCacheSetting; s != "" {
		if ok, e := s.IsValid(); !ok {
			errs = append(errs, e...)
		}
	}
	if s := c.Defaults.ResultsPathSetting; s != "" {
		if ok, e := s.IsValid(); !ok {
			errs = append(errs, e...)
		}
	}
	if c.UI.Color != "" {
		if ok, e := c.UI.Color.IsValid(); !ok {
			errs = append(errs, e...)
		}
	}
	return len(errs) == 0, errs
}

// Registry snapshots the registered installations of every kind.
func (c *Config) Registry() *tool.Registry {
	var installs []tool.Installation
	for _, group := range []struct {
		kind tool.Kind
		list []Installation
	}{
		{tool.KindProvar, c.Installations},
		{tool.KindJDK, c.JDKs},
		{tool.KindAnt, c.Ants},
	} {
		for _, inst := range group.list {
			installs = append(installs, tool.New(group.kind, inst.Name, inst.Home))
		}
	}
	return tool.NewRegistry(installs...)
}

// Node returns the node named name as seen by the agent layer.
func (c *Config) Node(name string) (agent.Node, bool) {
	for _, n := range c.Nodes {
		if n.Name != name {
			continue
		}
		out := agent.Node{Name: n.Name, OS: n.OS, Env: n.Env}
		if len(n.ToolLocations) > 0 {
			out.ToolLocations = make(map[string]string, len(n.ToolLocations))
			for _, loc := range n.ToolLocations {
				out.ToolLocations[agent.ToolKey(string(loc.Kind), loc.Name)] = loc.Home
			}
		}
		return out, true
	}
	return agent.Node{}, false
}

// LookupNode is Node with an UnknownNodeError for names that are not
// configured.
func (c *Config) LookupNode(name string) (agent.Node, error) {
	if n, ok := c.Node(name); ok {
		return n, nil
	}
	return agent.Node{}, &UnknownNodeError{Name: name}
}

// StepConfig returns a step configuration pre-filled from the defaults.
func (d StepDefaults) StepConfig() step.Config {
	cfg := step.DefaultConfig()
	cfg.Installation = d.ProvarAutomationName
	cfg.Environment = d.Environment
	cfg.LicensePath = d.LicensePath
	setIfNotEmpty(&cfg.ProjectName, d.ProjectName)
	setIfNotEmpty(&cfg.BuildFile, d.BuildFile)
	setIfNotEmpty(&cfg.TestPlan, d.TestPlan)
	setIfNotEmpty(&cfg.TestFolder, d.TestFolder)
	setIfNotEmpty(&cfg.Browser, d.Browser)
	setIfNotEmpty(&cfg.CacheSetting, d.SalesforceMetadataCacheSetting)
	setIfNotEmpty(&cfg.ResultsPathSetting, d.ResultsPathSetting)
	return cfg
}

func setIfNotEmpty[T ~string](dst *T, v T) {
	if strings.TrimSpace(string(v)) != "" {
		*dst = v
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Installations: []Installation{},
		JDKs:          []Installation{},
		Ants:          []Installation{},
		Nodes:         []Node{},
		Defaults: StepDefaults{
			ProjectName:                    step.DefaultProjectName,
			BuildFile:                      step.DefaultBuildFile,
			TestPlan:                       step.DefaultTestPlan,
			TestFolder:                     step.DefaultTestFolder,
			Browser:                        step.BrowserChromeHeadless,
			SalesforceMetadataCacheSetting: step.CacheReuse,
			ResultsPathSetting:             step.ResultsIncrement,
			WindowsCommandStyle:            args.StyleSplit,
		},
		Agent: AgentConfig{
			TokenEnv:           DefaultTokenEnv,
			DialTimeoutSeconds: DefaultDialTimeoutSeconds,
		},
		UI: UIConfig{
			Color: ColorAuto,
		},
	}
}
