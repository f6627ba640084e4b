// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/provar-ci/provar-ci/internal/issue"
	"github.com/provar-ci/provar-ci/pkg/cueutil"
	"github.com/provar-ci/provar-ci/pkg/platform"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "provar-ci"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the provar-ci configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// FilePath returns the path of the config file inside ConfigDir.
func FilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. It returns the path that was loaded, or "" when the
// defaults were used.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("installations", defaults.Installations)
	v.SetDefault("jdks", defaults.JDKs)
	v.SetDefault("ants", defaults.Ants)
	v.SetDefault("nodes", defaults.Nodes)
	v.SetDefault("defaults.project_name", defaults.Defaults.ProjectName)
	v.SetDefault("defaults.build_file", defaults.Defaults.BuildFile)
	v.SetDefault("defaults.test_plan", defaults.Defaults.TestPlan)
	v.SetDefault("defaults.test_folder", defaults.Defaults.TestFolder)
	v.SetDefault("defaults.browser", defaults.Defaults.Browser)
	v.SetDefault("defaults.salesforce_metadata_cache_setting", defaults.Defaults.SalesforceMetadataCacheSetting)
	v.SetDefault("defaults.results_path_setting", defaults.Defaults.ResultsPathSetting)
	v.SetDefault("defaults.windows_command_style", defaults.Defaults.WindowsCommandStyle)
	v.SetDefault("agent.token_env", defaults.Agent.TokenEnv)
	v.SetDefault("agent.dial_timeout_seconds", defaults.Agent.DialTimeoutSeconds)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("ui.color", defaults.UI.Color)

	resolvedPath := ""
	var unified cue.Value

	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'provar-ci config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		u, err := loadCUEIntoViper(v, opts.ConfigFilePath)
		if err != nil {
			return nil, "", loadError(opts.ConfigFilePath, err)
		}
		unified = u
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}

		cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		localCuePath := ConfigFileName + "." + ConfigFileExt
		switch {
		case fileExists(cuePath):
			resolvedPath = cuePath
		case fileExists(localCuePath):
			resolvedPath = localCuePath
		}
		if resolvedPath != "" {
			u, err := loadCUEIntoViper(v, resolvedPath)
			if err != nil {
				return nil, "", loadError(resolvedPath, err)
			}
			unified = u
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	// Viper lowercases map keys, which would corrupt node environment names.
	if unified.Exists() {
		if nodes := unified.LookupPath(cue.ParsePath("nodes")); nodes.Exists() {
			cfg.Nodes = nil
			if err := nodes.Decode(&cfg.Nodes); err != nil {
				return nil, "", loadError(resolvedPath, cueutil.FormatError(err, resolvedPath))
			}
		}
	}

	if ok, errs := cfg.IsValid(); !ok {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Give every installation and node a unique name").
			Wrap(&InvalidConfigError{FieldErrors: errs}).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func loadError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithIssue(issue.ConfigLoadFailedId).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		WithSuggestion("Run 'provar-ci config dump' to see the effective configuration").
		Wrap(err).
		BuildError()
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// merges its contents into Viper and returns the unified value.
//
// Note: This uses manual CUE parsing instead of a typed decode because the
// result must merge into Viper's config map and fields are optional
// (Concrete(false)).
func loadCUEIntoViper(v *viper.Viper, path string) (cue.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return cue.Value{}, err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cue.Value{}, cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cue.Value{}, cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cue.Value{}, cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return cue.Value{}, fmt.Errorf("failed to merge config: %w", err)
	}

	return unified, nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig creates a default config file if it doesn't exist and
// returns its path.
func CreateDefaultConfig() (string, error) {
	cfgPath, err := FilePath()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, nil
}

// Save writes the configuration to the config file
func Save(cfg *Config) error {
	cfgPath, err := FilePath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// provar-ci configuration file\n")
	sb.WriteString("// Register installations here; name them in 'provar-ci run --provar-automation-name'.\n\n")

	writeInstallations(&sb, "installations", cfg.Installations)
	writeInstallations(&sb, "jdks", cfg.JDKs)
	writeInstallations(&sb, "ants", cfg.Ants)

	if len(cfg.Nodes) > 0 {
		sb.WriteString("nodes: [\n")
		for _, n := range cfg.Nodes {
			fmt.Fprintf(&sb, "\t{\n\t\tname: %q\n\t\tos:   %q\n", n.Name, n.OS)
			if len(n.Env) > 0 {
				sb.WriteString("\t\tenv: {\n")
				for _, k := range slices.Sorted(maps.Keys(n.Env)) {
					fmt.Fprintf(&sb, "\t\t\t%q: %q\n", k, n.Env[k])
				}
				sb.WriteString("\t\t}\n")
			}
			if len(n.ToolLocations) > 0 {
				sb.WriteString("\t\ttool_locations: [\n")
				for _, loc := range n.ToolLocations {
					fmt.Fprintf(&sb, "\t\t\t{kind: %q, name: %q, home: %q},\n", loc.Kind, loc.Name, loc.Home)
				}
				sb.WriteString("\t\t]\n")
			}
			sb.WriteString("\t},\n")
		}
		sb.WriteString("]\n\n")
	}

	d := cfg.Defaults
	sb.WriteString("defaults: {\n")
	writeString(&sb, "provar_automation_name", d.ProvarAutomationName)
	writeString(&sb, "project_name", d.ProjectName)
	writeString(&sb, "build_file", d.BuildFile)
	writeString(&sb, "test_plan", d.TestPlan)
	writeString(&sb, "test_folder", d.TestFolder)
	writeString(&sb, "environment", d.Environment)
	writeString(&sb, "browser", string(d.Browser))
	writeString(&sb, "salesforce_metadata_cache_setting", string(d.SalesforceMetadataCacheSetting))
	writeString(&sb, "results_path_setting", string(d.ResultsPathSetting))
	writeString(&sb, "license_path", d.LicensePath)
	writeString(&sb, "windows_command_style", string(d.WindowsCommandStyle))
	sb.WriteString("}\n")

	sb.WriteString("\nagent: {\n")
	writeString(&sb, "address", cfg.Agent.Address)
	writeString(&sb, "token_env", cfg.Agent.TokenEnv)
	writeString(&sb, "host_key", cfg.Agent.HostKey)
	if cfg.Agent.DialTimeoutSeconds > 0 {
		fmt.Fprintf(&sb, "\tdial_timeout_seconds: %d\n", cfg.Agent.DialTimeoutSeconds)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	writeString(&sb, "color", string(cfg.UI.Color))
	sb.WriteString("}\n")

	return sb.String()
}

func writeInstallations(sb *strings.Builder, field string, list []Installation) {
	if len(list) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s: [\n", field)
	for _, inst := range list {
		fmt.Fprintf(sb, "\t{name: %q, home: %q},\n", inst.Name, inst.Home)
	}
	sb.WriteString("]\n\n")
}

func writeString(sb *strings.Builder, field, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(sb, "\t%s: %q\n", field, value)
}
