// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/provar-ci/provar-ci/internal/args"
	"github.com/provar-ci/provar-ci/internal/envvars"
	"github.com/provar-ci/provar-ci/internal/issue"
)

type (
	// contextFile is the build context handed over by an orchestrator,
	// read from the TOML file named by --context.
	//
	//	node = "win-1"
	//	workspace = 'C:\ci\ws'
	//
	//	[env]
	//	BUILD_NUMBER = "42"
	//
	//	[[variables]]
	//	name = "sf.password"
	//	value = "..."
	//	sensitive = true
	contextFile struct {
		Node       string            `toml:"node"`
		Workspace  string            `toml:"workspace"`
		ModuleRoot string            `toml:"module_root"`
		Env        map[string]string `toml:"env"`
		Variables  []contextVariable `toml:"variables"`
	}

	contextVariable struct {
		Name      string `toml:"name"`
		Value     string `toml:"value"`
		Sensitive bool   `toml:"sensitive"`
	}
)

// loadContextFile decodes path, rejecting keys it does not know.
func loadContextFile(path string) (*contextFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, contextError(path, err)
	}
	defer f.Close()

	var ctxFile contextFile
	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(&ctxFile); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			err = fmt.Errorf("%w\n%s", err, strict.String())
		}
		return nil, contextError(path, err)
	}
	for i, v := range ctxFile.Variables {
		if strings.TrimSpace(v.Name) == "" {
			return nil, contextError(path, fmt.Errorf("variables[%d]: name is empty", i))
		}
	}
	return &ctxFile, nil
}

func contextError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("read build context").
		WithResource(path).
		WithIssue(issue.InvalidStepConfigId).
		WithSuggestion("Check the file is TOML with only node, workspace, module_root, [env] and [[variables]]").
		Wrap(err).
		BuildError()
}

// env returns the context environment with keys in sorted order.
func (c *contextFile) env() *envvars.EnvVars {
	return envvars.FromMap(c.Env, slices.Sorted(maps.Keys(c.Env))...)
}

// variables returns the declared build variables and the sensitive names.
func (c *contextFile) variables() (*envvars.EnvVars, args.Set) {
	vars := envvars.New()
	var sensitive []string
	for _, v := range c.Variables {
		vars.Put(v.Name, v.Value)
		if v.Sensitive {
			sensitive = append(sensitive, v.Name)
		}
	}
	return vars, args.NewSet(sensitive...)
}

// parseAssignments parses repeated NAME=VALUE flags into vars, in order.
func parseAssignments(flag string, assignments []string, vars *envvars.EnvVars) error {
	for _, a := range assignments {
		name, value, ok := strings.Cut(a, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return fmt.Errorf("--%s %q: want NAME=VALUE", flag, a)
		}
		vars.Put(name, value)
	}
	return nil
}
