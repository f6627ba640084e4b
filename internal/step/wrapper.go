// SPDX-License-Identifier: MPL-2.0

package step

import (
	"runtime"

	"github.com/provar-ci/provar-ci/internal/agent"
	"github.com/provar-ci/provar-ci/internal/envvars"
	"github.com/provar-ci/provar-ci/internal/issue"
	"github.com/provar-ci/provar-ci/internal/tool"
)

type (
	// Wrapper exposes registered installations to the steps it wraps by
	// adding their environment variables (PROVAR_HOME, JAVA_HOME, PATH...).
	Wrapper struct {
		Installation string
		JDK          string
		Ant          string
		// Installations is the registered toolchain snapshot.
		Installations tool.Lister
	}

	// WrapperContext carries what SetUp needs from the running build.
	WrapperContext struct {
		// Node is the execution node. Nil skips node specialization.
		Node *agent.Node
		// Env is the initial build environment used for macro expansion.
		Env *envvars.EnvVars
	}
)

// SetUp resolves each selected installation and returns the variables it
// contributes, in installation, jdk, ant order. PATH entries use the
// NAME+SUFFIX form; apply them with Apply.
func (w Wrapper) SetUp(wc WrapperContext) (*envvars.EnvVars, error) {
	added := envvars.New()
	goos := runtime.GOOS
	if wc.Node != nil && wc.Node.OS != "" {
		goos = wc.Node.OS
	}
	env := wc.Env
	if env == nil {
		env = envvars.New()
	}

	for _, sel := range []struct {
		kind tool.Kind
		name string
	}{
		{tool.KindProvar, w.Installation},
		{tool.KindJDK, w.JDK},
		{tool.KindAnt, w.Ant},
	} {
		if sel.name == "" {
			continue
		}
		var installs []tool.Installation
		if w.Installations != nil {
			installs = w.Installations.Installations(sel.kind)
		}
		inst, ok := tool.Find(installs, sel.name)
		if !ok {
			err := &tool.ToolNotFoundError{Kind: sel.kind, Name: sel.name}
			return nil, &AbortError{Message: err.Error(), Issue: issue.ToolNotFoundId, Cause: err}
		}
		if wc.Node != nil {
			inst = tool.ForNode(inst, *wc.Node)
		}
		inst = tool.ForEnvironment(inst, env)
		inst.BuildEnvVars(added, goos)
	}
	return added, nil
}

// Apply overrides env with added, in order.
func Apply(env, added *envvars.EnvVars) {
	for _, k := range added.Keys() {
		env.Override(k, added.Value(k))
	}
}
