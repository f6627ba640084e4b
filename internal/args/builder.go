// SPDX-License-Identifier: MPL-2.0

package args

import (
	"github.com/provar-ci/provar-ci/internal/envvars"
	"github.com/provar-ci/provar-ci/internal/secret"
)

const (
	// PropertyPrefix introduces a -D system property for Ant.
	PropertyPrefix = "-D"
	// SecretPropertyName is the property carrying the project secrets password.
	SecretPropertyName = "ProvarSecretsPassword"
	// FileFlag selects the build file.
	FileFlag = "-file"
)

// Invocation describes the platform-independent command line of one build.
type Invocation struct {
	// Executable is the tool name or path, e.g. "ant" or "ant.bat".
	Executable string
	// BuildFileName is the base name of the resolved build file. Empty omits -file.
	BuildFileName string
	// Variables are the build variables, passed as -D pairs in order.
	Variables *envvars.EnvVars
	// Sensitive names variables whose values are masked.
	Sensitive Set
	Secret    secret.Secret
}

// BuildInvocation builds the token list: executable, -file <name>, one -D
// pair per build variable, and exactly one trailing masked
// -DProvarSecretsPassword pair. The secret is always appended, even when
// unset, and is never macro-expanded.
func BuildInvocation(inv Invocation) (*List, error) {
	l := New(inv.Executable)
	if inv.BuildFileName != "" {
		l.Add(FileFlag, inv.BuildFileName)
	}

	sensitive := inv.Sensitive.With(SecretPropertyName)
	l.AddKeyValuePairs(PropertyPrefix, withoutName(inv.Variables, SecretPropertyName), sensitive)

	props := SecretPropertyName + "=" + PropertyEscape(inv.Secret.PlainText())
	if _, err := l.AddKeyValuePairsFromPropertyString(PropertyPrefix, props, nil, sensitive); err != nil {
		return nil, err
	}
	return l, nil
}

// withoutName drops a build variable that would shadow the secret property,
// so the secret token is the only one with that name.
func withoutName(vars *envvars.EnvVars, name string) *envvars.EnvVars {
	if vars == nil {
		return nil
	}
	if _, ok := vars.Get(name); !ok {
		return vars
	}
	c := vars.Clone()
	c.Delete(name)
	return c
}
