// SPDX-License-Identifier: MPL-2.0

package tool

import (
	"errors"
	"fmt"
	"strings"

	"github.com/provar-ci/provar-ci/internal/agent"
	"github.com/provar-ci/provar-ci/internal/envvars"
	"github.com/provar-ci/provar-ci/pkg/platform"
)

const (
	// KindProvar is a Provar Automation installation.
	KindProvar Kind = "provar"
	// KindJDK is a Java installation.
	KindJDK Kind = "jdk"
	// KindAnt is an Apache Ant installation.
	KindAnt Kind = "ant"
)

// ErrInvalidKind is the sentinel error wrapped by InvalidKindError.
var ErrInvalidKind = errors.New("invalid installation kind")

type (
	// Kind identifies what an installation provides.
	Kind string

	// InvalidKindError is returned when a Kind is not recognized.
	InvalidKindError struct {
		Value Kind
	}

	// Installation is a named toolchain and its home directory. Home may
	// contain $NAME macros until it has been specialized.
	Installation struct {
		Kind Kind   `json:"kind"`
		Name string `json:"name"`
		Home string `json:"home"`
	}
)

// Kinds lists the supported installation kinds.
func Kinds() []Kind { return []Kind{KindProvar, KindJDK, KindAnt} }

func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("invalid installation kind %q (valid: provar, jdk, ant)", e.Value)
}

// Unwrap returns ErrInvalidKind for errors.Is.
func (e *InvalidKindError) Unwrap() error { return ErrInvalidKind }

// String returns the kind name.
func (k Kind) String() string { return string(k) }

// IsValid returns whether k is a supported kind, and a list of validation
// errors if it is not.
func (k Kind) IsValid() (bool, []error) {
	switch k {
	case KindProvar, KindJDK, KindAnt:
		return true, nil
	default:
		return false, []error{&InvalidKindError{Value: k}}
	}
}

// New returns an installation with a laundered home.
func New(kind Kind, name, home string) Installation {
	return Installation{Kind: kind, Name: name, Home: LaunderHome(home)}
}

// LaunderHome strips one trailing slash or backslash from home.
func LaunderHome(home string) string {
	if strings.HasSuffix(home, "/") || strings.HasSuffix(home, `\`) {
		return home[:len(home)-1]
	}
	return home
}

// Find returns the installation named name. Matching is exact; an empty name
// never matches.
func Find(installs []Installation, name string) (Installation, bool) {
	if name == "" {
		return Installation{}, false
	}
	for _, inst := range installs {
		if inst.Name == name {
			return inst, true
		}
	}
	return Installation{}, false
}

// ForNode specializes inst for node: a node-level tool location replaces the
// home, node environment macros are expanded (unknown ones are kept) and
// separators follow the node's OS.
func ForNode(inst Installation, node agent.Node) Installation {
	home := inst.Home
	if override, ok := node.ToolLocation(string(inst.Kind), inst.Name); ok {
		home = override
	}
	home = envvars.ReplaceMacro(home, func(name string) (string, bool) {
		v, ok := node.Env[name]
		return v, ok
	})
	if node.OS != "" {
		home = platform.ToSeparators(home, node.OS)
	}
	return Installation{Kind: inst.Kind, Name: inst.Name, Home: LaunderHome(home)}
}

// ForEnvironment expands build environment macros in the home.
func ForEnvironment(inst Installation, env *envvars.EnvVars) Installation {
	return Installation{Kind: inst.Kind, Name: inst.Name, Home: env.Expand(inst.Home)}
}

// BuildEnvVars adds the variables that make the installation usable to env.
// PATH entries use the NAME+SUFFIX prepend convention of envvars.Override.
func (i Installation) BuildEnvVars(env *envvars.EnvVars, goos string) {
	switch i.Kind {
	case KindProvar:
		env.Put("PROVAR_HOME", i.Home)
	case KindJDK:
		env.Put("JAVA_HOME", i.Home)
		env.Put("PATH+JDK", platform.Join(goos, i.Home, "bin"))
	case KindAnt:
		env.Put("ANT_HOME", i.Home)
		env.Put("PATH+ANT", platform.Join(goos, i.Home, "bin"))
	}
}
