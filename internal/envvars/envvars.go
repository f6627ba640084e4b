// SPDX-License-Identifier: MPL-2.0

package envvars

import (
	"regexp"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// EnvVars is an ordered environment map. The zero value is not usable; create
// one with New, FromEnviron or FromMap.
type EnvVars struct {
	vars *orderedmap.OrderedMap[string, string]
	// pathSep joins NAME+SUFFIX prepends. Defaults to ":".
	pathSep string
}

// New returns an empty map that joins path lists with ":".
func New() *EnvVars {
	return &EnvVars{vars: orderedmap.New[string, string](), pathSep: ":"}
}

// FromEnviron builds a map from KEY=VALUE entries such as os.Environ().
// Malformed entries without '=' are skipped.
func FromEnviron(environ []string) *EnvVars {
	env := New()
	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || name == "" {
			continue
		}
		env.Put(name, value)
	}
	return env
}

// FromMap builds a map from m. Go maps are unordered, so keys are inserted in
// the order given by keys when non-nil and in map iteration order otherwise.
func FromMap(m map[string]string, keys ...string) *EnvVars {
	env := New()
	if len(keys) > 0 {
		for _, k := range keys {
			if v, ok := m[k]; ok {
				env.Put(k, v)
			}
		}
		return env
	}
	for k, v := range m {
		env.Put(k, v)
	}
	return env
}

// WithPathSeparator sets the separator used for NAME+SUFFIX prepends and
// returns env for chaining.
func (e *EnvVars) WithPathSeparator(sep string) *EnvVars {
	e.pathSep = sep
	return e
}

// Get returns the value of name.
func (e *EnvVars) Get(name string) (string, bool) {
	return e.vars.Get(name)
}

// Value returns the value of name, or "" when unset.
func (e *EnvVars) Value(name string) string {
	v, _ := e.vars.Get(name)
	return v
}

// Put inserts or replaces name. An empty value is stored as-is.
func (e *EnvVars) Put(name, value string) {
	e.vars.Set(name, value)
}

// Delete removes name.
func (e *EnvVars) Delete(name string) {
	e.vars.Delete(name)
}

// Override applies a host-style override:
//   - an empty value removes the variable,
//   - NAME+SUFFIX prepends value to NAME using the path list separator,
//   - anything else replaces the variable.
func (e *EnvVars) Override(name, value string) {
	if value == "" {
		e.Delete(name)
		return
	}
	if base, _, ok := strings.Cut(name, "+"); ok && base != "" {
		if cur, exists := e.Get(base); exists && cur != "" {
			e.Put(base, value+e.pathSep+cur)
		} else {
			e.Put(base, value)
		}
		return
	}
	e.Put(name, value)
}

// Expand replaces $NAME and ${NAME} references in s with values from e.
// References to unset variables are left untouched.
func (e *EnvVars) Expand(s string) string {
	return ReplaceMacro(s, e.Get)
}

// Keys returns the variable names in insertion order.
func (e *EnvVars) Keys() []string {
	keys := make([]string, 0, e.vars.Len())
	for pair := e.vars.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Len returns the number of variables.
func (e *EnvVars) Len() int { return e.vars.Len() }

// Environ returns KEY=VALUE entries in insertion order, suitable for exec.Cmd.Env.
func (e *EnvVars) Environ() []string {
	out := make([]string, 0, e.vars.Len())
	for pair := e.vars.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key+"="+pair.Value)
	}
	return out
}

// Map returns a copy of the variables as a plain map.
func (e *EnvVars) Map() map[string]string {
	out := make(map[string]string, e.vars.Len())
	for pair := e.vars.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}

// Clone returns an independent copy of e.
func (e *EnvVars) Clone() *EnvVars {
	c := New().WithPathSeparator(e.pathSep)
	for pair := e.vars.Oldest(); pair != nil; pair = pair.Next() {
		c.Put(pair.Key, pair.Value)
	}
	return c
}

// MergeBuildVariables merges build-scoped variables into env.
//
// An empty value is put directly: Override would delete the key, and build
// parameters left blank must still be visible to property replacement.
// Non-empty values are macro-expanded against env and then overridden.
func MergeBuildVariables(env, vars *EnvVars) {
	for _, name := range vars.Keys() {
		value := vars.Value(name)
		if value == "" {
			env.Put(name, value)
			continue
		}
		env.Override(name, env.Expand(value))
	}
}

var macroPattern = regexp.MustCompile(`\$\{[A-Za-z0-9_.]+\}|\$[A-Za-z0-9_]+`)

// ReplaceMacro expands $NAME and ${NAME} in s using lookup. Unknown names are
// left as written so a later stage with a richer environment can resolve them.
func ReplaceMacro(s string, lookup func(string) (string, bool)) string {
	if lookup == nil || !strings.Contains(s, "$") {
		return s
	}
	return macroPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := strings.TrimPrefix(m, "$")
		name = strings.TrimSuffix(strings.TrimPrefix(name, "{"), "}")
		if v, ok := lookup(name); ok {
			return v
		}
		return m
	})
}
