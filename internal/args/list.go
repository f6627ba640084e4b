// SPDX-License-Identifier: MPL-2.0

package args

import (
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/provar-ci/provar-ci/internal/envvars"
)

// MaskedToken replaces sensitive tokens in rendered command lines.
const MaskedToken = "********"

type (
	// List is an ordered argument list with a redaction mask.
	List struct {
		args []string
		mask []bool
	}

	// Set is a set of variable names whose values must be redacted.
	Set map[string]struct{}
)

// NewSet returns a set containing names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set. A nil set contains nothing.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// With returns a copy of s with names added.
func (s Set) With(names ...string) Set {
	out := make(Set, len(s)+len(names))
	for n := range s {
		out[n] = struct{}{}
	}
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

// New returns a list holding tokens, none of them masked.
func New(tokens ...string) *List {
	l := &List{}
	for _, t := range tokens {
		l.Add(t)
	}
	return l
}

// Add appends unmasked tokens.
func (l *List) Add(tokens ...string) *List {
	for _, t := range tokens {
		l.add(t, false)
	}
	return l
}

// AddMasked appends a token that is redacted when rendered.
func (l *List) AddMasked(token string) *List {
	return l.add(token, true)
}

// AddWithMask appends token with the given mask flag.
func (l *List) AddWithMask(token string, masked bool) *List {
	return l.add(token, masked)
}

func (l *List) add(token string, masked bool) *List {
	l.args = append(l.args, token)
	l.mask = append(l.mask, masked)
	return l
}

// AddKeyValuePair appends prefix+key=value.
func (l *List) AddKeyValuePair(prefix, key, value string, masked bool) *List {
	return l.add(prefix+key+"="+value, masked)
}

// AddKeyValuePairs appends one prefix+key=value token per variable in
// insertion order. Variables named in sensitive are kept but masked.
func (l *List) AddKeyValuePairs(prefix string, vars *envvars.EnvVars, sensitive Set) *List {
	if vars == nil {
		return l
	}
	for _, k := range vars.Keys() {
		l.AddKeyValuePair(prefix, k, vars.Value(k), sensitive.Has(k))
	}
	return l
}

// Args returns a copy of the tokens.
func (l *List) Args() []string {
	return append([]string(nil), l.args...)
}

// MaskArray returns a copy of the mask.
func (l *List) MaskArray() []bool {
	return append([]bool(nil), l.mask...)
}

// IsMasked reports whether the token at i is sensitive.
func (l *List) IsMasked(i int) bool {
	return l.mask[i]
}

// Len returns the number of tokens.
func (l *List) Len() int { return len(l.args) }

// Clone returns an independent copy of l.
func (l *List) Clone() *List {
	return &List{args: l.Args(), mask: l.MaskArray()}
}

// String renders the list as a shell-quoted line with masked tokens
// replaced by MaskedToken. It is meant for logs only.
func (l *List) String() string {
	parts := make([]string, len(l.args))
	for i, a := range l.args {
		if l.mask[i] {
			parts[i] = MaskedToken
			continue
		}
		q, err := syntax.Quote(a, syntax.LangBash)
		if err != nil {
			q = strconv.Quote(a)
		}
		parts[i] = q
	}
	return strings.Join(parts, " ")
}
