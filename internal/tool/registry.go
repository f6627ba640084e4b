// SPDX-License-Identifier: MPL-2.0

package tool

import "slices"

type (
	// Lister answers "which installations of this kind are registered".
	Lister interface {
		Installations(kind Kind) []Installation
	}

	// Registry is a read-only snapshot of registered installations.
	Registry struct {
		byKind map[Kind][]Installation
	}
)

var _ Lister = (*Registry)(nil)

// NewRegistry snapshots installs. Homes are laundered on the way in.
func NewRegistry(installs ...Installation) *Registry {
	r := &Registry{byKind: make(map[Kind][]Installation)}
	for _, inst := range installs {
		r.byKind[inst.Kind] = append(r.byKind[inst.Kind], New(inst.Kind, inst.Name, inst.Home))
	}
	return r
}

// Installations returns a copy of the installations of kind.
func (r *Registry) Installations(kind Kind) []Installation {
	if r == nil {
		return nil
	}
	return slices.Clone(r.byKind[kind])
}

// All returns every installation, grouped by kind in Kinds order.
func (r *Registry) All() []Installation {
	var out []Installation
	for _, k := range Kinds() {
		out = append(out, r.Installations(k)...)
	}
	return out
}
