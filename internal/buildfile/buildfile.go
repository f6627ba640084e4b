// SPDX-License-Identifier: MPL-2.0

// Package buildfile locates the Ant build file of a Provar project on the
// execution node.
package buildfile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/provar-ci/provar-ci/pkg/platform"
)

const (
	// DefaultName is used when no build file is declared.
	DefaultName = "build.xml"
	// Extension is appended to declared names that lack it.
	Extension = ".xml"
	// AntFolder is the project subfolder holding build files.
	AntFolder = "ANT"
)

// ErrWorkspaceUnavailable is returned when the build file is not under the
// module root and there is no workspace to fall back to.
var ErrWorkspaceUnavailable = errors.New("workspace is not available, agent may be disconnected")

type (
	// Stater checks path existence on the execution node.
	Stater interface {
		Exists(ctx context.Context, path string) (bool, error)
	}

	// Resolved is the outcome of one resolution. It is never cached: the
	// agent and workspace may change between builds.
	Resolved struct {
		Path   string
		Exists bool
		// GOOS is the path style Path was joined with.
		GOOS string
	}
)

// NormalizeName returns the build file name to use for a declared name.
func NormalizeName(file string) string {
	if file == "" {
		return DefaultName
	}
	if !strings.HasSuffix(file, Extension) {
		return file + Extension
	}
	return file
}

// Name returns the file name of the resolved path.
func (r Resolved) Name() string { return platform.Base(r.Path, r.GOOS) }

// Dir returns the directory holding the resolved path. It is the working
// directory of the build.
func (r Resolved) Dir() string { return platform.Dir(r.Path, r.GOOS) }

// Candidate returns base/project/ANT/file joined in the goos path style.
func Candidate(goos, base, project, file string) string {
	return platform.Join(goos, base, project, AntFolder, file)
}

// Resolve searches for file in the following order:
//
//  1. primary/project/ANT/file
//  2. secondary/project/ANT/file
//  3. secondary/file, returned without checking so the launch reports the failure
//
// The workspace (secondary) is only required when the first candidate does
// not exist. A secondary equal to primary is not searched twice.
func Resolve(ctx context.Context, fs Stater, goos, primary, secondary, file, project string) (Resolved, error) {
	file = NormalizeName(file)

	if primary != "" {
		p := Candidate(goos, primary, project, file)
		ok, err := fs.Exists(ctx, p)
		if err != nil {
			return Resolved{}, fmt.Errorf("check build file %s: %w", p, err)
		}
		if ok {
			return Resolved{Path: p, Exists: true, GOOS: goos}, nil
		}
	}

	if secondary == "" {
		return Resolved{}, ErrWorkspaceUnavailable
	}

	if secondary != primary {
		p := Candidate(goos, secondary, project, file)
		ok, err := fs.Exists(ctx, p)
		if err != nil {
			return Resolved{}, fmt.Errorf("check build file %s: %w", p, err)
		}
		if ok {
			return Resolved{Path: p, Exists: true, GOOS: goos}, nil
		}
	}

	return Resolved{Path: platform.Join(goos, secondary, file), GOOS: goos}, nil
}
