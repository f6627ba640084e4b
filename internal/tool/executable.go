// SPDX-License-Identifier: MPL-2.0

package tool

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Marker is the file, relative to an installation home, that identifies a
// Provar installation.
const Marker = "ant/ant-provar.jar"

var (
	// ErrToolNotFound is the sentinel error wrapped by ToolNotFoundError.
	ErrToolNotFound = errors.New("no such tool")
	// ErrNotInstallDir is the sentinel error wrapped by NotInstallDirError.
	ErrNotInstallDir = errors.New("not a Provar directory")
	// ErrNotDirectory is returned by CheckHome for paths that are not directories.
	ErrNotDirectory = errors.New("not a directory")
)

type (
	// HomeLocator checks for the installation marker on the execution node.
	HomeLocator interface {
		LocateHome(ctx context.Context, rawHome, marker string) (string, error)
	}

	// ToolNotFoundError is returned when a named installation is not registered.
	ToolNotFoundError struct {
		Kind Kind
		Name string
	}

	// NotInstallDirError is returned when an installation home lacks Marker.
	NotInstallDirError struct {
		Name string
		Home string
	}
)

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("no such tool ‘%s’", e.Name)
}

// Unwrap returns ErrToolNotFound for errors.Is.
func (e *ToolNotFoundError) Unwrap() error { return ErrToolNotFound }

func (e *NotInstallDirError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s is not a Provar directory", e.Home)
	}
	return fmt.Sprintf("installation %s at %s is not a Provar directory", e.Name, e.Home)
}

// Unwrap returns ErrNotInstallDir for errors.Is.
func (e *NotInstallDirError) Unwrap() error { return ErrNotInstallDir }

// Executable asks the node to confirm that inst is a Provar installation and
// returns the home as seen by the node. The tool itself is still launched
// through the Ant front end found on PATH.
func Executable(ctx context.Context, loc HomeLocator, inst Installation) (string, error) {
	home, err := loc.LocateHome(ctx, inst.Home, Marker)
	if err != nil {
		return "", fmt.Errorf("locate installation %s: %w", inst.Name, err)
	}
	if home == "" {
		return "", &NotInstallDirError{Name: inst.Name, Home: inst.Home}
	}
	return home, nil
}

// CheckHome validates a candidate home on the local host. An empty value is
// accepted so installations can be registered before they are unpacked.
func CheckHome(dir string) error {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("check %s: %w", dir, err)
		}
		return fmt.Errorf("%s: %w", dir, ErrNotDirectory)
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(Marker))); err != nil {
		return &NotInstallDirError{Home: dir}
	}
	return nil
}
