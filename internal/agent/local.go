// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"time"

	"github.com/provar-ci/provar-ci/internal/envvars"
)

// waitDelay bounds how long Launch waits for output pipes after the process
// has been killed on cancellation.
const waitDelay = 5 * time.Second

// Local runs everything on the current host.
type Local struct {
	// Name is reported as the node name. Defaults to the hostname.
	Name string
	// ToolLocations are node-level installation overrides.
	ToolLocations map[string]string
	// Environ returns the host environment. Defaults to os.Environ.
	Environ func() []string
}

var _ Agent = (*Local)(nil)

func (l *Local) environ() []string {
	if l.Environ != nil {
		return l.Environ()
	}
	return os.Environ()
}

// Node describes the current host.
func (l *Local) Node(ctx context.Context) (Node, error) {
	if err := ctx.Err(); err != nil {
		return Node{}, err
	}
	name := l.Name
	if name == "" {
		h, err := os.Hostname()
		if err != nil {
			h = "local"
		}
		name = h
	}
	return Node{
		Name:          name,
		OS:            goruntime.GOOS,
		Env:           envvars.FromEnviron(l.environ()).Map(),
		ToolLocations: l.ToolLocations,
	}, nil
}

// LocateHome expands rawHome with the host environment and checks for marker.
func (l *Local) LocateHome(ctx context.Context, rawHome, marker string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	home := envvars.FromEnviron(l.environ()).Expand(rawHome)
	ok, err := l.Exists(ctx, filepath.Join(home, filepath.FromSlash(marker)))
	if err != nil || !ok {
		return "", err
	}
	return home, nil
}

// Exists reports whether path exists.
func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
}

// Launch runs the process and waits for it. Cancellation kills the process
// and returns the context error.
func (l *Local) Launch(ctx context.Context, req LaunchRequest) (int, error) {
	return RunProcess(ctx, req)
}

// RunProcess starts req on the current host and waits for it. It is shared
// by the local agent and the agent server.
func RunProcess(ctx context.Context, req LaunchRequest) (int, error) {
	if len(req.Args) == 0 {
		return -1, errors.New("no command to launch")
	}
	cmd := exec.CommandContext(ctx, req.Args[0], req.Args[1:]...)
	cmd.Env = req.Env
	cmd.Dir = req.Dir
	cmd.Stdout = req.Stdout
	cmd.Stderr = req.Stdout
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, ctxErr
	}
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("launch %s: %w", req.Args[0], err)
}
