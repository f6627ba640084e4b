// SPDX-License-Identifier: MPL-2.0

// Package agenttest provides an in-memory agent.Agent for tests that drive
// a build without touching the local machine.
package agenttest

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/provar-ci/provar-ci/internal/agent"
	"github.com/provar-ci/provar-ci/internal/testutil"
)

// Agent answers from its fields and records the last launch.
type Agent struct {
	Info    agent.Node
	NodeErr error
	// Files lists the paths Exists reports as present.
	Files map[string]bool
	// Homes maps a raw home (after any caller expansion) to the home
	// LocateHome returns. Unknown homes resolve to "".
	Homes   map[string]string
	HomeErr error

	// Output is written to the launch's Stdout.
	Output    string
	Code      int
	LaunchErr error
	// Clock, when set, is advanced by Took during Launch.
	Clock *testutil.FakeClock
	Took  time.Duration

	mu       sync.Mutex
	Launched *agent.LaunchRequest
	launches int
}

// Linux returns an agent on a linux node whose workspace holds the default
// project build file at /ws/ProvarProject/ANT/build.xml.
func Linux() *Agent {
	return &Agent{
		Info:  agent.Node{Name: "linux-1", OS: "linux"},
		Files: map[string]bool{"/ws/ProvarProject/ANT/build.xml": true},
		Homes: map[string]string{},
	}
}

func (a *Agent) Node(context.Context) (agent.Node, error) { return a.Info, a.NodeErr }

func (a *Agent) LocateHome(_ context.Context, rawHome, _ string) (string, error) {
	if a.HomeErr != nil {
		return "", a.HomeErr
	}
	return a.Homes[rawHome], nil
}

func (a *Agent) Exists(_ context.Context, path string) (bool, error) {
	return a.Files[path], nil
}

func (a *Agent) Launch(ctx context.Context, req agent.LaunchRequest) (int, error) {
	a.mu.Lock()
	a.Launched = &req
	a.launches++
	a.mu.Unlock()

	if a.Clock != nil {
		a.Clock.Advance(a.Took)
	}
	if a.Output != "" && req.Stdout != nil {
		_, _ = io.WriteString(req.Stdout, a.Output)
	}
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	return a.Code, a.LaunchErr
}

// Launches returns how many processes were launched.
func (a *Agent) Launches() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.launches
}

var _ agent.Agent = (*Agent)(nil)
