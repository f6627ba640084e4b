// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrOffline marks failures caused by a disconnected or unreachable agent.
var ErrOffline = errors.New("agent is offline")

type (
	// Agent performs privileged operations on an execution node.
	Agent interface {
		// Node describes the node the agent runs on.
		Node(ctx context.Context) (Node, error)
		// LocateHome expands macros in rawHome with the agent's own
		// environment and returns the expanded home if marker exists
		// beneath it. It returns "" (and no error) when the marker is absent.
		LocateHome(ctx context.Context, rawHome, marker string) (string, error)
		// Exists reports whether path exists on the node.
		Exists(ctx context.Context, path string) (bool, error)
		// Launch runs a process to completion and returns its exit code.
		// A non-nil error means the process could not be run or waited on.
		Launch(ctx context.Context, req LaunchRequest) (int, error)
	}

	// Node identifies an execution node.
	Node struct {
		Name string `json:"name"`
		// OS is the node's GOOS value; it selects path and shell conventions.
		OS string `json:"os"`
		// Env is the node-level environment used for tool location macros.
		Env map[string]string `json:"env,omitempty"`
		// ToolLocations overrides installation homes on this node, keyed
		// by ToolKey(kind, name).
		ToolLocations map[string]string `json:"tool_locations,omitempty"`
	}

	// LaunchRequest describes one process launch.
	LaunchRequest struct {
		Args []string `json:"args"`
		Env  []string `json:"env"`
		Dir  string   `json:"dir"`
		// Mask flags the Args positions that must never be displayed. It
		// stays on the controller.
		Mask []bool `json:"-"`
		// Stdout receives combined stdout and stderr.
		Stdout io.Writer `json:"-"`
	}

	// OfflineError wraps the cause of a connectivity failure.
	OfflineError struct {
		Agent string
		Err   error
	}
)

// ToolKey returns the ToolLocations key for an installation.
func ToolKey(kind, name string) string {
	return kind + ":" + name
}

// ToolLocation returns the node-specific home for an installation, if any.
func (n Node) ToolLocation(kind, name string) (string, bool) {
	home, ok := n.ToolLocations[ToolKey(kind, name)]
	return home, ok && home != ""
}

func (e *OfflineError) Error() string {
	return fmt.Sprintf("agent %s is offline: %v", e.Agent, e.Err)
}

// Unwrap returns both ErrOffline and the cause.
func (e *OfflineError) Unwrap() []error { return []error{ErrOffline, e.Err} }
