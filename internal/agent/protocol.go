// SPDX-License-Identifier: MPL-2.0

package agent

// Verbs understood by the agent server. The verb is sent as the SSH exec
// command; a single JSON Request follows on the session's stdin.
const (
	VerbInfo       = "info"
	VerbLocateHome = "locate-home"
	VerbExists     = "exists"
	VerbExec       = "exec"
)

// DefaultUser is the SSH user name the client authenticates as.
const DefaultUser = "provar-ci"

type (
	// Request is the JSON body of an agent call.
	Request struct {
		Home   string         `json:"home,omitempty"`
		Marker string         `json:"marker,omitempty"`
		Path   string         `json:"path,omitempty"`
		Launch *LaunchRequest `json:"launch,omitempty"`
	}

	// Response is the JSON reply to info, locate-home and exists. For exec
	// the process output streams on stdout and a Response with Error set is
	// written to stderr only when the process could not be started.
	Response struct {
		Node   *Node  `json:"node,omitempty"`
		Home   string `json:"home,omitempty"`
		Exists bool   `json:"exists,omitempty"`
		Error  string `json:"error,omitempty"`
	}
)
