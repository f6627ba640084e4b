// SPDX-License-Identifier: MPL-2.0

// Package agentserver serves the agent protocol over SSH so a controller can
// resolve installations, check files and launch builds on a remote node.
//
// Clients authenticate with a shared token sent as the SSH password. Public
// key authentication is refused. Each session runs exactly one verb.
package agentserver
