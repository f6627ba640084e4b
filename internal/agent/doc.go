// SPDX-License-Identifier: MPL-2.0

// Package agent abstracts the execution node a build runs on.
//
// Every operation that touches the node (reading its environment, checking
// files, launching the tool) goes through an Agent so the same pipeline
// works for the local host and for remote nodes reached over SSH. All
// methods honour context cancellation. A lost connection is reported as
// ErrOffline.
package agent
