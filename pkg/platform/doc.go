// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities.
//
// Build agents may run a different operating system than the process that
// prepares an invocation, so helpers here take the target OS explicitly
// instead of consulting runtime.GOOS.
package platform
