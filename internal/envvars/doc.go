// SPDX-License-Identifier: MPL-2.0

// Package envvars provides the ordered environment map used to build the
// child process environment, together with the host's override and macro
// expansion rules.
package envvars
