// SPDX-License-Identifier: MPL-2.0

// Package args builds the tool's command line as an ordered token list with
// a parallel redaction mask, and adapts that list to the Windows cmd.exe
// wrapper shapes.
//
// The mask always has one entry per token. Masked tokens are passed to the
// process unchanged and only rendered as MaskedToken in logs.
package args
