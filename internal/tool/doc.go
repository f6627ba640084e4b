// SPDX-License-Identifier: MPL-2.0

// Package tool resolves registered toolchain installations (Provar, JDK and
// Ant) for the node and environment a build runs in.
//
// Registered installations are immutable. ForNode and ForEnvironment return
// specialized copies and must be applied in that order: node translation can
// introduce macros that only the build environment resolves.
package tool
