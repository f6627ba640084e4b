// SPDX-License-Identifier: MPL-2.0

// Package step implements the two build steps provar-ci offers: the Provar
// Automation builder, which resolves the toolchain and build file and runs
// Ant, and the environment wrapper, which exposes registered installations
// to other steps.
package step
