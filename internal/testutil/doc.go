// SPDX-License-Identifier: MPL-2.0

// Package testutil holds test helpers shared across packages: environment
// overrides that restore themselves, file fixtures such as a minimal Provar
// installation, server shutdown helpers and a FakeClock for timing hints.
package testutil
