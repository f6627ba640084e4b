// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and a catalog of Markdown
// explanations for the failures a build step can hit, rendered with glamour.
package issue
