// SPDX-License-Identifier: MPL-2.0

// Package cueutil holds helpers shared by code that validates files against
// embedded CUE schemas: size limits and error messages that name the failing
// field with a JSON path.
package cueutil
