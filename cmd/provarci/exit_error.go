// SPDX-License-Identifier: MPL-2.0

package cmd

import "strconv"

// ExitError carries the process exit code out of a RunE handler. Err is the
// failure already reported to the user, if any.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return "exit status " + strconv.Itoa(e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }
