// SPDX-License-Identifier: MPL-2.0

package step

import "github.com/provar-ci/provar-ci/internal/issue"

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultAborted Result = "aborted"
)

type (
	// Result is the build outcome reported to the orchestrator.
	Result string

	// AbortError stops a build before or while the tool runs. Aborts are
	// configuration or connectivity problems, not test failures.
	AbortError struct {
		Message string
		// Issue links the catalog entry with remediation steps. Zero means none.
		Issue issue.Id
		Cause error
	}
)

func (r Result) String() string { return string(r) }

// ExitCode maps r to a process exit status: 0 success, 1 failure, 2 aborted.
func (r Result) ExitCode() int {
	switch r {
	case ResultSuccess:
		return 0
	case ResultFailure:
		return 1
	default:
		return 2
	}
}

func (e *AbortError) Error() string {
	if e.Message == "" && e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Message
}

func (e *AbortError) Unwrap() error { return e.Cause }

func abort(id issue.Id, msg string, cause error) (Result, error) {
	return ResultAborted, &AbortError{Message: msg, Issue: id, Cause: cause}
}
