// SPDX-License-Identifier: MPL-2.0

// Package runner launches the prepared command on the execution agent and
// maps its result to a build outcome.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/provar-ci/provar-ci/internal/agent"
	"github.com/provar-ci/provar-ci/internal/annotate"
	"github.com/provar-ci/provar-ci/internal/args"
	"github.com/provar-ci/provar-ci/internal/envvars"
	"github.com/provar-ci/provar-ci/internal/issue"
)

// DefaultHintWindow is how soon after start a launch failure is attributed
// to missing tool configuration.
const DefaultHintWindow = time.Second

var (
	// ErrCancelled is returned when the build is cancelled while running.
	ErrCancelled = errors.New("build cancelled")
	// ErrExecutionFailed is the sentinel error wrapped by ExecutionError.
	ErrExecutionFailed = errors.New("command execution failed")
)

type (
	// Launcher starts a process on the execution node.
	Launcher interface {
		Launch(ctx context.Context, req agent.LaunchRequest) (int, error)
	}

	// Invocation is a fully prepared command.
	Invocation struct {
		Args *args.List
		Env  *envvars.EnvVars
		// Dir is the working directory: the build file's parent.
		Dir string
		// ToolSelected is true when the step picked a registered installation.
		ToolSelected bool
	}

	// Options configures Run.
	Options struct {
		// Out receives the command line and the annotated tool output.
		Out   io.Writer
		Color bool
		// InstallationsRegistered reports whether any installation exists,
		// to pick the right hint after an early launch failure.
		InstallationsRegistered bool
		// HintWindow defaults to DefaultHintWindow.
		HintWindow time.Duration
		// Now defaults to time.Now.
		Now func() time.Time
	}

	// Outcome describes a completed run.
	Outcome struct {
		ExitCode int
		// Reported is the BUILD line Ant printed, if any.
		Reported annotate.Outcome
		Duration time.Duration
	}

	// ExecutionError is returned when the process could not be launched or
	// the connection to it was lost.
	ExecutionError struct {
		// Hint links a configuration hint when the failure happened right
		// away and no installation was selected. Zero means no hint. A lost
		// agent connection never gets one.
		Hint issue.Id
		Err  error
	}
)

// Success reports whether the process exited with status 0.
func (o Outcome) Success() bool { return o.ExitCode == 0 }

func (e *ExecutionError) Error() string {
	msg := ErrExecutionFailed.Error()
	switch e.Hint {
	case issue.GlobalConfigNeededId:
		msg += ". Maybe you need to configure where your Provar Automation installations are?"
	case issue.ProjectConfigNeededId:
		msg += ". Maybe you need to configure the job to choose one of your Provar Automation installations?"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns ErrExecutionFailed and the cause.
func (e *ExecutionError) Unwrap() []error { return []error{ErrExecutionFailed, e.Err} }

// Run prints the masked command line, launches it and streams the output
// through an annotator. The last partial output line is always terminated
// before Run returns. A non-zero exit is reported in the Outcome, not as an
// error.
func Run(ctx context.Context, l Launcher, inv Invocation, opts Options) (Outcome, error) {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	window := opts.HintWindow
	if window <= 0 {
		window = DefaultHintWindow
	}

	fmt.Fprintf(out, "$ %s\n", inv.Args)

	var environ []string
	if inv.Env != nil {
		environ = inv.Env.Environ()
	}

	ann := annotate.New(out, opts.Color)
	start := now()
	code, err := func() (int, error) {
		defer func() { _ = ann.ForceEOL() }()
		return l.Launch(ctx, agent.LaunchRequest{
			Args:   inv.Args.Args(),
			Mask:   inv.Args.MaskArray(),
			Env:    environ,
			Dir:    inv.Dir,
			Stdout: ann,
		})
	}()
	elapsed := now().Sub(start)

	if ctx.Err() != nil {
		return Outcome{ExitCode: -1, Duration: elapsed}, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
	if err != nil {
		execErr := &ExecutionError{Err: err}
		if !inv.ToolSelected && elapsed < window && !errors.Is(err, agent.ErrOffline) {
			if opts.InstallationsRegistered {
				execErr.Hint = issue.ProjectConfigNeededId
			} else {
				execErr.Hint = issue.GlobalConfigNeededId
			}
		}
		return Outcome{ExitCode: -1, Duration: elapsed}, execErr
	}
	return Outcome{ExitCode: code, Reported: ann.Outcome(), Duration: elapsed}, nil
}
