// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/provar-ci/provar-ci/internal/issue"
	"github.com/provar-ci/provar-ci/internal/step"
)

// renderIssue prints the catalog entry for id, if there is one.
func renderIssue(w io.Writer, id issue.Id) {
	if id == 0 {
		return
	}
	entry := issue.Get(id)
	if entry == nil {
		return
	}
	rendered, err := entry.Render("dark")
	if err != nil {
		slog.Warn("failed to render issue catalog entry", "issueID", id, "error", err)
		return
	}
	fmt.Fprint(w, rendered)
}

// renderError prints err for the user. Actionable errors show their context
// and suggestions; step aborts also print the matching catalog entry.
func renderError(w io.Writer, err error, verbose bool) {
	var abortErr *step.AbortError
	if errors.As(err, &abortErr) {
		fmt.Fprintln(w, ErrorStyle.Render("ERROR:")+" "+abortErr.Error())
		if verbose && abortErr.Cause != nil && abortErr.Message != "" {
			fmt.Fprintln(w, SubtitleStyle.Render("  caused by: "+abortErr.Cause.Error()))
		}
		renderIssue(w, abortErr.Issue)
		return
	}
	if ae, ok := issue.Find(err); ok {
		fmt.Fprintln(w, ErrorStyle.Render("ERROR:")+" "+ae.Format(verbose))
		if ae.IssueID != 0 {
			renderIssue(w, ae.IssueID)
		}
		return
	}
	fmt.Fprintln(w, ErrorStyle.Render("ERROR:")+" "+err.Error())
}
