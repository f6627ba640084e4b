// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/provar-ci/provar-ci/internal/agent"
	"github.com/provar-ci/provar-ci/internal/args"
	"github.com/provar-ci/provar-ci/internal/envvars"
	"github.com/provar-ci/provar-ci/internal/step"
)

// stepVariables are the variables a dry run shows from the launch environment.
var stepVariables = []string{
	"PROVAR_HOME", "JAVA_HOME", "ANT_HOME",
	"PROJECT_NAME", "PROJECT_WORKSPACE", "TEST_PLAN", "TEST_FOLDER", "ENVIRONMENT",
	"BROWSER", "CACHE_SETTING", "RESULTS_PATH_SETTING", "LICENSE_PATH",
}

// dryRunAgent resolves everything through the real agent but prints the
// launch instead of performing it.
type dryRunAgent struct {
	agent.Agent
	out    io.Writer
	masked []string
}

func (d *dryRunAgent) Launch(_ context.Context, req agent.LaunchRequest) (int, error) {
	w := d.out
	fmt.Fprintln(w, TitleStyle.Render("Dry Run"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s\n", KeyStyle.Render("Command:"), commandLine(req))
	fmt.Fprintf(w, "  %s %s\n", KeyStyle.Render("WorkDir:"), req.Dir)

	env := envvars.FromEnviron(req.Env)
	fmt.Fprintln(w, KeyStyle.Render("  Environment:"))
	for _, k := range stepVariables {
		if v, ok := env.Get(k); ok {
			fmt.Fprintf(w, "    %s=%s\n", k, d.mask(v))
		}
	}
	fmt.Fprintln(w)
	return 0, nil
}

// commandLine renders the launch with its masked positions redacted.
func commandLine(req agent.LaunchRequest) string {
	l := args.New()
	for i, tok := range req.Args {
		l.AddWithMask(tok, i < len(req.Mask) && req.Mask[i])
	}
	return l.String()
}

func (d *dryRunAgent) mask(s string) string {
	for _, v := range d.masked {
		s = strings.ReplaceAll(s, v, args.MaskedToken)
	}
	return s
}

// maskedValues collects the plaintext values a dry run must not print.
func maskedValues(cfg step.Config, bc step.BuildContext) []string {
	var out []string
	if cfg.SecretsPassword.IsSet() {
		out = append(out, cfg.SecretsPassword.PlainText())
	}
	if bc.Variables != nil {
		for _, k := range bc.Variables.Keys() {
			if v := bc.Variables.Value(k); v != "" && bc.Sensitive.Has(k) {
				out = append(out, v)
			}
		}
	}
	return out
}
