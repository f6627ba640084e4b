// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/provar-ci/provar-ci/internal/config"
	"github.com/provar-ci/provar-ci/internal/envvars"
	"github.com/provar-ci/provar-ci/internal/issue"
	"github.com/provar-ci/provar-ci/internal/step"
)

func TestPrintExports(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	app := NewApp(Dependencies{Stdout: &out, Stderr: io.Discard})

	env := envvars.FromMap(map[string]string{
		"PROVAR_HOME": "/opt/my provar",
		"PATH":        "/opt/my provar/bin:/usr/bin",
	}, "PROVAR_HOME", "PATH")
	added := envvars.New()
	added.Put("PROVAR_HOME", "/opt/my provar")
	added.Put("PATH+PROVAR", "/opt/my provar/bin")
	added.Put("JAVA_HOME", "")

	if err := printExports(app, env, added); err != nil {
		t.Fatal(err)
	}
	want := "export PROVAR_HOME='/opt/my provar'\n" +
		"export PATH='/opt/my provar/bin:/usr/bin'\n" +
		"unset JAVA_HOME\n"
	if out.String() != want {
		t.Errorf("printExports() =\n%s\nwant\n%s", out.String(), want)
	}
}

func TestRenderError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "abort",
			err:  &step.AbortError{Message: "Provar Automation installation not found", Issue: issue.ToolNotFoundId},
			want: []string{"ERROR:", "installation not found"},
		},
		{
			name: "actionable",
			err: issue.NewErrorContext().
				WithOperation("read build context").
				WithResource("ctx.toml").
				Wrap(errors.New("boom")).
				BuildError(),
			want: []string{"ERROR:", "read build context", "boom"},
		},
		{
			name: "plain",
			err:  errors.New("plain failure"),
			want: []string{"ERROR:", "plain failure"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			renderError(&buf, tt.err, false)
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output lacks %q:\n%s", w, buf.String())
				}
			}
		})
	}
}

func TestMaskedValues(t *testing.T) {
	t.Parallel()

	vars := envvars.New()
	vars.Put("user", "admin")
	vars.Put("token", "abc")
	vars.Put("empty", "")

	bc := step.BuildContext{Variables: vars}
	bc.Sensitive = bc.Sensitive.With("token", "empty")

	got := maskedValues(step.DefaultConfig(), bc)
	if len(got) != 1 || got[0] != "abc" {
		t.Errorf("maskedValues() = %v, want [abc]", got)
	}

	d := &dryRunAgent{masked: got}
	if s := d.mask("ant -Dtoken=abc -Duser=admin"); s != "ant -Dtoken=******** -Duser=admin" {
		t.Errorf("mask() = %q", s)
	}
}

func TestWithRejectsUnknownNode(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Installations = []config.Installation{{Name: "2.12", Home: "/opt/provar"}}
	cfg.Nodes = []config.Node{{Name: "win-1", OS: "windows"}}
	h := newHarness(cfg, nil)

	err := h.execute(t, "with", "--installation", "2.12", "--node", "win-2")
	if !errors.Is(err, config.ErrUnknownNode) {
		t.Fatalf("err = %v, want ErrUnknownNode", err)
	}
	if h.stdout.Len() != 0 {
		t.Errorf("exports printed for an unknown node:\n%s", h.stdout.String())
	}

	if err := h.execute(t, "with", "--installation", "2.12", "--node", "win-1"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(h.stdout.String(), `export PROVAR_HOME='\opt\provar'`) {
		t.Errorf("node tool translation missing:\n%s", h.stdout.String())
	}
}
