// SPDX-License-Identifier: MPL-2.0

package tool

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/provar-ci/provar-ci/internal/agent"
	"github.com/provar-ci/provar-ci/internal/envvars"
	"github.com/provar-ci/provar-ci/internal/testutil"
	"github.com/provar-ci/provar-ci/pkg/platform"
)

func TestKindIsValid(t *testing.T) {
	t.Parallel()

	for _, k := range Kinds() {
		if ok, errs := k.IsValid(); !ok || len(errs) != 0 {
			t.Errorf("%s.IsValid() = %v, %v", k, ok, errs)
		}
	}
	ok, errs := Kind("maven").IsValid()
	if ok || len(errs) != 1 || !errors.Is(errs[0], ErrInvalidKind) {
		t.Errorf("maven.IsValid() = %v, %v", ok, errs)
	}
}

func TestLaunderHome(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"/opt/provar/", "/opt/provar"},
		{`C:\Provar\`, `C:\Provar`},
		{"/opt/provar", "/opt/provar"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := LaunderHome(tt.in); got != tt.want {
			t.Errorf("LaunderHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFind(t *testing.T) {
	t.Parallel()

	installs := []Installation{New(KindProvar, "2.12", "/opt/p212"), New(KindProvar, "2.13", "/opt/p213")}

	if got, ok := Find(installs, "2.13"); !ok || got.Home != "/opt/p213" {
		t.Errorf("Find(2.13) = %+v, %v", got, ok)
	}
	if _, ok := Find(installs, ""); ok {
		t.Error("empty name must not match")
	}
	if _, ok := Find(installs, "2.1"); ok {
		t.Error("matching must be exact")
	}
}

func TestForNodeThenEnvironment(t *testing.T) {
	t.Parallel()

	registered := New(KindProvar, "2.12", "/opt/provar")
	node := agent.Node{
		Name: "win-1",
		OS:   platform.Windows,
		Env:  map[string]string{"TOOLS": `D:\tools`},
		ToolLocations: map[string]string{
			agent.ToolKey("provar", "2.12"): `${TOOLS}/provar/$VERSION/`,
		},
	}

	onNode := ForNode(registered, node)
	if want := `D:\tools\provar\$VERSION`; onNode.Home != want {
		t.Errorf("ForNode().Home = %q, want %q", onNode.Home, want)
	}

	env := envvars.New()
	env.Put("VERSION", "2.12.1")
	final := ForEnvironment(onNode, env)
	if want := `D:\tools\provar\2.12.1`; final.Home != want {
		t.Errorf("ForEnvironment().Home = %q, want %q", final.Home, want)
	}

	if registered.Home != "/opt/provar" {
		t.Errorf("registered installation was mutated: %q", registered.Home)
	}
}

func TestForNodeWithoutOverride(t *testing.T) {
	t.Parallel()

	got := ForNode(New(KindJDK, "17", "$HOME/jdk17"), agent.Node{OS: platform.Linux, Env: map[string]string{"HOME": "/home/ci"}})
	if got.Home != "/home/ci/jdk17" {
		t.Errorf("ForNode().Home = %q", got.Home)
	}
}

func TestBuildEnvVars(t *testing.T) {
	t.Parallel()

	env := envvars.New()
	New(KindProvar, "p", "/opt/provar").BuildEnvVars(env, platform.Linux)
	New(KindJDK, "j", "/opt/jdk").BuildEnvVars(env, platform.Linux)
	New(KindAnt, "a", `C:\ant`).BuildEnvVars(env, platform.Windows)

	want := map[string]string{
		"PROVAR_HOME": "/opt/provar",
		"JAVA_HOME":   "/opt/jdk",
		"PATH+JDK":    "/opt/jdk/bin",
		"ANT_HOME":    `C:\ant`,
		"PATH+ANT":    `C:\ant\bin`,
	}
	for k, v := range want {
		if got := env.Value(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

type locatorFunc func(ctx context.Context, rawHome, marker string) (string, error)

func (f locatorFunc) LocateHome(ctx context.Context, rawHome, marker string) (string, error) {
	return f(ctx, rawHome, marker)
}

func TestExecutable(t *testing.T) {
	t.Parallel()

	inst := New(KindProvar, "2.12", "/opt/provar")

	found := locatorFunc(func(_ context.Context, rawHome, marker string) (string, error) {
		if marker != Marker {
			t.Errorf("marker = %q, want %q", marker, Marker)
		}
		return rawHome, nil
	})
	if home, err := Executable(t.Context(), found, inst); err != nil || home != "/opt/provar" {
		t.Errorf("Executable() = %q, %v", home, err)
	}

	missing := locatorFunc(func(context.Context, string, string) (string, error) { return "", nil })
	_, err := Executable(t.Context(), missing, inst)
	var nid *NotInstallDirError
	if !errors.As(err, &nid) || nid.Name != "2.12" || !errors.Is(err, ErrNotInstallDir) {
		t.Errorf("Executable() error = %v, want NotInstallDirError for 2.12", err)
	}

	offline := locatorFunc(func(context.Context, string, string) (string, error) {
		return "", &agent.OfflineError{Agent: "n", Err: errors.New("eof")}
	})
	if _, err := Executable(t.Context(), offline, inst); !errors.Is(err, agent.ErrOffline) {
		t.Errorf("Executable() error = %v, want ErrOffline", err)
	}
}

func TestCheckHome(t *testing.T) {
	t.Parallel()

	valid := testutil.MustProvarHome(t)
	file := testutil.MustWriteFile(t, filepath.Join(t.TempDir(), "file"), "")

	tests := []struct {
		name string
		dir  string
		want error
	}{
		{"empty", "", nil},
		{"valid", valid, nil},
		{"file", file, ErrNotDirectory},
		{"missing", filepath.Join(valid, "nope"), ErrNotDirectory},
		{"no marker", t.TempDir(), ErrNotInstallDir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := CheckHome(tt.dir)
			if tt.want == nil && err != nil {
				t.Errorf("CheckHome() = %v, want nil", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("CheckHome() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry(
		Installation{Kind: KindProvar, Name: "p", Home: "/opt/p/"},
		Installation{Kind: KindJDK, Name: "j", Home: "/opt/j"},
	)
	got := r.Installations(KindProvar)
	if len(got) != 1 || got[0].Home != "/opt/p" {
		t.Errorf("Installations(provar) = %+v", got)
	}
	got[0].Home = "changed"
	if r.Installations(KindProvar)[0].Home != "/opt/p" {
		t.Error("Installations must return a copy")
	}
	if len(r.Installations(KindAnt)) != 0 {
		t.Error("expected no ant installations")
	}
	if len(r.All()) != 2 {
		t.Errorf("All() = %+v", r.All())
	}
}
