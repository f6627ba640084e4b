// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

// ProvarJar is the file below an installation home that marks it as a
// Provar Automation install.
const ProvarJar = "ant/ant-provar.jar"

// Stopper is implemented by servers with a blocking Stop, such as the agent server.
type Stopper interface {
	Stop() error
}

// MustSetenv sets key to value and returns a func restoring the previous state.
func MustSetenv(t testing.TB, key, value string) func() {
	t.Helper()
	prev, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	return restoreEnv(t, key, prev, had)
}

// MustUnsetenv unsets key and returns a func restoring the previous state.
func MustUnsetenv(t testing.TB, key string) func() {
	t.Helper()
	prev, had := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	return restoreEnv(t, key, prev, had)
}

func restoreEnv(t testing.TB, key, prev string, had bool) func() {
	return func() {
		var err error
		if had {
			err = os.Setenv(key, prev)
		} else {
			err = os.Unsetenv(key)
		}
		if err != nil {
			t.Errorf("failed to restore env %s: %v", key, err)
		}
	}
}

// MustWriteFile writes content to path, creating parent directories.
func MustWriteFile(t testing.TB, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// MustProvarHome lays out a minimal installation under a fresh temp dir and
// returns its home.
func MustProvarHome(t testing.TB) string {
	t.Helper()
	home := t.TempDir()
	MustWriteFile(t, filepath.Join(home, filepath.FromSlash(ProvarJar)), "")
	return home
}

// MustClose closes c and fails the test on error.
func MustClose(t testing.TB, c io.Closer) {
	t.Helper()
	if err := c.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}
}

// MustStop stops s, logging rather than failing on shutdown errors.
func MustStop(t testing.TB, s Stopper) {
	t.Helper()
	if err := s.Stop(); err != nil {
		t.Logf("warning: stop returned error: %v", err)
	}
}

// DeferStop returns a cleanup func suitable for t.Cleanup.
func DeferStop(t testing.TB, s Stopper) func() {
	t.Helper()
	return func() { MustStop(t, s) }
}
