// SPDX-License-Identifier: MPL-2.0

// Package secret holds values that must never reach a build log in cleartext.
package secret

import (
	"fmt"
	"os"
	"strings"
)

// Redacted is what a Secret renders as in any formatted output.
const Redacted = "******"

// Secret wraps a sensitive string. The plaintext is only reachable through
// PlainText; every fmt verb prints Redacted.
type Secret struct {
	value string
}

// New wraps plain in a Secret.
func New(plain string) Secret {
	return Secret{value: plain}
}

// FromEnv reads the secret from the environment variable name.
// An unset variable yields an empty Secret.
func FromEnv(name string) Secret {
	return Secret{value: os.Getenv(name)}
}

// FromFile reads the secret from path, trimming one trailing newline so that
// files written by `echo` work as expected.
func FromFile(path string) (Secret, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Secret{}, fmt.Errorf("failed to read secret file: %w", err)
	}
	v := strings.TrimSuffix(string(data), "\n")
	v = strings.TrimSuffix(v, "\r")
	return Secret{value: v}, nil
}

// PlainText returns the cleartext value. Only call this when building the
// process arguments, never for logging.
func (s Secret) PlainText() string { return s.value }

// IsSet reports whether the secret holds a non-empty value.
func (s Secret) IsSet() bool { return s.value != "" }

// String implements fmt.Stringer.
func (s Secret) String() string { return Redacted }

// GoString implements fmt.GoStringer so %#v is redacted as well.
func (s Secret) GoString() string { return "secret.Secret{" + Redacted + "}" }

// Format implements fmt.Formatter.
func (s Secret) Format(f fmt.State, verb rune) {
	if verb == 'v' && f.Flag('#') {
		_, _ = f.Write([]byte(s.GoString()))
		return
	}
	_, _ = f.Write([]byte(Redacted))
}

// MarshalText keeps secrets out of serialized configuration dumps.
func (s Secret) MarshalText() ([]byte, error) { return []byte(Redacted), nil }
