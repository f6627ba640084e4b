// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue/errors"
)

// DefaultMaxFileSize caps schema-validated files at 5MB.
const DefaultMaxFileSize int64 = 5 << 20

// FormatError rewrites a CUE error so every line reads
// "<file>: <json path>: <message>", e.g.
//
//	config.cue: nodes[0].tool_locations[1].kind: 3 errors in empty disjunction
//
// Errors that do not come from CUE are wrapped with the file name.
func FormatError(err error, filePath string) error {
	if err == nil {
		return nil
	}
	list := errors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	lines := make([]string, 0, len(list))
	for _, e := range list {
		p := formatPath(errors.Path(e))
		msg := e.Error()
		if p == "" {
			lines = append(lines, msg)
			continue
		}
		if rest, ok := strings.CutPrefix(msg, p); ok {
			msg = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
		}
		lines = append(lines, p+": "+msg)
	}
	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", filePath, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", filePath, strings.Join(lines, "\n  "))
}

// formatPath renders ["nodes", "0", "os"] as nodes[0].os.
func formatPath(path []string) string {
	var b strings.Builder
	for i, part := range path {
		if _, err := strconv.ParseUint(part, 10, 64); err == nil && i > 0 {
			b.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}

// CheckFileSize rejects data larger than maxSize bytes.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if n := int64(len(data)); n > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", filename, n, maxSize)
	}
	return nil
}
