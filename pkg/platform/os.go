// SPDX-License-Identifier: MPL-2.0

package platform

import "strings"

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// IsUnix reports whether goos uses Unix conventions (slash separators,
// colon-separated PATH, no cmd.exe wrapper). Everything except Windows does.
func IsUnix(goos string) bool {
	return goos != Windows
}

// Separator returns the path separator for goos.
func Separator(goos string) string {
	if IsUnix(goos) {
		return "/"
	}
	return `\`
}

// PathListSeparator returns the PATH list separator for goos.
func PathListSeparator(goos string) string {
	if IsUnix(goos) {
		return ":"
	}
	return ";"
}

// ToSeparators rewrites both slash styles in path to the separator of goos.
func ToSeparators(path, goos string) string {
	if IsUnix(goos) {
		return strings.ReplaceAll(path, `\`, "/")
	}
	return strings.ReplaceAll(path, "/", `\`)
}

// Join joins path elements with the separator of goos, skipping empty
// elements and collapsing duplicate separators at the joints.
func Join(goos string, elem ...string) string {
	sep := Separator(goos)
	var b strings.Builder
	for _, e := range elem {
		if e == "" {
			continue
		}
		e = ToSeparators(e, goos)
		if b.Len() == 0 {
			b.WriteString(e)
			continue
		}
		if !strings.HasSuffix(b.String(), sep) {
			b.WriteString(sep)
		}
		b.WriteString(strings.TrimPrefix(e, sep))
	}
	return b.String()
}

// Base returns the last element of path for goos.
func Base(path, goos string) string {
	path = strings.TrimRight(ToSeparators(path, goos), Separator(goos))
	if i := strings.LastIndex(path, Separator(goos)); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Dir returns all but the last element of path for goos.
func Dir(path, goos string) string {
	sep := Separator(goos)
	path = ToSeparators(path, goos)
	i := strings.LastIndex(path, sep)
	switch {
	case i < 0:
		return "."
	case i == 0:
		return sep
	case !IsUnix(goos) && isDriveLetter(path[:i]):
		// C: alone is the current directory of drive C, not its root.
		return path[:i+1]
	default:
		return path[:i]
	}
}

func isDriveLetter(s string) bool {
	if len(s) != 2 || s[1] != ':' {
		return false
	}
	c := s[0] | 0x20
	return c >= 'a' && c <= 'z'
}

// windowsDeviceNames cannot be used as file or folder names on Windows agents,
// with or without an extension.
var windowsDeviceNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// IsWindowsReservedName reports whether name (extension ignored) is a
// Windows device name such as CON or LPT1.
func IsWindowsReservedName(name string) bool {
	upper := strings.ToUpper(name)
	if idx := strings.LastIndex(upper, "."); idx != -1 {
		upper = upper[:idx]
	}
	return windowsDeviceNames[upper]
}
