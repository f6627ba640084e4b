// SPDX-License-Identifier: MPL-2.0

package args

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

type (
	// Style selects how ToWindowsCommand shapes the cmd.exe wrapper.
	Style string

	// Shape classifies a wrapped list for RewriteForWindows.
	Shape int

	// InvalidStyleError is returned when a style name is not recognized.
	InvalidStyleError struct {
		Value string
	}
)

const (
	// StyleSplit wraps every argument as its own token:
	// cmd.exe /C "exe args... && exit %%ERRORLEVEL%%"
	StyleSplit Style = "modern"
	// StyleJoined wraps the whole command into a single third token.
	StyleJoined Style = "legacy"
)

const (
	// ShapeJoined is a wrapper of at most three tokens: interpreter, switch
	// and the joined command.
	ShapeJoined Shape = iota
	// ShapeSplit is a wrapper whose command is spread across tokens.
	ShapeSplit
)

// splitThreshold is the largest token count of the joined wrapper shape.
// Lists longer than this came from the split shape.
const splitThreshold = 3

// ErrInvalidStyle is the sentinel for InvalidStyleError.
var ErrInvalidStyle = errors.New("invalid windows command style")

var (
	emptySplitProperty  = regexp2.MustCompile(`^(-D[^" ]+)=$`, regexp2.None)
	emptyJoinedProperty = regexp2.MustCompile(`(?<= )(-D[^" ]+)= `, regexp2.None)
)

func (e *InvalidStyleError) Error() string {
	return fmt.Sprintf("invalid windows command style %q (valid: %s, %s)", e.Value, StyleSplit, StyleJoined)
}

func (e *InvalidStyleError) Unwrap() error { return ErrInvalidStyle }

// ParseStyle parses a style name. Empty selects StyleSplit.
func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(s)) {
	case "", StyleSplit:
		return StyleSplit, nil
	case StyleJoined:
		return StyleJoined, nil
	default:
		return "", &InvalidStyleError{Value: s}
	}
}

// String returns the style name.
func (s Style) String() string { return string(s) }

// ShapeOf classifies l by its token count.
func ShapeOf(l *List) Shape {
	if l.Len() > splitThreshold {
		return ShapeSplit
	}
	return ShapeJoined
}

// ToWindowsCommand wraps l for cmd.exe so the batch file's exit code is
// propagated. Arguments containing cmd metacharacters are double quoted.
func (l *List) ToWindowsCommand(style Style) *List {
	if style == StyleJoined {
		return l.toJoinedWindowsCommand()
	}

	out := New("cmd.exe", "/C")
	for i, arg := range l.args {
		body, quoted := quoteWindowsArg(arg, false)
		var token string
		switch {
		case i == 0 && quoted:
			token = `"` + body + `"`
		case i == 0:
			token = `"` + arg
		case quoted:
			token = body + `"`
		default:
			token = arg
		}
		out.add(token, l.mask[i])
	}
	return out.Add("&&", "exit", `%%ERRORLEVEL%%"`)
}

// toJoinedWindowsCommand produces the three-token shape. The joined token is
// masked when any of its parts is.
func (l *List) toJoinedWindowsCommand() *List {
	var b strings.Builder
	masked := false
	for i, arg := range l.args {
		body, quoted := quoteWindowsArg(arg, true)
		if quoted {
			b.WriteString(body)
			b.WriteByte('"')
		} else {
			b.WriteString(arg)
		}
		b.WriteByte(' ')
		masked = masked || l.mask[i]
	}
	b.WriteString("&& exit %%ERRORLEVEL%%")
	return New("cmd.exe", "/C").AddWithMask(`"`+b.String()+`"`, masked)
}

// quoteWindowsArg returns the opened quoted form of arg (without the closing
// quote) and whether quoting was needed. Embedded quotes are doubled. With
// escapeVars, %NAME references are broken up so cmd does not expand them.
func quoteWindowsArg(arg string, escapeVars bool) (string, bool) {
	var b strings.Builder
	quoted, percent := false, false
	start := func(i int) {
		b.WriteByte('"')
		b.WriteString(arg[:i])
		quoted = true
	}
	for i := 0; i < len(arg); i++ {
		c := arg[i]
		switch {
		case !quoted && (c == ' ' || c == '*' || c == '?' || c == ',' || c == ';'):
			start(i)
		case c == '^' || c == '&' || c == '<' || c == '>' || c == '|':
			if !quoted {
				start(i)
			}
		case c == '"':
			if !quoted {
				start(i)
			}
			b.WriteByte('"')
		case percent && escapeVars && isASCIILetter(c):
			if !quoted {
				start(i)
			}
			b.WriteByte('"')
			b.WriteByte(c)
			c = '"'
		}
		percent = c == '%'
		if quoted {
			b.WriteByte(c)
		}
	}
	return b.String(), quoted
}

func isASCIILetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// RewriteForWindows makes empty -D properties explicit, since ant.bat rejects
// a bare "-Dkey=". The split shape rewrites each token after the interpreter
// and switch; the joined shape rewrites inside its last token. The mask is
// carried over position by position.
func RewriteForWindows(l *List) (*List, error) {
	out := &List{}
	if ShapeOf(l) == ShapeSplit {
		out.add(l.args[0], l.mask[0])
		out.add(l.args[1], l.mask[1])
		for i := 2; i < len(l.args); i++ {
			arg, err := emptySplitProperty.Replace(l.args[i], `$0""`, -1, -1)
			if err != nil {
				return nil, fmt.Errorf("rewrite argument %d: %w", i, err)
			}
			out.add(arg, l.mask[i])
		}
		return out, nil
	}

	out = l.Clone()
	if out.Len() == 0 {
		return out, nil
	}
	last := out.Len() - 1
	arg, err := emptyJoinedProperty.Replace(out.args[last], `$1="" `, -1, -1)
	if err != nil {
		return nil, fmt.Errorf("rewrite joined command: %w", err)
	}
	out.args[last] = arg
	return out, nil
}

// ForPlatform adapts l to the target platform. On unix-like targets the list
// is returned unchanged (as a copy); on Windows it is wrapped for cmd.exe and
// rewritten.
func ForPlatform(l *List, unix bool, style Style) (*List, error) {
	if unix {
		return l.Clone(), nil
	}
	return RewriteForWindows(l.ToWindowsCommand(style))
}
