// SPDX-License-Identifier: MPL-2.0

package args

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/magiconair/properties"

	"github.com/provar-ci/provar-ci/internal/envvars"
)

// ErrInvalidEncoding is returned for property strings that are not valid
// UTF-8. The parser would replace such bytes with U+FFFD.
var ErrInvalidEncoding = errors.New("property string is not valid UTF-8")

// Resolver looks up a variable for macro replacement in property strings.
type Resolver func(name string) (string, bool)

var propertyEscaper = strings.NewReplacer(
	`\`, `\\`,
	" ", `\ `,
	"=", `\=`,
	":", `\:`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
	"\f", `\f`,
)

// PropertyEscape escapes v so that parsing "key=" + PropertyEscape(v) as a
// properties document yields v unchanged.
func PropertyEscape(v string) string {
	return propertyEscaper.Replace(v)
}

// AddKeyValuePairsFromPropertyString parses props as a Java properties
// document and appends one prefix+key=value token per entry, in document
// order. When resolver is non-nil, $NAME and ${NAME} macros are replaced
// first; backslashes in substituted values are doubled so they survive
// parsing.
func (l *List) AddKeyValuePairsFromPropertyString(prefix, props string, resolver Resolver, sensitive Set) (*List, error) {
	if props == "" {
		return l, nil
	}
	if resolver != nil {
		props = envvars.ReplaceMacro(props, func(name string) (string, bool) {
			v, ok := resolver(name)
			if !ok {
				return "", false
			}
			return strings.ReplaceAll(v, `\`, `\\`), true
		})
	}

	if !utf8.ValidString(props) {
		return l, ErrInvalidEncoding
	}

	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := loader.LoadBytes([]byte(props))
	if err != nil {
		return l, fmt.Errorf("parse property string: %w", err)
	}
	for _, k := range p.Keys() {
		v, _ := p.Get(k)
		l.AddKeyValuePair(prefix, k, v, sensitive.Has(k))
	}
	return l, nil
}
