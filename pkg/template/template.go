// Package template resolves {{placeholder}} templates against the variable context of an execution.
package template

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Variables is the flat key/value context used to fill templates for one execution.
type Variables map[string]string

// Render replaces every {{key}} placeholder with its value. Placeholders without a
// value are left verbatim so a missing variable is visible in the delivered text.
func Render(input string, vars Variables) string {
	if !strings.Contains(input, "{{") {
		return input
	}

	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]

		value, ok := vars[key]
		if !ok {
			return match
		}

		return value
	})
}

// HasPlaceholders reports whether input contains at least one {{key}} placeholder.
func HasPlaceholders(input string) bool {
	return placeholderPattern.MatchString(input)
}

// Set stores value under key only when key has no value yet.
func (v Variables) Set(key, value string) {
	if _, ok := v[key]; !ok {
		v[key] = value
	}
}

// Put stores value under key when value is non-empty, overwriting any previous value.
func (v Variables) Put(key, value string) {
	if value != "" {
		v[key] = value
	}
}
