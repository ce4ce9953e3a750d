// Package normalize trims and canonicalizes user-supplied strings before
// they are compared or stored.
package normalize

import "strings"

// Email trims whitespace and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims whitespace and collapses internal runs of spaces.
// Case is preserved.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// QueryParam trims a query string value. Case is preserved.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
