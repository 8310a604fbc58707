package store

import (
	"regexp"
	"strings"
)

const (
	DocSuffix  = ".md"
	RawSuffix  = ".txt"
	JSONSuffix = ".json"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// NormalizeURL turns a URL into a flat cache name. Literal dashes are doubled
// before slashes become dashes, so "a/b" and "a-b" never collide.
func NormalizeURL(u string) string {
	return strings.ReplaceAll(strings.ReplaceAll(u, "-", "--"), "/", "-")
}

// SafeName replaces every character outside [A-Za-z0-9_.-] with a dash.
func SafeName(s string) string {
	return unsafeChars.ReplaceAllString(s, "-")
}

// BaseKey is the suffix-less key shared by every artifact of a URL.
func BaseKey(u string) string {
	return SafeName(NormalizeURL(u))
}

// DocKey is the key of the converted Markdown document for u.
func DocKey(u string) string { return BaseKey(u) + DocSuffix }

// RawKey is the key of the raw extracted text for u.
func RawKey(u string) string { return BaseKey(u) + RawSuffix }

// JSONKey is the key of a cached JSON response for u.
func JSONKey(u string) string { return BaseKey(u) + JSONSuffix }

// SchemaKey is the key of the JSON Schema that validates the cached response for u.
func SchemaKey(u string) string { return BaseKey(u) + ".schema" + JSONSuffix }
