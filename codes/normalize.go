// Package codes holds SNOMED code text normalization shared by the
// resolution and lookup layers.
package codes

import "strings"

// placeholders are literal values that stand in for a missing code or
// description in source data and lookup tables.
var placeholders = map[string]bool{
	"":                        true,
	"n/a":                     true,
	"na":                      true,
	"none":                    true,
	"null":                    true,
	"unknown":                 true,
	"not found":               true,
	"not_found":               true,
	"not in emis lookup table": true,
}

// IsPlaceholder reports whether a value is empty or one of the known
// placeholder strings, case-insensitively.
func IsPlaceholder(value string) bool {
	return placeholders[strings.ToLower(strings.TrimSpace(value))]
}

// Normalize returns the canonical text form of a SNOMED code: placeholders
// collapse to the empty string and a trailing ".0" from float
// round-tripping is stripped.
func Normalize(code string) string {
	c := strings.TrimSpace(code)
	if IsPlaceholder(c) {
		return ""
	}
	c = strings.TrimSuffix(c, ".0")
	return c
}
