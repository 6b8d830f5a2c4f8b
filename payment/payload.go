package payment

import "strings"

// FormatTag opens every payload: ST0001 plus encoding 2 (UTF-8).
const FormatTag = "ST00012"

const separator = "|"

// BuildPayload serialises d as an ST00012 payload.
//
// Known keys come first in FieldOrder, followed by any other keys in
// insertion order. Separators inside values become spaces, values are
// trimmed and empty values are dropped. When no field survives,
// BuildPayload returns "" rather than a bare tag.
func BuildPayload(d Details) string {
	parts := []string{FormatTag}
	used := make(map[string]bool, len(FieldOrder))

	for _, key := range FieldOrder {
		if value := cleanValue(d.Get(key)); value != "" {
			parts = append(parts, key+"="+value)
			used[key] = true
		}
	}
	for _, key := range d.keys {
		if used[key] {
			continue
		}
		if value := cleanValue(d.Get(key)); value != "" {
			parts = append(parts, key+"="+value)
			used[key] = true
		}
	}

	if len(parts) == 1 {
		return ""
	}
	return strings.Join(parts, separator)
}

// cleanValue keeps a value inside its own segment.
func cleanValue(v string) string {
	return strings.TrimSpace(strings.ReplaceAll(v, separator, " "))
}

// IsEmptyPayload reports whether p carries no fields. Callers must skip QR
// generation for empty payloads.
func IsEmptyPayload(p string) bool {
	p = strings.TrimSpace(p)
	return p == "" || p == FormatTag || p == FormatTag+separator
}

// ParsePayload splits a payload back into Details. It is the inverse of
// BuildPayload for well-formed input and returns false when the tag is
// missing.
func ParsePayload(p string) (Details, bool) {
	segments := strings.Split(p, separator)
	if len(segments) == 0 || segments[0] != FormatTag {
		return Details{}, false
	}
	var d Details
	for _, seg := range segments[1:] {
		key, value, ok := strings.Cut(seg, "=")
		if !ok || key == "" {
			continue
		}
		d.Set(key, value)
	}
	return d, true
}
