package export

import (
	"regexp"
	"strings"
)

// callTypePattern matches the type token of a raw backend call string,
// e.g. "Call-JDBC to DB - orders_db" -> "JDBC".
var callTypePattern = regexp.MustCompile(`^Call-(\S+)\s`)

// ParseBackendName extracts the (type, name) pair from a raw backend call
// string of the form "Call-<TYPE> to <remote> - <display-name>".
//
// The display name is everything after the FIRST " - " separator, so names
// that themselves contain " - " survive intact. The function is total: a
// string that does not match the grammar yields the raw string as the name
// (with whatever type prefix could still be recognized) and ok=false, so
// callers can count the anomaly without losing the row.
func ParseBackendName(raw string) (backendType, name string, ok bool) {
	ok = true

	if m := callTypePattern.FindStringSubmatch(raw); m != nil {
		backendType = m[1]
	} else {
		ok = false
	}

	if idx := strings.Index(raw, " - "); idx >= 0 {
		name = raw[idx+len(" - "):]
	} else {
		name = raw
		ok = false
	}

	return backendType, name, ok
}
