// Package hostversion compares host version strings such as "7.73" or
// "v7.1.2" using semantic-version ordering.
package hostversion

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Latest is the version descriptor that selects the highest known version.
const Latest = "latest"

// Canonical returns the semver form of v ("7.73" -> "v7.73.0"), or "" if v
// is not a version.
func Canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}

// Valid reports whether v parses as a version.
func Valid(v string) bool {
	return Canonical(v) != ""
}

// Compare returns -1, 0 or +1. Invalid versions sort before valid ones.
func Compare(a, b string) int {
	return semver.Compare(Canonical(a), Canonical(b))
}

// Max returns the highest valid version in vs, or "" if none is valid.
func Max(vs []string) string {
	best := ""
	for _, v := range vs {
		if !Valid(v) {
			continue
		}
		if best == "" || Compare(v, best) > 0 {
			best = v
		}
	}
	return best
}
