// Package requirement parses raw dependency declaration lines into
// canonical package identities.
//
// Canonicalization is best-effort name extraction, not a full specifier
// parser: the name is the leading run of name characters, lower-cased,
// with "-" normalized to "_" so that "Some-Package" and "some_package"
// compare equal. Version operators, extras brackets, and environment
// markers all terminate the name run.
package requirement

import "strings"

// Requirement is a single dependency declaration exactly as a component
// wrote it, plus the canonical package name derived from it. Immutable
// once parsed.
type Requirement struct {
	// Raw is the declaration line as written (e.g. "numpy>=1.24").
	Raw string `json:"raw"`

	// Name is the canonical package name derived from Raw.
	Name string `json:"name"`
}

// CanonicalName extracts the canonical package name from a raw
// declaration string: the longest leading run of [A-Za-z0-9._-],
// lower-cased, with "-" replaced by "_". Returns "" when the string
// does not start with a name character.
func CanonicalName(raw string) string {
	raw = strings.TrimSpace(raw)
	end := 0
	for end < len(raw) && isNameChar(raw[end]) {
		end++
	}
	if end == 0 {
		return ""
	}
	name := strings.ToLower(raw[:end])
	return strings.ReplaceAll(name, "-", "_")
}

func isNameChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.' || c == '_' || c == '-':
		return true
	}
	return false
}

// Parse turns one declaration line into a Requirement. Comment lines,
// blank lines, and lines with no extractable name are discarded (ok is
// false); declaration files are third-party input, so discards are
// silent rather than errors.
func Parse(line string) (Requirement, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Requirement{}, false
	}
	// Inline comments: pip treats " #" as a comment start.
	if i := strings.Index(line, " #"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if line == "" {
		return Requirement{}, false
	}
	name := CanonicalName(line)
	if name == "" {
		return Requirement{}, false
	}
	return Requirement{Raw: line, Name: name}, true
}

// ParseLines parses a whole declaration file body, preserving line
// order and discarding comments and blanks.
func ParseLines(content string) []Requirement {
	var reqs []Requirement
	for _, line := range strings.Split(content, "\n") {
		if r, ok := Parse(line); ok {
			reqs = append(reqs, r)
		}
	}
	return reqs
}

// Names returns the canonical names of reqs, in order, with duplicates
// preserved.
func Names(reqs []Requirement) []string {
	names := make([]string, len(reqs))
	for i, r := range reqs {
		names[i] = r.Name
	}
	return names
}

// NameSet builds a canonical-name membership set from raw package
// names, canonicalizing each entry.
func NameSet(raw []string) map[string]bool {
	set := make(map[string]bool, len(raw))
	for _, s := range raw {
		if name := CanonicalName(s); name != "" {
			set[name] = true
		}
	}
	return set
}
