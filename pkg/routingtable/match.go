package routingtable

import "strings"

// wildcardChars are the characters that make a source name a wildcard rule
const wildcardChars = "*?:"

// IsWildcard reports whether a source name must be handled as a wildcard rule
func IsWildcard(srcName string) bool {
	return strings.ContainsAny(srcName, wildcardChars)
}

// HasGlob reports whether s contains glob metacharacters
func HasGlob(s string) bool {
	return strings.ContainsAny(s, "*?")
}

// SplitPattern splits "NAME_PATTERN:APP_PATTERN" on the first colon.
// The application pattern defaults to "*".
func SplitPattern(src string) WildcardKey {
	name, app, found := strings.Cut(src, ":")
	if !found || strings.TrimSpace(app) == "" {
		app = "*"
	}
	return WildcardKey{NamePattern: strings.TrimSpace(name), AppPattern: strings.TrimSpace(app)}
}

// Match reports whether s matches the glob pattern. "*" matches any run of
// characters and "?" exactly one. Comparison is case sensitive.
func Match(pattern, s string) bool {
	p := []rune(pattern)
	t := []rune(s)

	pi, ti := 0, 0
	star, mark := -1, 0
	for ti < len(t) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == t[ti]):
			pi++
			ti++
		case pi < len(p) && p[pi] == '*':
			star = pi
			mark = ti
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			ti = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

// MatchAny reports whether s matches at least one of the patterns
func MatchAny(patterns []string, s string) bool {
	for _, p := range patterns {
		if Match(p, s) {
			return true
		}
	}
	return false
}

// StarCapture returns the part of name matched by the single "*" of pattern.
// ok is false when pattern does not contain exactly one "*" or name does not match.
func StarCapture(pattern, name string) (string, bool) {
	if strings.Count(pattern, "*") != 1 || !Match(pattern, name) {
		return "", false
	}

	prefix, suffix, _ := strings.Cut(pattern, "*")
	runes := []rune(name)
	start := len([]rune(prefix))
	end := len(runes) - len([]rune(suffix))
	if start > end {
		return "", false
	}
	return string(runes[start:end]), true
}
