package scoped

import "strings"

// PathProvider reports the caller's current position in the hierarchical
// namespace. The store queries it at the start of every operation; it never
// caches the result across calls.
type PathProvider interface {
	CurrentPath() string
}

// PathProviderFunc adapts a plain function to PathProvider.
type PathProviderFunc func() string

// CurrentPath implements PathProvider.
func (f PathProviderFunc) CurrentPath() string {
	if f == nil {
		return ""
	}
	return f()
}

// NormalizePath strips surrounding whitespace and slashes so that providers
// reporting "/foo/" and "foo" agree on the same scope.
func NormalizePath(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}

// isPathPrefix reports whether prefix covers path in the hierarchy. The match
// is segment aware: "foo" covers "foo" and "foo/meow" but not "foobar".
func isPathPrefix(prefix, path string) bool {
	if prefix == "" {
		return true
	}
	if prefix == path {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

// Ancestors returns every path from the root down to path itself, e.g.
// "foo/meow" yields ["", "foo", "foo/meow"].
func Ancestors(path string) []string {
	path = NormalizePath(path)
	out := []string{""}
	if path == "" {
		return out
	}
	segments := strings.Split(path, "/")
	for i := range segments {
		out = append(out, strings.Join(segments[:i+1], "/"))
	}
	return out
}
