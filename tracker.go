package scoped

import "strings"

// Tracker is an explicit-lifecycle PathProvider for hosts that have no scope
// tracking of their own. Enter pushes one or more path segments and returns a
// leave func restoring the depth captured at Enter time, so early exits that
// skip inner leave calls still unwind correctly.
type Tracker struct {
	segments []string
}

// NewTracker constructs a Tracker positioned at the root path.
func NewTracker() *Tracker {
	return &Tracker{}
}

// CurrentPath implements PathProvider.
func (t *Tracker) CurrentPath() string {
	if t == nil {
		return ""
	}
	return strings.Join(t.segments, "/")
}

// Enter descends into segment (which may itself contain slashes) and returns
// the paired leave func. Calling leave more than once is a no-op.
func (t *Tracker) Enter(segment string) func() {
	depth := len(t.segments)
	segment = NormalizePath(segment)
	if segment != "" {
		t.segments = append(t.segments, strings.Split(segment, "/")...)
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		if len(t.segments) > depth {
			t.segments = t.segments[:depth]
		}
	}
}
