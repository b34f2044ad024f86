package scoped

import (
	"encoding/json"

	"github.com/goliatone/go-scoped/layering"
)

// Trace captures provenance information for a key lookup across the live
// scopes that were consulted.
type Trace struct {
	Key    string       `json:"key"`
	Path   string       `json:"path"`
	Frames []Provenance `json:"frames"`
}

// Provenance details how a specific scope contributed to a traced lookup.
type Provenance struct {
	ScopePath string `json:"scope_path"`
	Depth     int    `json:"depth"`
	Value     any    `json:"value,omitempty"`
	Found     bool   `json:"found"`
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

// Resolve behaves like Get but also reports, per scope consulted, whether the
// key was present and what value it held. The trace is returned even when the
// lookup fails so callers can log which scopes were searched.
func (s *Store[V]) Resolve(key string) (V, Trace, error) {
	current := s.sync()
	trace := Trace{
		Key:    key,
		Path:   current,
		Frames: make([]Provenance, 0, len(s.stack)),
	}
	var result V
	found := false
	for i, fr := range s.stack {
		entry := Provenance{
			ScopePath: fr.path,
			Depth:     len(s.stack) - 1 - i,
		}
		if value, ok := fr.entries[key]; ok {
			entry.Found = true
			entry.Value = layering.Clone(any(value))
			if !found {
				result = value
				found = true
			}
		}
		trace.Frames = append(trace.Frames, entry)
	}
	if !found {
		var zero V
		return zero, trace, &KeyError{Key: key, Path: current}
	}
	return result, trace, nil
}
