package activity

import (
	"strings"
	"time"
)

// StoreEventInput describes the common fields for store lifecycle events.
type StoreEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	Channel    string
	Metadata   map[string]any
	Path       string
	Key        string
	OldValue   any
	NewValue   any
	ScopePath  string
	Entries    int
	OccurredAt time.Time
}

// BuildEntrySetEvent constructs a normalized activity event for a key write.
func BuildEntrySetEvent(input StoreEventInput) Event {
	return buildStoreEvent("config.entry.set", "config.entry", input)
}

// BuildDefaultAppliedEvent constructs an activity event for a default write
// that landed because the key was not yet visible.
func BuildDefaultAppliedEvent(input StoreEventInput) Event {
	return buildStoreEvent("config.default.applied", "config.entry", input)
}

// BuildScopePushedEvent constructs an activity event for a scope push.
func BuildScopePushedEvent(input StoreEventInput) Event {
	return buildStoreEvent("config.scope.pushed", "config.scope", input)
}

// BuildScopeEvictedEvent constructs an activity event for a lazy scope eviction.
func BuildScopeEvictedEvent(input StoreEventInput) Event {
	return buildStoreEvent("config.scope.evicted", "config.scope", input)
}

func buildStoreEvent(verb, objectType string, input StoreEventInput) Event {
	metadata := cloneMap(input.Metadata)
	metadata = ensureMetadata(metadata)
	metadata["path"] = input.Path
	if input.Key != "" {
		metadata["key"] = input.Key
	}
	if input.ScopePath != "" || objectType == "config.scope" {
		metadata["scope_path"] = input.ScopePath
	}
	if input.Entries > 0 {
		metadata["entries"] = input.Entries
	}
	if input.OldValue != nil {
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata["new_value"] = input.NewValue
	}

	objectID := strings.TrimSpace(input.Key)
	if objectID == "" {
		objectID = strings.TrimSpace(input.ScopePath)
	}
	if objectID == "" {
		// The root scope's path is the empty string; keep the event addressable.
		objectID = "(root)"
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
