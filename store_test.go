package scoped

import (
	"errors"
	"reflect"
	"testing"
)

func newTestStore(t *testing.T, opts ...Option[any]) (*Store[any], *Tracker) {
	t.Helper()
	tracker := NewTracker()
	store, err := New[any](tracker, opts...)
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return store, tracker
}

func mustSet(t *testing.T, store *Store[any], key string, value any) {
	t.Helper()
	if err := store.Set(key, value); err != nil {
		t.Fatalf("set %q: %v", key, err)
	}
}

func mustGet(t *testing.T, store *Store[any], key string) any {
	t.Helper()
	value, err := store.Get(key)
	if err != nil {
		t.Fatalf("get %q: %v", key, err)
	}
	return value
}

func TestNewRequiresProvider(t *testing.T) {
	if _, err := New[any](nil); err == nil {
		t.Fatalf("expected error for nil provider")
	}
}

func TestRootPersistence(t *testing.T) {
	store, tracker := newTestStore(t)
	mustSet(t, store, "hello", 1)

	leaveFoo := tracker.Enter("foo")
	leaveMeow := tracker.Enter("meow")
	if got := mustGet(t, store, "hello"); got != 1 {
		t.Fatalf("expected root key visible at foo/meow, got %v", got)
	}
	leaveMeow()
	leaveFoo()

	leaveBar := tracker.Enter("bar")
	if got := mustGet(t, store, "hello"); got != 1 {
		t.Fatalf("expected root key visible at bar, got %v", got)
	}
	leaveBar()

	if store.Depth() != 1 {
		t.Fatalf("expected only the root scope to survive, depth=%d", store.Depth())
	}
}

func TestShadowingFollowsCurrentPath(t *testing.T) {
	store, tracker := newTestStore(t)
	leaveP := tracker.Enter("p")
	mustSet(t, store, "k", "v1")

	leaveQ := tracker.Enter("q")
	mustSet(t, store, "k", "v2")
	if got := mustGet(t, store, "k"); got != "v2" {
		t.Fatalf("expected inner value to shadow, got %v", got)
	}

	leaveQ()
	if got := mustGet(t, store, "k"); got != "v1" {
		t.Fatalf("expected outer value after leaving inner scope, got %v", got)
	}
	leaveP()
}

func TestStaleEvictionOnRead(t *testing.T) {
	store, tracker := newTestStore(t)

	leave := tracker.Enter("nested")
	mustSet(t, store, "k", 42)
	leave()

	_, err := store.Get("k")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after leaving nested scope, got %v", err)
	}

	var keyErr *KeyError
	if !errors.As(err, &keyErr) {
		t.Fatalf("expected *KeyError, got %T", err)
	}
	if keyErr.Key != "k" {
		t.Fatalf("expected key metadata, got %q", keyErr.Key)
	}
}

func TestSetDefaultIsNoopWhenVisible(t *testing.T) {
	store, tracker := newTestStore(t)
	mustSet(t, store, "k", "root")

	leave := tracker.Enter("foo")
	if err := store.SetDefault("k", "override"); err != nil {
		t.Fatalf("set default: %v", err)
	}
	if got := mustGet(t, store, "k"); got != "root" {
		t.Fatalf("expected inherited value to survive SetDefault, got %v", got)
	}

	if err := store.SetDefault("fresh", 7); err != nil {
		t.Fatalf("set default: %v", err)
	}
	if got := mustGet(t, store, "fresh"); got != 7 {
		t.Fatalf("expected default to land for unseen key, got %v", got)
	}
	leave()
}

func TestSnapshotFlattensInnerWins(t *testing.T) {
	store, tracker := newTestStore(t)
	mustSet(t, store, "a", 1)
	mustSet(t, store, "b", 1)

	leaveFoo := tracker.Enter("foo")
	mustSet(t, store, "b", 2)
	mustSet(t, store, "c", 2)

	leaveMeow := tracker.Enter("meow")
	mustSet(t, store, "c", 3)
	mustSet(t, store, "d", 3)

	want := map[string]any{"a": 1, "b": 2, "c": 3, "d": 3}
	if got := store.Snapshot(); !reflect.DeepEqual(want, got) {
		t.Fatalf("snapshot mismatch:\nwant: %#v\n got: %#v", want, got)
	}

	leaveMeow()
	want = map[string]any{"a": 1, "b": 2, "c": 2}
	if got := store.Snapshot(); !reflect.DeepEqual(want, got) {
		t.Fatalf("snapshot after leaving meow:\nwant: %#v\n got: %#v", want, got)
	}
	leaveFoo()
}

func TestSnapshotDetachesValues(t *testing.T) {
	store, _ := newTestStore(t)
	mustSet(t, store, "labels", map[string]string{"env": "prod"})

	snapshot := store.Snapshot()
	snapshot["labels"].(map[string]string)["env"] = "mutated"

	if got := mustGet(t, store, "labels").(map[string]string)["env"]; got != "prod" {
		t.Fatalf("expected store value untouched after snapshot mutation, got %q", got)
	}
}

func TestWithRootEntriesSeedsRoot(t *testing.T) {
	seed := map[string]any{"batch_size": 16}
	store, tracker := newTestStore(t, WithRootEntries(seed))

	seed["batch_size"] = 99
	if got := mustGet(t, store, "batch_size"); got != 16 {
		t.Fatalf("expected seed copy to be detached, got %v", got)
	}

	leave := tracker.Enter("train")
	if got := mustGet(t, store, "batch_size"); got != 16 {
		t.Fatalf("expected seeded root entry inherited, got %v", got)
	}
	leave()
}

func TestScopePushHonoursSegmentBoundaries(t *testing.T) {
	current := "foo"
	provider := PathProviderFunc(func() string { return current })
	store, err := New[any](provider)
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	if err := store.Set("k", 1); err != nil {
		t.Fatalf("set: %v", err)
	}

	// "foo" is not a hierarchy prefix of "foobar"; the scope must be evicted.
	current = "foobar"
	if _, err := store.Get("k"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected eviction at sibling path, got %v", err)
	}
}

func TestScopePathsAndDepth(t *testing.T) {
	store, tracker := newTestStore(t)
	leaveFoo := tracker.Enter("foo")
	mustSet(t, store, "a", 1)
	leaveMeow := tracker.Enter("meow")
	mustSet(t, store, "b", 2)

	want := []string{"foo/meow", "foo", ""}
	if got := store.ScopePaths(); !reflect.DeepEqual(want, got) {
		t.Fatalf("scope paths mismatch:\nwant: %v\n got: %v", want, got)
	}
	if store.Depth() != 3 {
		t.Fatalf("expected depth 3, got %d", store.Depth())
	}

	leaveMeow()
	leaveFoo()
}

func TestConfigLifecycleScenario(t *testing.T) {
	store, tracker := newTestStore(t)

	mustSet(t, store, "hello", 1)
	if got := mustGet(t, store, "hello"); got != 1 {
		t.Fatalf("expected hello == 1, got %v", got)
	}

	leaveFoo := tracker.Enter("foo")
	if err := store.SetDefault("bar", 10); err != nil {
		t.Fatalf("set default: %v", err)
	}
	if got := mustGet(t, store, "bar"); got != 10 {
		t.Fatalf("expected bar == 10, got %v", got)
	}
	mustSet(t, store, "bar", 2)
	if got := mustGet(t, store, "bar"); got != 2 {
		t.Fatalf("expected bar == 2, got %v", got)
	}
	if got := mustGet(t, store, "hello"); got != 1 {
		t.Fatalf("expected hello inherited at foo, got %v", got)
	}
	if err := store.SetDefault("mario", true); err != nil {
		t.Fatalf("set default: %v", err)
	}

	leaveMeow := tracker.Enter("meow")
	mustSet(t, store, "dog", 3)
	if got := mustGet(t, store, "dog"); got != 3 {
		t.Fatalf("expected dog == 3, got %v", got)
	}
	if got := mustGet(t, store, "bar"); got != 2 {
		t.Fatalf("expected bar == 2 at foo/meow, got %v", got)
	}
	if got := mustGet(t, store, "hello"); got != 1 {
		t.Fatalf("expected hello == 1 at foo/meow, got %v", got)
	}
	if got := mustGet(t, store, "mario"); got != true {
		t.Fatalf("expected mario == true at foo/meow, got %v", got)
	}
	leaveMeow()

	if _, err := store.Get("dog"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected dog to vanish back at foo, got %v", err)
	}
	if got := mustGet(t, store, "bar"); got != 2 {
		t.Fatalf("expected bar == 2 back at foo, got %v", got)
	}
	if got := mustGet(t, store, "hello"); got != 1 {
		t.Fatalf("expected hello == 1 back at foo, got %v", got)
	}
	leaveFoo()
}

func TestContainsMatchesGetVisibility(t *testing.T) {
	store, tracker := newTestStore(t)
	mustSet(t, store, "root_key", 1)

	leave := tracker.Enter("foo")
	mustSet(t, store, "foo_key", 2)

	if !store.Contains("root_key") || !store.Contains("foo_key") {
		t.Fatalf("expected both keys visible at foo")
	}
	leave()

	if store.Contains("foo_key") {
		t.Fatalf("expected foo_key hidden after leaving foo")
	}
	if !store.Contains("root_key") {
		t.Fatalf("expected root_key still visible at root")
	}
}

func TestTypedStoreValues(t *testing.T) {
	tracker := NewTracker()
	store, err := New[int](tracker)
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	if err := store.Set("retries", 3); err != nil {
		t.Fatalf("set: %v", err)
	}
	leave := tracker.Enter("worker")
	if err := store.Set("retries", 5); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := store.Get("retries")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != 5 {
		t.Fatalf("expected typed override, got %d", got)
	}
	leave()
}
