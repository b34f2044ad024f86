package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	scoped "github.com/goliatone/go-scoped"
	"github.com/goliatone/go-scoped/layering"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

// Ref identifies one persisted snapshot for one configuration domain at one
// hierarchical path.
type Ref struct {
	Domain string
	Path   string
}

// Meta is storage-owned metadata used for trace/audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads/saves one snapshot for a single path reference.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Resolver orchestrates ancestor-chain loads and merges them into one snapshot.
type Resolver[T any] struct {
	Store Store[T]
}

// Mutator adjusts a loaded snapshot in place before it is saved back.
type Mutator[T any] func(*T) error

// Identifier returns the deterministic storage key for this reference: the
// bare domain at the root path, "domain/path" otherwise.
func (r Ref) Identifier() (string, error) {
	domain := strings.TrimSpace(r.Domain)
	if domain == "" {
		return "", fmt.Errorf("state: domain is required")
	}
	path := scoped.NormalizePath(r.Path)
	if path == "" {
		return domain, nil
	}
	return fmt.Sprintf("%s/%s", domain, path), nil
}

// Resolve loads the snapshot persisted at every ancestor of path (the root
// included) and merges them so deeper paths override shallower ones. It
// fails when no ancestor has a snapshot.
func (r Resolver[T]) Resolve(ctx context.Context, domain, path string) (T, error) {
	var zero T
	if r.Store == nil {
		return zero, fmt.Errorf("state: store is required")
	}
	if strings.TrimSpace(domain) == "" {
		return zero, fmt.Errorf("state: domain is required")
	}

	// Strongest first for MergeLayers: deepest ancestor leads.
	var snapshots []T
	ancestors := scoped.Ancestors(path)
	for i := len(ancestors) - 1; i >= 0; i-- {
		snapshot, _, ok, err := r.Store.Load(ctx, Ref{Domain: domain, Path: ancestors[i]})
		if err != nil {
			return zero, fmt.Errorf("state: load %q at path %q: %w", domain, ancestors[i], err)
		}
		if !ok {
			continue
		}
		snapshots = append(snapshots, snapshot)
	}

	if len(snapshots) == 0 {
		return zero, fmt.Errorf("state: no snapshots found for domain %q", domain)
	}
	return layering.MergeLayers(snapshots...), nil
}

// Mutate loads one snapshot, applies fn, then saves the result. When both the
// caller and storage carry an ETag they must agree, otherwise the save is
// rejected with ErrETagMismatch.
func (r Resolver[T]) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator[T]) (T, Meta, error) {
	var zero T
	if r.Store == nil {
		return zero, Meta{}, fmt.Errorf("state: store is required")
	}
	if strings.TrimSpace(ref.Domain) == "" {
		return zero, Meta{}, fmt.Errorf("state: domain is required")
	}
	if fn == nil {
		return zero, Meta{}, fmt.Errorf("state: mutator is required")
	}

	snapshot, loadedMeta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return zero, Meta{}, fmt.Errorf("state: load %q at path %q: %w", ref.Domain, ref.Path, err)
	}
	if !ok {
		snapshot = zero
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return zero, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	if err := fn(&snapshot); err != nil {
		return zero, loadedMeta, err
	}

	saveMeta := mergeMeta(loadedMeta, meta)
	savedMeta, err := r.Store.Save(ctx, ref, snapshot, saveMeta)
	if err != nil {
		return zero, loadedMeta, fmt.Errorf("state: save %q at path %q: %w", ref.Domain, ref.Path, err)
	}
	return snapshot, savedMeta, nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}
