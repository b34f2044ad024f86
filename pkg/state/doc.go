// Package state defines persistence-facing contracts for loading and saving
// per-path configuration snapshots, plus a small resolver that walks a path's
// ancestor chain and merges the snapshots it finds.
//
// Responsibilities:
//   - Store[T] only loads/saves a single snapshot for a single Ref.
//   - Resolver[T] loads snapshots for every ancestor of a path (root first)
//     and merges them with layering.MergeLayers so deeper paths win.
//   - The core scoped package remains persistence-agnostic; all persistence
//     logic stays behind Store implementations supplied by consumers. The
//     typical bridge is feeding a resolved map snapshot into
//     scoped.WithRootEntries.
//
// Data flow:
//
//	Store -> Resolver -> layering.MergeLayers(...) -> seed for scoped.New
//
// Deterministic keys:
//
//	Ref.Identifier() provides a canonical storage key: the bare domain for
//	the root path, "domain/path" otherwise.
package state
