// Package models defines the provider-agnostic entities migrated between catalogs and the persisted run history.
//
// The package contains two categories of types:
//
// 1. Catalog snapshots: read-only records materialized from a provider at migration time
//   - [Artist] : Artist name with optional catalog ID
//   - [Album] : Album with artists, type tag and optional release year
//   - [Track] : Track with artists and optional [Album]
//   - [Playlist] : Playlist metadata with an ordered track listing
//
// Each snapshot belongs to exactly one catalog. A record resolved against another catalog is a new value carrying that catalog's ID.
//
// 2. Persistent Entities: Database-backed run history
//   - [Run] : One migration run with per-pass counters
//   - [RunItem] : Outcome of a single entity within a run
//
// Persistent entities implement the [Model] interface providing ID, timestamps and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
