// Package repositories implements SQLite persistence for the image index.
//
// [ImageRepository] handles CRUD operations keyed by file path, soft deletes
// via deleted_at timestamps, and the four keyword search modes of [SearchQuery].
// Soft-deleted rows are excluded from every query.
//
// [IndexStore] adapts the repository to the indexing tasks, turning extracted
// chunk metadata into records.
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
