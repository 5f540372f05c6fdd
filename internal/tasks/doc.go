// Package tasks runs the long-lived indexing operations on top of the pipeline and the engine.
//
// # Indexing
//
// [Indexer.Index] ranges over a [pipeline.Run] and submits one save per
// extracted file to a per-run [engine.Engine], so saves overlap with
// extraction while never exceeding the worker bound. Every save carries the
// run's correlation id. When the context is cancelled the engine is shut down
// forced: queued saves are abandoned and in-flight saves finish.
//
// # Watching
//
// [Watcher.Watch] keeps the index current with fsnotify. Changes are
// debounced per path, then handled as engine tasks with fresh correlation ids.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
//
// # Persistence
//
// Both operations write through the [ImageStore] interface; the SQLite
// implementation is repositories.IndexStore.
package tasks
