// Package pipeline streams per-file metadata extraction results from a chain of directories.
//
// For each directory a producer goroutine extracts every discovered file in
// order and writes successes to a bounded result channel; the caller's
// range loop is the consumer. The channel bound applies backpressure: a
// slow consumer pauses the producer instead of growing a backlog.
//
//	run := processor.ProcessAll(ctx, []string{"a", "b"}, true, false)
//	for path, md := range run.All() {
//	    ...
//	}
//	if err := run.Err(); err != nil {
//	    // cancelled before the end
//	}
//
// Per-file failures are logged and omitted. Missing directories are logged
// and contribute nothing. Cancelling ctx ends the sequence quietly and is
// reported by [Run.Err], so callers can tell a finished run from a stopped one.
package pipeline
