package tasks

import (
	"fmt"
	"path/filepath"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase, 0 when unknown
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ScanDirectories Phase = iota
	ExtractMetadata
	SaveRecords
	WatchChanges
	Finished
)

func (p Phase) String() string {
	switch p {
	case ScanDirectories:
		return "scan_directories"
	case ExtractMetadata:
		return "extract_metadata"
	case SaveRecords:
		return "save_records"
	case WatchChanges:
		return "watch_changes"
	case Finished:
		return "finished"
	default:
		return ""
	}
}

func scanStartedUpdate(dirs []string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanDirectories,
		Step:    0,
		Total:   len(dirs),
		Message: fmt.Sprintf("Scanning %d director%s...", len(dirs), plural(len(dirs), "y", "ies")),
		Data:    dirs,
	}
}

func extractedUpdate(step int, path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExtractMetadata,
		Step:    step,
		Message: fmt.Sprintf("[%d] %s", step, filepath.Base(path)),
		Data:    path,
	}
}

func savingUpdate(queued int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveRecords,
		Step:    0,
		Total:   queued,
		Message: fmt.Sprintf("Waiting for %d save%s to finish...", queued, plural(queued, "", "s")),
	}
}

func finishedUpdate(result *IndexResult) ProgressUpdate {
	msg := fmt.Sprintf("Indexed %d of %d files", result.Indexed, result.Discovered)
	if result.Cancelled {
		msg += " (cancelled)"
	}
	return ProgressUpdate{
		Phase:   Finished,
		Step:    result.Extracted,
		Total:   result.Discovered,
		Message: msg,
		Data:    result,
	}
}

func watchEventUpdate(step int, path string, removed bool) ProgressUpdate {
	verb := "Updated"
	if removed {
		verb = "Removed"
	}
	return ProgressUpdate{
		Phase:   WatchChanges,
		Step:    step,
		Message: fmt.Sprintf("%s %s", verb, path),
		Data:    path,
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
