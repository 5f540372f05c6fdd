package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/pngx/internal/tasks"
)

func TestPalette(t *testing.T) {
	p := ForWriter(&bytes.Buffer{})

	t.Run("plain writer renders unstyled text", func(t *testing.T) {
		for _, got := range []string{p.Title("a"), p.OK("a"), p.Err("a"), p.Warn("a"), p.Help("a")} {
			if got != "a" {
				t.Errorf("expected plain %q, got %q", "a", got)
			}
		}
	})

	t.Run("Progress", func(t *testing.T) {
		tests := []struct {
			name   string
			update tasks.ProgressUpdate
			want   string
		}{
			{"scan", tasks.ProgressUpdate{Phase: tasks.ScanDirectories, Message: "Scanning 2 directories..."}, "🔍 Scanning 2 directories...\n"},
			{"extract", tasks.ProgressUpdate{Phase: tasks.ExtractMetadata, Message: "[1] a.png"}, "   [1] a.png\n"},
			{"nothing to save", tasks.ProgressUpdate{Phase: tasks.SaveRecords}, ""},
			{"saving", tasks.ProgressUpdate{Phase: tasks.SaveRecords, Total: 2, Message: "Waiting"}, "\n💾 Waiting\n"},
			{"watch update", tasks.ProgressUpdate{Phase: tasks.WatchChanges, Message: "Updated /a.png"}, "+ Updated /a.png\n"},
			{"watch removal", tasks.ProgressUpdate{Phase: tasks.WatchChanges, Message: "Removed /a.png"}, "- Removed /a.png\n"},
			{"finished", tasks.ProgressUpdate{Phase: tasks.Finished, Message: "Indexed 1 of 1 files"}, "\n✓ Indexed 1 of 1 files\n"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := p.Progress(tt.update); got != tt.want {
					t.Errorf("Progress() = %q, want %q", got, tt.want)
				}
			})
		}
	})

	t.Run("IndexSummary", func(t *testing.T) {
		got := p.IndexSummary(&tasks.IndexResult{
			CorrelationID: "run-1",
			Directories:   2,
			Missing:       1,
			Discovered:    3,
			Extracted:     2,
			ExtractFailed: 1,
			Indexed:       2,
			Cancelled:     true,
			Duration:      1500 * time.Millisecond,
		})
		for _, want := range []string{"Scan Complete", "Directories: 2 (1 missing)", "3 discovered, 2 extracted", "Indexed:     2", "Failed:      1", "cancelled", "Run run-1 took 1.5s"} {
			if !strings.Contains(got, want) {
				t.Errorf("summary missing %q:\n%s", want, got)
			}
		}
		if strings.Contains(got, "Abandoned") {
			t.Errorf("summary should omit zero abandoned count:\n%s", got)
		}
	})

	t.Run("WatchSummary", func(t *testing.T) {
		if got := p.WatchSummary(&tasks.WatchResult{Updated: 2, Removed: 1}); got != "Updated 2, removed 1\n" {
			t.Errorf("unexpected summary %q", got)
		}
		if got := p.WatchSummary(&tasks.WatchResult{Updated: 1, Failed: 3}); got != "Updated 1, removed 0, 3 failed\n" {
			t.Errorf("unexpected summary %q", got)
		}
	})
}
