package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/pngx/internal/tasks"
)

const rule = "═══════════════════════════════════════"

// Progress renders a single progress update as a line of output, or "" when
// the update is too fine-grained to show.
func (p *Palette) Progress(u tasks.ProgressUpdate) string {
	switch u.Phase {
	case tasks.ScanDirectories:
		return p.Title("🔍 "+u.Message) + "\n"
	case tasks.ExtractMetadata:
		return "   " + p.Help(u.Message) + "\n"
	case tasks.SaveRecords:
		if u.Total == 0 {
			return ""
		}
		return "\n💾 " + u.Message + "\n"
	case tasks.WatchChanges:
		if strings.HasPrefix(u.Message, "Removed") {
			return p.Warn("- "+u.Message) + "\n"
		}
		return p.OK("+ "+u.Message) + "\n"
	case tasks.Finished:
		return "\n" + p.OK("✓ "+u.Message) + "\n"
	default:
		return ""
	}
}

// Header renders title between two rules.
func (p *Palette) Header(title string) string {
	return fmt.Sprintf("%s\n%s\n%s\n", rule, p.Title(title), rule)
}

// IndexSummary renders the counters of a finished index run.
func (p *Palette) IndexSummary(r *tasks.IndexResult) string {
	var b strings.Builder
	b.WriteString(p.Header("Scan Complete"))
	fmt.Fprintf(&b, "Directories: %d", r.Directories)
	if r.Missing > 0 {
		fmt.Fprintf(&b, " (%s)", p.Warn(fmt.Sprintf("%d missing", r.Missing)))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Files:       %d discovered, %d extracted\n", r.Discovered, r.Extracted)
	if r.Indexed > 0 || r.SaveFailed > 0 || r.Abandoned > 0 {
		fmt.Fprintf(&b, "Indexed:     %d\n", r.Indexed)
	}
	if failed := r.ExtractFailed + r.SaveFailed; failed > 0 {
		b.WriteString(p.Err(fmt.Sprintf("Failed:      %d", failed)) + "\n")
	}
	if r.Abandoned > 0 {
		b.WriteString(p.Warn(fmt.Sprintf("Abandoned:   %d", r.Abandoned)) + "\n")
	}
	if r.Cancelled {
		b.WriteString(p.Warn("Run was cancelled before it finished") + "\n")
	}
	b.WriteString(p.Help(fmt.Sprintf("Run %s took %s", r.CorrelationID, r.Duration.Round(time.Millisecond))) + "\n")
	return b.String()
}

// WatchSummary renders the counters of a finished watch session.
func (p *Palette) WatchSummary(r *tasks.WatchResult) string {
	line := fmt.Sprintf("Updated %d, removed %d", r.Updated, r.Removed)
	if r.Failed > 0 {
		return p.OK(line) + ", " + p.Err(fmt.Sprintf("%d failed", r.Failed)) + "\n"
	}
	return p.OK(line) + "\n"
}
