// package formatter renders image metadata as JSON, YAML, CSV or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/desertthunder/pngx/internal/models"
	"github.com/desertthunder/pngx/internal/png"
	"github.com/desertthunder/pngx/internal/shared"
	"gopkg.in/yaml.v3"
)

// Format names an output encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	CSV  Format = "csv"
	Text Format = "txt"
)

// Formats lists the supported formats in display order.
var Formats = []Format{JSON, YAML, CSV, Text}

// ParseFormat resolves a format name, accepting "yml" and "text" as aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "csv":
		return CSV, nil
	case "txt", "text", "":
		return Text, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, name)
	}
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	if f == Text {
		return ".txt"
	}
	return "." + string(f)
}

// ContentType returns the MIME type used when f is served over HTTP.
func (f Format) ContentType() string {
	switch f {
	case JSON:
		return "application/json"
	case YAML:
		return "application/yaml"
	case CSV:
		return "text/csv; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Entry is one image in an export.
type Entry struct {
	ID          string            `json:"id,omitempty" yaml:"id,omitempty"`
	FileName    string            `json:"file_name" yaml:"file_name"`
	FilePath    string            `json:"file_path" yaml:"file_path"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Metadata    map[string]string `json:"metadata" yaml:"metadata"`
}

// FromMetadata builds an entry from freshly extracted metadata.
func FromMetadata(path string, md png.Metadata) Entry {
	return Entry{
		FileName:    filepath.Base(path),
		FilePath:    path,
		Description: md.Description(),
		Metadata:    md.Strings(),
	}
}

// FromRecord builds an entry from a stored record.
func FromRecord(r *models.ImageRecord) Entry {
	return Entry{
		ID:          r.ID(),
		FileName:    r.FileName(),
		FilePath:    r.FilePath(),
		Description: r.Description(),
		Metadata:    r.Metadata(),
	}
}

// FromRecords converts stored records in order.
func FromRecords(records []*models.ImageRecord) []Entry {
	entries := make([]Entry, len(records))
	for i, r := range records {
		entries[i] = FromRecord(r)
	}
	return entries
}

// Export renders entries in format f.
func Export(entries []Entry, f Format) ([]byte, error) {
	switch f {
	case JSON:
		return ExportToJSON(entries)
	case YAML:
		return ExportToYAML(entries)
	case CSV:
		return ExportToCSV(entries)
	case Text:
		return ExportToText(entries)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, f)
	}
}

// Write renders entries in format f to w.
func Write(w io.Writer, entries []Entry, f Format) error {
	data, err := Export(entries, f)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteExport renders entries to a file. An empty path defaults to pngx_export{ext} in the working directory.
func WriteExport(entries []Entry, f Format, path string) (string, error) {
	if path == "" {
		path = "pngx_export" + f.Extension()
	}

	data, err := Export(entries, f)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", f, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// ExportToJSON renders entries as an indented JSON array.
func ExportToJSON(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToYAML renders entries as a YAML sequence.
func ExportToYAML(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush YAML: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToCSV renders entries as CSV with columns file_name, file_path,
// description, then one column per metadata key across all entries, sorted.
func ExportToCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	keys := metadataKeys(entries)
	headers := append([]string{"file_name", "file_path", "description"}, keys...)
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range entries {
		record := []string{e.FileName, e.FilePath, e.Description}
		for _, k := range keys {
			record = append(record, e.Metadata[k])
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToText renders entries as indented plain text blocks separated by "---".
func ExportToText(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer

	for i, e := range entries {
		if i > 0 {
			buf.WriteString("---\n")
		}
		fmt.Fprintf(&buf, "File: %s\n", e.FileName)
		fmt.Fprintf(&buf, "Path: %s\n", e.FilePath)
		if e.ID != "" {
			fmt.Fprintf(&buf, "ID: %s\n", e.ID)
		}
		if e.Description != "" {
			fmt.Fprintf(&buf, "Description: %s\n", e.Description)
		}
		if len(e.Metadata) > 0 {
			buf.WriteString("Metadata:\n")
			for _, k := range sortedKeys(e.Metadata) {
				fmt.Fprintf(&buf, "\t%s: %s\n", k, e.Metadata[k])
			}
		}
	}

	return buf.Bytes(), nil
}

func metadataKeys(entries []Entry) []string {
	seen := map[string]bool{}
	var keys []string
	for _, e := range entries {
		for k := range e.Metadata {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	slices.Sort(keys)
	return keys
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
