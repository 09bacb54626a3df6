package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	coremodel "NetGuard/internal/core/model"
	"NetGuard/internal/model"
)

// TextWriter dumps snapshots to timestamped directories as plain text with
// a JSON summary, for offline inspection or export.
type TextWriter struct {
	rootPath string
	interval time.Duration
}

// NewTextWriter creates a text writer rooted at rootPath.
func NewTextWriter(rootPath string, interval time.Duration) model.Writer {
	return &TextWriter{rootPath: rootPath, interval: interval}
}

// GetInterval returns the configured snapshot interval for this writer.
func (w *TextWriter) GetInterval() time.Duration {
	return w.interval
}

// Write persists one snapshot: a ports.txt with one line per entry and a
// summary.json with the capture metadata.
func (w *TextWriter) Write(snapshot *coremodel.Snapshot) error {
	if len(snapshot.Entries) == 0 {
		return nil
	}

	dir := filepath.Join(w.rootPath, snapshot.Taken.Format("2006-01-02_15-04-05"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	filePath := filepath.Join(dir, "ports.txt")
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", filePath, err)
	}
	defer file.Close()

	for _, e := range snapshot.Entries {
		line := fmt.Sprintf("%-6d %-8d %-24s %-24s %-24s %s\n",
			e.Port, e.PID, e.ProcessName, e.LocalAddr, e.RemoteAddr, e.State)
		if _, err := file.WriteString(line); err != nil {
			return fmt.Errorf("failed to write entry to file: %w", err)
		}
	}

	summaryPath := filepath.Join(dir, "summary.json")
	summaryFile, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	encoder := json.NewEncoder(summaryFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snapshot.Summarize()); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}

	log.Printf("Wrote %d port entries to %s", len(snapshot.Entries), dir)
	return nil
}
