package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// JournalPath returns the workbook path for a session ending at now
func JournalPath(outputDir string, now time.Time) string {
	if outputDir == "" {
		outputDir = "reports"
	}
	return filepath.Join(outputDir, fmt.Sprintf("trade_journal_%s.xlsx", now.UTC().Format("20060102_150405")))
}

// EnsureDirectoryExists creates the parent directory of path if needed
func EnsureDirectoryExists(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
