package sync

import (
	"fmt"
	"os"
	"time"
)

// WriteStatusFile writes the two-line health-probe file: OK or NOK on the
// first line, the completion timestamp on the second.
func WriteStatusFile(path string, ok bool, at time.Time) error {
	status := "OK"
	if !ok {
		status = "NOK"
	}
	content := fmt.Sprintf("%s\n%s\n", status, at.Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}
	return nil
}
