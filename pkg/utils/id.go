package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateRunID generates a run ID with a timestamp prefix
func GenerateRunID() string {
	timestamp := time.Now().UTC().Format("20060102-150405")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("anneal-%s-%s", timestamp, suffix)
}

// GenerateArtifactRef generates the storage prefix for one stage's artifact.
// Refs are unique per submission so resubmitting a label never overwrites a previous artifact.
func GenerateArtifactRef(runID, label string) string {
	if runID == "" {
		runID = "adhoc"
	}
	return fmt.Sprintf("%s/%s-%s", runID, label, uuid.NewString())
}

// ValidateRunID rejects IDs that cannot be used as path or object-key segments.
func ValidateRunID(runID string) error {
	if strings.TrimSpace(runID) != runID {
		return fmt.Errorf("run id cannot contain leading or trailing spaces")
	}
	if strings.ContainsAny(runID, "/\\:") {
		return fmt.Errorf("run id cannot contain '/', '\\' or ':'")
	}
	if runID == "." || runID == ".." {
		return fmt.Errorf("run id cannot be %q", runID)
	}
	return nil
}
