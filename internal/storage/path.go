package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildTranscriptPath returns transcripts/<yyyy-mm-dd>/<session>.parquet, dated
// in UTC.
func BuildTranscriptPath(sessionID string, endedAt time.Time) (string, error) {
	if !sessionIDPattern.MatchString(sessionID) {
		return "", fmt.Errorf("invalid session id: %q", sessionID)
	}
	ts := endedAt.UTC()
	return path.Join(
		"transcripts",
		fmt.Sprintf("%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		sessionID+".parquet",
	), nil
}
