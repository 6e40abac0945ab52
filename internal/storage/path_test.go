package storage

import (
	"testing"
	"time"
)

func TestBuildTranscriptPath(t *testing.T) {
	ts := time.Date(2026, time.February, 19, 22, 5, 0, 0, time.FixedZone("x", -5*3600))
	key, err := BuildTranscriptPath("0b6f3c1e-8d4e-4a43-9a6d-1f2a3b4c5d6e", ts)
	if err != nil {
		t.Fatalf("BuildTranscriptPath() error = %v", err)
	}
	want := "transcripts/2026-02-20/0b6f3c1e-8d4e-4a43-9a6d-1f2a3b4c5d6e.parquet"
	if key != want {
		t.Fatalf("BuildTranscriptPath() = %q, want %q", key, want)
	}
}

func TestBuildTranscriptPathRejectsInvalidSession(t *testing.T) {
	for _, id := range []string{"", "../oops", "a/b"} {
		if _, err := BuildTranscriptPath(id, time.Now()); err == nil {
			t.Fatalf("BuildTranscriptPath(%q) expected error", id)
		}
	}
}
