// Package transcript keeps the ordered record of what each session has seen:
// generated queries, their results and the answers.
package transcript

import (
	"context"
	"errors"
	"strings"
)

var ErrInvalidSession = errors.New("session id is required")

// Entry is one labeled transcript line. Entries are never edited once
// appended.
type Entry struct {
	Label   string `json:"label"`
	Content string `json:"content"`
}

type Store interface {
	Append(ctx context.Context, sessionID string, entries ...Entry) error
	List(ctx context.Context, sessionID string) ([]Entry, error)
	Clear(ctx context.Context, sessionID string) error
}

func validateSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	return nil
}
