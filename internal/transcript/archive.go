package transcript

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/sqlchat/sqlchat/internal/storage"
)

const parquetContentType = "application/vnd.apache.parquet"

type archiveRow struct {
	SessionID      string `parquet:"session_id"`
	Seq            int64  `parquet:"seq"`
	Label          string `parquet:"label"`
	Content        string `parquet:"content"`
	ArchivedUnixMs int64  `parquet:"archived_unix_ms"`
}

// Archiver writes finished sessions to object storage as one Parquet file
// per session.
type Archiver struct {
	store storage.ObjectStore
	now   func() time.Time
}

func NewArchiver(store storage.ObjectStore) *Archiver {
	return &Archiver{store: store, now: time.Now}
}

// Archive uploads entries and returns the stored object. An empty transcript
// is not uploaded and yields a zero ObjectInfo.
func (a *Archiver) Archive(ctx context.Context, sessionID string, entries []Entry) (storage.ObjectInfo, error) {
	if err := validateSession(sessionID); err != nil {
		return storage.ObjectInfo{}, err
	}
	if len(entries) == 0 {
		return storage.ObjectInfo{}, nil
	}

	archivedAt := a.now().UTC()
	key, err := storage.BuildTranscriptPath(sessionID, archivedAt)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	data, err := EncodeParquet(sessionID, entries, archivedAt)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := a.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{
		ContentType: parquetContentType,
		Metadata:    map[string]string{"session-id": sessionID},
	})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("upload transcript archive: %w", err)
	}
	return info, nil
}

func EncodeParquet(sessionID string, entries []Entry, archivedAt time.Time) ([]byte, error) {
	rows := make([]archiveRow, 0, len(entries))
	for i, entry := range entries {
		rows = append(rows, archiveRow{
			SessionID:      sessionID,
			Seq:            int64(i),
			Label:          entry.Label,
			Content:        entry.Content,
			ArchivedUnixMs: archivedAt.UnixMilli(),
		})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[archiveRow](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
