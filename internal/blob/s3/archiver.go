package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/degendice/backend/internal/domain"
)

// Archiver implements domain.SnapshotArchiver by serializing each settled
// round's full history entry to JSON and uploading it to S3 under a
// per-round key. Uploads are idempotent: a retried settlement overwrites the
// same object with identical content.
type Archiver struct {
	writer BlobWriter
}

// NewArchiver creates a new Archiver writing through the given BlobWriter.
func NewArchiver(writer BlobWriter) *Archiver {
	return &Archiver{writer: writer}
}

// ArchiveRound uploads the settlement record to archive/rounds/{id}.json.
func (a *Archiver) ArchiveRound(ctx context.Context, entry domain.RoundHistoryEntry) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entry); err != nil {
		return fmt.Errorf("s3blob: archive round %s marshal: %w", entry.Round.ID, err)
	}

	path := archivePath(entry.Round.ID)
	if err := a.writer.Put(ctx, path, &buf, "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive round %s upload: %w", entry.Round.ID, err)
	}
	return nil
}

// archivePath builds the S3 key for a round snapshot.
//
//	archive/rounds/round_1700000000000.json
func archivePath(roundID string) string {
	return fmt.Sprintf("archive/rounds/%s.json", roundID)
}

// Compile-time interface check.
var _ domain.SnapshotArchiver = (*Archiver)(nil)
