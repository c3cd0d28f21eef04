package s3blob

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degendice/backend/internal/domain"
)

type fakeWriter struct {
	path        string
	contentType string
	body        []byte
	err         error
}

func (f *fakeWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if f.err != nil {
		return f.err
	}
	f.path = path
	f.contentType = contentType
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.body = body
	return nil
}

func TestArchiveRound(t *testing.T) {
	w := &fakeWriter{}
	a := NewArchiver(w)

	entry := domain.RoundHistoryEntry{
		Round: domain.Round{
			ID:        "round_1700000000000",
			Status:    domain.RoundStatusSettled,
			Winner:    "BONK",
			TotalPool: 3.5,
		},
		SettledAt: 1_700_000_900_000,
	}

	require.NoError(t, a.ArchiveRound(context.Background(), entry))
	assert.Equal(t, "archive/rounds/round_1700000000000.json", w.path)
	assert.Equal(t, "application/json", w.contentType)

	var got domain.RoundHistoryEntry
	require.NoError(t, json.Unmarshal(w.body, &got))
	assert.Equal(t, "BONK", got.Round.Winner)
	assert.Equal(t, entry.SettledAt, got.SettledAt)
}
