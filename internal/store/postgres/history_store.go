package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/degendice/backend/internal/domain"
)

// HistoryStore implements domain.HistoryArchive using PostgreSQL. Each
// settled round is stored once; replays of the same round id upsert the
// existing row so a retried settlement never duplicates the record.
type HistoryStore struct {
	pool *pgxpool.Pool
}

// NewHistoryStore creates a HistoryStore backed by the given connection pool.
func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// Append writes a settlement record. The full entry is stored as JSONB with
// a few columns lifted out for querying.
func (s *HistoryStore) Append(ctx context.Context, entry domain.RoundHistoryEntry) error {
	data, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("postgres: marshal history entry %s: %w", entry.Round.ID, err)
	}

	const query = `
		INSERT INTO round_history (round_id, winner, total_pool, stake_count, entry, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (round_id) DO UPDATE
		SET winner = EXCLUDED.winner,
		    total_pool = EXCLUDED.total_pool,
		    stake_count = EXCLUDED.stake_count,
		    entry = EXCLUDED.entry,
		    settled_at = EXCLUDED.settled_at`

	_, err = s.pool.Exec(ctx, query,
		entry.Round.ID,
		entry.Round.Winner,
		entry.Round.TotalPool,
		len(entry.Round.Stakes),
		data,
		time.UnixMilli(entry.SettledAt).UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: append history entry %s: %w", entry.Round.ID, err)
	}
	return nil
}

// List returns the most recent settlement records, newest first.
func (s *HistoryStore) List(ctx context.Context, limit int) ([]domain.RoundHistoryEntry, error) {
	const query = `
		SELECT entry FROM round_history
		ORDER BY settled_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list history: %w", err)
	}
	defer rows.Close()

	var entries []domain.RoundHistoryEntry
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("postgres: scan history entry: %w", err)
		}
		var entry domain.RoundHistoryEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list history rows: %w", err)
	}
	return entries, nil
}

// Compile-time interface check.
var _ domain.HistoryArchive = (*HistoryStore)(nil)
