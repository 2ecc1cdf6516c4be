package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/abelbrown/viralengine/internal/model"
)

// RecordSourceFetch updates a source's status row after an ingest attempt.
// A failed fetch bumps the cumulative error_count; last_error always reflects
// the latest attempt.
// Thread-safe: acquires write lock.
func (s *Store) RecordSourceFetch(ctx context.Context, name string, itemCount int, fetchErr error, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	errCount := 0
	lastErr := ""
	if fetchErr != nil {
		errCount = 1
		lastErr = fetchErr.Error()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (name, last_fetched_at, item_count, error_count, last_error)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			last_fetched_at = excluded.last_fetched_at,
			item_count = excluded.item_count,
			error_count = sources.error_count + excluded.error_count,
			last_error = excluded.last_error
	`, name, toMillis(at), itemCount, errCount, lastErr)
	if err != nil {
		return fmt.Errorf("record source %s: %w", name, err)
	}
	return nil
}

// SourceStatuses returns every known source ordered by name.
// Thread-safe: acquires read lock.
func (s *Store) SourceStatuses(ctx context.Context) ([]model.SourceStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, last_fetched_at, item_count, error_count, last_error
		FROM sources ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []model.SourceStatus
	for rows.Next() {
		var (
			st   model.SourceStatus
			last sql.NullInt64
		)
		if err := rows.Scan(&st.Name, &last, &st.ItemCount, &st.ErrorCount, &st.LastError); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		st.LastFetched = fromNullMillis(last)
		out = append(out, st)
	}
	return out, rows.Err()
}
