package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abelbrown/viralengine/internal/model"
)

// UpsertOutcome says what an upsert did to the signals table.
type UpsertOutcome int

const (
	Inserted UpsertOutcome = iota
	Updated
	Skipped
)

func (o UpsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "skipped"
	}
}

const signalColumns = `id, source_type, external_id, url, title, author, community,
	created_at_external, metrics, raw_excerpt, industry, fetched_at, created_at`

// UpsertSignal writes sig keyed by (source type, external id) in a single
// statement. A new key is inserted. An existing row whose fetched_at is at
// least cacheWindow old gets fresh metrics and fetched_at; every other column
// is left alone. A younger row is skipped untouched.
// Thread-safe: acquires write lock.
func (s *Store) UpsertSignal(ctx context.Context, sig model.NormalizedSignal, now time.Time, cacheWindow time.Duration) (UpsertOutcome, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics, err := json.Marshal(sig.Metrics)
	if err != nil {
		return Skipped, "", fmt.Errorf("encode metrics: %w", err)
	}

	proposed := uuid.NewString()
	cutoff := now.Add(-cacheWindow)

	var id string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO signals (`+signalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_type, external_id) DO UPDATE SET
			metrics = excluded.metrics,
			fetched_at = excluded.fetched_at
		WHERE signals.fetched_at <= ?
		RETURNING id
	`,
		proposed,
		string(sig.SourceType),
		sig.ExternalID,
		sig.URL,
		sig.Title,
		sig.Author,
		sig.Community,
		nullMillis(sig.CreatedAtExternal),
		string(metrics),
		model.TruncateExcerpt(sig.RawExcerpt),
		sig.Industry,
		toMillis(now),
		toMillis(now),
		toMillis(cutoff),
	).Scan(&id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Skipped, "", nil
	case err != nil:
		return Skipped, "", fmt.Errorf("upsert signal %s/%s: %w", sig.SourceType, sig.ExternalID, err)
	case id == proposed:
		return Inserted, id, nil
	default:
		return Updated, id, nil
	}
}

// GetSignal returns one signal by id.
// Thread-safe: acquires read lock.
func (s *Store) GetSignal(ctx context.Context, id string) (model.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sigs, err := s.querySignals(ctx, `SELECT `+signalColumns+` FROM signals WHERE id = ?`, id)
	if err != nil {
		return model.Signal{}, err
	}
	if len(sigs) == 0 {
		return model.Signal{}, fmt.Errorf("signal %s: %w", id, ErrNotFound)
	}
	return sigs[0], nil
}

// GetSignalByKey returns the signal stored under a dedupe key.
// Thread-safe: acquires read lock.
func (s *Store) GetSignalByKey(ctx context.Context, sourceType model.SourceType, externalID string) (model.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sigs, err := s.querySignals(ctx,
		`SELECT `+signalColumns+` FROM signals WHERE source_type = ? AND external_id = ?`,
		string(sourceType), externalID)
	if err != nil {
		return model.Signal{}, err
	}
	if len(sigs) == 0 {
		return model.Signal{}, fmt.Errorf("signal %s/%s: %w", sourceType, externalID, ErrNotFound)
	}
	return sigs[0], nil
}

// SignalsByIDs returns the signals with the given ids, most recent first.
// Unknown ids are ignored.
// Thread-safe: acquires read lock.
func (s *Store) SignalsByIDs(ctx context.Context, ids []string) ([]model.Signal, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.querySignals(ctx,
		`SELECT `+signalColumns+` FROM signals WHERE id IN (`+placeholders(len(ids))+`)
		ORDER BY fetched_at DESC, id`, args...)
}

// RecentSignals returns signals fetched at or after since, newest first,
// capped at limit. An empty industry matches every industry.
// Thread-safe: acquires read lock.
func (s *Store) RecentSignals(ctx context.Context, industry string, since time.Time, limit int) ([]model.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + signalColumns + ` FROM signals WHERE fetched_at >= ?`
	args := []any{toMillis(since)}
	if industry != "" {
		query += ` AND industry = ?`
		args = append(args, industry)
	}
	query += ` ORDER BY fetched_at DESC, id LIMIT ?`
	args = append(args, limit)

	return s.querySignals(ctx, query, args...)
}

// CountSignals returns the number of stored signals.
// Thread-safe: acquires read lock.
func (s *Store) CountSignals(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM signals`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count signals: %w", err)
	}
	return n, nil
}

// querySignals executes a query and scans results into Signals.
// Caller must hold s.mu (read lock is sufficient).
func (s *Store) querySignals(ctx context.Context, query string, args ...any) ([]model.Signal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var sigs []model.Signal
	for rows.Next() {
		var (
			sig        model.Signal
			sourceType string
			createdExt sql.NullInt64
			metrics    string
			fetchedAt  int64
			createdAt  int64
		)
		if err := rows.Scan(
			&sig.ID,
			&sourceType,
			&sig.ExternalID,
			&sig.URL,
			&sig.Title,
			&sig.Author,
			&sig.Community,
			&createdExt,
			&metrics,
			&sig.RawExcerpt,
			&sig.Industry,
			&fetchedAt,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		if err := json.Unmarshal([]byte(metrics), &sig.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics for %s: %w", sig.ID, err)
		}
		sig.SourceType = model.SourceType(sourceType)
		sig.CreatedAtExternal = fromNullMillis(createdExt)
		sig.FetchedAt = fromMillis(fetchedAt)
		sig.CreatedAt = fromMillis(createdAt)
		sigs = append(sigs, sig)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sigs, nil
}
