package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abelbrown/viralengine/internal/model"
)

// BriefFilter narrows ListBriefs. Zero fields match everything.
type BriefFilter struct {
	OpportunityID string
	Status        model.BriefStatus
	Limit         int
}

const briefColumns = `id, opportunity_id, client_id, signal_ids, content, evidence,
	source_from, source_to, status, parent_id, superseded_by, model_id, created_at, updated_at`

// InsertBrief stores a new brief.
// Thread-safe: acquires write lock.
func (s *Store) InsertBrief(ctx context.Context, b model.CanonicalBrief) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return insertBrief(ctx, s.db, b)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertBrief(ctx context.Context, db execer, b model.CanonicalBrief) error {
	signalIDs, err := json.Marshal(nonNil(b.SignalIDs))
	if err != nil {
		return fmt.Errorf("encode signal ids: %w", err)
	}
	content, err := json.Marshal(b.Content)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}
	evidence := b.Evidence
	if evidence == nil {
		evidence = []model.Evidence{}
	}
	ev, err := json.Marshal(evidence)
	if err != nil {
		return fmt.Errorf("encode evidence: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO briefs (`+briefColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID,
		b.OpportunityID,
		b.ClientID,
		string(signalIDs),
		string(content),
		string(ev),
		nullMillis(b.SourceDateRange.From),
		nullMillis(b.SourceDateRange.To),
		string(b.Status),
		b.ParentID,
		b.SupersededBy,
		b.ModelID,
		toMillis(b.CreatedAt),
		toMillis(b.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert brief %s: %w", b.ID, err)
	}
	return nil
}

// GetBrief returns one brief by id.
// Thread-safe: acquires read lock.
func (s *Store) GetBrief(ctx context.Context, id string) (model.CanonicalBrief, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	briefs, err := s.queryBriefs(ctx, `SELECT `+briefColumns+` FROM briefs WHERE id = ?`, id)
	if err != nil {
		return model.CanonicalBrief{}, err
	}
	if len(briefs) == 0 {
		return model.CanonicalBrief{}, fmt.Errorf("brief %s: %w", id, ErrNotFound)
	}
	return briefs[0], nil
}

// ListBriefs returns briefs matching f, newest first.
// Thread-safe: acquires read lock.
func (s *Store) ListBriefs(ctx context.Context, f BriefFilter) ([]model.CanonicalBrief, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + briefColumns + ` FROM briefs WHERE 1=1`
	var args []any
	if f.OpportunityID != "" {
		query += ` AND opportunity_id = ?`
		args = append(args, f.OpportunityID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	return s.queryBriefs(ctx, query, args...)
}

// TransitionBrief moves a brief from one status to another with a single
// conditional UPDATE. When the row no longer holds from, nothing changes and
// ErrConflict is returned.
// Thread-safe: acquires write lock.
func (s *Store) TransitionBrief(ctx context.Context, id string, from, to model.BriefStatus, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE briefs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), toMillis(now), id, string(from))
	if err != nil {
		return fmt.Errorf("transition brief %s: %w", id, err)
	}
	return s.checkConditional(ctx, res, "briefs", id)
}

// SupersedeBrief atomically marks an approved brief superseded by next and
// inserts next. If old is no longer approved nothing is written and
// ErrConflict is returned.
// Thread-safe: acquires write lock.
func (s *Store) SupersedeBrief(ctx context.Context, oldID string, next model.CanonicalBrief, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE briefs SET status = ?, superseded_by = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(model.BriefSuperseded), next.ID, toMillis(now), oldID, string(model.BriefApproved))
	if err != nil {
		return fmt.Errorf("supersede brief %s: %w", oldID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("briefs %s: %w", oldID, ErrConflict)
	}

	if err := insertBrief(ctx, tx, next); err != nil {
		return err
	}
	return tx.Commit()
}

// ErrBriefNotApproved is returned by InsertGeneration when the brief is not
// in the approved state at write time.
var ErrBriefNotApproved = errors.New("brief not approved")

// InsertGeneration appends a content generation. The version is assigned in
// the same statement as max(version)+1 for (brief, channel), and the row is
// only written while the brief is approved.
// Thread-safe: acquires write lock.
func (s *Store) InsertGeneration(ctx context.Context, g model.BriefGeneration) (model.BriefGeneration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	usage, err := json.Marshal(g.Usage)
	if err != nil {
		return g, fmt.Errorf("encode usage: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO brief_generations (id, brief_id, channel, version, content, usage, created_at)
		SELECT ?, ?, ?,
			COALESCE((SELECT MAX(version) FROM brief_generations WHERE brief_id = ? AND channel = ?), 0) + 1,
			?, ?, ?
		WHERE EXISTS (SELECT 1 FROM briefs WHERE id = ? AND status = ?)
		RETURNING version
	`,
		g.ID, g.BriefID, string(g.Channel),
		g.BriefID, string(g.Channel),
		g.Content, string(usage), toMillis(g.CreatedAt),
		g.BriefID, string(model.BriefApproved),
	).Scan(&g.Version)

	if errors.Is(err, sql.ErrNoRows) {
		return g, fmt.Errorf("brief %s: %w", g.BriefID, ErrBriefNotApproved)
	}
	if err != nil {
		return g, fmt.Errorf("insert generation for %s: %w", g.BriefID, err)
	}
	return g, nil
}

// ListGenerations returns a brief's generations ordered by channel then
// version. An empty channel returns every channel.
// Thread-safe: acquires read lock.
func (s *Store) ListGenerations(ctx context.Context, briefID string, channel model.Channel) ([]model.BriefGeneration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, brief_id, channel, version, content, usage, created_at
		FROM brief_generations WHERE brief_id = ?`
	args := []any{briefID}
	if channel != "" {
		query += ` AND channel = ?`
		args = append(args, string(channel))
	}
	query += ` ORDER BY channel, version`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer rows.Close()

	var out []model.BriefGeneration
	for rows.Next() {
		var (
			g         model.BriefGeneration
			ch, usage string
			createdAt int64
		)
		if err := rows.Scan(&g.ID, &g.BriefID, &ch, &g.Version, &g.Content, &usage, &createdAt); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		if err := json.Unmarshal([]byte(usage), &g.Usage); err != nil {
			return nil, fmt.Errorf("decode usage for %s: %w", g.ID, err)
		}
		g.Channel = model.Channel(ch)
		g.CreatedAt = fromMillis(createdAt)
		out = append(out, g)
	}
	return out, rows.Err()
}

// queryBriefs executes a query and scans results.
// Caller must hold s.mu (read lock is sufficient).
func (s *Store) queryBriefs(ctx context.Context, query string, args ...any) ([]model.CanonicalBrief, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query briefs: %w", err)
	}
	defer rows.Close()

	var out []model.CanonicalBrief
	for rows.Next() {
		var (
			b                      model.CanonicalBrief
			signalIDs, content, ev string
			status                 string
			from, to               sql.NullInt64
			createdAt, updatedAt   int64
		)
		if err := rows.Scan(
			&b.ID,
			&b.OpportunityID,
			&b.ClientID,
			&signalIDs,
			&content,
			&ev,
			&from,
			&to,
			&status,
			&b.ParentID,
			&b.SupersededBy,
			&b.ModelID,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan brief: %w", err)
		}
		if err := json.Unmarshal([]byte(signalIDs), &b.SignalIDs); err != nil {
			return nil, fmt.Errorf("decode signal ids for %s: %w", b.ID, err)
		}
		if err := json.Unmarshal([]byte(content), &b.Content); err != nil {
			return nil, fmt.Errorf("decode content for %s: %w", b.ID, err)
		}
		if err := json.Unmarshal([]byte(ev), &b.Evidence); err != nil {
			return nil, fmt.Errorf("decode evidence for %s: %w", b.ID, err)
		}
		b.SourceDateRange = model.DateRange{From: fromNullMillis(from), To: fromNullMillis(to)}
		b.Status = model.BriefStatus(status)
		b.CreatedAt = fromMillis(createdAt)
		b.UpdatedAt = fromMillis(updatedAt)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
