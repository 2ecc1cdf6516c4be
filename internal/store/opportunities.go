package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/abelbrown/viralengine/internal/model"
)

// OpportunityFilter narrows ListOpportunities. Zero fields match everything.
type OpportunityFilter struct {
	ClientID string
	Industry string
	Status   model.OpportunityStatus
	Channel  model.Channel
	Since    time.Time
	Limit    int
}

const opportunityColumns = `id, client_id, industry, channel, topic, angle, hook, reasoning,
	score, score_breakdown, source_signal_ids, status, seo_data, created_at, updated_at`

// InsertOpportunityBatch writes opps in one transaction. Either every row
// commits or none does.
// Thread-safe: acquires write lock.
func (s *Store) InsertOpportunityBatch(ctx context.Context, opps []model.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO opportunities (`+opportunityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, o := range opps {
		breakdown, err := json.Marshal(o.ScoreBreakdown)
		if err != nil {
			return fmt.Errorf("encode breakdown for %s: %w", o.ID, err)
		}
		signalIDs, err := json.Marshal(nonNil(o.SourceSignalIDs))
		if err != nil {
			return fmt.Errorf("encode signal ids for %s: %w", o.ID, err)
		}
		var seo sql.NullString
		if o.SEOData != nil {
			b, err := json.Marshal(o.SEOData)
			if err != nil {
				return fmt.Errorf("encode seo data for %s: %w", o.ID, err)
			}
			seo = sql.NullString{String: string(b), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			o.ID,
			o.ClientID,
			o.Industry,
			string(o.Channel),
			o.Topic,
			o.Angle,
			o.Hook,
			o.Reasoning,
			o.Score,
			string(breakdown),
			string(signalIDs),
			string(o.Status),
			seo,
			toMillis(o.CreatedAt),
			toMillis(o.UpdatedAt),
		); err != nil {
			return fmt.Errorf("insert opportunity %s: %w", o.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetOpportunity returns one opportunity by id.
// Thread-safe: acquires read lock.
func (s *Store) GetOpportunity(ctx context.Context, id string) (model.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	opps, err := s.queryOpportunities(ctx, `SELECT `+opportunityColumns+` FROM opportunities WHERE id = ?`, id)
	if err != nil {
		return model.Opportunity{}, err
	}
	if len(opps) == 0 {
		return model.Opportunity{}, fmt.Errorf("opportunity %s: %w", id, ErrNotFound)
	}
	return opps[0], nil
}

// ListOpportunities returns opportunities matching f, highest score first.
// Thread-safe: acquires read lock.
func (s *Store) ListOpportunities(ctx context.Context, f OpportunityFilter) ([]model.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE 1=1`
	var args []any
	if f.ClientID != "" {
		query += ` AND client_id = ?`
		args = append(args, f.ClientID)
	}
	if f.Industry != "" {
		query += ` AND industry = ?`
		args = append(args, f.Industry)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Channel != "" {
		query += ` AND channel = ?`
		args = append(args, string(f.Channel))
	}
	if !f.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, toMillis(f.Since))
	}
	query += ` ORDER BY score DESC, created_at DESC, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	return s.queryOpportunities(ctx, query, args...)
}

// UpdateOpportunityStatus moves an opportunity from one status to another.
// The update only applies while the row still holds from; otherwise it
// returns ErrConflict (or ErrNotFound for an unknown id).
// Thread-safe: acquires write lock.
func (s *Store) UpdateOpportunityStatus(ctx context.Context, id string, from, to model.OpportunityStatus, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE opportunities SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), toMillis(now), id, string(from))
	if err != nil {
		return fmt.Errorf("update opportunity %s: %w", id, err)
	}
	return s.checkConditional(ctx, res, "opportunities", id)
}

// checkConditional turns a zero-row conditional update into ErrNotFound or
// ErrConflict. Caller must hold s.mu.
func (s *Store) checkConditional(ctx context.Context, res sql.Result, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", table, id, ErrConflict)
}

// queryOpportunities executes a query and scans results.
// Caller must hold s.mu (read lock is sufficient).
func (s *Store) queryOpportunities(ctx context.Context, query string, args ...any) ([]model.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query opportunities: %w", err)
	}
	defer rows.Close()

	var opps []model.Opportunity
	for rows.Next() {
		var (
			o                    model.Opportunity
			channel, status      string
			breakdown, signalIDs string
			seo                  sql.NullString
			createdAt, updatedAt int64
		)
		if err := rows.Scan(
			&o.ID,
			&o.ClientID,
			&o.Industry,
			&channel,
			&o.Topic,
			&o.Angle,
			&o.Hook,
			&o.Reasoning,
			&o.Score,
			&breakdown,
			&signalIDs,
			&status,
			&seo,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		if err := json.Unmarshal([]byte(breakdown), &o.ScoreBreakdown); err != nil {
			return nil, fmt.Errorf("decode breakdown for %s: %w", o.ID, err)
		}
		if err := json.Unmarshal([]byte(signalIDs), &o.SourceSignalIDs); err != nil {
			return nil, fmt.Errorf("decode signal ids for %s: %w", o.ID, err)
		}
		if seo.Valid {
			o.SEOData = &model.SEOData{}
			if err := json.Unmarshal([]byte(seo.String), o.SEOData); err != nil {
				return nil, fmt.Errorf("decode seo data for %s: %w", o.ID, err)
			}
		}
		o.Channel = model.Channel(channel)
		o.Status = model.OpportunityStatus(status)
		o.CreatedAt = fromMillis(createdAt)
		o.UpdatedAt = fromMillis(updatedAt)
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return opps, nil
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
