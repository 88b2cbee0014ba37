package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/insightd/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCycleNotFound is returned when the ledger has no matching cycle.
var ErrCycleNotFound = domain.NewDomainError(domain.ErrCodeNotFound, "scan cycle not found")

const (
	cycleStatusRunning  = "running"
	cycleStatusFinished = "finished"
	cycleStatusFailed   = "failed"

	defaultListLimit = 20
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CycleRepository is the scan ledger: one row per cycle and one per item
// outcome.
type CycleRepository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewCycleRepository(pool *pgxpool.Pool) *CycleRepository {
	return &CycleRepository{db: pool, pool: pool}
}

// NewCycleRepositoryWithTx binds a repository to an open transaction.
func NewCycleRepositoryWithTx(tx pgx.Tx) *CycleRepository {
	return &CycleRepository{db: tx}
}

func (r *CycleRepository) StartCycle(ctx context.Context, s *domain.CycleSummary) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO cycles (id, tier, status, started_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		s.ID, s.Tier, cycleStatusRunning, s.StartedAt,
	)
	return err
}

func (r *CycleRepository) RecordOutcome(ctx context.Context, cycleID string, o domain.ItemOutcome) error {
	files := o.Files
	if files == nil {
		files = []string{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO item_outcomes (cycle_id, creator_id, item_id, title, outcome, state, score, method, files, error, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (cycle_id, creator_id, item_id) DO UPDATE SET
		   title = EXCLUDED.title,
		   outcome = EXCLUDED.outcome,
		   state = EXCLUDED.state,
		   score = EXCLUDED.score,
		   method = EXCLUDED.method,
		   files = EXCLUDED.files,
		   error = EXCLUDED.error,
		   processed_at = EXCLUDED.processed_at`,
		cycleID, o.CreatorID, o.ItemID, o.Title, string(o.Outcome), nullableString(string(o.State)),
		o.Score, nullableString(o.Method), files, nullableString(o.Error), o.ProcessedAt,
	)
	return err
}

// FinishCycle stores the final summary and every item outcome in one
// transaction, so outcomes that failed to record during the cycle are
// filled in.
func (r *CycleRepository) FinishCycle(ctx context.Context, s *domain.CycleSummary) error {
	if r.pool == nil {
		return r.finish(ctx, s)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return NewCycleRepositoryWithTx(tx).finish(ctx, s)
	})
}

func (r *CycleRepository) finish(ctx context.Context, s *domain.CycleSummary) error {
	processed, err := json.Marshal(s.Processed)
	if err != nil {
		return err
	}
	outcomes, err := json.Marshal(s.Outcomes)
	if err != nil {
		return err
	}
	states, err := json.Marshal(s.States)
	if err != nil {
		return err
	}
	written := s.Written
	if written == nil {
		written = []string{}
	}

	status := cycleStatusFinished
	if s.Error != "" {
		status = cycleStatusFailed
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO cycles (id, tier, status, started_at, finished_at, total, processed, outcomes, states, written, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   status = EXCLUDED.status,
		   finished_at = EXCLUDED.finished_at,
		   total = EXCLUDED.total,
		   processed = EXCLUDED.processed,
		   outcomes = EXCLUDED.outcomes,
		   states = EXCLUDED.states,
		   written = EXCLUDED.written,
		   error = EXCLUDED.error`,
		s.ID, s.Tier, status, s.StartedAt, nullableTime(s.FinishedAt), s.Total,
		processed, outcomes, states, written, nullableString(s.Error),
	)
	if err != nil {
		return fmt.Errorf("upsert cycle %s: %w", s.ID, err)
	}

	for _, o := range s.Items {
		if err := r.RecordOutcome(ctx, s.ID, o); err != nil {
			return fmt.Errorf("record outcome %s/%s: %w", o.CreatorID, o.ItemID, err)
		}
	}
	return nil
}

const cycleColumns = `id, tier, started_at, finished_at, total, processed, outcomes, states, written, error`

func (r *CycleRepository) GetByID(ctx context.Context, id string) (*domain.CycleSummary, error) {
	row := r.db.QueryRow(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE id = $1`, id)
	return scanCycle(row)
}

func (r *CycleRepository) Latest(ctx context.Context) (*domain.CycleSummary, error) {
	row := r.db.QueryRow(ctx, `SELECT `+cycleColumns+` FROM cycles ORDER BY started_at DESC LIMIT 1`)
	return scanCycle(row)
}

// List returns the most recent cycles, newest first, without item outcomes.
func (r *CycleRepository) List(ctx context.Context, limit int) ([]*domain.CycleSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+cycleColumns+` FROM cycles ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*domain.CycleSummary, 0)
	for rows.Next() {
		s, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

// Outcomes returns the item outcomes of one cycle in processing order.
func (r *CycleRepository) Outcomes(ctx context.Context, cycleID string) ([]domain.ItemOutcome, error) {
	rows, err := r.db.Query(ctx,
		`SELECT creator_id, item_id, title, outcome, state, score, method, files, error, processed_at
		 FROM item_outcomes WHERE cycle_id = $1 ORDER BY processed_at, creator_id, item_id`,
		cycleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.ItemOutcome, 0)
	for rows.Next() {
		var o domain.ItemOutcome
		var outcome string
		var state, method, errMsg *string
		if err := rows.Scan(&o.CreatorID, &o.ItemID, &o.Title, &outcome, &state, &o.Score, &method, &o.Files, &errMsg, &o.ProcessedAt); err != nil {
			return nil, err
		}
		o.Outcome = domain.Outcome(outcome)
		if state != nil {
			o.State = domain.ApprovalState(*state)
		}
		o.Method = deref(method)
		o.Error = deref(errMsg)
		results = append(results, o)
	}
	return results, rows.Err()
}

func scanCycle(row pgx.Row) (*domain.CycleSummary, error) {
	var s domain.CycleSummary
	var finishedAt *time.Time
	var processed, outcomes, states []byte
	var errMsg *string
	err := row.Scan(&s.ID, &s.Tier, &s.StartedAt, &finishedAt, &s.Total, &processed, &outcomes, &states, &s.Written, &errMsg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCycleNotFound
		}
		return nil, err
	}
	if finishedAt != nil {
		s.FinishedAt = *finishedAt
	}
	s.Error = deref(errMsg)

	if err := json.Unmarshal(processed, &s.Processed); err != nil {
		return nil, fmt.Errorf("decode processed counts: %w", err)
	}
	if err := json.Unmarshal(outcomes, &s.Outcomes); err != nil {
		return nil, fmt.Errorf("decode outcome counts: %w", err)
	}
	if err := json.Unmarshal(states, &s.States); err != nil {
		return nil, fmt.Errorf("decode state counts: %w", err)
	}
	return &s, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
