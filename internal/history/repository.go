package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Call is one finished call as stored in the database.
type Call struct {
	SessionID    string    `json:"streamSid"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	Duration     float64   `json:"duration"`
	FinalScore   float64   `json:"final_score"`
	RiskBand     string    `json:"band"`
	Transcript   string    `json:"text"`
	RecordingURL string    `json:"recording_url,omitempty"`
}

// Recorder saves finished calls and serves the recent call list.
type Recorder interface {
	SaveCall(ctx context.Context, call Call) error
	RecentCalls(ctx context.Context, limit int) ([]Call, error)
	Close()
}

// Repository implements Recorder on a pgx connection pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository connects to the database and ensures the schema exists.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	repo := &Repository{pool: pool}
	if err := repo.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return repo, nil
}

func (r *Repository) ensureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS calls (
			session_id       text PRIMARY KEY,
			started_at       timestamptz NOT NULL,
			ended_at         timestamptz NOT NULL,
			duration_seconds double precision NOT NULL,
			final_score      double precision NOT NULL,
			risk_band        text NOT NULL,
			transcript       text NOT NULL DEFAULT '',
			recording_url    text NOT NULL DEFAULT ''
		)`

	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure calls table: %w", err)
	}
	return nil
}

// SaveCall upserts a finished call. A later archival pass may update
// the recording URL for a call saved at end-of-call time.
func (r *Repository) SaveCall(ctx context.Context, call Call) error {
	const query = `
		INSERT INTO calls (
			session_id, started_at, ended_at, duration_seconds,
			final_score, risk_band, transcript, recording_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO UPDATE SET
			ended_at         = EXCLUDED.ended_at,
			duration_seconds = EXCLUDED.duration_seconds,
			final_score      = EXCLUDED.final_score,
			risk_band        = EXCLUDED.risk_band,
			transcript       = EXCLUDED.transcript,
			recording_url    = CASE
				WHEN EXCLUDED.recording_url <> '' THEN EXCLUDED.recording_url
				ELSE calls.recording_url
			END`

	_, err := r.pool.Exec(ctx, query,
		call.SessionID, call.StartedAt, call.EndedAt, call.Duration,
		call.FinalScore, call.RiskBand, call.Transcript, call.RecordingURL)
	if err != nil {
		return fmt.Errorf("failed to save call %s: %w", call.SessionID, err)
	}
	return nil
}

// RecentCalls returns the most recently ended calls, newest first.
func (r *Repository) RecentCalls(ctx context.Context, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 10
	}

	const query = `
		SELECT session_id, started_at, ended_at, duration_seconds,
		       final_score, risk_band, transcript, recording_url
		FROM calls
		ORDER BY ended_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent calls: %w", err)
	}
	defer rows.Close()

	var calls []Call
	for rows.Next() {
		var c Call
		if err := rows.Scan(&c.SessionID, &c.StartedAt, &c.EndedAt, &c.Duration,
			&c.FinalScore, &c.RiskBand, &c.Transcript, &c.RecordingURL); err != nil {
			return nil, fmt.Errorf("failed to scan call row: %w", err)
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read call rows: %w", err)
	}

	return calls, nil
}

// Close releases the connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// Noop is a Recorder that stores nothing. Used when history is
// disabled in configuration.
type Noop struct{}

func (Noop) SaveCall(ctx context.Context, call Call) error { return nil }

func (Noop) RecentCalls(ctx context.Context, limit int) ([]Call, error) { return nil, nil }

func (Noop) Close() {}
