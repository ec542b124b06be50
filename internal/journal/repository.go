// Package journal persists state transitions and park attempts to SQLite
// so a night can be reviewed after the fact.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultLimit = 50
	maxLimit     = 500

	// Fixed width so timestamps sort as text.
	timeFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

// Entry is one journaled state transition.
type Entry struct {
	ID            string        `json:"id"`
	RunID         string        `json:"run_id"`
	From          string        `json:"from"`
	To            string        `json:"to"`
	Forced        bool          `json:"forced"`
	Duration      time.Duration `json:"duration"`
	ObservationID string        `json:"observation_id,omitempty"`
	At            time.Time     `json:"at"`
}

// ParkAttempt is one journaled home-and-park attempt.
type ParkAttempt struct {
	ID      string    `json:"id"`
	RunID   string    `json:"run_id"`
	Attempt int       `json:"attempt"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Filter selects journal entries.
type Filter struct {
	RunID  string // optional
	State  string // optional: matches either side of the transition
	Since  time.Time
	Limit  int // default 50, max 500
	Offset int
}

// ListResult is a page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores and queries the journal.
type Repository interface {
	Record(ctx context.Context, e *Entry) error
	RecordParkAttempt(ctx context.Context, p *ParkAttempt) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository is the SQLite journal.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a repository over db. The transitions and
// park_attempts tables must already be migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts e, generating ID and At when empty.
func (r *SQLiteRepository) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	e.At = e.At.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transitions (id, run_id, from_state, to_state, forced, duration_ms, observation_id, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RunID, e.From, e.To, boolToInt(e.Forced), e.Duration.Milliseconds(),
		nullableString(e.ObservationID), e.At.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting transition: %w", err)
	}
	return nil
}

// RecordParkAttempt inserts p, generating ID and At when empty.
func (r *SQLiteRepository) RecordParkAttempt(ctx context.Context, p *ParkAttempt) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.At.IsZero() {
		p.At = time.Now()
	}
	p.At = p.At.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO park_attempts (id, run_id, attempt, error, at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.RunID, p.Attempt, nullableString(p.Error), p.At.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting park attempt: %w", err)
	}
	return nil
}

// List returns entries matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.RunID != "" {
		conditions = append(conditions, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.State != "" {
		conditions = append(conditions, "(from_state = ? OR to_state = ?)")
		args = append(args, filter.State, filter.State)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "at >= ?")
		args = append(args, filter.Since.UTC().Format(timeFormat))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM transitions " + where //nolint:gosec // placeholders only
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting transitions: %w", err)
	}

	query := "SELECT id, run_id, from_state, to_state, forced, duration_ms, observation_id, at FROM transitions " + //nolint:gosec // placeholders only
		where + " ORDER BY at DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var forced int
		var durationMS int64
		var observationID sql.NullString
		var at string
		if err := rows.Scan(&e.ID, &e.RunID, &e.From, &e.To, &forced, &durationMS, &observationID, &at); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}
		e.Forced = forced != 0
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.ObservationID = observationID.String
		if e.At, err = time.Parse(timeFormat, at); err != nil {
			return nil, fmt.Errorf("parsing transition timestamp %q: %w", at, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transitions: %w", err)
	}

	return &ListResult{Entries: entries, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
