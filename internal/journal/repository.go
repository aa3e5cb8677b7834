package journal

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateSession(ctx context.Context, s *Session) error
	UpdateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, limit int) ([]*Session, error)
	ListSessionsByFile(ctx context.Context, filename string) ([]*Session, error)

	RecordEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, kind string, limit int) ([]*Event, error)
	CountEvents(ctx context.Context) (map[string]int, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const sessionColumns = `id, filename, policy, recordings, targets, attempted, extracted,
	status, decision, notes, error, started_at, finished_at`

func (r *SQLiteRepository) CreateSession(ctx context.Context, s *Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Filename, s.Policy, s.Recordings, s.Targets, s.Attempted, s.Extracted,
		s.Status, nullString(s.Decision), nullString(s.Notes), nullString(s.Error),
		s.StartedAt.UTC().Format(time.RFC3339), nullTime(s.FinishedAt))
	return err
}

func (r *SQLiteRepository) UpdateSession(ctx context.Context, s *Session) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET recordings = ?, targets = ?, attempted = ?, extracted = ?,
			status = ?, decision = ?, notes = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, s.Recordings, s.Targets, s.Attempted, s.Extracted,
		s.Status, nullString(s.Decision), nullString(s.Notes), nullString(s.Error),
		nullTime(s.FinishedAt), s.ID)
	return err
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *SQLiteRepository) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

func (r *SQLiteRepository) ListSessionsByFile(ctx context.Context, filename string) ([]*Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE filename = ? ORDER BY started_at ASC, rowid ASC
	`, filename)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var s Session
	var decision, notes, errMsg, finishedAt sql.NullString
	var startedAt string

	err := row.Scan(&s.ID, &s.Filename, &s.Policy, &s.Recordings, &s.Targets, &s.Attempted, &s.Extracted,
		&s.Status, &decision, &notes, &errMsg, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	s.Decision = decision.String
	s.Notes = notes.String
	s.Error = errMsg.String
	s.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if finishedAt.Valid {
		if t, err := time.Parse(time.RFC3339, finishedAt.String); err == nil {
			s.FinishedAt = &t
		}
	}
	return &s, nil
}

func scanSessions(rows *sql.Rows) ([]*Session, error) {
	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *SQLiteRepository) RecordEvent(ctx context.Context, e *Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO events (session_id, kind, file, recording, detail, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, nullString(e.SessionID), e.Kind, nullString(e.File), nullString(e.Recording),
		nullString(e.Detail), nullString(e.Error), e.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

// ListEvents returns the newest events first. An empty kind matches all kinds.
func (r *SQLiteRepository) ListEvents(ctx context.Context, kind string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, kind, file, recording, detail, error, created_at
		FROM events WHERE (? = '' OR kind = ?) ORDER BY id DESC LIMIT ?
	`, kind, kind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		var sessionID, file, recording, detail, errMsg sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &sessionID, &e.Kind, &file, &recording, &detail, &errMsg, &createdAt); err != nil {
			return nil, err
		}
		e.SessionID = sessionID.String
		e.File = file.String
		e.Recording = recording.String
		e.Detail = detail.String
		e.Error = errMsg.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CountEvents(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM events GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}
