package activity

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Store is the interface for reading and writing activity entries.
type Store interface {
	// WriteEntries appends entries, assigning each a sequence number.
	WriteEntries(ctx context.Context, entries []Entry) error

	// Query returns a session's entries, newest first.
	Query(ctx context.Context, sessionID string, opts QueryOptions) (entries []Entry, nextCursor string, totalCount int, err error)
}

// SQLStore implements Store on a database/sql handle. Queries use ?
// placeholders and run against SQLite.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a new SQLStore.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates the activity_entries table.
func (s *SQLStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS activity_entries (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id    TEXT NOT NULL UNIQUE,
			session_id  TEXT NOT NULL,
			form        TEXT NOT NULL,
			event_type  TEXT NOT NULL,
			field       TEXT NOT NULL DEFAULT '',
			version     INTEGER NOT NULL,
			occurred_at INTEGER NOT NULL,
			payload     BLOB
		);

		CREATE INDEX IF NOT EXISTS idx_activity_session_seq
			ON activity_entries (session_id, seq DESC);
	`)
	if err != nil {
		return fmt.Errorf("creating activity_entries: %w", err)
	}
	return nil
}

// WriteEntries inserts entries in one statement.
func (s *SQLStore) WriteEntries(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(`INSERT INTO activity_entries (
		event_id, session_id, form, event_type, field, version, occurred_at, payload
	) VALUES `)

	args := make([]any, 0, len(entries)*8)
	for i, e := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			e.EventID, e.SessionID, e.Form, e.EventType, e.Field,
			int64(e.Version), e.OccurredAt.UnixNano(), []byte(e.Payload),
		)
	}

	b.WriteString(" ON CONFLICT DO NOTHING")
	if _, err := s.db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("writing activity entries: %w", err)
	}
	return nil
}

// Query returns a session's entries with filtering and pagination.
func (s *SQLStore) Query(ctx context.Context, sessionID string, opts QueryOptions) ([]Entry, string, int, error) {
	limit := opts.limit()

	conditions := []string{"session_id = ?"}
	args := []any{sessionID}

	if opts.Since != nil {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, opts.Since.UnixNano())
	}
	if opts.Until != nil {
		conditions = append(conditions, "occurred_at <= ?")
		args = append(args, opts.Until.UnixNano())
	}
	if len(opts.Types) > 0 {
		placeholders := make([]string, len(opts.Types))
		for i, t := range opts.Types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		conditions = append(conditions, fmt.Sprintf("event_type IN (%s)", strings.Join(placeholders, ", ")))
	}
	if opts.Field != "" {
		conditions = append(conditions, "field = ?")
		args = append(args, opts.Field)
	}

	where := strings.Join(conditions, " AND ")

	// Count before applying the cursor so the total covers every page.
	var totalCount int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM activity_entries WHERE %s", where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, "", 0, fmt.Errorf("counting activity entries: %w", err)
	}

	if opts.Cursor != "" {
		if seq, err := strconv.ParseInt(opts.Cursor, 10, 64); err == nil {
			where += " AND seq < ?"
			args = append(args, seq)
		}
	}

	query := fmt.Sprintf(
		`SELECT seq, event_id, session_id, form, event_type, field, version, occurred_at, payload
		FROM activity_entries
		WHERE %s
		ORDER BY seq DESC
		LIMIT ?`, where)
	args = append(args, limit+1) // fetch one extra for cursor

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", 0, fmt.Errorf("querying activity entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			version int64
			nanos   int64
			payload []byte
		)
		if err := rows.Scan(&e.Seq, &e.EventID, &e.SessionID, &e.Form, &e.EventType,
			&e.Field, &version, &nanos, &payload); err != nil {
			return nil, "", 0, fmt.Errorf("scanning activity entry: %w", err)
		}
		e.Version = uint64(version)
		e.OccurredAt = time.Unix(0, nanos)
		if len(payload) > 0 {
			e.Payload = payload
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", 0, fmt.Errorf("iterating activity entries: %w", err)
	}

	var nextCursor string
	if len(entries) > limit {
		entries = entries[:limit]
		nextCursor = strconv.FormatInt(entries[len(entries)-1].Seq, 10)
	}
	return entries, nextCursor, totalCount, nil
}
