package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "participation/pkg/domain"
	txcontext "participation/pkg/platform/tx"
)

// PostgresStore persists audit entries in PostgreSQL. The audit_entries table
// carries no UPDATE or DELETE path in this codebase; the store only ever
// inserts and selects.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) (Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	before, err := marshalState(entry.BeforeState)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal before state: %w", err)
	}
	after, err := marshalState(entry.AfterState)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal after state: %w", err)
	}

	_, err = s.q(ctx).ExecContext(ctx, `
		INSERT INTO audit_entries
			(id, event_id, student_id, actor_id, action_type, before_state, after_state, reason, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.EventID, entry.StudentID, entry.ActorID, entry.ActionType,
		before, after, entry.Reason, entry.Timestamp)
	if err != nil {
		return Entry{}, fmt.Errorf("insert audit entry: %w", err)
	}
	return entry, nil
}

const entryColumns = `
	id, event_id, COALESCE(student_id, ''), actor_id, action_type,
	before_state, after_state, reason, created_at`

func (s *PostgresStore) ListByStudent(ctx context.Context, eventID id.EventID, studentID id.StudentID, limit int) ([]Entry, error) {
	return s.list(ctx, `
		SELECT `+entryColumns+`
		FROM audit_entries
		WHERE event_id = $1 AND student_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, eventID, studentID, normalizeLimit(limit))
}

func (s *PostgresStore) ListByEvent(ctx context.Context, eventID id.EventID, limit int) ([]Entry, error) {
	return s.list(ctx, `
		SELECT `+entryColumns+`
		FROM audit_entries
		WHERE event_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, eventID, normalizeLimit(limit))
}

func (s *PostgresStore) ListByAction(ctx context.Context, eventID id.EventID, action ActionType) ([]Entry, error) {
	return s.list(ctx, `
		SELECT `+entryColumns+`
		FROM audit_entries
		WHERE event_id = $1 AND action_type = $2
		ORDER BY created_at ASC, id ASC
	`, eventID, action)
}

func (s *PostgresStore) CountByAction(ctx context.Context, eventID id.EventID) (map[ActionType]int, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT action_type, COUNT(*)
		FROM audit_entries
		WHERE event_id = $1
		GROUP BY action_type
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("count audit entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[ActionType]int)
	for rows.Next() {
		var action ActionType
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, fmt.Errorf("scan audit count: %w", err)
		}
		counts[action] = count
	}
	return counts, rows.Err()
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var entry Entry
		var before, after []byte
		err := rows.Scan(&entry.ID, &entry.EventID, &entry.StudentID, &entry.ActorID,
			&entry.ActionType, &before, &after, &entry.Reason, &entry.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if entry.BeforeState, err = unmarshalState(before); err != nil {
			return nil, fmt.Errorf("unmarshal before state: %w", err)
		}
		if entry.AfterState, err = unmarshalState(after); err != nil {
			return nil, fmt.Errorf("unmarshal after state: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func marshalState(state map[string]any) ([]byte, error) {
	if state == nil {
		state = map[string]any{}
	}
	return json.Marshal(state)
}

func unmarshalState(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var state map[string]any
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	return state, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
