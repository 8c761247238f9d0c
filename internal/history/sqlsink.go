package history

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLSink appends events to a resource_history table. It is independent of
// the record store: it only appends. The sqlite and postgres packages open
// the connection and pick the dialect.
type SQLSink struct {
	db      *sql.DB
	dialect string // "sqlite" or "postgres"
}

// NewSQLSink wraps db and creates the history table when missing.
func NewSQLSink(ctx context.Context, db *sql.DB, dialect string) (*SQLSink, error) {
	if dialect != "sqlite" && dialect != "postgres" {
		return nil, fmt.Errorf("unsupported history dialect %q", dialect)
	}
	s := &SQLSink{db: db, dialect: dialect}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLSink) ensureSchema(ctx context.Context) error {
	timeType := "TIMESTAMP"
	if s.dialect == "postgres" {
		timeType = "TIMESTAMPTZ"
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS resource_history(
			id TEXT PRIMARY KEY,
			occurred_at %s NOT NULL,
			event TEXT NOT NULL,
			kind TEXT NOT NULL,
			resource_id BIGINT NOT NULL,
			actor TEXT NOT NULL,
			payload TEXT NOT NULL
		);`, timeType),
		`CREATE INDEX IF NOT EXISTS idx_resource_history_kind_id ON resource_history(kind, resource_id);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLSink) Send(ctx context.Context, e Event) error {
	payload, err := e.Payload()
	if err != nil {
		return err
	}
	q := `INSERT INTO resource_history(id, occurred_at, event, kind, resource_id, actor, payload) VALUES(?, ?, ?, ?, ?, ?, ?)`
	if s.dialect == "postgres" {
		q = `INSERT INTO resource_history(id, occurred_at, event, kind, resource_id, actor, payload) VALUES($1, $2, $3, $4, $5, $6, $7)`
	}
	_, err = s.db.ExecContext(ctx, q, e.ID, e.OccurredAt.UTC(), string(e.Type), e.Kind, e.ResourceID, e.Actor, payload)
	return err
}

// Events returns the stored events for one resource, oldest first.
func (s *SQLSink) Events(ctx context.Context, kind string, id int64) ([]Event, error) {
	q := `SELECT id, occurred_at, event, kind, resource_id, actor FROM resource_history WHERE kind = ? AND resource_id = ? ORDER BY occurred_at, id`
	if s.dialect == "postgres" {
		q = `SELECT id, occurred_at, event, kind, resource_id, actor FROM resource_history WHERE kind = $1 AND resource_id = $2 ORDER BY occurred_at, id`
	}
	rows, err := s.db.QueryContext(ctx, q, kind, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Event
	for rows.Next() {
		var (
			e  Event
			et string
		)
		if err := rows.Scan(&e.ID, &e.OccurredAt, &et, &e.Kind, &e.ResourceID, &e.Actor); err != nil {
			return nil, err
		}
		e.Type = EventType(et)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLSink) Close() error { return s.db.Close() }
