//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema mirrors the tables the Postgres stores expect. Registrations,
// certificates, and events are written by upstream systems in production, so
// the stores never create them; integration tests seed them directly.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	start_time  TIMESTAMPTZ NOT NULL,
	total_days  INT NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS registrations (
	event_id    TEXT NOT NULL,
	student_id  TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (event_id, student_id)
);

CREATE TABLE IF NOT EXISTS attendance_records (
	id                  TEXT PRIMARY KEY,
	event_id            TEXT NOT NULL,
	student_id          TEXT NOT NULL,
	day_number          INT NOT NULL DEFAULT 1,
	scanned_at          TIMESTAMPTZ NOT NULL,
	scan_source         TEXT NOT NULL,
	scanner_actor_id    TEXT NOT NULL DEFAULT '',
	invalidated         BOOLEAN NOT NULL DEFAULT FALSE,
	invalidated_at      TIMESTAMPTZ,
	invalidated_by      TEXT,
	invalidation_reason TEXT
);
CREATE INDEX IF NOT EXISTS idx_attendance_event_student
	ON attendance_records (event_id, student_id);

CREATE TABLE IF NOT EXISTS certificate_records (
	certificate_id    TEXT PRIMARY KEY,
	event_id          TEXT NOT NULL,
	student_id        TEXT,
	role_type         TEXT NOT NULL,
	issued_at         TIMESTAMPTZ NOT NULL,
	revoked           BOOLEAN NOT NULL DEFAULT FALSE,
	revoked_at        TIMESTAMPTZ,
	revoked_by        TEXT,
	revocation_reason TEXT,
	verification_hash TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_certificates_event
	ON certificate_records (event_id);

CREATE TABLE IF NOT EXISTS role_assignments (
	id           TEXT PRIMARY KEY,
	event_id     TEXT NOT NULL,
	student_id   TEXT NOT NULL,
	role         TEXT NOT NULL,
	assigned_at  TIMESTAMPTZ NOT NULL,
	assigned_by  TEXT NOT NULL DEFAULT '',
	time_segment TEXT
);

CREATE TABLE IF NOT EXISTS audit_entries (
	id           TEXT PRIMARY KEY,
	event_id     TEXT NOT NULL,
	student_id   TEXT,
	actor_id     TEXT NOT NULL DEFAULT '',
	action_type  TEXT NOT NULL,
	before_state JSONB,
	after_state  JSONB,
	reason       TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_event_created
	ON audit_entries (event_id, created_at DESC);
`

// PostgresContainer wraps a testcontainers Postgres instance with the
// participation schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DB        *sql.DB
	URL       string
}

// NewPostgresContainer starts a Postgres container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("participation_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{
		Container: container,
		DB:        db,
		URL:       url,
	}
}

// TruncateTables empties the given tables. Use between tests for isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx,
		fmt.Sprintf("TRUNCATE TABLE %s", strings.Join(tables, ", ")))
	return err
}
