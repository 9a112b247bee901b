// Package postgres implements the document store and account ports on
// PostgreSQL. Documents live in a single JSONB table; a trigger publishes
// every change with pg_notify so subscriptions can re-run their queries.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

const notifyChannel = "documents"

// DB wraps a *sql.DB and implements domain ports.
type DB struct {
	sql      *sql.DB
	listener *pq.Listener
	log      zerolog.Logger

	mu   sync.Mutex
	subs map[*subscription]struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// Open connects to PostgreSQL, pings, runs migrations and starts listening
// for document changes.
func Open(connStr string, log zerolog.Logger) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := &DB{
		sql:  s,
		log:  log.With().Str("component", "postgres").Logger(),
		subs: make(map[*subscription]struct{}),
		done: make(chan struct{}),
	}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d.listener = pq.NewListener(connStr, time.Second, time.Minute, d.onListenerEvent)
	if err := d.listener.Listen(notifyChannel); err != nil {
		_ = d.listener.Close()
		_ = s.Close()
		return nil, fmt.Errorf("listen: %w", err)
	}
	d.wg.Add(1)
	go d.dispatch()
	return d, nil
}

// Close stops every subscription and closes the underlying connections.
func (d *DB) Close() error {
	close(d.done)
	_ = d.listener.Close()
	d.wg.Wait()

	d.mu.Lock()
	subs := d.subs
	d.subs = make(map[*subscription]struct{})
	d.mu.Unlock()
	for s := range subs {
		s.stop()
	}
	return d.sql.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data JSONB NOT NULL,
			seq BIGSERIAL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		);`,
		"CREATE INDEX IF NOT EXISTS idx_documents_user_id ON documents (collection, (data->>'userId'));",
		"CREATE INDEX IF NOT EXISTS idx_documents_patient_id ON documents (collection, (data->>'patientId'));",
		"CREATE TABLE IF NOT EXISTS accounts (uid TEXT PRIMARY KEY, email TEXT UNIQUE NOT NULL, password_hash TEXT NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE TABLE IF NOT EXISTS sessions (token TEXT PRIMARY KEY, uid TEXT NOT NULL, email TEXT NOT NULL, role TEXT NOT NULL, expires_at TIMESTAMPTZ NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);",
		`CREATE OR REPLACE FUNCTION notify_document_change() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify('` + notifyChannel + `', COALESCE(NEW.collection, OLD.collection));
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql;`,
		"CREATE OR REPLACE TRIGGER documents_notify AFTER INSERT OR UPDATE OR DELETE ON documents FOR EACH ROW EXECUTE FUNCTION notify_document_change();",
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
