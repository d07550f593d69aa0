// Package ledger keeps a durable record of deployment runs in Postgres.
//
// The Store is an events.Sink: every progress event of a run becomes one
// row keyed by (run_id, seq), so replays of the same event are harmless.
// It lets operators see which stage a past run reached and which steps
// were left for another authority.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/kiko1842/vaultwire/internal/events"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const insertEvent = `INSERT INTO deployment_events (run_id, seq, network, stage, kind, subject, detail, occurred_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	 ON CONFLICT (run_id, seq) DO NOTHING`

const selectRunEvents = `SELECT run_id, seq, network, stage, kind, subject, detail, occurred_at
	 FROM deployment_events WHERE run_id = $1 ORDER BY seq`

// Store writes deployment events to Postgres.
type Store struct {
	db  *sql.DB
	cfg Config
}

// Open connects, checks the connection and applies pending migrations.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, cfg: cfg}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Store) Name() string { return "ledger" }

// Publish records one event.
func (s *Store) Publish(ctx context.Context, e events.Event) error {
	args, err := eventArgs(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, insertEvent, args...); err != nil {
		return fmt.Errorf("insert deployment event: %w", err)
	}
	return nil
}

// Events returns the recorded events of a run in order.
func (s *Store) Events(ctx context.Context, runID string) ([]events.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectRunEvents, runID)
	if err != nil {
		return nil, fmt.Errorf("list deployment events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			e      events.Event
			kind   string
			detail []byte
		)
		if err := rows.Scan(&e.RunID, &e.Seq, &e.Network, &e.Stage, &kind, &e.Subject, &detail, &e.Time); err != nil {
			return nil, fmt.Errorf("scan deployment event: %w", err)
		}
		e.Kind = events.Kind(kind)
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("decode event detail: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// eventArgs lays out an event as insertEvent parameters.
func eventArgs(e events.Event) ([]any, error) {
	var detail []byte
	if len(e.Detail) > 0 {
		var err error
		detail, err = json.Marshal(e.Detail)
		if err != nil {
			return nil, fmt.Errorf("marshal event detail: %w", err)
		}
	}
	return []any{e.RunID, e.Seq, e.Network, e.Stage, string(e.Kind), e.Subject, detail, e.Time.UTC()}, nil
}

var _ events.Sink = (*Store)(nil)
