package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/datasynth/synth/pkg/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// DefaultTable receives generated items when no table is configured.
const DefaultTable = "synth_items"

var postgresColumns = []string{"session_id", "item_type", "payload", "created_at"}

// DB is the subset of pgxpool.Pool used by PostgresSink.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// PostgresSink copies generated items into a table, one row per item
// with the item encoded as jsonb. Rows are written in batches.
type PostgresSink struct {
	db        DB
	pool      *pgxpool.Pool
	table     pgx.Identifier
	sessionID string
	batchSize int
	logger    *log.Logger

	mu   sync.Mutex
	rows [][]any
}

// NewPostgresSink connects to dsn and makes sure the target table exists.
func NewPostgresSink(ctx context.Context, dsn, table, sessionID string, batchSize int, logger *log.Logger) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	s, err := newPostgresSink(ctx, pool, table, sessionID, batchSize, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.pool = pool
	return s, nil
}

func newPostgresSink(ctx context.Context, db DB, table, sessionID string, batchSize int, logger *log.Logger) (*PostgresSink, error) {
	if table == "" {
		table = DefaultTable
	}
	if batchSize <= 0 {
		batchSize = 1
	}

	s := &PostgresSink{
		db:        db,
		table:     pgx.Identifier(strings.Split(table, ".")),
		sessionID: sessionID,
		batchSize: batchSize,
		logger:    logger,
	}

	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	session_id text NOT NULL,
	item_type text NOT NULL,
	payload jsonb NOT NULL,
	created_at timestamptz NOT NULL
)`, s.table.Sanitize())
	if _, err := db.Exec(ctx, createTable); err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return s, nil
}

func (s *PostgresSink) Name() string {
	return "postgres"
}

// Process buffers data items and copies a batch once it is full.
// Progress and completion events are not stored.
func (s *PostgresSink) Process(ctx context.Context, event events.Event) error {
	if !events.IsData(event) {
		return nil
	}
	e := event.(events.DataEvent)

	payload, err := json.Marshal(e.Item)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", e.Item.ItemType(), err)
	}

	s.mu.Lock()
	s.rows = append(s.rows, []any{s.sessionID, e.Item.ItemType(), payload, e.Timestamp()})
	full := len(s.rows) >= s.batchSize
	s.mu.Unlock()

	if full {
		return s.Flush(ctx)
	}
	return nil
}

func (s *PostgresSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	rows := s.rows
	s.rows = nil
	s.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}

	start := time.Now()
	copied, err := s.db.CopyFrom(ctx, s.table, postgresColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy %d rows: %w", len(rows), err)
	}
	s.logger.Debugf("[postgres] copied %d rows in %s", copied, time.Since(start))
	return nil
}

func (s *PostgresSink) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
