package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists refresh history to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the API read history while a cycle is being written.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS refresh_cycles (
			id             TEXT PRIMARY KEY,
			started_at     INTEGER NOT NULL,
			finished_at    INTEGER NOT NULL,
			trigger_type   TEXT,
			outcome        TEXT,
			stale          INTEGER,
			failures       TEXT,
			buy_current    TEXT,
			sell_current   TEXT,
			buy_cheap      INTEGER,
			buy_expensive  INTEGER,
			sell_cheap     INTEGER,
			sell_expensive INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_started ON refresh_cycles(started_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordCycle(evt *CycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	failures := evt.Failures
	if failures == nil {
		failures = []string{}
	}
	encoded, err := json.Marshal(failures)
	if err != nil {
		return fmt.Errorf("encode failures: %w", err)
	}

	_, err = r.db.Exec(`INSERT OR REPLACE INTO refresh_cycles
		(id, started_at, finished_at, trigger_type, outcome, stale, failures,
		 buy_current, sell_current, buy_cheap, buy_expensive, sell_cheap, sell_expensive)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		evt.ID, evt.StartedAt.UnixMilli(), evt.FinishedAt.UnixMilli(),
		evt.Trigger, evt.Outcome, evt.Stale, string(encoded),
		nullText(evt.BuyCurrent), nullText(evt.SellCurrent),
		evt.BuyCheap, evt.BuyExpensive, evt.SellCheap, evt.SellExpensive,
	)
	return err
}

// RecentCycles returns up to limit cycles, newest first.
func (r *SQLiteRecorder) RecentCycles(limit int) ([]CycleEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`SELECT id, started_at, finished_at, trigger_type, outcome, stale, failures,
		buy_current, sell_current, buy_cheap, buy_expensive, sell_cheap, sell_expensive
		FROM refresh_cycles ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	out := make([]CycleEvent, 0, limit)
	for rows.Next() {
		var (
			evt                  CycleEvent
			started, finished    int64
			failures             string
			buyCurrent, sellCurr sql.NullString
		)
		if err := rows.Scan(&evt.ID, &started, &finished, &evt.Trigger, &evt.Outcome, &evt.Stale, &failures,
			&buyCurrent, &sellCurr, &evt.BuyCheap, &evt.BuyExpensive, &evt.SellCheap, &evt.SellExpensive); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		evt.StartedAt = time.UnixMilli(started)
		evt.FinishedAt = time.UnixMilli(finished)
		if err := json.Unmarshal([]byte(failures), &evt.Failures); err != nil {
			r.logger.Warn("undecodable failures column", zap.String("id", evt.ID), zap.Error(err))
		}
		evt.BuyCurrent = parseNull(buyCurrent)
		evt.SellCurrent = parseNull(sellCurr)
		out = append(out, evt)
	}
	return out, rows.Err()
}

func nullText(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func parseNull(s sql.NullString) decimal.NullDecimal {
	if !s.Valid {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
