package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"RunnerRadar/internal/model"
)

const maxRecentRuns = 500

// SQLiteRecorder persists scan history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so the history endpoint can read while a cycle writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_runs (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at   INTEGER NOT NULL,
			duration_ms  INTEGER,
			status       TEXT NOT NULL,
			row_count    INTEGER,
			blacklisted  INTEGER,
			error_count  INTEGER,
			failure_kind TEXT,
			detail       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_runs_ts ON scan_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS scan_rows (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id        INTEGER NOT NULL REFERENCES scan_runs(id),
			rank          INTEGER,
			token_address TEXT NOT NULL,
			symbol        TEXT,
			mode          TEXT,
			score         REAL,
			spike_score   REAL,
			liquidity_usd REAL,
			vol24h        REAL,
			price_usd     REAL,
			paid          INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_rows_run ON scan_rows(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_rows_token ON scan_rows(token_address)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordScan stores a cycle and its ranked rows in one transaction.
func (r *SQLiteRecorder) RecordScan(res *model.ScanResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	out, err := tx.Exec(`INSERT INTO scan_runs
		(started_at, duration_ms, status, row_count, blacklisted, error_count, failure_kind, detail)
		VALUES (?,?,?,?,?,?,?,?)`,
		res.StartedAt.UnixMilli(), res.Duration.Milliseconds(), string(res.Status),
		len(res.Rows), res.Blacklisted, len(res.Errors), res.FailureKind, res.StatusDetail,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	runID, err := out.LastInsertId()
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}

	for i, row := range res.Rows {
		if _, err := tx.Exec(`INSERT INTO scan_rows
			(run_id, rank, token_address, symbol, mode, score, spike_score, liquidity_usd, vol24h, price_usd, paid)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			runID, i+1, row.TokenAddress, row.Symbol, row.Mode, row.Score, row.SpikeScore,
			row.LiquidityUSD, row.Vol24h, row.PriceUSD, row.Paid || row.DexPaid,
		); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}
	return tx.Commit()
}

// RecentRuns returns the latest runs, newest first, each with its rows.
func (r *SQLiteRecorder) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 || limit > maxRecentRuns {
		limit = maxRecentRuns
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, started_at, duration_ms, status, row_count, blacklisted, error_count,
		COALESCE(failure_kind, ''), COALESCE(detail, '')
		FROM scan_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	runs := []Run{}
	for rows.Next() {
		var run Run
		var startedMs, durMs int64
		if err := rows.Scan(&run.ID, &startedMs, &durMs, &run.Status, &run.RowCount, &run.Blacklisted,
			&run.ErrorCount, &run.FailureKind, &run.Detail); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = time.UnixMilli(startedMs).UTC()
		run.Duration = time.Duration(durMs) * time.Millisecond
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range runs {
		recs, err := r.runRows(runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Rows = recs
	}
	return runs, nil
}

func (r *SQLiteRecorder) runRows(runID int64) ([]RowRecord, error) {
	rows, err := r.db.Query(`SELECT rank, token_address, COALESCE(symbol, ''), COALESCE(mode, ''),
		score, spike_score, liquidity_usd, vol24h, price_usd, paid
		FROM scan_rows WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var out []RowRecord
	for rows.Next() {
		var rec RowRecord
		if err := rows.Scan(&rec.Rank, &rec.TokenAddress, &rec.Symbol, &rec.Mode, &rec.Score,
			&rec.SpikeScore, &rec.LiquidityUSD, &rec.Vol24h, &rec.PriceUSD, &rec.Paid); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
