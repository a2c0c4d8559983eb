package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteIndex is a secondary index over runs and reference snapshots. Run
// rows are written by a background goroutine; the snapshots and frame logs
// on disk remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan Run
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type Run struct {
	ID       string
	Model    string
	Seed     int32
	Steps    int
	Ticks    int
	Digest   string
	Snapshot string
	Started  time.Time
	Duration time.Duration
}

type Reference struct {
	Model    string
	Seed     int32
	Digest   string
	Snapshot string
	Updated  time.Time
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	DroppedTotal  uint64
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan Run, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			seed INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			digest TEXT NOT NULL,
			snapshot_path TEXT NOT NULL,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_model_seed ON runs(model, seed);`,
		`CREATE TABLE IF NOT EXISTS refs (
			model TEXT NOT NULL,
			seed INTEGER NOT NULL,
			digest TEXT NOT NULL,
			snapshot_path TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (model, seed)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordRun queues r for the writer goroutine. It never blocks; a full queue
// drops the row and counts it.
func (s *SQLiteIndex) RecordRun(r Run) {
	if s == nil || s.closed.Load() {
		return
	}
	if r.ID == "" {
		r.ID = NewRunID()
	}
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DroppedTotal:  s.dropped.Load(),
	}
}

// SetReference records the expected final digest for (model, seed).
func (s *SQLiteIndex) SetReference(ctx context.Context, ref Reference) error {
	if ref.Updated.IsZero() {
		ref.Updated = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO refs(model,seed,digest,snapshot_path,updated_at) VALUES(?,?,?,?,?)`,
		ref.Model, ref.Seed, ref.Digest, ref.Snapshot, ref.Updated.UTC().Format(time.RFC3339Nano))
	return err
}

// LookupReference returns the reference for (model, seed); ok is false when
// none was recorded.
func (s *SQLiteIndex) LookupReference(ctx context.Context, model string, seed int32) (ref Reference, ok bool, err error) {
	var updated string
	row := s.db.QueryRowContext(ctx,
		`SELECT model,seed,digest,snapshot_path,updated_at FROM refs WHERE model=? AND seed=?`, model, seed)
	if err := row.Scan(&ref.Model, &ref.Seed, &ref.Digest, &ref.Snapshot, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reference{}, false, nil
		}
		return Reference{}, false, err
	}
	ref.Updated, _ = time.Parse(time.RFC3339Nano, updated)
	return ref, true, nil
}

// Runs lists the recorded runs of model, oldest first.
func (s *SQLiteIndex) Runs(ctx context.Context, model string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,model,seed,steps,ticks,digest,snapshot_path,started_at,duration_ms FROM runs WHERE model=? ORDER BY started_at, id`, model)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r       Run
			started string
			ms      int64
		)
		if err := rows.Scan(&r.ID, &r.Model, &r.Seed, &r.Steps, &r.Ticks, &r.Digest, &r.Snapshot, &started, &ms); err != nil {
			return nil, err
		}
		r.Started, _ = time.Parse(time.RFC3339Nano, started)
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(id,model,seed,steps,ticks,digest,snapshot_path,started_at,duration_ms) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertRun != nil {
			_ = insertRun.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil || insertRun == nil {
			continue
		}
		if _, err := tx.Stmt(insertRun).Exec(
			r.ID,
			r.Model,
			r.Seed,
			r.Steps,
			r.Ticks,
			r.Digest,
			r.Snapshot,
			r.Started.UTC().Format(time.RFC3339Nano),
			r.Duration.Milliseconds(),
		); err != nil {
			rollback()
			continue
		}
		opCount++
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
