// Package indexdb keeps a queryable SQLite read model of selector
// operations, saved blueprints and snapshots. The op journal and blueprint
// files stay the source of truth; writes here are best effort.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"sections.ai/internal/persistence/blueprint"
	"sections.ai/internal/persistence/snapshot"
	"sections.ai/internal/sim/sections"
	"sections.ai/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropOp        atomic.Uint64
	dropBlueprint atomic.Uint64
	dropSnapshot  atomic.Uint64
	writeFail     atomic.Uint64
}

type reqKind int

const (
	reqOp reqKind = iota + 1
	reqBlueprint
	reqSnapshot
	reqFlush
)

type req struct {
	kind reqKind

	op        sections.Op
	blueprint blueprint.Saved
	snapshot  snapshotRow
	done      chan struct{}
}

type snapshotRow struct {
	Tick    uint64
	WorldID string
	Path    string
	Grids   int
	Blocks  int
}

type Stats struct {
	QueueDepth         int    `json:"queue_depth"`
	QueueCapacity      int    `json:"queue_capacity"`
	DropOpTotal        uint64 `json:"drop_op_total"`
	DropBlueprintTotal uint64 `json:"drop_blueprint_total"`
	DropSnapshotTotal  uint64 `json:"drop_snapshot_total"`
	WriteFailTotal     uint64 `json:"write_fail_total"`
}

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
		ch: make(chan req, 65536),
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
		"PRAGMA foreign_keys=ON;",
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
		`CREATE TABLE IF NOT EXISTS settings (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ops (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			player TEXT NOT NULL,
			kind TEXT NOT NULL,
			grid_id INTEGER NOT NULL,
			blocks INTEGER NOT NULL,
			grids INTEGER NOT NULL,
			repaired INTEGER NOT NULL,
			dangling INTEGER NOT NULL,
			pruned INTEGER NOT NULL,
			reminted INTEGER NOT NULL,
			blueprint TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ops_player_tick ON ops(player, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_ops_kind_tick ON ops(kind, tick);`,
		`CREATE TABLE IF NOT EXISTS blueprints (
			name TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			grids INTEGER NOT NULL,
			blocks INTEGER NOT NULL,
			size INTEGER NOT NULL,
			saved_at TEXT NOT NULL,
			saves INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			world_id TEXT NOT NULL,
			path TEXT NOT NULL,
			grids INTEGER NOT NULL,
			blocks INTEGER NOT NULL
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

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:         len(s.ch),
		QueueCapacity:      cap(s.ch),
		DropOpTotal:        s.dropOp.Load(),
		DropBlueprintTotal: s.dropBlueprint.Load(),
		DropSnapshotTotal:  s.dropSnapshot.Load(),
		WriteFailTotal:     s.writeFail.Load(),
	}
}

// WriteOp queues op for indexing. It never blocks; ops are dropped and
// counted when the writer falls behind.
func (s *SQLiteIndex) WriteOp(op sections.Op) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqOp, op: op}:
	default:
		s.dropOp.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordBlueprint(b blueprint.Saved) {
	if s == nil || s.closed.Load() || b.Name == "" {
		return
	}
	select {
	case s.ch <- req{kind: reqBlueprint, blueprint: b}:
	default:
		s.dropBlueprint.Add(1)
	}
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:    snap.Header.Tick,
		WorldID: snap.Header.WorldID,
		Path:    path,
		Grids:   len(snap.Grids),
	}
	for _, g := range snap.Grids {
		r.Blocks += len(g.Blocks)
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// Flush waits until every request queued before it is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpsertTuning stores the settings the server actually applies.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO settings(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		"tuning", tune.Digest(), string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertOp, _ := s.db.Prepare(`INSERT OR REPLACE INTO ops(tick,seq,player,kind,grid_id,blocks,grids,repaired,dangling,pruned,reminted,blueprint,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	upsertBlueprint, _ := s.db.Prepare(`INSERT INTO blueprints(name,path,grids,blocks,size,saved_at) VALUES(?,?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET path=excluded.path, grids=excluded.grids, blocks=excluded.blocks,
		size=excluded.size, saved_at=excluded.saved_at, saves=saves+1`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,world_id,path,grids,blocks) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertOp, upsertBlueprint, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second

		lastOpTick uint64
		opSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.writeFail.Add(1)
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
		if err := tx.Commit(); err != nil {
			s.writeFail.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		s.writeFail.Add(1)
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqOp:
			op := r.op
			if op.Tick != lastOpTick {
				lastOpTick = op.Tick
				opSeq = 0
			}
			seq := opSeq
			opSeq++
			raw, _ := json.Marshal(op)
			exec(insertOp,
				int64(op.Tick), seq, op.Player, string(op.Kind), int64(op.GridID),
				op.Blocks, op.Grids, op.Repaired, op.Dangling, op.Pruned, op.Reminted,
				op.Blueprint, string(raw),
			)

		case reqBlueprint:
			b := r.blueprint
			exec(upsertBlueprint, b.Name, b.Path, b.Grids, b.Blocks, b.Size, b.SavedAt.UTC().Format(time.RFC3339Nano))

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Tick), sn.WorldID, sn.Path, sn.Grids, sn.Blocks)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
