package indexdb

import (
	"context"
	"database/sql"
	"time"
)

type BlueprintRow struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Grids   int       `json:"grids"`
	Blocks  int       `json:"blocks"`
	Size    int64     `json:"size"`
	SavedAt time.Time `json:"saved_at"`
	Saves   int       `json:"saves"`
}

type OpRow struct {
	Tick      uint64 `json:"tick"`
	Seq       int    `json:"seq"`
	Player    string `json:"player"`
	Kind      string `json:"kind"`
	GridID    int64  `json:"grid_id"`
	Blocks    int    `json:"blocks"`
	Grids     int    `json:"grids"`
	Repaired  int    `json:"repaired"`
	Dangling  int    `json:"dangling"`
	Pruned    int    `json:"pruned"`
	Reminted  int    `json:"reminted"`
	Blueprint string `json:"blueprint,omitempty"`
}

// OpFilter narrows Ops. Empty fields match everything; Limit 0 means 100.
type OpFilter struct {
	Player string
	Kind   string
	Limit  int
}

func (s *SQLiteIndex) Blueprints(ctx context.Context) ([]BlueprintRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name,path,grids,blocks,size,saved_at,saves FROM blueprints ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BlueprintRow
	for rows.Next() {
		var r BlueprintRow
		var savedAt string
		if err := rows.Scan(&r.Name, &r.Path, &r.Grids, &r.Blocks, &r.Size, &savedAt, &r.Saves); err != nil {
			return nil, err
		}
		r.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ops returns the newest matching operations first.
func (s *SQLiteIndex) Ops(ctx context.Context, f OpFilter) ([]OpRow, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT tick,seq,player,kind,grid_id,blocks,grids,repaired,dangling,pruned,reminted,blueprint
		FROM ops
		WHERE (?1 = '' OR player = ?1) AND (?2 = '' OR kind = ?2)
		ORDER BY tick DESC, seq DESC
		LIMIT ?3`, f.Player, f.Kind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OpRow
	for rows.Next() {
		var r OpRow
		var tick int64
		var bp sql.NullString
		if err := rows.Scan(&tick, &r.Seq, &r.Player, &r.Kind, &r.GridID, &r.Blocks, &r.Grids,
			&r.Repaired, &r.Dangling, &r.Pruned, &r.Reminted, &bp); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		r.Blueprint = bp.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the path of the newest indexed snapshot.
func (s *SQLiteIndex) LatestSnapshot(ctx context.Context) (tick uint64, path string, ok bool, err error) {
	var t int64
	err = s.db.QueryRowContext(ctx, `SELECT tick,path FROM snapshots ORDER BY tick DESC LIMIT 1`).Scan(&t, &path)
	if err == sql.ErrNoRows {
		return 0, "", false, nil
	}
	if err != nil {
		return 0, "", false, err
	}
	return uint64(t), path, true, nil
}
