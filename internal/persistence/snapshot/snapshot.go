package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"sections.ai/internal/sim/grid"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 is a full session: every live grid with its blocks, storage
// blobs and attachments.
type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate int `json:"tick_rate_hz"`
	// StorageRegistered records whether block storage blobs are part of the
	// grids. Without it the engine drops them.
	StorageRegistered bool `json:"storage_registered"`

	Grids []grid.Builder `json:"grids"`
}

// Capture serializes the live grids of w.
func Capture(worldID string, tick uint64, tickRate int, w *grid.World) SnapshotV1 {
	snap := SnapshotV1{
		Header:            Header{Version: Version, WorldID: worldID, Tick: tick},
		TickRate:          tickRate,
		StorageRegistered: w.StorageRegistered(),
	}
	for _, g := range w.Grids() {
		snap.Grids = append(snap.Grids, w.Export(g, nil))
	}
	return snap
}

// Restore loads snap into an empty world, keeping every handle.
func Restore(w *grid.World, snap SnapshotV1) error {
	if snap.Header.Version != Version {
		return fmt.Errorf("snapshot: unsupported version %d", snap.Header.Version)
	}
	if snap.StorageRegistered {
		w.RegisterStorage()
	}
	for _, b := range snap.Grids {
		if _, err := w.Import(b); err != nil {
			return fmt.Errorf("snapshot: grid %d: %w", b.GridID, err)
		}
	}
	if err := w.LinkImported(snap.Grids); err != nil {
		return fmt.Errorf("snapshot: link: %w", err)
	}
	return nil
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob payload repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader reads only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
