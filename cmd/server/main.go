package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"sections.ai/internal/metrics"
	"sections.ai/internal/persistence/blueprint"
	persistlog "sections.ai/internal/persistence/log"
	"sections.ai/internal/persistence/mirror"
	"sections.ai/internal/persistence/snapshot"
	"sections.ai/internal/sim/grid"
	"sections.ai/internal/sim/sections"
	"sections.ai/internal/sim/tuning"
	"sections.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index of ops, blueprints and snapshots")
		demo       = flag.Bool("demo", false, "seed a demo ship when starting without a snapshot")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)
	simLogger := log.New(os.Stdout, "[sections] ", log.LstdFlags|log.Lmicroseconds)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}

	ctx, cancel := signalContext()
	defer cancel()

	m := metrics.New()

	// Optional read-model index; the journal stays the source of truth.
	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
	}

	mir, err := buildMirror(ctx, *dataDir, m, logger)
	if err != nil {
		logger.Fatalf("init mirror: %v", err)
	}
	defer mir.Close()

	bps, err := blueprint.Open(*dataDir, tune.Sections.Subdirectory)
	if err != nil {
		logger.Fatalf("open blueprints: %v", err)
	}
	bps.OnSaved(func(b blueprint.Saved) {
		logger.Printf("blueprint saved name=%q grids=%d blocks=%d", b.Name, b.Grids, b.Blocks)
		if idx != nil {
			idx.RecordBlueprint(b)
		}
		mir.Enqueue(b.Path)
	})

	// World: fresh or resumed from snapshot.
	w := grid.NewWorld()
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, snap.Header.WorldID)
		}
		if err := snapshot.Restore(w, snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d grids=%d", filepath.Base(snapshotToLoad), snap.Header.Tick, len(snap.Grids))
	} else if *demo {
		if err := seedDemo(w); err != nil {
			logger.Fatalf("seed demo: %v", err)
		}
	}

	journal := persistlog.NewOpLogger(worldDir)
	defer journal.Close()

	session := sections.NewSession(w, tune, sections.Options{
		Logger:     simLogger,
		Blueprints: bps,
		OpLog:      multiOpLogger{a: journal, b: idx},
		Metrics:    m,
	})
	rt := sections.NewRuntime(*worldID, session)
	m.WatchRuntime(rt.Status)

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	rt.SetSnapshotSink(snapCh)
	go writeSnapshots(ctx, snapCh, worldDir, idx, mir, logger)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("session stopped: %v", err)
		}
	}()

	enableAdminHTTP := envBool("SECTIONS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("SECTIONS_ENABLE_PPROF_HTTP", false)
	if !enableAdminHTTP {
		logger.Printf("admin endpoints disabled (SECTIONS_ENABLE_ADMIN_HTTP=false)")
	}
	mux := buildMux(httpDeps{
		rt:          rt,
		metrics:     m,
		blueprints:  bps,
		idx:         idx,
		mirror:      mir,
		ws:          ws.NewServer(rt, tune, logger).Handler(),
		enableAdmin: enableAdminHTTP,
		enablePprof: enablePprofHTTP,
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s world=%s", *addr, *worldID)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-runDone
}

func writeSnapshots(ctx context.Context, snapCh <-chan snapshot.SnapshotV1, worldDir string, idx runtimeIndex, mir *mirror.Mirror, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-snapCh:
			path := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				logger.Printf("snapshot write: %v", err)
				continue
			}
			if idx != nil {
				idx.RecordSnapshot(path, snap)
			}
			mir.Enqueue(path)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".snap.zst")
		tick, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

// multiOpLogger fans ops out to the journal and the index. Both writes are
// attempted and their errors are joined.
type multiOpLogger struct {
	a sections.OpLogger
	b sections.OpLogger
}

func (m multiOpLogger) WriteOp(op sections.Op) error {
	var journalErr, indexErr error
	if m.a != nil {
		journalErr = m.a.WriteOp(op)
	}
	if m.b != nil {
		if err := m.b.WriteOp(op); err != nil {
			indexErr = fmt.Errorf("index: %w", err)
		}
	}
	return errors.Join(journalErr, indexErr)
}
