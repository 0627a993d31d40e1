package sections

import (
	"log"
	"sort"

	"sections.ai/internal/sim/grid"
	"sections.ai/internal/sim/host"
	"sections.ai/internal/sim/logic/ids"
	"sections.ai/internal/sim/logic/mechanical"
	"sections.ai/internal/sim/logic/references"
	"sections.ai/internal/sim/tuning"
)

// Blueprints stores saved selections by name.
type Blueprints interface {
	Exists(name string) (bool, error)
	Save(name string, grids []grid.Builder, replace bool) error
}

type OpLogger interface {
	WriteOp(op Op) error
}

type Metrics interface {
	ObserveOp(op Op)
	SetRestoreQueueDepth(n int)
}

type Options struct {
	Logger     *log.Logger
	Blueprints Blueprints
	OpLog      OpLogger
	Metrics    Metrics
	// Mint defaults to ids.NewToken.
	Mint ids.Minter
}

// Session owns the box selectors of every player on one world and the
// restore queue fed by paste hooks. It is not safe for concurrent use; the
// runtime loop is its only caller.
type Session struct {
	world *grid.World
	tune  tuning.Tuning

	logger     *log.Logger
	blueprints Blueprints
	opLog      OpLogger
	metrics    Metrics
	mint       ids.Minter

	tick    uint64
	loaded  bool
	players map[string]*Controller
	queue   RestoreQueue
}

func NewSession(w *grid.World, tune tuning.Tuning, opts Options) *Session {
	s := &Session{
		world:      w,
		tune:       tune,
		logger:     opts.Logger,
		blueprints: opts.Blueprints,
		opLog:      opts.OpLog,
		metrics:    opts.Metrics,
		mint:       opts.Mint,
		players:    map[string]*Controller{},
	}
	w.OnPasted(s.onPasted)
	w.OnPastedOnto(s.onPastedOnto)
	return s
}

func (s *Session) World() *grid.World    { return s.world }
func (s *Session) Tuning() tuning.Tuning { return s.tune }
func (s *Session) Tick() uint64          { return s.tick }
func (s *Session) Loaded() bool          { return s.loaded }
func (s *Session) QueueDepth() int       { return s.queue.Len() }

// Load marks the session ready. The storage component is registered with
// the world only once, on the first load.
func (s *Session) Load() {
	if s.world.RegisterStorage() {
		s.logf("sections: storage component registered")
	}
	s.loaded = true
}

// Unload resets every selector and drops pending restores.
func (s *Session) Unload() {
	for _, c := range s.players {
		c.Reset()
	}
	s.queue.Clear()
	s.loaded = false
}

// Controller returns the selector of player, creating it on first use.
func (s *Session) Controller(player string) *Controller {
	c := s.players[player]
	if c == nil {
		c = newController(s, player)
		s.players[player] = c
	}
	return c
}

func (s *Session) Players() []string {
	out := make([]string, 0, len(s.players))
	for p := range s.players {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (s *Session) Leave(player string) { delete(s.players, player) }

// Handle routes one input to the player's selector. Outside a loaded
// session selectors are reset and inputs are ignored.
func (s *Session) Handle(player string, in Input) Result {
	c := s.Controller(player)
	if !s.loaded {
		c.Reset()
		return Result{State: c.state, Notice: ErrNotLoaded.Error()}
	}
	return c.Handle(in)
}

func (s *Session) onPasted(grids []*grid.Grid) {
	for _, g := range grids {
		if !host.Live(g) {
			continue
		}
		s.queue.Enqueue(g)
	}
}

func (s *Session) onPastedOnto(target *grid.Grid) {
	s.queue.Enqueue(target)
}

// Update advances the session tick, restores references of queued grids
// and drops closed grids from the world. A grid already covered by the
// structure of an earlier grid in the same batch is not restored twice.
func (s *Session) Update() []Op {
	s.tick++
	if !s.loaded {
		return nil
	}
	var ops []Op
	covered := map[host.GridID]struct{}{}
	for _, g := range s.queue.Drain(s.tune.RestoreBatchLimit) {
		if _, done := covered[g.ID()]; done || g.Closed() {
			continue
		}
		grids := mechanical.Walk(g).Grids()
		for _, x := range grids {
			covered[x.ID()] = struct{}{}
		}
		cat := references.ForGrids(grids, s.referenceOptions())
		st := cat.Restore()
		ops = append(ops, s.record(Op{
			Kind:     OpRestore,
			GridID:   g.ID(),
			Blocks:   cat.Len(),
			Grids:    len(grids),
			Repaired: st.Repaired,
			Dangling: st.Dangling,
			Pruned:   st.Pruned,
			Reminted: cat.Reminted(),
		}))
	}
	if n := s.world.Forget(); n > 0 {
		s.logf("sections: forgot %d closed grids at tick %d", n, s.tick)
	}
	if s.metrics != nil {
		s.metrics.SetRestoreQueueDepth(s.queue.Len())
	}
	return ops
}

func (s *Session) referenceOptions() references.Options {
	return references.Options{Mint: s.mint, Logger: s.logger}
}

func (s *Session) record(op Op) Op {
	op.Tick = s.tick
	if s.opLog != nil {
		if err := s.opLog.WriteOp(op); err != nil {
			s.logf("sections: op log: %v", err)
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveOp(op)
	}
	return op
}

func (s *Session) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
